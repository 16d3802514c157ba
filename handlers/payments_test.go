package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// insertedDocs collects the documents sent in insert commands against the
// named collection.
func insertedDocs(mt *mtest.T, coll string) []bson.Raw {
	var docs []bson.Raw
	for _, ev := range mt.GetAllStartedEvents() {
		if ev.CommandName != "insert" || ev.Command.Lookup("insert").StringValue() != coll {
			continue
		}
		values, err := ev.Command.Lookup("documents").Array().Values()
		require.NoError(mt, err)
		for _, v := range values {
			docs = append(docs, v.Document())
		}
	}
	return docs
}

// updateSet returns the $set document of the single update command sent
// against the named collection.
func updateSet(mt *mtest.T, coll string) bson.Raw {
	for _, ev := range mt.GetAllStartedEvents() {
		if ev.CommandName != "update" || ev.Command.Lookup("update").StringValue() != coll {
			continue
		}
		updates, err := ev.Command.Lookup("updates").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, updates, 1)
		return updates[0].Document().Lookup("u").Document().Lookup("$set").Document()
	}
	require.Fail(mt, "no update command recorded for "+coll)
	return nil
}

func TestMockPaymentFlipsOrderAndRecordsOnePayment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("confirms order", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		customerID := primitive.NewObjectID()

		db := &DB{
			OrdersCollection:  mt.Coll.Database().Collection("orders"),
			PaymentCollection: mt.Coll.Database().Collection("payments"),
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "foodappDB.orders", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: orderID},
				{Key: "customer", Value: customerID},
				{Key: "restaurant", Value: primitive.NewObjectID()},
				{Key: "total_amount", Value: 1300.0},
				{Key: "payment_method", Value: "cod"},
				{Key: "payment_status", Value: "Unpaid"},
				{Key: "status", Value: "pending"},
			}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		body := `{"order_id":"` + orderID.Hex() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/payments/mock-callback", strings.NewReader(body))
		rec := httptest.NewRecorder()

		db.MockPaymentHandler(rec, req)

		require.Equal(mt, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(mt, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(mt, "Mock M-Pesa payment successful", resp["message"])
		assert.True(mt, strings.HasPrefix(resp["transaction_id"].(string), "TEST"))

		payments := insertedDocs(mt, "payments")
		require.Len(mt, payments, 1)
		payment := payments[0]
		assert.Equal(mt, "success", payment.Lookup("status").StringValue())
		assert.Equal(mt, "cod", payment.Lookup("payment_method").StringValue())
		assert.Equal(mt, 1300.0, payment.Lookup("amount").Double())
		assert.Equal(mt, orderID, payment.Lookup("order").ObjectID())
		assert.Equal(mt, customerID, payment.Lookup("user").ObjectID())

		set := updateSet(mt, "orders")
		assert.True(mt, set.Lookup("is_paid").Boolean())
		assert.Equal(mt, "Paid", set.Lookup("payment_status").StringValue())
		assert.False(mt, set.Lookup("paid_at").Time().IsZero())
	})

	mt.Run("unknown order", func(mt *mtest.T) {
		db := &DB{
			OrdersCollection:  mt.Coll.Database().Collection("orders"),
			PaymentCollection: mt.Coll.Database().Collection("payments"),
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "foodappDB.orders", mtest.FirstBatch),
		)

		body := `{"order_id":"` + primitive.NewObjectID().Hex() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/payments/mock-callback", strings.NewReader(body))
		rec := httptest.NewRecorder()

		db.MockPaymentHandler(rec, req)

		assert.Equal(mt, http.StatusNotFound, rec.Code)
		assert.Empty(mt, insertedDocs(mt, "payments"))
	})
}
