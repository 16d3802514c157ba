package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestGenerateToken(t *testing.T) {
	db := &DB{JWTSecret: "unit-test-secret"}
	userID := primitive.NewObjectID()

	signed, err := db.generateToken(userID, "restaurant")
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(db.JWTSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, userID.Hex(), claims["id"])
	assert.Equal(t, "restaurant", claims["role"])

	exp := time.Unix(int64(claims["exp"].(float64)), 0)
	wantExp := time.Now().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, wantExp, exp, time.Minute)
}

func TestDecodeRegisterJSON(t *testing.T) {
	body := `{
		"name": "Mama Oliech",
		"email": "owner@oliech.co.ke",
		"password": "secret",
		"role": "restaurant",
		"restaurant_name": "Mama Oliech Restaurant",
		"location": "Nairobi"
	}`
	r := httptest.NewRequest("POST", "/api/users/register", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	req, multipart, err := decodeRegister(r)
	require.NoError(t, err)
	assert.False(t, multipart)
	assert.Equal(t, "Mama Oliech", req.Name)
	assert.Equal(t, "owner@oliech.co.ke", req.Email)
	assert.Equal(t, "restaurant", req.Role)
	assert.Equal(t, "Mama Oliech Restaurant", req.RestaurantName)
	assert.Equal(t, "Nairobi", req.Location)
}

func TestDecodeRegisterRejectsBadJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/users/register", strings.NewReader("{not json"))
	r.Header.Set("Content-Type", "application/json")

	_, _, err := decodeRegister(r)
	require.Error(t, err)
}

func TestRegisterRestaurantCreatesLinkedRestaurant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("restaurant role", func(mt *mtest.T) {
		db := &DB{
			UserCollection:       mt.Coll.Database().Collection("users"),
			RestaurantCollection: mt.Coll.Database().Collection("restaurants"),
			JWTSecret:            "unit-test-secret",
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "foodappDB.users", mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		body := `{
			"name": "Mama Oliech",
			"email": "Owner@Oliech.co.ke",
			"password": "secret",
			"role": "restaurant",
			"restaurant_name": "Mama Oliech Restaurant",
			"location": "Nairobi"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		db.RegisterUserHandler(rec, req)

		require.Equal(mt, http.StatusCreated, rec.Code)

		var resp authResponse
		require.NoError(mt, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(mt, "restaurant", resp.Role)
		assert.Equal(mt, "owner@oliech.co.ke", resp.Email)
		require.NotNil(mt, resp.RestaurantID)
		assert.NotEmpty(mt, resp.Token)

		users := insertedDocs(mt, "users")
		require.Len(mt, users, 1)
		ownerID := users[0].Lookup("_id").ObjectID()

		restaurants := insertedDocs(mt, "restaurants")
		require.Len(mt, restaurants, 1)
		restaurant := restaurants[0]
		assert.Equal(mt, ownerID, restaurant.Lookup("owner").ObjectID())
		assert.Equal(mt, "Mama Oliech Restaurant", restaurant.Lookup("name").StringValue())
		assert.Equal(mt, "Nairobi", restaurant.Lookup("location").StringValue())
		assert.Equal(mt, "General", restaurant.Lookup("cuisine_type").StringValue())
		assert.Equal(mt, 0.0, restaurant.Lookup("rating").Double())
	})

	mt.Run("customer role", func(mt *mtest.T) {
		db := &DB{
			UserCollection:       mt.Coll.Database().Collection("users"),
			RestaurantCollection: mt.Coll.Database().Collection("restaurants"),
			JWTSecret:            "unit-test-secret",
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "foodappDB.users", mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		body := `{"name":"Jane","email":"jane@example.com","password":"secret"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		db.RegisterUserHandler(rec, req)

		require.Equal(mt, http.StatusCreated, rec.Code)

		var resp authResponse
		require.NoError(mt, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(mt, "customer", resp.Role)
		assert.Nil(mt, resp.RestaurantID)
		assert.Empty(mt, insertedDocs(mt, "restaurants"))
	})
}
