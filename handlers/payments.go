package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/charge"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"

	"go_trial/foodapi/gateway"
	"go_trial/foodapi/models"
)

// findOrderByHex looks up an order by its hex id.
func (db *DB) findOrderByHex(ctx context.Context, hexID string) (*models.Order, int, string) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid order ID"
	}
	var order models.Order
	if err := db.OrdersCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, http.StatusNotFound, "Order not found"
		}
		return nil, http.StatusInternalServerError, "Failed to fetch order"
	}
	return &order, 0, ""
}

// priorPayment returns the payment previously recorded for the same order
// under the same Idempotency-Key, if the client sent one. A repeated key
// means a client retry, not a second payment.
func (db *DB) priorPayment(ctx context.Context, r *http.Request, orderID primitive.ObjectID) (*models.Payment, string) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return nil, ""
	}
	var payment models.Payment
	err := db.PaymentCollection.FindOne(ctx, bson.M{"order": orderID, "idempotency_key": key}).Decode(&payment)
	if err != nil {
		return nil, key
	}
	return &payment, key
}

// markOrderPaid flips the order's paid flag and timestamps it.
func (db *DB) markOrderPaid(ctx context.Context, orderID primitive.ObjectID) error {
	_, err := db.OrdersCollection.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{"$set": bson.M{
		"is_paid":        true,
		"paid_at":        time.Now(),
		"payment_status": "Paid",
	}})
	return err
}

//MpesaPayHandler starts a mobile-money push: token exchange, STK push to the
//customer's phone, then a pending Payment record carrying the
//CheckoutRequestID the asynchronous callback will answer with.

func (db *DB) MpesaPayHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("payment-service").Start(r.Context(), "MpesaPayHandler")
	defer span.End()

	var req struct {
		OrderID string `json:"order_id"`
		Phone   string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		paymentRequests.WithLabelValues("mpesa", "error").Inc()
		return
	}
	if req.Phone == "" {
		respondError(w, http.StatusBadRequest, "Phone number is required")
		paymentRequests.WithLabelValues("mpesa", "error").Inc()
		return
	}

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	order, code, msg := db.findOrderByHex(dctx, req.OrderID)
	if order == nil {
		respondError(w, code, msg)
		paymentRequests.WithLabelValues("mpesa", "error").Inc()
		return
	}

	if prior, _ := db.priorPayment(dctx, r, order.ID); prior != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "STK Push already sent for this request",
			"payment_id": prior.ID,
		})
		return
	}

	pushResp, err := db.Mpesa.STKPush(ctx, req.Phone, order.TotalAmount)
	if err != nil {
		span.RecordError(err)
		log.Printf("M-Pesa STK push error: %v", err)
		respondError(w, http.StatusInternalServerError, "STK Push failed")
		paymentRequests.WithLabelValues("mpesa", "error").Inc()
		return
	}

	payment := models.Payment{
		Order:             order.ID,
		User:              order.Customer,
		PaymentMethod:     "mpesa",
		Amount:            order.TotalAmount,
		Status:            models.PaymentPending,
		CheckoutRequestID: pushResp.CheckoutRequestID,
		IdempotencyKey:    r.Header.Get("Idempotency-Key"),
		CreatedAt:         time.Now(),
	}
	result, err := db.PaymentCollection.InsertOne(dctx, payment)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record payment")
		paymentRequests.WithLabelValues("mpesa", "error").Inc()
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "STK Push Sent Successfully",
		"payment_id": result.InsertedID,
	})
	paymentRequests.WithLabelValues("mpesa", "success").Inc()
}

//MpesaCallbackHandler receives the asynchronous Daraja result. The payload
//is logged, and when its CheckoutRequestID matches a pending Payment the
//outcome is recorded against it.

func (db *DB) MpesaCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var cb gateway.STKCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		log.Printf("M-Pesa callback decode error: %v", err)
		respondJSON(w, http.StatusOK, map[string]interface{}{"ResultCode": 0, "ResultDesc": "Callback received successfully"})
		return
	}

	stk := cb.Body.StkCallback
	log.Printf("M-Pesa callback received: checkout=%s result=%d desc=%s",
		stk.CheckoutRequestID, stk.ResultCode, stk.ResultDesc)

	if stk.CheckoutRequestID != "" {
		dctx, cancel := dbCtx()
		defer cancel()

		var payment models.Payment
		err := db.PaymentCollection.FindOne(dctx, bson.M{
			"checkout_request_id": stk.CheckoutRequestID,
			"status":              models.PaymentPending,
		}).Decode(&payment)
		if err == nil {
			status := models.PaymentFailed
			update := bson.M{"status": status}
			if stk.ResultCode == 0 {
				status = models.PaymentSuccess
				update["status"] = status
				if receipt := cb.Receipt(); receipt != "" {
					update["transaction_id"] = receipt
				}
			}
			if _, err := db.PaymentCollection.UpdateOne(dctx, bson.M{"_id": payment.ID}, bson.M{"$set": update}); err != nil {
				log.Printf("Failed to update payment from callback: %v", err)
			} else if status == models.PaymentSuccess {
				if err := db.markOrderPaid(dctx, payment.Order); err != nil {
					log.Printf("Failed to mark order paid from callback: %v", err)
				}
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"ResultCode": 0, "ResultDesc": "Callback received successfully"})
}

//MockPaymentHandler is the manual confirmation path: it records one
//successful Payment and flips the order's paid flag synchronously. Stands in
//for cash on delivery and for gateway testing.

func (db *DB) MockPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	order, code, msg := db.findOrderByHex(dctx, req.OrderID)
	if order == nil {
		respondError(w, code, msg)
		return
	}

	method := order.PaymentMethod
	if method == "" {
		method = "cod"
	}
	payment := models.Payment{
		Order:         order.ID,
		User:          order.Customer,
		PaymentMethod: method,
		Amount:        order.TotalAmount,
		Status:        models.PaymentSuccess,
		TransactionID: fmt.Sprintf("TEST%d", time.Now().UnixMilli()),
		CreatedAt:     time.Now(),
	}
	result, err := db.PaymentCollection.InsertOne(dctx, payment)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	if err := db.markOrderPaid(dctx, order.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update order")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Mock M-Pesa payment successful",
		"payment_id":     result.InsertedID,
		"transaction_id": payment.TransactionID,
	})
}

//PaypalPayHandler starts the redirect flow: create a remote PayPal order for
//the total, record a pending Payment referencing it, and hand back the
//approval URL for the client to redirect to.

func (db *DB) PaypalPayHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("payment-service").Start(r.Context(), "PaypalPayHandler")
	defer span.End()

	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		paymentRequests.WithLabelValues("paypal", "error").Inc()
		return
	}

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	order, code, msg := db.findOrderByHex(dctx, req.OrderID)
	if order == nil {
		respondError(w, code, msg)
		paymentRequests.WithLabelValues("paypal", "error").Inc()
		return
	}

	if prior, _ := db.priorPayment(dctx, r, order.ID); prior != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "PayPal order already created for this request",
			"payment_id": prior.ID,
		})
		return
	}

	paypalOrderID, approvalURL, err := db.Paypal.CreateOrder(ctx, order.TotalAmount)
	if err != nil {
		span.RecordError(err)
		log.Printf("PayPal order creation error: %v", err)
		respondError(w, http.StatusInternalServerError, "PayPal payment failed")
		paymentRequests.WithLabelValues("paypal", "error").Inc()
		return
	}

	payment := models.Payment{
		Order:          order.ID,
		User:           order.Customer,
		PaymentMethod:  "paypal",
		Amount:         order.TotalAmount,
		Status:         models.PaymentPending,
		TransactionID:  paypalOrderID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		CreatedAt:      time.Now(),
	}
	result, err := db.PaymentCollection.InsertOne(dctx, payment)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record payment")
		paymentRequests.WithLabelValues("paypal", "error").Inc()
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"approval_url": approvalURL,
		"payment_id":   result.InsertedID,
		"message":      "PayPal order created successfully",
	})
	paymentRequests.WithLabelValues("paypal", "success").Inc()
}

//PaypalCaptureHandler exchanges an approved PayPal order for a captured
//charge, returns the capture document, and flips the local Payment and
//Order when the capture completed.

func (db *DB) PaypalCaptureHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaypalOrderID string `json:"paypal_order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaypalOrderID == "" {
		respondError(w, http.StatusBadRequest, "PayPal order ID is required")
		paymentRequests.WithLabelValues("paypal", "error").Inc()
		return
	}

	capture, err := db.Paypal.CaptureOrder(r.Context(), req.PaypalOrderID)
	if err != nil {
		log.Printf("PayPal capture error: %v", err)
		respondError(w, http.StatusInternalServerError, "PayPal capture failed")
		paymentRequests.WithLabelValues("paypal", "error").Inc()
		return
	}

	if status, _ := capture["status"].(string); status == "COMPLETED" {
		dctx, cancel := dbCtx()
		defer cancel()

		var payment models.Payment
		err := db.PaymentCollection.FindOne(dctx, bson.M{"transaction_id": req.PaypalOrderID}).Decode(&payment)
		if err == nil {
			if _, err := db.PaymentCollection.UpdateOne(dctx, bson.M{"_id": payment.ID},
				bson.M{"$set": bson.M{"status": models.PaymentSuccess}}); err != nil {
				log.Printf("Failed to update payment after capture: %v", err)
			} else if err := db.markOrderPaid(dctx, payment.Order); err != nil {
				log.Printf("Failed to mark order paid after capture: %v", err)
			}
		}
	}

	respondJSON(w, http.StatusOK, capture)
	paymentRequests.WithLabelValues("paypal", "success").Inc()
}

//CardPayHandler charges the order total through Stripe using a source token
//and records the outcome synchronously.

func (db *DB) CardPayHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID     string `json:"order_id"`
		Currency    string `json:"currency"`
		SourceToken string `json:"source_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		paymentRequests.WithLabelValues("card", "error").Inc()
		return
	}
	if req.SourceToken == "" {
		respondError(w, http.StatusBadRequest, "Source token is required")
		paymentRequests.WithLabelValues("card", "error").Inc()
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	dctx, cancel := dbCtx()
	defer cancel()

	order, code, msg := db.findOrderByHex(dctx, req.OrderID)
	if order == nil {
		respondError(w, code, msg)
		paymentRequests.WithLabelValues("card", "error").Inc()
		return
	}

	if prior, _ := db.priorPayment(dctx, r, order.ID); prior != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "Payment already processed for this request",
			"payment_id": prior.ID,
		})
		return
	}

	stripe.Key = db.StripeKey

	chargeParams := &stripe.ChargeParams{
		Amount:   stripe.Int64(int64(order.TotalAmount * 100)), // Convert to cents
		Currency: stripe.String(req.Currency),
		Source:   &stripe.SourceParams{Token: stripe.String(req.SourceToken)},
	}
	chargeParams.AddMetadata("order_id", req.OrderID)

	ch, err := charge.New(chargeParams)
	if err != nil {
		log.Printf("Stripe charge error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to process payment")
		paymentRequests.WithLabelValues("card", "error").Inc()
		return
	}

	payment := models.Payment{
		Order:          order.ID,
		User:           order.Customer,
		PaymentMethod:  "card",
		Amount:         order.TotalAmount,
		Status:         models.PaymentSuccess,
		TransactionID:  ch.ID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		CreatedAt:      time.Now(),
	}
	result, err := db.PaymentCollection.InsertOne(dctx, payment)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record payment")
		paymentRequests.WithLabelValues("card", "error").Inc()
		return
	}

	if err := db.markOrderPaid(dctx, order.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update order status")
		paymentRequests.WithLabelValues("card", "error").Inc()
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"message":    "Payment processed successfully",
		"payment_id": result.InsertedID,
	})
	paymentRequests.WithLabelValues("card", "success").Inc()
}
