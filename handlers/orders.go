package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"

	"go_trial/foodapi/models"
)

// Order aggregation failure modes. Validation runs to completion before
// anything is written, so any of these aborts with no order persisted.
var (
	ErrItemNotFound     = errors.New("menu item not found")
	ErrItemUnavailable  = errors.New("menu item not available")
	ErrMixedRestaurants = errors.New("all order items must be from the same restaurant")
)

type orderItemRequest struct {
	MenuItem string `json:"menu_item"`
	Quantity int64  `json:"quantity"`
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	Address       string             `json:"address"`
	PaymentMethod string             `json:"payment_method"`
}

// menuFetcher resolves a menu item id to its current document.
type menuFetcher func(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error)

// buildOrderLines validates the requested items against the catalog and
// produces the line-item snapshots, the owning restaurant and the total.
// The first item fixes the restaurant; quantities default to 1 when absent
// or non-positive.
func buildOrderLines(ctx context.Context, items []orderItemRequest, fetch menuFetcher) ([]models.OrderItem, primitive.ObjectID, float64, error) {
	var (
		lines        []models.OrderItem
		restaurantID primitive.ObjectID
		total        float64
	)

	for _, it := range items {
		id, err := primitive.ObjectIDFromHex(it.MenuItem)
		if err != nil {
			return nil, primitive.NilObjectID, 0, fmt.Errorf("%w: %s", ErrItemNotFound, it.MenuItem)
		}

		menu, err := fetch(ctx, id)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, primitive.NilObjectID, 0, fmt.Errorf("%w: %s", ErrItemNotFound, it.MenuItem)
			}
			return nil, primitive.NilObjectID, 0, err
		}
		if !menu.Available {
			return nil, primitive.NilObjectID, 0, fmt.Errorf("%w: %s", ErrItemUnavailable, menu.Name)
		}

		if restaurantID.IsZero() {
			restaurantID = menu.Restaurant
		} else if restaurantID != menu.Restaurant {
			return nil, primitive.NilObjectID, 0, ErrMixedRestaurants
		}

		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}

		lines = append(lines, models.OrderItem{
			MenuItem: menu.ID,
			Name:     menu.Name,
			Price:    menu.Price,
			Quantity: qty,
		})
		total += menu.Price * float64(qty)
	}

	return lines, restaurantID, total, nil
}

func (db *DB) fetchMenuItem(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := db.MenuItemCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

//CreateOrderHandler validates the cart against the catalog, snapshots the
//line items and persists the order in a single write.

func (db *DB) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, span := otel.Tracer("order-service").Start(r.Context(), "CreateOrderHandler")
	defer span.End()

	userID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Failed to retrieve user identity")
		ordersPlaced.WithLabelValues("error").Inc()
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		ordersPlaced.WithLabelValues("error").Inc()
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "No order items")
		ordersPlaced.WithLabelValues("error").Inc()
		return
	}

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	lines, restaurantID, total, err := buildOrderLines(dctx, req.Items, db.fetchMenuItem)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrItemNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrItemUnavailable), errors.Is(err, ErrMixedRestaurants):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "Failed to validate order items")
		}
		ordersPlaced.WithLabelValues("error").Inc()
		orderCreateDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return
	}

	order := models.Order{
		Customer:      userID,
		Restaurant:    restaurantID,
		Items:         lines,
		TotalAmount:   total,
		Address:       req.Address,
		Status:        "pending",
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: "Unpaid",
		CreatedAt:     time.Now(),
	}
	result, err := db.OrdersCollection.InsertOne(dctx, order)
	if err != nil {
		span.RecordError(err)
		respondError(w, http.StatusInternalServerError, "Failed to create order")
		ordersPlaced.WithLabelValues("error").Inc()
		orderCreateDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return
	}
	order.ID = result.InsertedID.(primitive.ObjectID)

	respondJSON(w, http.StatusCreated, order)
	ordersPlaced.WithLabelValues("success").Inc()
	orderCreateDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
}

// GetMyOrdersHandler lists the caller's orders, newest first.
func (db *DB) GetMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Failed to retrieve user identity")
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := db.OrdersCollection.Find(dctx, bson.M{"customer": userID}, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	defer cursor.Close(dctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(dctx, &orders); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to decode orders")
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// GetOrdersForRestaurantHandler lists a restaurant's incoming orders for its
// owner, newest first.
func (db *DB) GetOrdersForRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	restaurantID, err := primitive.ObjectIDFromHex(vars["restaurantId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	restaurant, code, msg := db.loadOwnedRestaurant(r, restaurantID)
	if restaurant == nil {
		respondError(w, code, msg)
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := db.OrdersCollection.Find(dctx, bson.M{"restaurant": restaurantID}, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	defer cursor.Close(dctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(dctx, &orders); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to decode orders")
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// loadOrder fetches an order by path id.
func (db *DB) loadOrder(r *http.Request) (*models.Order, int, string) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid order ID"
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var order models.Order
	if err := db.OrdersCollection.FindOne(dctx, bson.M{"_id": id}).Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, http.StatusNotFound, "Order not found"
		}
		return nil, http.StatusInternalServerError, "Failed to fetch order"
	}
	return &order, 0, ""
}

// GetOrderHandler returns a single order to its customer or to the owner of
// the restaurant it was placed with.
func (db *DB) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, code, msg := db.loadOrder(r)
	if order == nil {
		respondError(w, code, msg)
		return
	}

	userID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Failed to retrieve user identity")
		return
	}

	if order.Customer != userID {
		dctx, cancel := dbCtx()
		defer cancel()

		var restaurant models.Restaurant
		err := db.RestaurantCollection.FindOne(dctx, bson.M{"_id": order.Restaurant}).Decode(&restaurant)
		if err != nil || restaurant.Owner != userID {
			respondError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
	}

	respondJSON(w, http.StatusOK, order)
}

// UpdateOrderStatusHandler lets the owning restaurant's account move an
// order through its status tags.
func (db *DB) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	order, code, msg := db.loadOrder(r)
	if order == nil {
		respondError(w, code, msg)
		return
	}

	restaurant, code, msg := db.loadOwnedRestaurant(r, order.Restaurant)
	if restaurant == nil {
		if code == http.StatusUnauthorized {
			code = http.StatusForbidden
			msg = "Not authorized to update this order"
		}
		respondError(w, code, msg)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Status == "" {
		respondJSON(w, http.StatusOK, order)
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	if _, err := db.OrdersCollection.UpdateOne(dctx, bson.M{"_id": order.ID}, bson.M{"$set": bson.M{"status": req.Status}}); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update order status")
		return
	}
	order.Status = req.Status

	respondJSON(w, http.StatusOK, order)
}

// PayOrderHandler records a payment confirmation supplied by the customer
// (or simulated when the body carries no gateway result).
func (db *DB) PayOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, code, msg := db.loadOrder(r)
	if order == nil {
		respondError(w, code, msg)
		return
	}

	userID, ok := callerID(r)
	if !ok || order.Customer != userID {
		respondError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req models.PaymentResult
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = models.PaymentResult{}
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("sim-%d", time.Now().UnixMilli())
	}
	if req.Status == "" {
		req.Status = "COMPLETED"
	}
	if req.UpdateTime == "" {
		req.UpdateTime = time.Now().Format(time.RFC3339)
	}

	update := bson.M{"payment_result": req}
	if req.Status == "COMPLETED" || req.Status == "SUCCESS" {
		now := time.Now()
		update["status"] = "confirmed"
		update["is_paid"] = true
		update["paid_at"] = now
		update["payment_status"] = "Paid"
		order.Status = "confirmed"
		order.IsPaid = true
		order.PaidAt = &now
		order.PaymentStatus = "Paid"
	}
	order.PaymentResult = &req

	dctx, cancel := dbCtx()
	defer cancel()

	if _, err := db.OrdersCollection.UpdateOne(dctx, bson.M{"_id": order.ID}, bson.M{"$set": update}); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update order")
		return
	}

	respondJSON(w, http.StatusOK, order)
}
