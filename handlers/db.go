package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go_trial/foodapi/gateway"
)

// DB bundles the Mongo collections and external gateway clients the
// handlers work against.
type DB struct {
	UserCollection       *mongo.Collection
	RestaurantCollection *mongo.Collection
	MenuItemCollection   *mongo.Collection
	OrdersCollection     *mongo.Collection
	PaymentCollection    *mongo.Collection

	JWTSecret string
	UploadDir string

	Mpesa     *gateway.MpesaClient
	Paypal    *gateway.PaypalClient
	StripeKey string
}

// Prometheus metrics
var (
	registerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "register_requests_total",
			Help: "Total number of account registration requests",
		},
		[]string{"status"},
	)

	loginRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "login_requests_total",
		Help: "Total number of login requests",
	})

	loginRequestsByStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_requests_by_status_total",
		Help: "Total number of login requests by status",
	},
		[]string{"status"})

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of order creation requests",
		},
		[]string{"status"},
	)

	orderCreateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_create_duration_seconds",
			Help:    "Histogram of request durations for creating orders",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	paymentRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Total number of payment requests by method and status",
		},
		[]string{"method", "status"},
	)
)

func Init() {
	// Register metrics with Prometheus
	prometheus.MustRegister(registerRequests)
	prometheus.MustRegister(loginRequests)
	prometheus.MustRegister(loginRequestsByStatus)
	prometheus.MustRegister(ordersPlaced)
	prometheus.MustRegister(orderCreateDuration)
	prometheus.MustRegister(paymentRequests)
}

// dbCtx returns the bounded context used for every Mongo call.
func dbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"message": msg})
}

// callerID extracts the authenticated account id placed in the context by
// the auth middleware.
func callerID(r *http.Request) (primitive.ObjectID, bool) {
	raw, ok := r.Context().Value("userID").(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
