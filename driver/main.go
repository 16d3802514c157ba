package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"go_trial/foodapi/config"
	"go_trial/foodapi/gateway"
	"go_trial/foodapi/handlers"
	"go_trial/foodapi/middleware"
	"go_trial/foodapi/middleware/logkafka"
	"go_trial/foodapi/telem"
	"go_trial/foodapi/utils"
)

func main() {
	cfg := config.Load()

	// Initialize MongoDB client
	client, err := utils.InitMongoClient(cfg.MongoURI)
	if err != nil {
		panic(err)
	}
	defer client.Disconnect(context.TODO())

	middleware.Init(cfg.JWTSecret)
	handlers.Init()

	shutdownMetrics, err := telem.InitMetrics("foodapi", cfg.MetricsAddr)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer shutdownMetrics(context.Background())

	shutdownTracing, err := telem.InitTracing("foodapi", cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	logkafka.InitKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer logkafka.CloseKafkaWriter()

	if os.Getenv("ENABLE_LOG_PUSHER") == "true" {
		go utils.RunLogPusher(context.Background(), cfg.KafkaBrokers, cfg.KafkaTopic, "foodapi-logs")
	}

	db := &handlers.DB{
		UserCollection:       utils.GetCollection(client, cfg.MongoDB, "users"),
		RestaurantCollection: utils.GetCollection(client, cfg.MongoDB, "restaurants"),
		MenuItemCollection:   utils.GetCollection(client, cfg.MongoDB, "menuitems"),
		OrdersCollection:     utils.GetCollection(client, cfg.MongoDB, "orders"),
		PaymentCollection:    utils.GetCollection(client, cfg.MongoDB, "payments"),

		JWTSecret: cfg.JWTSecret,
		UploadDir: cfg.UploadDir,

		Mpesa: gateway.NewMpesaClient(
			cfg.MpesaConsumerKey, cfg.MpesaConsumerSecret,
			cfg.MpesaShortcode, cfg.MpesaPasskey,
			cfg.MpesaBaseURL, cfg.MpesaCallbackURL,
		),
		Paypal: gateway.NewPaypalClient(
			cfg.PaypalClientID, cfg.PaypalSecret, cfg.PaypalBaseURL,
			cfg.PaypalReturnURL, cfg.PaypalCancelURL,
		),
		StripeKey: cfg.StripeSecretKey,
	}

	mainRouter := mux.NewRouter()
	mainRouter.Use(logkafka.LoggingMiddleware)

	mainRouter.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API is running..."))
	}).Methods("GET")

	// Static uploads (account and restaurant images)
	mainRouter.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// Public routes
	publicRouter := mainRouter.PathPrefix("/api").Subrouter()
	publicRouter.HandleFunc("/users/register", db.RegisterUserHandler).Methods("POST")
	publicRouter.HandleFunc("/restaurants", db.GetRestaurantsHandler).Methods("GET")
	publicRouter.HandleFunc("/restaurants/{id}", db.GetRestaurantHandler).Methods("GET")
	publicRouter.HandleFunc("/menus/{restaurantId}", db.GetMenuByRestaurantHandler).Methods("GET")

	// Passive payment receivers; the gateways call these, not our clients
	publicRouter.HandleFunc("/payments/callback", db.MpesaCallbackHandler).Methods("POST")
	publicRouter.HandleFunc("/payments/mock-callback", db.MockPaymentHandler).Methods("POST")
	publicRouter.HandleFunc("/payments/paypal/capture", db.PaypalCaptureHandler).Methods("POST")

	// Login gets its own subrouter so the body validation middleware runs first
	loginRouter := mainRouter.PathPrefix("/api/users/login").Subrouter()
	loginRouter.Use(middleware.ValidateLoginBody)
	loginRouter.HandleFunc("", db.LoginHandler).Methods("POST")

	// Routes for any authenticated account
	authRouter := mainRouter.PathPrefix("/api").Subrouter()
	authRouter.Use(middleware.Authenticate)
	authRouter.HandleFunc("/users/profile", db.GetProfileHandler).Methods("GET")
	authRouter.HandleFunc("/orders", db.CreateOrderHandler).Methods("POST")
	authRouter.HandleFunc("/orders/myorders", db.GetMyOrdersHandler).Methods("GET")
	authRouter.HandleFunc("/orders/restaurant/{restaurantId}", db.GetOrdersForRestaurantHandler).Methods("GET")
	authRouter.HandleFunc("/orders/{id}", db.GetOrderHandler).Methods("GET")
	authRouter.HandleFunc("/orders/{id}/status", db.UpdateOrderStatusHandler).Methods("PUT")
	authRouter.HandleFunc("/orders/{id}/pay", db.PayOrderHandler).Methods("PUT")
	authRouter.HandleFunc("/payments/mpesa", db.MpesaPayHandler).Methods("POST")
	authRouter.HandleFunc("/payments/paypal", db.PaypalPayHandler).Methods("POST")
	authRouter.HandleFunc("/payments/card", db.CardPayHandler).Methods("POST")

	// Routes for restaurant-role accounts only
	ownerRouter := mainRouter.PathPrefix("/api").Subrouter()
	ownerRouter.Use(middleware.Authenticate, middleware.RestaurantOnly)
	ownerRouter.HandleFunc("/restaurants", db.CreateRestaurantHandler).Methods("POST")
	ownerRouter.HandleFunc("/restaurants/{id}", db.UpdateRestaurantHandler).Methods("PUT")
	ownerRouter.HandleFunc("/restaurants/{id}", db.DeleteRestaurantHandler).Methods("DELETE")
	ownerRouter.HandleFunc("/menus", db.CreateMenuItemHandler).Methods("POST")
	ownerRouter.HandleFunc("/menus/item/{id}", db.UpdateMenuItemHandler).Methods("PUT")
	ownerRouter.HandleFunc("/menus/item/{id}", db.DeleteMenuItemHandler).Methods("DELETE")

	handler := cors.AllowAll().Handler(mainRouter)

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}
