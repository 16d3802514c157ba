package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting the service needs. Values come from
// the environment, optionally seeded from a .env file.
type Config struct {
	Port     string
	Env      string
	MongoURI string
	MongoDB  string

	JWTSecret string
	UploadDir string

	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaPasskey        string
	MpesaBaseURL        string
	MpesaCallbackURL    string

	PaypalClientID  string
	PaypalSecret    string
	PaypalBaseURL   string
	PaypalReturnURL string
	PaypalCancelURL string

	StripeSecretKey string

	KafkaBrokers []string
	KafkaTopic   string

	MetricsAddr  string
	OtelEndpoint string
}

// Load reads a .env file when present and builds the Config from the
// environment. Missing optional values fall back to development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment")
	}

	return &Config{
		Port:     getEnv("PORT", "8000"),
		Env:      getEnv("APP_ENV", "development"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "foodappDB"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),

		MpesaConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
		MpesaShortcode:      getEnv("MPESA_SHORTCODE", "174379"),
		MpesaPasskey:        getEnv("MPESA_PASSKEY", ""),
		MpesaBaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		MpesaCallbackURL:    getEnv("MPESA_CALLBACK_URL", ""),

		PaypalClientID:  getEnv("PAYPAL_CLIENT_ID", ""),
		PaypalSecret:    getEnv("PAYPAL_CLIENT_SECRET", ""),
		PaypalBaseURL:   getEnv("PAYPAL_API", "https://api-m.sandbox.paypal.com"),
		PaypalReturnURL: getEnv("PAYPAL_RETURN_URL", "http://localhost:5173/payment-success"),
		PaypalCancelURL: getEnv("PAYPAL_CANCEL_URL", "http://localhost:5173/payment-cancel"),

		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "logs"),

		MetricsAddr:  getEnv("METRICS_ADDR", ":9100"),
		OtelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4318"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
