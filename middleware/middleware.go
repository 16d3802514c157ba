package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"go_trial/foodapi/middleware/logkafka"
)

var secretKey []byte

// Init sets the HMAC secret used to verify bearer tokens. Must be called
// before any protected route is served.
func Init(secret string) {
	secretKey = []byte(secret)
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

//ValidateLoginBody ensures the login payload is JSON with both credentials
//present before the handler runs.

func ValidateLoginBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			deny(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			deny(w, http.StatusInternalServerError, "Error reading request body")
			return
		}
		if len(body) == 0 {
			deny(w, http.StatusBadRequest, "Request body is empty")
			return
		}

		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(body, &creds); err != nil {
			deny(w, http.StatusBadRequest, "Error decoding JSON: "+err.Error())
			return
		}
		if creds.Email == "" || creds.Password == "" {
			deny(w, http.StatusBadRequest, "Email and password are required fields")
			return
		}

		// Hand the handler a fresh copy of the body.
		r.Body = io.NopCloser(bytes.NewReader(body))

		next.ServeHTTP(w, r)
	})
}

// Authenticate verifies the Authorization bearer token and stores the caller
// identity (id and role claims) in the request context.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			deny(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secretKey, nil
		})
		if err != nil || !token.Valid {
			deny(w, http.StatusUnauthorized, "Not authorized, token invalid or expired")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			deny(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		userID, ok := claims["id"].(string)
		if !ok {
			deny(w, http.StatusUnauthorized, "Missing or invalid 'id' field in claims")
			return
		}
		role, _ := claims["role"].(string)

		ctx := context.WithValue(r.Context(), "userID", userID)
		ctx = context.WithValue(ctx, "userRole", role)

		// Values added here are invisible to the outer logging middleware,
		// so report the identity through its holder as well.
		logkafka.SetCaller(r.Context(), userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

//RestaurantOnly restricts a route to accounts with the restaurant role. It
//must run after Authenticate.

func RestaurantOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value("userRole").(string)
		if role != "restaurant" {
			deny(w, http.StatusForbidden, "Access denied. Restaurant owners only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
