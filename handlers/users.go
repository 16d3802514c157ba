package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"go_trial/foodapi/models"
)

// generateToken signs a 30-day session token carrying the account id and
// role.
func (db *DB) generateToken(id primitive.ObjectID, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   id.Hex(),
		"role": role,
		"exp":  time.Now().Add(30 * 24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})
	return token.SignedString([]byte(db.JWTSecret))
}

type authResponse struct {
	ID           primitive.ObjectID  `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         string              `json:"role"`
	RestaurantID *primitive.ObjectID `json:"restaurant_id,omitempty"`
	Token        string              `json:"token"`
}

// saveUpload stores an optional multipart "image" file under the upload dir
// and returns its public path. Returns an empty path when no file was sent.
func (db *DB) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename))
	if err := os.MkdirAll(db.UploadDir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(filepath.Join(db.UploadDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return "/uploads/" + name, nil
}

type registerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	RestaurantName string `json:"restaurant_name"`
	ManagerName    string `json:"manager_name"`
	Location       string `json:"location"`
}

// decodeRegister accepts either a JSON body or a multipart form (the latter
// so an image can ride along with registration).
func decodeRegister(r *http.Request) (registerRequest, bool, error) {
	var req registerRequest
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return req, false, err
		}
		req.Name = r.FormValue("name")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
		req.Role = r.FormValue("role")
		req.Phone = r.FormValue("phone")
		req.Address = r.FormValue("address")
		req.RestaurantName = r.FormValue("restaurant_name")
		req.ManagerName = r.FormValue("manager_name")
		req.Location = r.FormValue("location")
		return req, true, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false, err
	}
	return req, false, nil
}

//RegisterUserHandler creates a new account. Registering with the restaurant
//role also creates the account's restaurant record.

func (db *DB) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("account-service").Start(r.Context(), "RegisterUserHandler")
	defer span.End()

	req, multipart, err := decodeRegister(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error parsing registration data: "+err.Error())
		registerRequests.WithLabelValues("error").Inc()
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "All fields (name, email, password) are required")
		registerRequests.WithLabelValues("error").Inc()
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := req.Role
	if role != models.RoleRestaurant {
		role = models.RoleCustomer
	}

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = db.UserCollection.FindOne(dctx, bson.M{"email": email}).Err()
	if err == nil {
		respondError(w, http.StatusBadRequest, "User already exists")
		registerRequests.WithLabelValues("error").Inc()
		return
	}
	if err != mongo.ErrNoDocuments {
		span.RecordError(err)
		respondError(w, http.StatusInternalServerError, "Database error")
		registerRequests.WithLabelValues("error").Inc()
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		registerRequests.WithLabelValues("error").Inc()
		return
	}

	imagePath := ""
	if multipart {
		if imagePath, err = db.saveUpload(r); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to store image")
			registerRequests.WithLabelValues("error").Inc()
			return
		}
	}

	user := models.User{
		Name:      req.Name,
		Email:     email,
		Password:  string(passwordHash),
		Role:      role,
		Phone:     req.Phone,
		Address:   req.Address,
		Image:     imagePath,
		CreatedAt: time.Now(),
	}
	result, err := db.UserCollection.InsertOne(dctx, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		registerRequests.WithLabelValues("error").Inc()
		return
	}
	userID := result.InsertedID.(primitive.ObjectID)

	var restaurantID *primitive.ObjectID
	if role == models.RoleRestaurant {
		name := req.RestaurantName
		if name == "" {
			name = req.Name
		}
		restaurant := models.Restaurant{
			Owner:       userID,
			Name:        name,
			ManagerName: req.ManagerName,
			Email:       email,
			Phone:       req.Phone,
			Location:    req.Location,
			Image:       imagePath,
			CuisineType: "General",
			Rating:      0,
			CreatedAt:   time.Now(),
		}
		restResult, err := db.RestaurantCollection.InsertOne(dctx, restaurant)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create restaurant")
			registerRequests.WithLabelValues("error").Inc()
			return
		}
		id := restResult.InsertedID.(primitive.ObjectID)
		restaurantID = &id
	}

	tokenString, err := db.generateToken(userID, role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		registerRequests.WithLabelValues("error").Inc()
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		ID:           userID,
		Name:         req.Name,
		Email:        email,
		Role:         role,
		RestaurantID: restaurantID,
		Token:        tokenString,
	})
	registerRequests.WithLabelValues("success").Inc()
}

//LoginHandler authenticates an account by email and password and issues a
//session token.

func (db *DB) LoginHandler(w http.ResponseWriter, r *http.Request) {
	loginRequests.Inc()

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		loginRequestsByStatus.WithLabelValues("error").Inc()
		return
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	dctx, cancel := dbCtx()
	defer cancel()

	var user models.User
	err := db.UserCollection.FindOne(dctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			loginRequestsByStatus.WithLabelValues("error").Inc()
			return
		}
		respondError(w, http.StatusInternalServerError, "Database error")
		loginRequestsByStatus.WithLabelValues("error").Inc()
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		loginRequestsByStatus.WithLabelValues("error").Inc()
		return
	}

	var restaurantID *primitive.ObjectID
	if user.Role == models.RoleRestaurant {
		var restaurant models.Restaurant
		if err := db.RestaurantCollection.FindOne(dctx, bson.M{"owner": user.ID}).Decode(&restaurant); err == nil {
			restaurantID = &restaurant.ID
		}
	}

	tokenString, err := db.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		loginRequestsByStatus.WithLabelValues("error").Inc()
		return
	}

	respondJSON(w, http.StatusOK, authResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		RestaurantID: restaurantID,
		Token:        tokenString,
	})
	loginRequestsByStatus.WithLabelValues("success").Inc()
}

// GetProfileHandler returns the current account without the password hash.
func (db *DB) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Failed to retrieve user identity")
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var profile models.Profile
	err := db.UserCollection.FindOne(dctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Error fetching user details")
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
