package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go_trial/foodapi/models"
)

// containsFilter builds a case-insensitive substring match for a query
// parameter.
func containsFilter(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

// GetRestaurantsHandler lists restaurants, optionally filtered by cuisine,
// location or name, newest first.
func (db *DB) GetRestaurantsHandler(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if cuisine := r.URL.Query().Get("cuisine"); cuisine != "" {
		filter["cuisine_type"] = containsFilter(cuisine)
	}
	if location := r.URL.Query().Get("location"); location != "" {
		filter["location"] = containsFilter(location)
	}
	if name := r.URL.Query().Get("name"); name != "" {
		filter["name"] = containsFilter(name)
	}

	dctx, cancel := dbCtx()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := db.RestaurantCollection.Find(dctx, filter, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch restaurants")
		return
	}
	defer cursor.Close(dctx)

	restaurants := make([]models.Restaurant, 0)
	if err := cursor.All(dctx, &restaurants); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to decode restaurants")
		return
	}

	respondJSON(w, http.StatusOK, restaurants)
}

func (db *DB) GetRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var restaurant models.Restaurant
	if err := db.RestaurantCollection.FindOne(dctx, bson.M{"_id": id}).Decode(&restaurant); err != nil {
		if err == mongo.ErrNoDocuments {
			respondError(w, http.StatusNotFound, "Restaurant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch restaurant")
		return
	}

	respondJSON(w, http.StatusOK, restaurant)
}

type restaurantRequest struct {
	Name        string `json:"name"`
	ManagerName string `json:"manager_name"`
	Location    string `json:"location"`
	CuisineType string `json:"cuisine_type"`
	Phone       string `json:"phone"`
	Image       string `json:"image"`
}

func decodeRestaurantRequest(r *http.Request) (restaurantRequest, bool, error) {
	var req restaurantRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return req, false, err
		}
		req.Name = r.FormValue("name")
		req.ManagerName = r.FormValue("manager_name")
		req.Location = r.FormValue("location")
		req.CuisineType = r.FormValue("cuisine_type")
		req.Phone = r.FormValue("phone")
		return req, true, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false, err
	}
	return req, false, nil
}

//CreateRestaurantHandler creates an additional restaurant owned by the
//calling restaurant account.

func (db *DB) CreateRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Failed to retrieve user identity")
		return
	}

	req, multipart, err := decodeRestaurantRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error parsing restaurant data: "+err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Restaurant name is required")
		return
	}

	imagePath := req.Image
	if multipart {
		if imagePath, err = db.saveUpload(r); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to store image")
			return
		}
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var owner models.User
	if err := db.UserCollection.FindOne(dctx, bson.M{"_id": userID}).Decode(&owner); err != nil {
		respondError(w, http.StatusUnauthorized, "Account not found")
		return
	}

	cuisine := req.CuisineType
	if cuisine == "" {
		cuisine = "General"
	}

	restaurant := models.Restaurant{
		Owner:       userID,
		Name:        req.Name,
		ManagerName: req.ManagerName,
		Email:       owner.Email,
		Phone:       req.Phone,
		Location:    req.Location,
		Image:       imagePath,
		CuisineType: cuisine,
		Rating:      0,
		CreatedAt:   time.Now(),
	}
	result, err := db.RestaurantCollection.InsertOne(dctx, restaurant)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create restaurant")
		return
	}
	restaurant.ID = result.InsertedID.(primitive.ObjectID)

	respondJSON(w, http.StatusCreated, restaurant)
}

// loadOwnedRestaurant fetches a restaurant and verifies the caller owns it.
// The int is the HTTP status to answer with when err is non-nil.
func (db *DB) loadOwnedRestaurant(r *http.Request, id primitive.ObjectID) (*models.Restaurant, int, string) {
	userID, ok := callerID(r)
	if !ok {
		return nil, http.StatusUnauthorized, "Failed to retrieve user identity"
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var restaurant models.Restaurant
	if err := db.RestaurantCollection.FindOne(dctx, bson.M{"_id": id}).Decode(&restaurant); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, http.StatusNotFound, "Restaurant not found"
		}
		return nil, http.StatusInternalServerError, "Failed to fetch restaurant"
	}
	if restaurant.Owner != userID {
		return nil, http.StatusUnauthorized, "Not authorized"
	}
	return &restaurant, 0, ""
}

// UpdateRestaurantHandler applies a partial update; empty fields keep their
// stored values.
func (db *DB) UpdateRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	restaurant, code, msg := db.loadOwnedRestaurant(r, id)
	if restaurant == nil {
		respondError(w, code, msg)
		return
	}

	req, multipart, err := decodeRestaurantRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error parsing restaurant data: "+err.Error())
		return
	}

	update := bson.M{}
	if req.Name != "" {
		update["name"] = req.Name
	}
	if req.ManagerName != "" {
		update["manager_name"] = req.ManagerName
	}
	if req.Location != "" {
		update["location"] = req.Location
	}
	if req.CuisineType != "" {
		update["cuisine_type"] = req.CuisineType
	}
	if req.Phone != "" {
		update["phone"] = req.Phone
	}
	if multipart {
		imagePath, err := db.saveUpload(r)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to store image")
			return
		}
		if imagePath != "" {
			update["image"] = imagePath
		}
	}

	dctx, cancel := dbCtx()
	defer cancel()

	if len(update) > 0 {
		if _, err := db.RestaurantCollection.UpdateOne(dctx, bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update restaurant")
			return
		}
	}

	var updated models.Restaurant
	if err := db.RestaurantCollection.FindOne(dctx, bson.M{"_id": id}).Decode(&updated); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch updated restaurant")
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (db *DB) DeleteRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	restaurant, code, msg := db.loadOwnedRestaurant(r, id)
	if restaurant == nil {
		respondError(w, code, msg)
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	if _, err := db.RestaurantCollection.DeleteOne(dctx, bson.M{"_id": id}); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete restaurant")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Restaurant deleted"})
}
