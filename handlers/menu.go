package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go_trial/foodapi/models"
)

type menuItemRequest struct {
	Name        string   `json:"name"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Available   *bool    `json:"available"`
}

//CreateMenuItemHandler attaches a new item to the calling owner's
//restaurant.

func (db *DB) CreateMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Failed to retrieve user identity")
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Error decoding menu item: "+err.Error())
		return
	}
	if req.Name == "" || req.Price == nil {
		respondError(w, http.StatusBadRequest, "Name and price are required")
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var restaurant models.Restaurant
	if err := db.RestaurantCollection.FindOne(dctx, bson.M{"owner": userID}).Decode(&restaurant); err != nil {
		if err == mongo.ErrNoDocuments {
			respondError(w, http.StatusNotFound, "Restaurant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch restaurant")
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	item := models.MenuItem{
		Restaurant:  restaurant.ID,
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.Description,
		Image:       req.Image,
		Available:   available,
		CreatedAt:   time.Now(),
	}
	result, err := db.MenuItemCollection.InsertOne(dctx, item)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create menu item")
		return
	}
	item.ID = result.InsertedID.(primitive.ObjectID)

	respondJSON(w, http.StatusCreated, item)
}

// GetMenuByRestaurantHandler lists the menu of a restaurant. Public.
func (db *DB) GetMenuByRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	restaurantID, err := primitive.ObjectIDFromHex(vars["restaurantId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	cursor, err := db.MenuItemCollection.Find(dctx, bson.M{"restaurant": restaurantID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch menu items")
		return
	}
	defer cursor.Close(dctx)

	items := make([]models.MenuItem, 0)
	if err := cursor.All(dctx, &items); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to decode menu items")
		return
	}

	respondJSON(w, http.StatusOK, items)
}

// loadOwnedMenuItem fetches a menu item and verifies the caller owns the
// restaurant it belongs to.
func (db *DB) loadOwnedMenuItem(r *http.Request, id primitive.ObjectID) (*models.MenuItem, int, string) {
	userID, ok := callerID(r)
	if !ok {
		return nil, http.StatusUnauthorized, "Failed to retrieve user identity"
	}

	dctx, cancel := dbCtx()
	defer cancel()

	var item models.MenuItem
	if err := db.MenuItemCollection.FindOne(dctx, bson.M{"_id": id}).Decode(&item); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, http.StatusNotFound, "Menu item not found"
		}
		return nil, http.StatusInternalServerError, "Failed to fetch menu item"
	}

	var restaurant models.Restaurant
	if err := db.RestaurantCollection.FindOne(dctx, bson.M{"_id": item.Restaurant}).Decode(&restaurant); err != nil {
		return nil, http.StatusInternalServerError, "Failed to fetch restaurant"
	}
	if restaurant.Owner != userID {
		return nil, http.StatusUnauthorized, "Not authorized"
	}
	return &item, 0, ""
}

// UpdateMenuItemHandler applies a partial update to a menu item, including
// the availability flag.
func (db *DB) UpdateMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid menu item ID")
		return
	}

	item, code, msg := db.loadOwnedMenuItem(r, id)
	if item == nil {
		respondError(w, code, msg)
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Error decoding menu item: "+err.Error())
		return
	}

	update := bson.M{}
	if req.Name != "" {
		update["name"] = req.Name
	}
	if req.Price != nil {
		update["price"] = *req.Price
	}
	if req.Description != "" {
		update["description"] = req.Description
	}
	if req.Image != "" {
		update["image"] = req.Image
	}
	if req.Available != nil {
		update["available"] = *req.Available
	}

	dctx, cancel := dbCtx()
	defer cancel()

	if len(update) > 0 {
		if _, err := db.MenuItemCollection.UpdateOne(dctx, bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update menu item")
			return
		}
	}

	var updated models.MenuItem
	if err := db.MenuItemCollection.FindOne(dctx, bson.M{"_id": id}).Decode(&updated); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch updated menu item")
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (db *DB) DeleteMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid menu item ID")
		return
	}

	item, code, msg := db.loadOwnedMenuItem(r, id)
	if item == nil {
		respondError(w, code, msg)
		return
	}

	dctx, cancel := dbCtx()
	defer cancel()

	if _, err := db.MenuItemCollection.DeleteOne(dctx, bson.M{"_id": id}); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete menu item")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Menu item deleted"})
}
