package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account roles.
const (
	RoleCustomer   = "customer"
	RoleRestaurant = "restaurant"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

//User represents an account in the system, either a customer or a
//restaurant owner.

type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Role      string             `json:"role" bson:"role"`
	Phone     string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Address   string             `json:"address,omitempty" bson:"address,omitempty"`
	Image     string             `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// Profile is the password-free view of a user returned by the API.
type Profile struct {
	ID      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name    string             `json:"name" bson:"name"`
	Email   string             `json:"email" bson:"email"`
	Role    string             `json:"role" bson:"role"`
	Phone   string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Address string             `json:"address,omitempty" bson:"address,omitempty"`
	Image   string             `json:"image,omitempty" bson:"image,omitempty"`
}

type Restaurant struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Owner       primitive.ObjectID `json:"owner" bson:"owner"`
	Name        string             `json:"name" bson:"name"`
	ManagerName string             `json:"manager_name,omitempty" bson:"manager_name,omitempty"`
	Email       string             `json:"email" bson:"email"`
	Phone       string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Location    string             `json:"location" bson:"location"`
	Image       string             `json:"image,omitempty" bson:"image,omitempty"`
	CuisineType string             `json:"cuisine_type" bson:"cuisine_type"`
	Rating      float64            `json:"rating" bson:"rating"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

type MenuItem struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Restaurant  primitive.ObjectID `json:"restaurant" bson:"restaurant"`
	Name        string             `json:"name" bson:"name"`
	Price       float64            `json:"price" bson:"price"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Image       string             `json:"image,omitempty" bson:"image,omitempty"`
	Available   bool               `json:"available" bson:"available"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// OrderItem is a line-item snapshot: name and price are copied from the menu
// item at order time and stay fixed through later menu edits.
type OrderItem struct {
	MenuItem primitive.ObjectID `json:"menu_item" bson:"menu_item"`
	Name     string             `json:"name" bson:"name"`
	Price    float64            `json:"price" bson:"price"`
	Quantity int64              `json:"quantity" bson:"quantity"`
}

// PaymentResult is the confirmation sub-record written by the customer
// facing pay endpoint.
type PaymentResult struct {
	ID           string `json:"id,omitempty" bson:"id,omitempty"`
	Status       string `json:"status,omitempty" bson:"status,omitempty"`
	UpdateTime   string `json:"update_time,omitempty" bson:"update_time,omitempty"`
	EmailAddress string `json:"email_address,omitempty" bson:"email_address,omitempty"`
}

type Order struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Customer      primitive.ObjectID `json:"customer" bson:"customer"`
	Restaurant    primitive.ObjectID `json:"restaurant" bson:"restaurant"`
	Items         []OrderItem        `json:"items" bson:"items"`
	TotalAmount   float64            `json:"total_amount" bson:"total_amount"`
	Address       string             `json:"address" bson:"address"`
	Status        string             `json:"status" bson:"status"`
	PaymentMethod string             `json:"payment_method" bson:"payment_method"`
	PaymentStatus string             `json:"payment_status" bson:"payment_status"`
	IsPaid        bool               `json:"is_paid" bson:"is_paid"`
	PaidAt        *time.Time         `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	PaymentResult *PaymentResult     `json:"payment_result,omitempty" bson:"payment_result,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// Payment is one payment attempt against an order. An order can accumulate
// several of these across retries.
type Payment struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Order             primitive.ObjectID `json:"order" bson:"order"`
	User              primitive.ObjectID `json:"user" bson:"user"`
	PaymentMethod     string             `json:"payment_method" bson:"payment_method"`
	Amount            float64            `json:"amount" bson:"amount"`
	Status            string             `json:"status" bson:"status"`
	TransactionID     string             `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	CheckoutRequestID string             `json:"checkout_request_id,omitempty" bson:"checkout_request_id,omitempty"`
	IdempotencyKey    string             `json:"-" bson:"idempotency_key,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
}
