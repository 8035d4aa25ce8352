package storefront

import "time"

// Order lifecycle states as the transactional API reports them.
// Strategy conditions compare against these.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
	OrderStatusReturned  = "returned"
)

// Product is a catalog item returned by product search.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
	Category    string  `json:"category,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	InStock     bool    `json:"in_stock"`
}

// ProductFilters narrows a product search. Zero values mean "unfiltered".
type ProductFilters struct {
	Category string
	MinPrice float64
	MaxPrice float64
	InStock  bool
}

// Customer is a storefront account.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Tier  string `json:"tier,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a placed order with its current lifecycle status.
type Order struct {
	ID              string      `json:"id"`
	CustomerID      string      `json:"customer_id"`
	Status          string      `json:"status"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Currency        string      `json:"currency,omitempty"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Address is a customer shipping address.
type Address struct {
	ID         string `json:"id"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

// GiftCard is issued store credit.
type GiftCard struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// createOrderRequest is the POST /orders payload.
type createOrderRequest struct {
	CustomerID      string      `json:"customer_id"`
	Items           []OrderItem `json:"items"`
	ShippingAddress string      `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
}

// returnOrderRequest is the POST /orders/{id}/return payload.
type returnOrderRequest struct {
	Reason string `json:"reason"`
}

// issueGiftCardRequest is the POST /gift-cards payload.
type issueGiftCardRequest struct {
	Amount float64 `json:"amount"`
}
