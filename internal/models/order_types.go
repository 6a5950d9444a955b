package models

import "time"

// OrderStatus is the order-level roll-up status. It is derived from the
// item statuses (see DeriveOrderStatus) and never set directly by a
// customer; the only exceptions are the admin override and the legacy
// whole-order cancellation.
type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks whether the order has been paid for. It has an
// independent lifecycle; nothing in this service flips it to 'paid'.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// ItemStatus is the per-line fulfillment state. Each seller drives the
// items they own independently of the rest of the order.
type ItemStatus string

const (
	ItemProcessing            ItemStatus = "processing"
	ItemShipped               ItemStatus = "shipped"
	ItemDelivered             ItemStatus = "delivered"
	ItemCancellationRequested ItemStatus = "cancellation_requested"
	ItemCancelled             ItemStatus = "cancelled"
	ItemReturnRequested       ItemStatus = "return_requested"
	ItemReturned              ItemStatus = "returned"
)

// Order is the model for the 'orders' table
type Order struct {
	ID            int64         `json:"id" db:"id"`
	Reference     string        `json:"reference" db:"reference"` // Customer-facing order number (UUID)
	UserID        int64         `json:"userId" db:"user_id"`      // The buyer
	TotalAmount   float64       `json:"totalAmount" db:"total_amount"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`
	OrderStatus   OrderStatus   `json:"orderStatus" db:"order_status"`
	Address       string        `json:"address" db:"address"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`

	// Joins (not in the orders table, populated manually)
	Items      []OrderItem `json:"items,omitempty" db:"-"`
	BuyerName  string      `json:"buyerName,omitempty" db:"-"`
	BuyerEmail string      `json:"buyerEmail,omitempty" db:"-"`
}

// OrderItem is the model for the 'order_items' table.
// UnitPrice and SellerID are snapshots taken at placement time. Later
// changes to the product's price or listing owner do not touch them.
type OrderItem struct {
	ID        int64      `json:"id" db:"id"`
	OrderID   int64      `json:"orderId" db:"order_id"`
	ProductID int64      `json:"productId" db:"product_id"`
	SellerID  int64      `json:"sellerId" db:"seller_id"`
	Quantity  int        `json:"quantity" db:"quantity"`
	UnitPrice float64    `json:"unitPrice" db:"unit_price"`
	Status    ItemStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	ProductName  string `json:"productName,omitempty" db:"-"`
	ProductImage string `json:"productImage,omitempty" db:"-"`
	ShopName     string `json:"shopName,omitempty" db:"-"`
}
