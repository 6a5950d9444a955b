package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bazario/bazario-golang/internal/metrics"
	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
)

//
// --- Seller Handlers ---
//

// RegisterSellerInput defines the JSON for the seller application.
type RegisterSellerInput struct {
	ShopName string `json:"shopName" binding:"required"`
}

// RegisterSeller is the handler for POST /v1/seller/register.
// Turns an ordinary user into an unapproved seller; an admin must
// approve the account before the seller routes open up.
func (h *Handlers) RegisterSeller(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input RegisterSellerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := "UPDATE users SET role = ?, shop_name = ?, is_seller_approved = FALSE, updated_at = ? WHERE id = ?"
	if _, err := h.DB.Exec(query, models.RoleSeller, input.ShopName, time.Now(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register seller"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Seller application submitted. Please wait for admin approval."})
}

// GetSellerProducts is the handler for GET /v1/seller/products
func (h *Handlers) GetSellerProducts(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	sellerID := userIDRaw.(int64)

	query := `
		SELECT id, seller_id, category_id, name, slug, description, price, stock, image, average_rating, created_at, updated_at
		FROM products
		WHERE seller_id = ?
		ORDER BY created_at DESC`

	rows, err := h.DB.Query(query, sellerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetSellerOrders is the handler for GET /v1/seller/orders.
// Returns every order containing at least one of the seller's items,
// with all items populated (the client highlights the seller's own).
func (h *Handlers) GetSellerOrders(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	sellerID := userIDRaw.(int64)

	query := `
		SELECT DISTINCT o.id, o.reference, o.user_id, o.total_amount, o.payment_status, o.order_status, o.address, o.created_at, o.updated_at,
			u.name, u.email
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN users u ON o.user_id = u.id
		WHERE oi.seller_id = ?
		ORDER BY o.created_at DESC`

	rows, err := h.DB.Query(query, sellerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.Reference, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.OrderStatus, &o.Address, &o.CreatedAt, &o.UpdatedAt, &o.BuyerName, &o.BuyerEmail); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating orders"})
		return
	}

	for i := range orders {
		items, err := h.getOrderItems(orders[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order items"})
			return
		}
		orders[i].Items = items
	}

	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// UpdateOrderItemStatusInput defines the JSON body for the seller's
// item status update. The line is addressed by (order, product); the
// acting seller is taken from the token, never from the body.
type UpdateOrderItemStatusInput struct {
	OrderID   int64             `json:"orderId" binding:"required"`
	ProductID int64             `json:"productId" binding:"required"`
	Status    models.ItemStatus `json:"status" binding:"required"`
}

// UpdateOrderItemStatus is the handler for PUT /v1/seller/order-item/status.
//
// The item must belong to the acting seller; a miss and a foreign item
// are deliberately indistinguishable (both 404) so sellers cannot probe
// for other sellers' orders. The target status must be a legal
// transition from the item's current status. After the item moves, the
// parent order's status is recomputed in the same transaction.
func (h *Handlers) UpdateOrderItemStatus(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	sellerID := userIDRaw.(int64)

	var input UpdateOrderItemStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid item status: %s", input.Status)})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	// 1. --- Find & Lock the Seller's Item ---
	var itemID int64
	var current models.ItemStatus
	query := "SELECT id, status FROM order_items WHERE order_id = ? AND product_id = ? AND seller_id = ? FOR UPDATE"
	err = tx.QueryRow(query, input.OrderID, input.ProductID, sellerID).Scan(&itemID, &current)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order item not found or not authorized"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order item"})
		return
	}

	// 2. --- Enforce the Transition Table ---
	if !models.CanSellerTransition(current, input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Cannot move item from %s to %s", current, input.Status)})
		return
	}

	// 3. --- Apply the Transition ---
	now := time.Now()
	if _, err := tx.Exec("UPDATE order_items SET status = ?, updated_at = ? WHERE id = ?", input.Status, now, itemID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item status"})
		return
	}

	// 4. --- Recompute the Aggregate Order Status ---
	itemRows, err := tx.Query("SELECT status FROM order_items WHERE order_id = ? FOR UPDATE", input.OrderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sibling items"})
		return
	}
	var statuses []models.ItemStatus
	for itemRows.Next() {
		var s models.ItemStatus
		if err := itemRows.Scan(&s); err != nil {
			itemRows.Close()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan item status"})
			return
		}
		statuses = append(statuses, s)
	}
	if err := itemRows.Err(); err != nil {
		itemRows.Close()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating item statuses"})
		return
	}
	itemRows.Close()

	var orderStatus models.OrderStatus
	if err := tx.QueryRow("SELECT order_status FROM orders WHERE id = ? FOR UPDATE", input.OrderID).Scan(&orderStatus); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	if derived := models.DeriveOrderStatus(statuses, orderStatus); derived != orderStatus {
		if _, err := tx.Exec("UPDATE orders SET order_status = ?, updated_at = ? WHERE id = ?", derived, now, input.OrderID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}
	metrics.ItemTransitions.WithLabelValues(string(input.Status)).Inc()

	// 5. --- Respond with the Populated Order ---
	order, err := h.getPopulatedOrder(input.OrderID)
	if err != nil {
		log.Printf("item status on order %d updated but repopulating the response failed: %v", input.OrderID, err)
		metrics.ResponsePopulationFailures.Inc()
		c.JSON(http.StatusOK, gin.H{"message": "Item status updated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item status updated", "order": order})
}

// AddSellerReviewInput defines the JSON body for POST /v1/seller/:id/review
type AddSellerReviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// AddSellerReview is the handler for POST /v1/seller/:id/review.
// Any authenticated buyer can rate a seller; the seller's aggregate
// rating is recomputed after the insert.
func (h *Handlers) AddSellerReview(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	sellerID := c.Param("id")

	var input AddSellerReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The target must actually be a seller; reviewing an ordinary
	// account or a missing one is the same 404.
	var role string
	err := h.DB.QueryRow("SELECT role FROM users WHERE id = ?", sellerID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Seller not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch seller"})
		return
	}
	if role != models.RoleSeller {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seller not found"})
		return
	}

	var reviewerName string
	if err := h.DB.QueryRow("SELECT name FROM users WHERE id = ?", userID).Scan(&reviewerName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviewer"})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	query := "INSERT INTO seller_reviews (seller_id, user_id, name, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := tx.Exec(query, sellerID, userID, reviewerName, input.Rating, input.Comment, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add review"})
		return
	}

	updateQuery := `
		UPDATE users
		SET seller_rating = (SELECT AVG(rating) FROM seller_reviews WHERE seller_id = ?)
		WHERE id = ?`
	if _, err := tx.Exec(updateQuery, sellerID, sellerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rating"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Seller review added"})
}

// SellerAnalytics is the response shape for GET /v1/seller/analytics
type SellerAnalytics struct {
	TotalSales    float64 `json:"totalSales"`
	TotalOrders   int     `json:"totalOrders"`
	TotalProducts int     `json:"totalProducts"`
}

// GetSellerAnalytics is the handler for GET /v1/seller/analytics.
// Sales are summed over the seller's own lines only; an order counts
// once no matter how many of its items belong to the seller.
func (h *Handlers) GetSellerAnalytics(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	sellerID := userIDRaw.(int64)

	stats := SellerAnalytics{}

	query := `
		SELECT COALESCE(SUM(unit_price * quantity), 0), COUNT(DISTINCT order_id)
		FROM order_items
		WHERE seller_id = ?`
	if err := h.DB.QueryRow(query, sellerID).Scan(&stats.TotalSales, &stats.TotalOrders); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate sales"})
		return
	}

	if err := h.DB.QueryRow("SELECT COUNT(*) FROM products WHERE seller_id = ?", sellerID).Scan(&stats.TotalProducts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
