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
	"github.com/google/uuid"
)

//
// --- Order Handlers ---
//

// cartLine is a helper struct for the cart rows read during checkout.
type cartLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Price       float64 // Current catalog price, becomes the snapshot
	Stock       int
	SellerID    int64
}

// PlaceOrderInput defines the JSON body for POST /v1/orders.
// Items and totals are NOT accepted from the client; the server-side
// cart is the source of truth for both.
type PlaceOrderInput struct {
	Address       string `json:"address" binding:"required"`
	PaymentMethod string `json:"paymentMethod"`
}

// PlaceOrder is the handler for POST /v1/orders.
//
// The whole placement runs inside one serializable transaction: cart
// read, per-line stock check, stock decrement, order + item inserts and
// cart clearing either all commit or all roll back. Product rows are
// locked up front, and the decrement itself carries a `stock >= qty`
// guard, so concurrent checkouts for the same product can never drive
// stock negative.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	// 1. --- Get Buyer ID & Input ---
	userIDRaw, _ := c.Get("userID")
	buyerID := userIDRaw.(int64)

	var input PlaceOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Begin Transaction ---
	tx, err := h.DB.BeginTx(c, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		metrics.PlacementFailures.WithLabelValues(metrics.ReasonStorage).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback() // Safety net

	// 3. --- Find the Buyer's Cart ---
	var cartID int64
	err = tx.QueryRow("SELECT id FROM carts WHERE user_id = ?", buyerID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			metrics.PlacementFailures.WithLabelValues(metrics.ReasonEmptyCart).Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	// 4. --- Read Cart Lines & Lock Product Rows ---
	query := `
		SELECT ci.product_id, p.name, ci.quantity, p.price, p.stock, p.seller_id
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = ?
		FOR UPDATE`

	rows, err := tx.Query(query, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cart items"})
		return
	}
	defer rows.Close()

	var lines []cartLine
	var totalAmount float64

	for rows.Next() {
		var line cartLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.Price, &line.Stock, &line.SellerID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cart item"})
			return
		}

		// 5. --- Check Stock & Snapshot the Line ---
		// A single short line aborts the entire placement; no partial orders.
		if line.Stock < line.Quantity {
			metrics.PlacementFailures.WithLabelValues(metrics.ReasonInsufficientStock).Inc()
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Insufficient stock for %s", line.ProductName)})
			return
		}

		totalAmount += line.Price * float64(line.Quantity)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating cart items"})
		return
	}

	if len(lines) == 0 {
		metrics.PlacementFailures.WithLabelValues(metrics.ReasonEmptyCart).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		return
	}

	// 6. --- Create the Order ---
	now := time.Now()
	orderQuery := `
		INSERT INTO orders (reference, user_id, total_amount, payment_status, order_status, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.Exec(orderQuery, uuid.NewString(), buyerID, totalAmount,
		models.PaymentPending, models.OrderProcessing, input.Address, now, now)
	if err != nil {
		metrics.PlacementFailures.WithLabelValues(metrics.ReasonStorage).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get new order ID"})
		return
	}

	// 7. --- Decrement Stock & Snapshot Items ---
	// The decrement is conditional on remaining stock even though the
	// rows are already locked; RowsAffected tells us if the guard failed.
	stockQuery := "UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?"
	itemQuery := `
		INSERT INTO order_items (order_id, product_id, seller_id, quantity, unit_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, line := range lines {
		res, err := tx.Exec(stockQuery, line.Quantity, line.ProductID, line.Quantity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deduct stock"})
			return
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			metrics.PlacementFailures.WithLabelValues(metrics.ReasonInsufficientStock).Inc()
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Insufficient stock for %s", line.ProductName)})
			return
		}

		_, err = tx.Exec(itemQuery, orderID, line.ProductID, line.SellerID,
			line.Quantity, line.Price, models.ItemProcessing, now, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save order item"})
			return
		}
	}

	// 8. --- Clear the Cart ---
	_, err = tx.Exec("DELETE FROM cart_items WHERE cart_id = ?", cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	// 9. --- Commit ---
	if err := tx.Commit(); err != nil {
		metrics.PlacementFailures.WithLabelValues(metrics.ReasonStorage).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}
	metrics.OrdersPlaced.Inc()

	// 10. --- Respond with the Populated Order ---
	// The order is committed at this point. If repopulating it for the
	// response fails we must NOT report placement failure to the client.
	order, err := h.getPopulatedOrder(orderID)
	if err != nil {
		log.Printf("order %d placed but repopulating the response failed: %v", orderID, err)
		metrics.ResponsePopulationFailures.Inc()
		c.JSON(http.StatusCreated, gin.H{"message": "Order placed", "orderId": orderID})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Order placed", "order": order})
}

// GetMyOrders is the handler for GET /v1/orders/my
func (h *Handlers) GetMyOrders(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	buyerID := userIDRaw.(int64)

	query := `
		SELECT o.id, o.reference, o.user_id, o.total_amount, o.payment_status, o.order_status, o.address, o.created_at, o.updated_at
		FROM orders o
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC`

	rows, err := h.DB.Query(query, buyerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.Reference, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.OrderStatus, &o.Address, &o.CreatedAt, &o.UpdatedAt); err != nil {
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

// GetAllOrders is the handler for GET /v1/orders (admin)
func (h *Handlers) GetAllOrders(c *gin.Context) {
	query := `
		SELECT o.id, o.reference, o.user_id, o.total_amount, o.payment_status, o.order_status, o.address, o.created_at, o.updated_at,
			u.name, u.email
		FROM orders o
		JOIN users u ON o.user_id = u.id
		ORDER BY o.created_at DESC`

	rows, err := h.DB.Query(query)
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

// UpdateOrderStatusInput defines the JSON body for the admin override.
type UpdateOrderStatusInput struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus is the handler for PUT /v1/orders/:id (admin).
// Administrative override: sets the order-level status directly,
// bypassing derivation. Item statuses are left untouched.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	var input UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid order status: %s", input.Status)})
		return
	}

	result, err := h.DB.Exec("UPDATE orders SET order_status = ?, updated_at = ? WHERE id = ?", input.Status, time.Now(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// RowsAffected is also 0 when the status already matches, so
		// confirm the order exists before reporting 404.
		var exists int
		if err := h.DB.QueryRow("SELECT COUNT(*) FROM orders WHERE id = ?", orderID).Scan(&exists); err != nil || exists == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "status": input.Status})
}

// CancelOrder is the handler for PUT /v1/orders/:id/cancel.
//
// Legacy whole-order cancellation: the buyer (or an admin) cancels the
// entire order in one step, bypassing the per-item request/approval
// workflow. Only allowed while the order is still 'processing'.
func (h *Handlers) CancelOrder(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	orderID := c.Param("id")

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	// 1. --- Fetch & Lock the Order ---
	var ownerID int64
	var status models.OrderStatus
	err = tx.QueryRow("SELECT user_id, order_status FROM orders WHERE id = ? FOR UPDATE", orderID).Scan(&ownerID, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// 2. --- Check Ownership (owner or admin) ---
	if ownerID != userID {
		var role string
		if err := tx.QueryRow("SELECT role FROM users WHERE id = ?", userID).Scan(&role); err != nil || role != models.RoleAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized to cancel this order"})
			return
		}
	}

	// 3. --- Only 'processing' Orders Can Be Cancelled Wholesale ---
	if status != models.OrderProcessing {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot cancel order at this stage"})
		return
	}

	// 4. --- Cancel the Order and Every Item ---
	now := time.Now()
	if _, err := tx.Exec("UPDATE orders SET order_status = ?, updated_at = ? WHERE id = ?", models.OrderCancelled, now, orderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order"})
		return
	}
	if _, err := tx.Exec("UPDATE order_items SET status = ?, updated_at = ? WHERE order_id = ?", models.ItemCancelled, now, orderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order items"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
}

// RequestItemCancellation is the handler for
// PUT /v1/orders/:id/items/:itemId/cancel-request.
//
// The buyer signals intent; the owning seller keeps final say and later
// resolves the request through the ordinary item-status update. A
// 'processing' item becomes 'cancellation_requested', a 'delivered'
// item becomes 'return_requested'; any other current status (including
// an already-pending request) is rejected.
func (h *Handlers) RequestItemCancellation(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	buyerID := userIDRaw.(int64)
	orderID := c.Param("id")
	itemID := c.Param("itemId")

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	// 1. --- Verify the Order Belongs to the Buyer ---
	var ownerOrderID int64
	err = tx.QueryRow("SELECT id FROM orders WHERE id = ? AND user_id = ?", orderID, buyerID).Scan(&ownerOrderID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// 2. --- Fetch & Lock the Item ---
	var status models.ItemStatus
	err = tx.QueryRow("SELECT status FROM order_items WHERE id = ? AND order_id = ? FOR UPDATE", itemID, orderID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in order"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order item"})
		return
	}

	// 3. --- Map Current Status to the Requested Sub-State ---
	var next models.ItemStatus
	switch status {
	case models.ItemProcessing:
		next = models.ItemCancellationRequested
	case models.ItemDelivered:
		next = models.ItemReturnRequested
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Cannot cancel/return item in current status: %s", status)})
		return
	}

	if _, err := tx.Exec("UPDATE order_items SET status = ?, updated_at = ? WHERE id = ?", next, time.Now(), itemID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item status"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}
	metrics.ItemTransitions.WithLabelValues(string(next)).Inc()

	message := "Cancellation requested"
	if next == models.ItemReturnRequested {
		message = "Return requested"
	}

	order, err := h.getPopulatedOrder(ownerOrderID)
	if err != nil {
		log.Printf("item request on order %s saved but repopulating the response failed: %v", orderID, err)
		metrics.ResponsePopulationFailures.Inc()
		c.JSON(http.StatusOK, gin.H{"message": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "order": order})
}

//
// --- Shared Order Population Helpers ---
//

// getPopulatedOrder fetches one order with buyer, items, product and
// seller details resolved, for client redisplay after a mutation.
func (h *Handlers) getPopulatedOrder(orderID int64) (*models.Order, error) {
	var o models.Order
	query := `
		SELECT o.id, o.reference, o.user_id, o.total_amount, o.payment_status, o.order_status, o.address, o.created_at, o.updated_at,
			u.name, u.email
		FROM orders o
		JOIN users u ON o.user_id = u.id
		WHERE o.id = ?`
	err := h.DB.QueryRow(query, orderID).Scan(
		&o.ID, &o.Reference, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.OrderStatus, &o.Address, &o.CreatedAt, &o.UpdatedAt,
		&o.BuyerName, &o.BuyerEmail,
	)
	if err != nil {
		return nil, err
	}

	items, err := h.getOrderItems(o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// getOrderItems fetches the items of one order with product and seller
// details. Products may have been deleted since purchase, hence the
// LEFT JOIN; the snapshot on the item itself is always intact.
func (h *Handlers) getOrderItems(orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.seller_id, oi.quantity, oi.unit_price, oi.status, oi.created_at, oi.updated_at,
			COALESCE(p.name, ''), COALESCE(p.image, ''), COALESCE(s.shop_name, s.name, '')
		FROM order_items oi
		LEFT JOIN products p ON oi.product_id = p.id
		LEFT JOIN users s ON oi.seller_id = s.id
		WHERE oi.order_id = ?
		ORDER BY oi.id`

	rows, err := h.DB.Query(query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.SellerID, &item.Quantity, &item.UnitPrice, &item.Status, &item.CreatedAt, &item.UpdatedAt,
			&item.ProductName, &item.ProductImage, &item.ShopName,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []models.OrderItem{}
	}
	return items, nil
}
