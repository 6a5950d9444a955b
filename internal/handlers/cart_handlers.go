package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

//
// --- Cart Handlers ---
//

// getOrCreateCartID finds a user's cart or creates one.
// Meant to be used within a transaction.
func (h *Handlers) getOrCreateCartID(tx *sql.Tx, userID int64) (int64, error) {
	var cartID int64

	err := tx.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}

	if err == sql.ErrNoRows {
		now := time.Now()
		result, err := tx.Exec("INSERT INTO carts (user_id, created_at, updated_at) VALUES (?, ?, ?)", userID, now, now)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	return 0, err
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// AddToCart is the handler for POST /v1/cart/add
func (h *Handlers) AddToCart(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	buyerID := userIDRaw.(int64)

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	cartID, err := h.getOrCreateCartID(tx, buyerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart initialization failed"})
		return
	}

	// The stock check here is advisory only; checkout re-validates
	// under row locks. It just keeps obviously hopeless adds out.
	var stock int
	err = tx.QueryRow("SELECT stock FROM products WHERE id = ?", input.ProductID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stock < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
		return
	}

	// Insert or Update logic (Upsert)
	_, err = tx.Exec(`
		INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			quantity = quantity + VALUES(quantity),
			updated_at = NOW()`,
		cartID, input.ProductID, input.Quantity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart"})
}

// RemoveFromCartInput defines the JSON for POST /v1/cart/remove
type RemoveFromCartInput struct {
	ProductID int64 `json:"productId" binding:"required"`
}

// RemoveFromCart is the handler for POST /v1/cart/remove
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	buyerID := userIDRaw.(int64)

	var input RemoveFromCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", buyerID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	result, err := h.DB.Exec("DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?", cartID, input.ProductID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

// CartItemResponse is a helper struct for the GetCart handler
type CartItemResponse struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
	Stock     int     `json:"stock"`
}

// GetCart is the handler for GET /v1/cart
func (h *Handlers) GetCart(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	buyerID := userIDRaw.(int64)

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", buyerID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusOK, gin.H{
				"items":      []CartItemResponse{},
				"subtotal":   0.0,
				"totalItems": 0,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	query := `
		SELECT ci.product_id, p.name, p.image, p.price, ci.quantity, p.stock
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = ?`
	rows, err := h.DB.Query(query, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query cart items"})
		return
	}
	defer rows.Close()

	var items []CartItemResponse
	var subtotal float64
	var totalItems int

	for rows.Next() {
		var item CartItemResponse
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Image, &item.Price, &item.Quantity, &item.Stock); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cart item"})
			return
		}

		item.LineTotal = item.Price * float64(item.Quantity)
		subtotal += item.LineTotal
		totalItems += item.Quantity
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating cart items"})
		return
	}

	if items == nil {
		items = []CartItemResponse{}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"subtotal":   subtotal,
		"totalItems": totalItems,
	})
}
