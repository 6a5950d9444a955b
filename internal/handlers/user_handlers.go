package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/bazario/bazario-golang/internal/auth"
	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
)

//
// --- Auth & Profile Handlers ---
//

// RegisterInput defines the JSON body for POST /v1/register
type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register is the handler for POST /v1/register
func (h *Handlers) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Reject duplicate emails up front for a friendlier error than the
	// unique-key violation.
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", input.Email).Scan(&exists); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if exists > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	now := time.Now()
	query := `
		INSERT INTO users (name, email, password_hash, role, is_seller_approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, FALSE, ?, ?)`
	result, err := h.DB.Exec(query, input.Name, input.Email, password.Hash, models.RoleUser, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	userID, _ := result.LastInsertId()

	token, err := auth.GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registered successfully",
		"token":   token,
		"user":    gin.H{"id": userID, "name": input.Name, "email": input.Email, "role": models.RoleUser},
	})
}

// LoginInput defines the JSON body for POST /v1/login
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /v1/login
func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	query := "SELECT id, name, email, password_hash, role, shop_name, is_seller_approved FROM users WHERE email = ?"
	err := h.DB.QueryRow(query, input.Email).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.ShopName, &user.IsSellerApproved,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Same message as a bad password; no account enumeration.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify password"})
		return
	}
	if !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// GetProfile is the handler for GET /v1/users/profile
func (h *Handlers) GetProfile(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var user models.User
	query := "SELECT id, name, email, role, shop_name, is_seller_approved, seller_rating, created_at, updated_at FROM users WHERE id = ?"
	err := h.DB.QueryRow(query, userID).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.ShopName, &user.IsSellerApproved, &user.SellerRating, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch profile"})
		return
	}

	rows, err := h.DB.Query("SELECT id, user_id, street, city, state, zip, country FROM addresses WHERE user_id = ?", userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch addresses"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.Zip, &a.Country); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan address"})
			return
		}
		user.Addresses = append(user.Addresses, a)
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfileInput defines the JSON body for PUT /v1/users/profile.
// Both fields are optional; a present password is rehashed.
type UpdateProfileInput struct {
	Name     *string `json:"name"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

// UpdateProfile is the handler for PUT /v1/users/profile
func (h *Handlers) UpdateProfile(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Name == nil && input.Password == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	query := "UPDATE users SET updated_at = ?"
	args := []interface{}{time.Now()}

	if input.Name != nil {
		query += ", name = ?"
		args = append(args, *input.Name)
	}
	if input.Password != nil {
		var password models.Password
		if err := password.Set(*input.Password); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		query += ", password_hash = ?"
		args = append(args, password.Hash)
	}

	query += " WHERE id = ?"
	args = append(args, userID)

	if _, err := h.DB.Exec(query, args...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}

//
// --- Wishlist Handlers ---
//

// AddToWishlistInput defines the JSON body for POST /v1/users/wishlist
type AddToWishlistInput struct {
	ProductID int64 `json:"productId" binding:"required"`
}

// AddToWishlist is the handler for POST /v1/users/wishlist
func (h *Handlers) AddToWishlist(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input AddToWishlistInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// INSERT IGNORE keeps re-adds idempotent (unique key on user+product)
	query := "INSERT IGNORE INTO wishlist_items (user_id, product_id, created_at) VALUES (?, ?, ?)"
	if _, err := h.DB.Exec(query, userID, input.ProductID, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to wishlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Added to wishlist"})
}

// GetWishlist is the handler for GET /v1/users/wishlist
func (h *Handlers) GetWishlist(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	query := `
		SELECT p.id, p.seller_id, p.category_id, p.name, p.slug, p.description, p.price, p.stock, p.image, p.average_rating, p.created_at, p.updated_at
		FROM wishlist_items w
		JOIN products p ON w.product_id = p.id
		WHERE w.user_id = ?
		ORDER BY w.created_at DESC`

	rows, err := h.DB.Query(query, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wishlist"})
		return
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan wishlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// RemoveFromWishlist is the handler for DELETE /v1/users/wishlist/:productId
func (h *Handlers) RemoveFromWishlist(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	productID := c.Param("productId")

	if _, err := h.DB.Exec("DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?", userID, productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove from wishlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Removed from wishlist"})
}

//
// --- Address Handlers ---
//

// AddAddressInput defines the JSON body for POST /v1/users/address
type AddAddressInput struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state"`
	Zip     string `json:"zip" binding:"required"`
	Country string `json:"country" binding:"required"`
}

// AddAddress is the handler for POST /v1/users/address
func (h *Handlers) AddAddress(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input AddAddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := "INSERT INTO addresses (user_id, street, city, state, zip, country) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := h.DB.Exec(query, userID, input.Street, input.City, input.State, input.Zip, input.Country); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add address"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address added"})
}

// RemoveAddress is the handler for DELETE /v1/users/address/:id
func (h *Handlers) RemoveAddress(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	addressID := c.Param("id")

	result, err := h.DB.Exec("DELETE FROM addresses WHERE id = ? AND user_id = ?", addressID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove address"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address removed"})
}
