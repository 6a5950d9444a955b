package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
)

//
// --- Product Handlers ---
//

// scanProducts scans rows produced by the standard product column list.
func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(
			&p.ID, &p.SellerID, &p.CategoryID, &p.Name, &p.Slug, &p.Description,
			&p.Price, &p.Stock, &p.Image, &p.AverageRating, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// CreateProductInput defines the JSON body for POST /v1/products
type CreateProductInput struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       int     `json:"stock" binding:"gte=0"`
	CategoryID  *int64  `json:"categoryId"`
	Image       string  `json:"image"`
}

// CreateProduct is the handler for POST /v1/products (seller/admin).
// The listing is owned by whoever creates it.
func (h *Handlers) CreateProduct(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	sellerID := userIDRaw.(int64)

	var input CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	query := `
		INSERT INTO products (seller_id, category_id, name, slug, description, price, stock, image, average_rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
	result, err := h.DB.Exec(query, sellerID, input.CategoryID, input.Name, slug.Make(input.Name),
		input.Description, input.Price, input.Stock, input.Image, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	productID, _ := result.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{"message": "Product created successfully", "productId": productID})
}

// GetProducts is the handler for GET /v1/products (public).
// Supports ?search= (name substring) and ?category= (category id).
func (h *Handlers) GetProducts(c *gin.Context) {
	search := c.Query("search")
	category := c.Query("category")

	query := `
		SELECT id, seller_id, category_id, name, slug, description, price, stock, image, average_rating, created_at, updated_at
		FROM products
		WHERE 1=1`
	args := []interface{}{}

	if search != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+search+"%")
	}
	if category != "" && category != "All" {
		query += " AND category_id = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
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

// GetProductByID is the handler for GET /v1/products/:id (public)
func (h *Handlers) GetProductByID(c *gin.Context) {
	productID := c.Param("id")

	var p models.Product
	query := `
		SELECT p.id, p.seller_id, p.category_id, p.name, p.slug, p.description, p.price, p.stock, p.image, p.average_rating, p.created_at, p.updated_at,
			COALESCE(cat.name, ''), s.name, COALESCE(s.shop_name, '')
		FROM products p
		LEFT JOIN categories cat ON p.category_id = cat.id
		JOIN users s ON p.seller_id = s.id
		WHERE p.id = ?`
	err := h.DB.QueryRow(query, productID).Scan(
		&p.ID, &p.SellerID, &p.CategoryID, &p.Name, &p.Slug, &p.Description,
		&p.Price, &p.Stock, &p.Image, &p.AverageRating, &p.CreatedAt, &p.UpdatedAt,
		&p.CategoryName, &p.SellerName, &p.ShopName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	// Reviews
	rows, err := h.DB.Query("SELECT id, product_id, user_id, name, rating, comment, created_at FROM product_reviews WHERE product_id = ? ORDER BY created_at DESC", p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
		return
	}
	defer rows.Close()

	var reviews []models.ProductReview
	for rows.Next() {
		var r models.ProductReview
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Name, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan review"})
			return
		}
		reviews = append(reviews, r)
	}
	if reviews == nil {
		reviews = []models.ProductReview{}
	}

	c.JSON(http.StatusOK, gin.H{"product": p, "reviews": reviews})
}

// UpdateProductInput defines the JSON body for PUT /v1/products/:id
type UpdateProductInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	CategoryID  *int64   `json:"categoryId"`
	Image       *string  `json:"image"`
}

// UpdateProduct is the handler for PUT /v1/products/:id.
// Only the owning seller or an admin may edit a listing. Edits never
// touch items already ordered; those carry their own snapshots.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	productID := c.Param("id")

	var input UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var p models.Product
	err := h.DB.QueryRow("SELECT id, seller_id, name, description, price, stock, image FROM products WHERE id = ?", productID).Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	if err := h.requireOwnerOrAdmin(c, p.SellerID, userID, "Not authorized to edit this product"); err != nil {
		return
	}

	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Price != nil {
		p.Price = *input.Price
	}
	if input.Stock != nil {
		p.Stock = *input.Stock
	}
	if input.Image != nil {
		p.Image = *input.Image
	}

	query := `
		UPDATE products
		SET name = ?, slug = ?, description = ?, price = ?, stock = ?, category_id = COALESCE(?, category_id), image = ?, updated_at = ?
		WHERE id = ?`
	if _, err := h.DB.Exec(query, p.Name, slug.Make(p.Name), p.Description, p.Price, p.Stock, input.CategoryID, p.Image, time.Now(), p.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product updated"})
}

// DeleteProduct is the handler for DELETE /v1/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	productID := c.Param("id")

	var sellerID int64
	err := h.DB.QueryRow("SELECT seller_id FROM products WHERE id = ?", productID).Scan(&sellerID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	if err := h.requireOwnerOrAdmin(c, sellerID, userID, "Not authorized to delete this product"); err != nil {
		return
	}

	if _, err := h.DB.Exec("DELETE FROM products WHERE id = ?", productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// AddProductReviewInput defines the JSON body for POST /v1/products/:id/review
type AddProductReviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// AddProductReview is the handler for POST /v1/products/:id/review.
// Recomputes the product's average rating after the insert.
func (h *Handlers) AddProductReview(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	productID := c.Param("id")

	var input AddProductReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
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

	query := "INSERT INTO product_reviews (product_id, user_id, name, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := tx.Exec(query, productID, userID, reviewerName, input.Rating, input.Comment, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add review"})
		return
	}

	updateQuery := `
		UPDATE products
		SET average_rating = (SELECT AVG(rating) FROM product_reviews WHERE product_id = ?)
		WHERE id = ?`
	if _, err := tx.Exec(updateQuery, productID, productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rating"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Review added"})
}

// requireOwnerOrAdmin writes an error response and returns non-nil
// unless userID owns the resource or is an admin.
func (h *Handlers) requireOwnerOrAdmin(c *gin.Context, ownerID, userID int64, message string) error {
	if ownerID == userID {
		return nil
	}
	var role string
	if err := h.DB.QueryRow("SELECT role FROM users WHERE id = ?", userID).Scan(&role); err == nil && role == models.RoleAdmin {
		return nil
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": message})
	return errNotAuthorized
}
