package handlers

import (
	"net/http"
	"time"

	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
)

//
// --- Category Handlers ---
//

// CreateCategoryInput defines the JSON body for POST /v1/categories
type CreateCategoryInput struct {
	Name string `json:"name" binding:"required"`
}

// CreateCategory is the handler for POST /v1/categories (admin)
func (h *Handlers) CreateCategory(c *gin.Context) {
	var input CreateCategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := "INSERT INTO categories (name, slug, created_at) VALUES (?, ?, ?)"
	result, err := h.DB.Exec(query, input.Name, slug.Make(input.Name), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}
	categoryID, _ := result.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{"message": "Category created", "categoryId": categoryID})
}

// GetCategories is the handler for GET /v1/categories (public)
func (h *Handlers) GetCategories(c *gin.Context) {
	rows, err := h.DB.Query("SELECT id, name, slug, created_at FROM categories ORDER BY name")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan category"})
			return
		}
		categories = append(categories, cat)
	}
	if categories == nil {
		categories = []models.Category{}
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// DeleteCategory is the handler for DELETE /v1/categories/:id (admin)
func (h *Handlers) DeleteCategory(c *gin.Context) {
	categoryID := c.Param("id")

	result, err := h.DB.Exec("DELETE FROM categories WHERE id = ?", categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
