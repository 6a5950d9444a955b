package handlers

import (
	"net/http"
	"time"

	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
)

//
// --- Admin Handlers ---
//

// GetAllUsers is the handler for GET /v1/users (admin)
func (h *Handlers) GetAllUsers(c *gin.Context) {
	query := `
		SELECT id, name, email, role, shop_name, is_seller_approved, seller_rating, created_at, updated_at
		FROM users
		ORDER BY created_at DESC`

	rows, err := h.DB.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.ShopName, &u.IsSellerApproved, &u.SellerRating, &u.CreatedAt, &u.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan user"})
			return
		}
		users = append(users, u)
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DeleteUser is the handler for DELETE /v1/users/:id (admin)
func (h *Handlers) DeleteUser(c *gin.Context) {
	userID := c.Param("id")

	result, err := h.DB.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// ApproveSeller is the handler for PUT /v1/users/:id/approve-seller (admin)
func (h *Handlers) ApproveSeller(c *gin.Context) {
	userID := c.Param("id")

	result, err := h.DB.Exec(
		"UPDATE users SET is_seller_approved = TRUE, updated_at = ? WHERE id = ? AND role = ?",
		time.Now(), userID, models.RoleSeller)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve seller"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seller not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Seller approved"})
}

// RejectSeller is the handler for PUT /v1/users/:id/reject-seller (admin).
// Reverts the account to an ordinary user.
func (h *Handlers) RejectSeller(c *gin.Context) {
	userID := c.Param("id")

	result, err := h.DB.Exec(
		"UPDATE users SET role = ?, is_seller_approved = FALSE, updated_at = ? WHERE id = ? AND role = ?",
		models.RoleUser, time.Now(), userID, models.RoleSeller)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject seller"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seller not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Seller rejected"})
}

// AdminStats is the response shape for GET /v1/admin/stats
type AdminStats struct {
	TotalUsers    int            `json:"totalUsers"`
	TotalProducts int            `json:"totalProducts"`
	TotalOrders   int            `json:"totalOrders"`
	TotalSales    float64        `json:"totalSales"`
	RecentOrders  []models.Order `json:"recentOrders"`
}

// GetDashboardStats is the handler for GET /v1/admin/stats
func (h *Handlers) GetDashboardStats(c *gin.Context) {
	stats := AdminStats{}

	if err := h.DB.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
		return
	}
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM products").Scan(&stats.TotalProducts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
		return
	}
	if err := h.DB.QueryRow("SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM orders").Scan(&stats.TotalOrders, &stats.TotalSales); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate orders"})
		return
	}

	query := `
		SELECT o.id, o.reference, o.user_id, o.total_amount, o.payment_status, o.order_status, o.address, o.created_at, o.updated_at,
			u.name, u.email
		FROM orders o
		JOIN users u ON o.user_id = u.id
		ORDER BY o.created_at DESC
		LIMIT 5`
	rows, err := h.DB.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recent orders"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.Reference, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.OrderStatus, &o.Address, &o.CreatedAt, &o.UpdatedAt, &o.BuyerName, &o.BuyerEmail); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		stats.RecentOrders = append(stats.RecentOrders, o)
	}
	if stats.RecentOrders == nil {
		stats.RecentOrders = []models.Order{}
	}

	c.JSON(http.StatusOK, stats)
}
