package middleware

import (
	"database/sql"
	"net/http"

	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
)

//
// --- Role-Based Middleware ---
//
// These middleware functions run *after* AuthMiddleware. They read the
// 'userID' from the context, look the user's role up in the DB, and
// enforce role permissions.
//

// lookupRole fetches the user's role and seller approval flag.
func lookupRole(db *sql.DB, userID int64) (role string, approved bool, err error) {
	query := "SELECT role, is_seller_approved FROM users WHERE id = ?"
	err = db.QueryRow(query, userID).Scan(&role, &approved)
	return role, approved, err
}

// SellerMiddleware allows approved sellers and admins through.
func SellerMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDRaw, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context (AuthMiddleware must run first)"})
			c.Abort()
			return
		}
		userID := userIDRaw.(int64)

		role, approved, err := lookupRole(db, userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user"})
			c.Abort()
			return
		}

		if role != models.RoleSeller && role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied: Seller role required"})
			c.Abort()
			return
		}

		if role == models.RoleSeller && !approved {
			c.JSON(http.StatusForbidden, gin.H{"error": "Seller account is pending admin approval"})
			c.Abort()
			return
		}

		c.Set("userRole", role)
		c.Next()
	}
}

// AdminMiddleware allows admins only.
func AdminMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDRaw, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context (AuthMiddleware must run first)"})
			c.Abort()
			return
		}
		userID := userIDRaw.(int64)

		role, _, err := lookupRole(db, userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user"})
			c.Abort()
			return
		}

		if role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied: Admin role required"})
			c.Abort()
			return
		}

		c.Set("userRole", role)
		c.Next()
	}
}
