package routes

import (
	"net/http"
	"os"

	"github.com/bazario/bazario-golang/internal/handlers"
	"github.com/bazario/bazario-golang/internal/metrics"
	"github.com/bazario/bazario-golang/internal/middleware"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware tells the browser that the configured frontend origin
// may send credentialed requests to us.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// Preflight OPTIONS requests get an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware())

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		// --- Public Catalog Routes ---
		v1.GET("/products", h.GetProducts)
		v1.GET("/products/:id", h.GetProductByID)
		v1.GET("/categories", h.GetCategories)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware())
		{
			// --- Profile ---
			auth.GET("/users/profile", h.GetProfile)
			auth.PUT("/users/profile", h.UpdateProfile)

			// --- Wishlist ---
			auth.GET("/users/wishlist", h.GetWishlist)
			auth.POST("/users/wishlist", h.AddToWishlist)
			auth.DELETE("/users/wishlist/:productId", h.RemoveFromWishlist)

			// --- Addresses ---
			auth.POST("/users/address", h.AddAddress)
			auth.DELETE("/users/address/:id", h.RemoveAddress)

			// --- Cart ---
			auth.POST("/cart/add", h.AddToCart)
			auth.POST("/cart/remove", h.RemoveFromCart)
			auth.GET("/cart", h.GetCart)

			// --- Orders (Buyer) ---
			auth.POST("/orders", h.PlaceOrder)
			auth.GET("/orders/my", h.GetMyOrders)
			auth.PUT("/orders/:id/cancel", h.CancelOrder)
			auth.PUT("/orders/:id/items/:itemId/cancel-request", h.RequestItemCancellation)

			// --- Catalog Management (ownership checked in handlers) ---
			auth.POST("/products", h.CreateProduct)
			auth.PUT("/products/:id", h.UpdateProduct)
			auth.DELETE("/products/:id", h.DeleteProduct)
			auth.POST("/products/:id/review", h.AddProductReview)

			// --- Seller Application (any authenticated user) ---
			auth.POST("/seller/register", h.RegisterSeller)

			// --- Seller Reviews (any authenticated buyer) ---
			auth.POST("/seller/:id/review", h.AddSellerReview)

			// --- Seller Routes (approved sellers and admins) ---
			sellerRoutes := auth.Group("/seller")
			sellerRoutes.Use(middleware.SellerMiddleware(h.DB))
			{
				sellerRoutes.GET("/products", h.GetSellerProducts)
				sellerRoutes.GET("/orders", h.GetSellerOrders)
				sellerRoutes.PUT("/order-item/status", h.UpdateOrderItemStatus)
				sellerRoutes.GET("/analytics", h.GetSellerAnalytics)
			}

			// --- Admin Routes ---
			adminRoutes := auth.Group("/")
			adminRoutes.Use(middleware.AdminMiddleware(h.DB))
			{
				adminRoutes.GET("/orders", h.GetAllOrders)
				adminRoutes.PUT("/orders/:id", h.UpdateOrderStatus)

				adminRoutes.GET("/users", h.GetAllUsers)
				adminRoutes.DELETE("/users/:id", h.DeleteUser)
				adminRoutes.PUT("/users/:id/approve-seller", h.ApproveSeller)
				adminRoutes.PUT("/users/:id/reject-seller", h.RejectSeller)

				adminRoutes.POST("/categories", h.CreateCategory)
				adminRoutes.DELETE("/categories/:id", h.DeleteCategory)

				adminRoutes.GET("/admin/stats", h.GetDashboardStats)
			}
		}
	}

	return router
}
