package handlers_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/bazario/bazario-golang/internal/handlers"
	"github.com/bazario/bazario-golang/internal/metrics"
	"github.com/bazario/bazario-golang/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter wires a Handlers instance to a mock database and a bare
// gin engine whose only middleware injects the authenticated user ID,
// standing in for the JWT middleware.
func newTestRouter(t *testing.T, userID int64) (*handlers.Handlers, sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &handlers.Handlers{DB: db}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", userID) })
	return h, mock, r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderColumns() []string {
	return []string{"id", "reference", "user_id", "total_amount", "payment_status", "order_status", "address", "created_at", "updated_at", "name", "email"}
}

func itemColumns() []string {
	return []string{"id", "order_id", "product_id", "seller_id", "quantity", "unit_price", "status", "created_at", "updated_at", "product_name", "image", "shop_name"}
}

// expectPopulatedOrder queues the two queries getPopulatedOrder issues
// after a successful mutation.
func expectPopulatedOrder(mock sqlmock.Sqlmock, orderID int64, orderStatus models.OrderStatus, itemStatuses ...models.ItemStatus) {
	now := time.Now()
	mock.ExpectQuery("SELECT o.id, o.reference, .+ FROM orders o JOIN users u").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(orderID, "ref-1234", int64(1), 25.0, "pending", string(orderStatus), "221B Baker St", now, now, "John Watson", "watson@example.com"))

	items := sqlmock.NewRows(itemColumns())
	for i, s := range itemStatuses {
		items.AddRow(int64(i+10), orderID, int64(i+101), int64(i+11), 1, 10.0, string(s), now, now, "Widget", "widget.png", "Baker Street Goods")
	}
	mock.ExpectQuery("SELECT oi.id, oi.order_id, .+ FROM order_items oi LEFT JOIN products").
		WithArgs(orderID).
		WillReturnRows(items)
}

func TestPlaceOrder(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.POST("/v1/orders", h.PlaceOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM carts WHERE user_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT ci.product_id, p.name, ci.quantity, p.price, p.stock, p.seller_id FROM cart_items").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price", "stock", "seller_id"}).
			AddRow(int64(101), "Widget", 2, 10.0, 5, int64(11)).
			AddRow(int64(102), "Gadget", 1, 5.0, 3, int64(12)))

	// total = 2*10 + 1*5
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), int64(1), 25.0, "pending", "processing", "221B Baker St", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(55, 1))

	// The decrement carries the stock guard; its args are the contract
	// that exactly the purchased quantity leaves the shelf.
	mock.ExpectExec("UPDATE products SET stock = stock -").
		WithArgs(2, int64(101), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(int64(55), int64(101), int64(11), 2, 10.0, "processing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("UPDATE products SET stock = stock -").
		WithArgs(1, int64(102), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(int64(55), int64(102), int64(12), 1, 5.0, "processing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	mock.ExpectExec("DELETE FROM cart_items").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	expectPopulatedOrder(mock, 55, models.OrderProcessing, models.ItemProcessing, models.ItemProcessing)

	w := doRequest(r, http.MethodPost, "/v1/orders", `{"address":"221B Baker St"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Order placed"`)
	assert.Contains(t, w.Body.String(), `"totalAmount":25`)
	assert.Contains(t, w.Body.String(), `"orderStatus":"processing"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A committed order whose response cannot be repopulated is still a
// success to the client and to the placement counters; only the
// population counter moves.
func TestPlaceOrderPopulateFailureStillCreated(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.POST("/v1/orders", h.PlaceOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM carts WHERE user_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT ci.product_id, p.name, ci.quantity, p.price, p.stock, p.seller_id FROM cart_items").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price", "stock", "seller_id"}).
			AddRow(int64(101), "Widget", 1, 10.0, 5, int64(11)))
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), int64(1), 10.0, "pending", "processing", "221B Baker St", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(55, 1))
	mock.ExpectExec("UPDATE products SET stock = stock -").
		WithArgs(1, int64(101), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(int64(55), int64(101), int64(11), 1, 10.0, "processing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("DELETE FROM cart_items").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT o.id, o.reference, .+ FROM orders o JOIN users u").
		WithArgs(int64(55)).
		WillReturnError(errors.New("connection reset"))

	reasons := []string{metrics.ReasonEmptyCart, metrics.ReasonInsufficientStock, metrics.ReasonStorage}
	failuresBefore := make(map[string]float64, len(reasons))
	for _, reason := range reasons {
		failuresBefore[reason] = testutil.ToFloat64(metrics.PlacementFailures.WithLabelValues(reason))
	}
	placedBefore := testutil.ToFloat64(metrics.OrdersPlaced)
	populateBefore := testutil.ToFloat64(metrics.ResponsePopulationFailures)

	w := doRequest(r, http.MethodPost, "/v1/orders", `{"address":"221B Baker St"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"orderId":55`)
	assert.Equal(t, placedBefore+1, testutil.ToFloat64(metrics.OrdersPlaced))
	assert.Equal(t, populateBefore+1, testutil.ToFloat64(metrics.ResponsePopulationFailures))
	for _, reason := range reasons {
		assert.Equal(t, failuresBefore[reason], testutil.ToFloat64(metrics.PlacementFailures.WithLabelValues(reason)), reason)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.POST("/v1/orders", h.PlaceOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM carts WHERE user_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT ci.product_id, p.name, ci.quantity, p.price, p.stock, p.seller_id FROM cart_items").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price", "stock", "seller_id"}).
			AddRow(int64(101), "Widget", 3, 10.0, 2, int64(11)))
	// Nothing else: no order insert, no decrement, the tx must roll back.
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPost, "/v1/orders", `{"address":"221B Baker St"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient stock for Widget")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderStockGuardLosesRace(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.POST("/v1/orders", h.PlaceOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM carts WHERE user_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT ci.product_id, p.name, ci.quantity, p.price, p.stock, p.seller_id FROM cart_items").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price", "stock", "seller_id"}).
			AddRow(int64(101), "Widget", 2, 10.0, 5, int64(11)))
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), int64(1), 20.0, "pending", "processing", "221B Baker St", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(55, 1))
	// The guarded decrement touches zero rows: stock moved underneath us.
	mock.ExpectExec("UPDATE products SET stock = stock -").
		WithArgs(2, int64(101), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPost, "/v1/orders", `{"address":"221B Baker St"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient stock for Widget")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.POST("/v1/orders", h.PlaceOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM carts WHERE user_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPost, "/v1/orders", `{"address":"221B Baker St"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Cart is empty")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderRequiresAddress(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.POST("/v1/orders", h.PlaceOrder)

	w := doRequest(r, http.MethodPost, "/v1/orders", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrder(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.PUT("/v1/orders/:id/cancel", h.CancelOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, order_status FROM orders WHERE id").
		WithArgs("55").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "order_status"}).AddRow(int64(1), "processing"))
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs("cancelled", sqlmock.AnyArg(), "55").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE order_items SET status").
		WithArgs("cancelled", sqlmock.AnyArg(), "55").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	w := doRequest(r, http.MethodPut, "/v1/orders/55/cancel", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Order cancelled")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderAfterShipment(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.PUT("/v1/orders/:id/cancel", h.CancelOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, order_status FROM orders WHERE id").
		WithArgs("55").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "order_status"}).AddRow(int64(1), "shipped"))
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPut, "/v1/orders/55/cancel", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot cancel order at this stage")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderNotOwner(t *testing.T) {
	h, mock, r := newTestRouter(t, 2)
	r.PUT("/v1/orders/:id/cancel", h.CancelOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, order_status FROM orders WHERE id").
		WithArgs("55").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "order_status"}).AddRow(int64(1), "processing"))
	mock.ExpectQuery("SELECT role FROM users WHERE id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("user"))
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPut, "/v1/orders/55/cancel", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestItemCancellation(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.PUT("/v1/orders/:id/items/:itemId/cancel-request", h.RequestItemCancellation)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM orders WHERE id").
		WithArgs("55", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectQuery("SELECT status FROM order_items WHERE id").
		WithArgs("10", "55").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
	mock.ExpectExec("UPDATE order_items SET status").
		WithArgs("cancellation_requested", sqlmock.AnyArg(), "10").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectPopulatedOrder(mock, 55, models.OrderProcessing, models.ItemCancellationRequested)

	w := doRequest(r, http.MethodPut, "/v1/orders/55/items/10/cancel-request", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cancellation requested")
	assert.Contains(t, w.Body.String(), `"status":"cancellation_requested"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestItemCancellationDelivered(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.PUT("/v1/orders/:id/items/:itemId/cancel-request", h.RequestItemCancellation)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM orders WHERE id").
		WithArgs("55", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectQuery("SELECT status FROM order_items WHERE id").
		WithArgs("10", "55").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("delivered"))
	mock.ExpectExec("UPDATE order_items SET status").
		WithArgs("return_requested", sqlmock.AnyArg(), "10").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectPopulatedOrder(mock, 55, models.OrderCompleted, models.ItemReturnRequested)

	w := doRequest(r, http.MethodPut, "/v1/orders/55/items/10/cancel-request", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Return requested")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestItemCancellationAlreadyPending(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.PUT("/v1/orders/:id/items/:itemId/cancel-request", h.RequestItemCancellation)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM orders WHERE id").
		WithArgs("55", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectQuery("SELECT status FROM order_items WHERE id").
		WithArgs("10", "55").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancellation_requested"))
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPut, "/v1/orders/55/items/10/cancel-request", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot cancel/return item in current status: cancellation_requested")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestItemCancellationForeignOrder(t *testing.T) {
	h, mock, r := newTestRouter(t, 2)
	r.PUT("/v1/orders/:id/items/:itemId/cancel-request", h.RequestItemCancellation)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM orders WHERE id").
		WithArgs("55", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	w := doRequest(r, http.MethodPut, "/v1/orders/55/items/10/cancel-request", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Order not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMyOrders(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.GET("/v1/orders/my", h.GetMyOrders)

	now := time.Now()
	mock.ExpectQuery("SELECT o.id, o.reference, .+ FROM orders o WHERE o.user_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference", "user_id", "total_amount", "payment_status", "order_status", "address", "created_at", "updated_at"}).
			AddRow(int64(55), "ref-1234", int64(1), 25.0, "pending", "shipped", "221B Baker St", now, now))
	mock.ExpectQuery("SELECT oi.id, oi.order_id, .+ FROM order_items oi LEFT JOIN products").
		WithArgs(int64(55)).
		WillReturnRows(sqlmock.NewRows(itemColumns()).
			AddRow(int64(10), int64(55), int64(101), int64(11), 2, 10.0, "shipped", now, now, "Widget", "widget.png", "Baker Street Goods"))

	w := doRequest(r, http.MethodGet, "/v1/orders/my", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reference":"ref-1234"`)
	assert.Contains(t, w.Body.String(), `"orderStatus":"shipped"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusRejectsUnknownStatus(t *testing.T) {
	h, mock, r := newTestRouter(t, 1)
	r.PUT("/v1/orders/:id", h.UpdateOrderStatus)

	w := doRequest(r, http.MethodPut, "/v1/orders/55", `{"status":"teleported"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid order status")
	assert.NoError(t, mock.ExpectationsWereMet())
}
