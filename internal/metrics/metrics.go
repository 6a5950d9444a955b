package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Order lifecycle counters. PlacementFailures only counts orders that
// were NOT created; a commit that succeeds but whose response cannot be
// repopulated is a different condition and gets its own counter so the
// failure series stays honest.
var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bazario",
		Name:      "orders_placed_total",
		Help:      "Total number of successfully placed orders.",
	})

	PlacementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazario",
		Name:      "order_placement_failures_total",
		Help:      "Order placement failures by reason.",
	}, []string{"reason"})

	ItemTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazario",
		Name:      "order_item_transitions_total",
		Help:      "Order item status transitions by target status.",
	}, []string{"status"})

	ResponsePopulationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bazario",
		Name:      "order_response_population_failures_total",
		Help:      "Order responses that could not be repopulated after a committed write.",
	})
)

// Failure reasons for PlacementFailures.
const (
	ReasonEmptyCart         = "empty_cart"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonStorage           = "storage"
)

// Handler exposes the registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
