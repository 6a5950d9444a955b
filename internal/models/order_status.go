package models

// sellerTransitions is the per-item fulfillment state machine. The key
// is the current status, the value the statuses the owning seller (or
// an admin) may move the item to. 'cancelled' and 'returned' are
// terminal. The two *_requested states are entered by the buyer via the
// cancel-request endpoint, never through a seller update.
var sellerTransitions = map[ItemStatus][]ItemStatus{
	ItemProcessing:            {ItemShipped, ItemDelivered, ItemCancelled},
	ItemShipped:               {ItemDelivered, ItemCancelled, ItemReturned},
	ItemDelivered:             {ItemReturned},
	ItemCancellationRequested: {ItemCancelled, ItemProcessing}, // approve / reject
	ItemReturnRequested:       {ItemReturned, ItemDelivered},   // approve / reject
	ItemCancelled:             {},
	ItemReturned:              {},
}

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	_, ok := sellerTransitions[s]
	return ok
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanSellerTransition reports whether a seller may move an item from
// 'from' to 'to'.
func CanSellerTransition(from, to ItemStatus) bool {
	for _, next := range sellerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DeriveOrderStatus recomputes the order-level status from the current
// item statuses. It is a monotonic roll-up, not a state machine: it
// only ever advances the order (processing -> shipped ->
// completed/cancelled) and never reverts it when an individual item
// moves backwards. A rejected cancellation putting one item back to
// 'processing' must not un-ship or un-complete the order.
func DeriveOrderStatus(items []ItemStatus, current OrderStatus) OrderStatus {
	if len(items) == 0 {
		return current
	}

	allDone := true
	allCancelled := true
	anyShipped := false

	for _, s := range items {
		if s != ItemDelivered && s != ItemReturned {
			allDone = false
		}
		if s != ItemCancelled {
			allCancelled = false
		}
		if s == ItemShipped {
			anyShipped = true
		}
	}

	switch {
	case allDone:
		return OrderCompleted
	case allCancelled:
		return OrderCancelled
	case anyShipped && current == OrderProcessing:
		return OrderShipped
	}
	return current
}
