package redisx

import "time"

const (
	// Checkout claim: idem:checkout:{order_id} -> identity
	KeyIdemCheckout = "idem:checkout:%s"

	// Order cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Library projection: set library:{identity} -> book ids
	KeyLibrary = "library:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLLibrary     = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)

// purgePatterns are the derived keys dropped when the store is replaced.
var purgePatterns = []string{"order:*", "library:*", "idem:checkout:*"}
