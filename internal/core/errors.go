package core

import "errors"

// Business-rule failures returned by the inventory core. They are wrapped with
// context (fmt.Errorf("%w: ...")) so callers match them with errors.Is.
var (
	// ErrValidation: non-positive, over-precise or otherwise unusable input.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientQuantity: an out or move quantity exceeds the lot balance.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrInvalidDestination: a move targets a warehouse other than the next one.
	ErrInvalidDestination = errors.New("invalid destination warehouse")
	// ErrNoNextWarehouse: the source warehouse is the last in the chain.
	ErrNoNextWarehouse = errors.New("no next warehouse")
	// ErrNotFound: the referenced warehouse, item or lot does not exist.
	ErrNotFound = errors.New("not found")
	// ErrItemInUse: an item cannot be deleted while lots reference it.
	ErrItemInUse = errors.New("item is referenced by lots")
	// ErrConflict: a unique master-data attribute (item name, order index) is taken.
	ErrConflict = errors.New("conflict")
	// ErrTransientStore: the store is unavailable or aborted the transaction.
	// The operation had no effect and may be retried by the caller.
	ErrTransientStore = errors.New("store temporarily unavailable")
)

// ErrorCode returns a stable machine-readable code for err, used by the HTTP API,
// metrics labels and logs. Unclassified errors map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, ErrInvalidDestination):
		return "invalid_destination"
	case errors.Is(err, ErrNoNextWarehouse):
		return "no_next_warehouse"
	case errors.Is(err, ErrItemInUse):
		return "item_in_use"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransientStore):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}
