// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Session
	KeySessionStarted = "session.started"
	KeySessionEnded   = "session.ended"
	KeySessionInvalid = "session.invalid_token"

	// Cart
	KeyCartLoaded       = "cart.loaded"
	KeyCartItemAdded    = "cart.item_added"
	KeyCartItemUpdated  = "cart.item_updated"
	KeyCartItemRemoved  = "cart.item_removed"
	KeyCartCleared      = "cart.cleared"
	KeyCartSynced       = "cart.synced"
	KeyCartSyncFailed   = "cart.sync_failed"
	KeyCartItemNotFound = "cart.item_not_found"
	KeyCartUnsynced     = "cart.unsynced"
	KeyCartDrawer       = "cart.drawer_updated"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationQuantity = "validation.quantity"

	// Rate limiting
	KeyRateLimited = "rate_limit.exceeded"
)
