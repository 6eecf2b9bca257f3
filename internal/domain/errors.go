package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAssetNotFound       = errors.New("asset_not_found")
	ErrPortfolioNotFound   = errors.New("portfolio_not_found")
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrOrderNotCancellable = errors.New("order_not_cancellable")
	ErrNotOrderOwner       = errors.New("not_order_owner")
	ErrInsufficientFunds   = errors.New("insufficient_funds")
	ErrInsufficientAssets  = errors.New("insufficient_assets")
	ErrNoLiquidity         = errors.New("no_liquidity")
	ErrWebhookNotFound     = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
