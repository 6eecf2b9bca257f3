package domain

import "time"

// Trade represents a matched execution between a buy and a sell order.
// A single Trade record is shared by both orders involved.
type Trade struct {
	TradeID     string
	BuyOrderID  string
	SellOrderID string
	AssetID     string
	Price       int64 // coins per unit
	Quantity    int64
	ExecutedAt  time.Time
}
