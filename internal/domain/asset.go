package domain

import "time"

// Asset represents a tradable instrument. Immutable after creation.
type Asset struct {
	AssetID   string
	Name      string
	CreatedAt time.Time
}
