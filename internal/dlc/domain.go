// Package dlc tracks expiration (best-before) entries for received batches.
package dlc

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates entry lifecycle states.
type Status string

const (
	// StatusActive marks a batch still in use.
	StatusActive Status = "ACTIVE"
	// StatusConsumed marks a batch used up by the kitchen.
	StatusConsumed Status = "CONSUMED"
	// StatusDiscarded marks a batch thrown away.
	StatusDiscarded Status = "DISCARDED"
	// StatusExpired marks a batch whose date passed while still active.
	StatusExpired Status = "EXPIRED"
)

// Entry is one tracked expiration record for a received batch.
type Entry struct {
	ID             int64
	ProductID      int64
	BillID         *int64
	ExpirationDate time.Time
	Quantity       decimal.Decimal
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Draft describes an entry attached to a bill line during confirmation.
type Draft struct {
	ExpirationDate time.Time
	Quantity       decimal.Decimal
}

var (
	// ErrEntryNotFound indicates a missing entry row.
	ErrEntryNotFound = errors.New("dlc: entry not found")
	// ErrNotActive indicates a consume/discard on a terminal entry.
	ErrNotActive = errors.New("dlc: entry is not active")
)
