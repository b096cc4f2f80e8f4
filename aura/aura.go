package aura

import (
	"context"
)

// Named deltas applied to a user's balance. The balance is an additive
// running total and is never recomputed from history.
const (
	DeltaConfessionPublished = 1
	DeltaLikeReceived        = 3
	DeltaDislikeReceived     = -3
	DeltaWarning             = -50
	DeltaDeletionMinor       = -10
	DeltaDeletionMajor       = -20
)

type Balance struct {
	UserID int64
	Points int
}

type Repository interface {
	// Balance returns the user's current points. A user without a ledger
	// row has a balance of zero.
	Balance(ctx context.Context, userID int64) (points int, err error)
	// Balances returns the current points for each given user. Users
	// without a ledger row are present in the result with zero points.
	Balances(ctx context.Context, userIDs []int64) (points map[int64]int, err error)
	// Add adjusts the user's balance by delta, creating the ledger row on
	// first use.
	Add(ctx context.Context, userID int64, delta int) (err error)
}
