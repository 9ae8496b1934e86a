// Package store persists portfolio documents. The Mongo-backed store is
// the production implementation; the in-memory store serves tests and
// local development without a database.
package store

import (
	"context"
	"fmt"

	"github.com/stockleague/stockleague/pkg/models"
)

// ErrNotFound is returned when no portfolio exists for the requested user.
// This is the one absence callers must see rather than have defaulted away.
var ErrNotFound = fmt.Errorf("portfolio not found")

// PortfolioStore is the document-store contract for portfolios.
type PortfolioStore interface {
	// FindByUsername returns the portfolio saved under a username, or
	// ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*models.Portfolio, error)

	// Upsert saves a portfolio keyed on its UserID, overwriting any
	// previous document for that user.
	Upsert(ctx context.Context, p models.Portfolio) error

	// List returns every saved portfolio, for leaderboard assembly.
	List(ctx context.Context) ([]models.Portfolio, error)

	// Close releases the underlying connection, if any.
	Close(ctx context.Context) error
}
