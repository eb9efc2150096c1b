// Package storage persists the document units of one collection so a built index
// can be reloaded without re-reading the sources.
package storage

import (
	"context"

	"github.com/hyperjump/astrabot/internal/models"
)

// UnitStore defines unit persistence operations for a single collection store.
type UnitStore interface {
	// BatchCreateUnits inserts units and their sources in one transaction.
	BatchCreateUnits(ctx context.Context, units []*models.DocumentUnit) error
	GetUnit(ctx context.Context, id string) (*models.DocumentUnit, error)
	// GetUnits returns the units found for ids, keyed by ID. Unknown ids are absent from the map.
	GetUnits(ctx context.Context, ids []string) (map[string]*models.DocumentUnit, error)
	ListUnits(ctx context.Context) ([]*models.DocumentUnit, error)

	// Stats
	CountUnits(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)

	// Check runs an integrity check over the database file.
	Check(ctx context.Context) error
	Close() error
}
