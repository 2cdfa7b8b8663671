package table

import (
	"context"

	"finance/internal/core"
)

// Ports for the ledger backing table. Every adapter stores the canonical
// columns (core.Columns) and nothing else.
type (
	// Reader loads every persisted row. It returns an error wrapping
	// core.ErrNotFound when the table does not exist.
	Reader interface {
		ReadAll(ctx context.Context) ([]core.Record, error)
	}

	// SessionReader returns the newest session token recorded in the table.
	SessionReader interface {
		LatestSession(ctx context.Context) (core.SessionToken, error)
	}

	// Writer overwrites the whole table with rows.
	Writer interface {
		ReplaceAll(ctx context.Context, rows []core.Record) error
	}

	// Initializer creates an empty table when none exists yet.
	Initializer interface {
		CreateIfMissing(ctx context.Context) (created bool, err error)
	}

	Store interface {
		Reader
		SessionReader
		Writer
		Initializer
	}
)
