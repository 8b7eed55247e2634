package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/sqlinline"
)

// UnlockLedgerSQLite implements domain.UnlockLedger on an embedded SQLite
// database for single-node deployments.
type UnlockLedgerSQLite struct {
	db *sql.DB
}

// NewUnlockLedgerSQLite wraps db.
func NewUnlockLedgerSQLite(db *sql.DB) *UnlockLedgerSQLite {
	return &UnlockLedgerSQLite{db: db}
}

// Migrate creates the unlock table.
func (r *UnlockLedgerSQLite) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlinline.QSQLiteCreateUnlocksTable); err != nil {
		return fmt.Errorf("repo: migrate unlocks: %w", err)
	}
	return nil
}

func (r *UnlockLedgerSQLite) Record(ctx context.Context, rec domain.UnlockRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, sqlinline.QSQLiteInsertUnlock,
		rec.ID, rec.WidgetID, rec.Batch, rec.Index, rec.OrderID, rec.PriceCents, rec.Currency, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("repo: record unlock: %w", err)
	}
	return nil
}

func (r *UnlockLedgerSQLite) ListByWidget(ctx context.Context, widgetID string) ([]domain.UnlockRecord, error) {
	rows, err := r.db.QueryContext(ctx, sqlinline.QSQLiteListUnlocksByWidget, widgetID)
	if err != nil {
		return nil, fmt.Errorf("repo: list unlocks: %w", err)
	}
	defer rows.Close()

	var items []domain.UnlockRecord
	for rows.Next() {
		var (
			rec     domain.UnlockRecord
			created time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.WidgetID, &rec.Batch, &rec.Index, &rec.OrderID, &rec.PriceCents, &rec.Currency, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created.UTC()
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.UnlockLedger = (*UnlockLedgerSQLite)(nil)
