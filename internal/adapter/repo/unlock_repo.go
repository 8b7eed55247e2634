package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/infra"
	"unlockstudio/internal/sqlinline"
)

func validateRecord(rec domain.UnlockRecord) error {
	switch {
	case rec.ID == "":
		return errors.New("repo: unlock id is required")
	case rec.WidgetID == "":
		return errors.New("repo: widget id is required")
	case rec.Batch == "":
		return errors.New("repo: batch is required")
	case rec.Index < 0:
		return domain.ErrIndexOutOfRange
	}
	return nil
}

// MemoryUnlockLedger keeps unlock records in process memory.
type MemoryUnlockLedger struct {
	mu      sync.RWMutex
	records map[string][]domain.UnlockRecord
}

// NewMemoryUnlockLedger returns an empty ledger.
func NewMemoryUnlockLedger() *MemoryUnlockLedger {
	return &MemoryUnlockLedger{records: make(map[string][]domain.UnlockRecord)}
}

// Record stores rec. A second record for the same widget, batch and index is
// ignored.
func (l *MemoryUnlockLedger) Record(ctx context.Context, rec domain.UnlockRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.records[rec.WidgetID] {
		if existing.Batch == rec.Batch && existing.Index == rec.Index {
			return nil
		}
	}
	l.records[rec.WidgetID] = append(l.records[rec.WidgetID], rec)
	return nil
}

// ListByWidget returns the records of widgetID, oldest first.
func (l *MemoryUnlockLedger) ListByWidget(ctx context.Context, widgetID string) ([]domain.UnlockRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := append([]domain.UnlockRecord(nil), l.records[widgetID]...)
	l.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Index < out[j].Index
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UnlockLedgerPG implements domain.UnlockLedger on PostgreSQL.
type UnlockLedgerPG struct {
	sql infra.SQLExecutor
}

// NewUnlockLedgerPG wraps a SQL executor.
func NewUnlockLedgerPG(sql infra.SQLExecutor) *UnlockLedgerPG {
	return &UnlockLedgerPG{sql: sql}
}

// Migrate creates the unlock table.
func (r *UnlockLedgerPG) Migrate(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateUnlocksTable); err != nil {
		return fmt.Errorf("repo: migrate unlocks: %w", err)
	}
	return nil
}

func (r *UnlockLedgerPG) Record(ctx context.Context, rec domain.UnlockRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertUnlock,
		rec.ID, rec.WidgetID, rec.Batch, rec.Index, rec.OrderID, rec.PriceCents, rec.Currency, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo: record unlock: %w", err)
	}
	return nil
}

func (r *UnlockLedgerPG) ListByWidget(ctx context.Context, widgetID string) ([]domain.UnlockRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUnlocksByWidget, widgetID)
	if err != nil {
		return nil, fmt.Errorf("repo: list unlocks: %w", err)
	}
	defer rows.Close()

	var items []domain.UnlockRecord
	for rows.Next() {
		var rec domain.UnlockRecord
		if err := rows.Scan(&rec.ID, &rec.WidgetID, &rec.Batch, &rec.Index, &rec.OrderID, &rec.PriceCents, &rec.Currency, &rec.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var (
	_ domain.UnlockLedger = (*MemoryUnlockLedger)(nil)
	_ domain.UnlockLedger = (*UnlockLedgerPG)(nil)
)
