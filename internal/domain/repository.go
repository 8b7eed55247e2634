package domain

import "context"

// UnlockLedger persists successful unlocks keyed by widget and batch.
type UnlockLedger interface {
	Record(ctx context.Context, rec UnlockRecord) error
	ListByWidget(ctx context.Context, widgetID string) ([]UnlockRecord, error)
}
