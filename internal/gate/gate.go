// Package gate implements the per-image paywall. Every artifact of the current
// batch starts LOCKED; a single payment session (one modal) moves one index to
// PENDING_PAYMENT, and a success callback carrying the session's order id moves
// it to UNLOCKED. A new batch discards all unlocks and any open session.
package gate

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"unlockstudio/internal/domain"
)

// Outcome is the result of an unlock request.
type Outcome int

const (
	// OutcomePaymentPending means a payment session was opened (or replaced).
	OutcomePaymentPending Outcome = iota
	// OutcomeAlreadyUnlocked means the index needs no payment.
	OutcomeAlreadyUnlocked
)

func (o Outcome) String() string {
	if o == OutcomeAlreadyUnlocked {
		return "already_unlocked"
	}
	return "payment_pending"
}

// Options configures a Gate.
type Options struct {
	Price    domain.Price
	Fetcher  Fetcher
	Logger   *zerolog.Logger
	Now      func() time.Time
	NewToken func() string
}

// Gate tracks unlock state for one widget instance.
type Gate struct {
	mu        sync.Mutex
	price     domain.Price
	fetcher   Fetcher
	logger    zerolog.Logger
	now       func() time.Time
	newToken  func() string
	batch     string
	artifacts []domain.Artifact
	unlocked  map[int]struct{}
	session   *domain.PaymentSession

	// generating is set between Begin and Install or Abort; no unlock may
	// start while the artifacts on display are about to be replaced.
	generating bool
}

// New returns a gate with an empty initial batch.
func New(opts Options) *Gate {
	g := &Gate{
		price:    opts.Price,
		fetcher:  opts.Fetcher,
		now:      opts.Now,
		newToken: opts.NewToken,
		unlocked: make(map[int]struct{}),
	}
	if g.price.Cents <= 0 {
		g.price = domain.DefaultPrice()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.newToken == nil {
		g.newToken = uuid.NewString
	}
	if opts.Logger != nil {
		g.logger = *opts.Logger
	} else {
		g.logger = zerolog.New(io.Discard)
	}
	g.batch = g.newToken()
	return g
}

// Price returns the per-unlock price.
func (g *Gate) Price() domain.Price {
	return g.price
}

// Begin resets the gate for a newly submitted generation request. The prior
// artifacts stay visible but every index is locked again, any open payment
// session is dropped and unlock requests are refused until Install or Abort.
func (g *Gate) Begin() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	g.generating = true
	return g.batch
}

// Reset installs a new artifact batch, clearing all unlock state.
func (g *Gate) Reset(artifacts []domain.Artifact) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	g.generating = false
	g.artifacts = normalizeArtifacts(artifacts)
	return g.batch
}

// Install replaces the artifacts started by Begin under a fresh batch token,
// so nothing opened against the previous artifacts carries over. It reports
// false when a newer batch has started in the meantime.
func (g *Gate) Install(batch string, artifacts []domain.Artifact) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if batch != g.batch {
		return "", false
	}
	g.resetLocked()
	g.generating = false
	g.artifacts = normalizeArtifacts(artifacts)
	return g.batch, true
}

// Abort ends the generation started by Begin without new artifacts. The
// previous artifacts stay, locked, and may be unlocked again.
func (g *Gate) Abort(batch string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if batch != g.batch {
		return false
	}
	g.generating = false
	return true
}

// Generating reports whether a generation is between Begin and Install.
func (g *Gate) Generating() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generating
}

func (g *Gate) resetLocked() {
	if g.session != nil {
		g.logger.Debug().Str("batch", g.batch).Int("index", g.session.TargetIndex).Msg("gate: discarding payment session on batch reset")
	}
	g.batch = g.newToken()
	g.unlocked = make(map[int]struct{})
	g.session = nil
}

func normalizeArtifacts(in []domain.Artifact) []domain.Artifact {
	out := make([]domain.Artifact, len(in))
	for i, a := range in {
		a.Index = i
		if a.FullURL == "" {
			a.FullURL = a.PreviewURL
		}
		if a.PreviewURL == "" {
			a.PreviewURL = a.FullURL
		}
		out[i] = a
	}
	return out
}

// Batch returns the current batch token.
func (g *Gate) Batch() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batch
}

// Artifacts returns a copy of the current batch.
func (g *Gate) Artifacts() []domain.Artifact {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Artifact(nil), g.artifacts...)
}

// Artifact returns the artifact at index.
func (g *Gate) Artifact(index int) (domain.Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkIndexLocked(index); err != nil {
		return domain.Artifact{}, err
	}
	return g.artifacts[index], nil
}

func (g *Gate) checkIndexLocked(index int) error {
	if index < 0 || index >= len(g.artifacts) {
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
	}
	return nil
}

// RequestUnlock opens a payment session for index. An already unlocked index
// returns OutcomeAlreadyUnlocked without touching the session. A pending
// session for another index is replaced.
func (g *Gate) RequestUnlock(index int) (Outcome, domain.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generating {
		return OutcomePaymentPending, domain.PaymentSession{}, domain.ErrGenerating
	}
	if err := g.checkIndexLocked(index); err != nil {
		return OutcomePaymentPending, domain.PaymentSession{}, err
	}
	if _, ok := g.unlocked[index]; ok {
		return OutcomeAlreadyUnlocked, domain.PaymentSession{}, nil
	}
	if g.session != nil && g.session.TargetIndex != index {
		g.logger.Debug().Str("batch", g.batch).Int("previous", g.session.TargetIndex).Int("index", index).Msg("gate: replacing payment session")
	}
	g.session = &domain.PaymentSession{
		TargetIndex: index,
		Batch:       g.batch,
		Price:       g.price,
		OpenedAt:    g.now(),
	}
	return OutcomePaymentPending, *g.session, nil
}

// AttachOrder records the provider order on the pending session for index.
func (g *Gate) AttachOrder(batch string, index int, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return domain.ErrNoPaymentSession
	}
	if g.session.Batch != batch || g.session.TargetIndex != index {
		return domain.ErrStalePayment
	}
	g.session.OrderID = orderID
	return nil
}

// Pending returns the open payment session, if any.
func (g *Gate) Pending() (domain.PaymentSession, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return domain.PaymentSession{}, false
	}
	return *g.session, true
}

// PaymentSucceeded applies a success callback for the pending session. The
// callback's batch token must match the current batch and orderID must be the
// provider order attached to the session; otherwise nothing changes.
func (g *Gate) PaymentSucceeded(batch, orderID string) (domain.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if batch != g.batch {
		return domain.PaymentSession{}, domain.ErrStalePayment
	}
	if g.session == nil {
		return domain.PaymentSession{}, domain.ErrNoPaymentSession
	}
	sess := *g.session
	if sess.OrderID == "" || orderID != sess.OrderID {
		g.logger.Warn().Str("batch", g.batch).Int("index", sess.TargetIndex).Str("order_id", orderID).Msg("gate: payment callback order mismatch")
		return domain.PaymentSession{}, domain.ErrStalePayment
	}
	if sess.Batch != g.batch {
		g.session = nil
		return domain.PaymentSession{}, domain.ErrStalePayment
	}
	if err := g.checkIndexLocked(sess.TargetIndex); err != nil {
		g.session = nil
		return domain.PaymentSession{}, err
	}
	g.unlocked[sess.TargetIndex] = struct{}{}
	g.session = nil
	g.logger.Info().Str("batch", g.batch).Int("index", sess.TargetIndex).Str("order_id", sess.OrderID).Msg("gate: artifact unlocked")
	return sess, nil
}

// Cancel closes the payment modal. The target stays locked.
func (g *Gate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = nil
}

// CancelSession closes the session only if it still targets index in batch,
// so a failed order cannot close a newer session.
func (g *Gate) CancelSession(batch string, index int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil || g.session.Batch != batch || g.session.TargetIndex != index {
		return false
	}
	g.session = nil
	return true
}

// IsUnlocked reports whether index is unlocked in the current batch.
func (g *Gate) IsUnlocked(index int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.unlocked[index]
	return ok
}

// StateOf returns the paywall state of index.
func (g *Gate) StateOf(index int) domain.UnlockState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked(index)
}

func (g *Gate) stateLocked(index int) domain.UnlockState {
	if _, ok := g.unlocked[index]; ok {
		return domain.StateUnlocked
	}
	if g.session != nil && g.session.TargetIndex == index {
		return domain.StatePendingPayment
	}
	return domain.StateLocked
}

// ArtifactView is one artifact with its rendering state.
type ArtifactView struct {
	domain.Artifact
	State  domain.UnlockState `json:"state"`
	Locked bool               `json:"locked"`
}

// Snapshot is a consistent copy of the gate state.
type Snapshot struct {
	Batch     string                 `json:"batch"`
	Price     domain.Price           `json:"price"`
	Artifacts []ArtifactView         `json:"artifacts"`
	Unlocked  []int                  `json:"unlocked"`
	Pending   *domain.PaymentSession `json:"pending,omitempty"`
}

// Snapshot returns the full gate state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := Snapshot{
		Batch:     g.batch,
		Price:     g.price,
		Artifacts: make([]ArtifactView, 0, len(g.artifacts)),
		Unlocked:  make([]int, 0, len(g.unlocked)),
	}
	for _, a := range g.artifacts {
		state := g.stateLocked(a.Index)
		snap.Artifacts = append(snap.Artifacts, ArtifactView{Artifact: a, State: state, Locked: state != domain.StateUnlocked})
		if state == domain.StateUnlocked {
			snap.Unlocked = append(snap.Unlocked, a.Index)
		}
	}
	if g.session != nil {
		sess := *g.session
		snap.Pending = &sess
	}
	return snap
}
