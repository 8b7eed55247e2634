package gate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unlockstudio/internal/domain"
)

func sequentialTokens() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}
}

func newTestGate(t *testing.T, artifacts int) *Gate {
	t.Helper()
	g := New(Options{NewToken: sequentialTokens()})
	batch := make([]domain.Artifact, artifacts)
	for i := range batch {
		batch[i] = domain.Artifact{PreviewURL: fmt.Sprintf("https://cdn.example.com/%d.png", i)}
	}
	g.Reset(batch)
	return g
}

func unlock(t *testing.T, g *Gate, index int) {
	t.Helper()
	outcome, sess, err := g.RequestUnlock(index)
	require.NoError(t, err)
	require.Equal(t, OutcomePaymentPending, outcome)
	orderID := fmt.Sprintf("ORDER-%s-%d", sess.Batch, index)
	require.NoError(t, g.AttachOrder(sess.Batch, index, orderID))
	_, err = g.PaymentSucceeded(sess.Batch, orderID)
	require.NoError(t, err)
}

func TestNewArtifactsStartLocked(t *testing.T) {
	g := newTestGate(t, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, domain.StateLocked, g.StateOf(i))
	}
	assert.Equal(t, "$0.80", g.Price().String())
}

func TestResetNormalizesIndicesAndURLs(t *testing.T) {
	g := New(Options{})
	g.Reset([]domain.Artifact{{Index: 7, PreviewURL: "data:image/png;base64,AA=="}})
	got := g.Artifacts()
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, got[0].PreviewURL, got[0].FullURL)
}

func TestUnlockFlow(t *testing.T) {
	g := newTestGate(t, 2)

	outcome, sess, err := g.RequestUnlock(0)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaymentPending, outcome)
	assert.Equal(t, 0, sess.TargetIndex)
	assert.Equal(t, domain.StatePendingPayment, g.StateOf(0))
	require.NoError(t, g.AttachOrder(sess.Batch, 0, "ORDER-1"))

	done, err := g.PaymentSucceeded(sess.Batch, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, 0, done.TargetIndex)
	assert.Equal(t, domain.StateUnlocked, g.StateOf(0))
	assert.Equal(t, domain.StateLocked, g.StateOf(1))

	_, open := g.Pending()
	assert.False(t, open, "modal closes after success")
}

func TestCancelLeavesArtifactLocked(t *testing.T) {
	g := newTestGate(t, 2)
	_, _, err := g.RequestUnlock(1)
	require.NoError(t, err)

	g.Cancel()

	assert.Equal(t, domain.StateLocked, g.StateOf(1))
	assert.Empty(t, g.Snapshot().Unlocked)
	_, open := g.Pending()
	assert.False(t, open)
}

func TestRequestUnlockOnUnlockedIndexIsNoop(t *testing.T) {
	g := newTestGate(t, 2)
	unlock(t, g, 1)

	outcome, _, err := g.RequestUnlock(1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyUnlocked, outcome)
	_, open := g.Pending()
	assert.False(t, open, "no payment session for an unlocked index")
}

func TestSingleActiveSessionLastRequestWins(t *testing.T) {
	g := newTestGate(t, 3)
	_, _, err := g.RequestUnlock(0)
	require.NoError(t, err)
	_, _, err = g.RequestUnlock(2)
	require.NoError(t, err)

	pending, open := g.Pending()
	require.True(t, open)
	assert.Equal(t, 2, pending.TargetIndex)

	pendingCount := 0
	for _, a := range g.Snapshot().Artifacts {
		if a.State == domain.StatePendingPayment {
			pendingCount++
		}
	}
	assert.Equal(t, 1, pendingCount)

	require.NoError(t, g.AttachOrder(pending.Batch, 2, "ORDER-2"))
	_, err = g.PaymentSucceeded(pending.Batch, "ORDER-2")
	require.NoError(t, err)
	assert.True(t, g.IsUnlocked(2))
	assert.False(t, g.IsUnlocked(0))
}

func TestBatchResetClearsUnlocksAndSession(t *testing.T) {
	g := newTestGate(t, 2)
	unlock(t, g, 0)
	_, _, err := g.RequestUnlock(1)
	require.NoError(t, err)

	g.Reset([]domain.Artifact{{PreviewURL: "a"}, {PreviewURL: "b"}})

	assert.Empty(t, g.Snapshot().Unlocked)
	assert.Equal(t, domain.StateLocked, g.StateOf(0))
	assert.Equal(t, domain.StateLocked, g.StateOf(1))
	_, open := g.Pending()
	assert.False(t, open)
}

func TestBatchIsolationAcrossGenerations(t *testing.T) {
	g := newTestGate(t, 3)
	for gen := 0; gen < 4; gen++ {
		before := g.Batch()
		unlock(t, g, gen%3)
		require.Len(t, g.Snapshot().Unlocked, 1)

		g.Reset(g.Artifacts())
		assert.NotEqual(t, before, g.Batch())
		assert.Empty(t, g.Snapshot().Unlocked, "generation %d leaked unlock state", gen)
	}
}

func TestStalePaymentCallbackIsRejected(t *testing.T) {
	g := newTestGate(t, 2)
	_, sess, err := g.RequestUnlock(0)
	require.NoError(t, err)
	require.NoError(t, g.AttachOrder(sess.Batch, 0, "ORDER-1"))

	g.Begin()
	g.Install(g.Batch(), []domain.Artifact{{PreviewURL: "x"}, {PreviewURL: "y"}})

	_, err = g.PaymentSucceeded(sess.Batch, "ORDER-1")
	assert.ErrorIs(t, err, domain.ErrStalePayment)
	assert.Empty(t, g.Snapshot().Unlocked)
}

func TestStaleCallbackDoesNotConsumeNewSession(t *testing.T) {
	g := newTestGate(t, 2)
	_, old, err := g.RequestUnlock(0)
	require.NoError(t, err)
	g.Reset([]domain.Artifact{{PreviewURL: "x"}, {PreviewURL: "y"}})
	_, fresh, err := g.RequestUnlock(0)
	require.NoError(t, err)

	_, err = g.PaymentSucceeded(old.Batch, old.OrderID)
	require.ErrorIs(t, err, domain.ErrStalePayment)

	pending, open := g.Pending()
	require.True(t, open)
	assert.Equal(t, fresh.Batch, pending.Batch)
	assert.False(t, g.IsUnlocked(0))
}

func TestPaymentSucceededWithoutSession(t *testing.T) {
	g := newTestGate(t, 1)
	_, err := g.PaymentSucceeded(g.Batch(), "ORDER-1")
	assert.ErrorIs(t, err, domain.ErrNoPaymentSession)
}

func TestInstallIgnoresSupersededBatch(t *testing.T) {
	g := New(Options{NewToken: sequentialTokens()})
	first := g.Begin()
	second := g.Begin()

	_, ok := g.Install(first, []domain.Artifact{{PreviewURL: "old"}})
	assert.False(t, ok)
	installed, ok := g.Install(second, []domain.Artifact{{PreviewURL: "new"}})
	assert.True(t, ok)
	assert.NotEqual(t, second, installed, "installed artifacts get their own batch token")
	assert.Equal(t, installed, g.Batch())
	require.Len(t, g.Artifacts(), 1)
	assert.Equal(t, "new", g.Artifacts()[0].PreviewURL)
	assert.False(t, g.Generating())
}

func TestRequestUnlockRefusedWhileGenerating(t *testing.T) {
	g := newTestGate(t, 2)
	batch := g.Begin()
	require.True(t, g.Generating())

	_, _, err := g.RequestUnlock(0)
	require.ErrorIs(t, err, domain.ErrGenerating)
	_, open := g.Pending()
	assert.False(t, open)

	_, err = g.PaymentSucceeded(batch, "")
	assert.ErrorIs(t, err, domain.ErrNoPaymentSession)
}

func TestInstallClearsUnlocksOpenedAgainstPreviousArtifacts(t *testing.T) {
	g := newTestGate(t, 2)
	batch := g.Begin()
	// Bypass the generating guard to model a session that slipped in before
	// the new artifacts arrived.
	g.mu.Lock()
	g.generating = false
	g.mu.Unlock()
	unlock(t, g, 0)
	_, _, err := g.RequestUnlock(1)
	require.NoError(t, err)

	g.mu.Lock()
	g.generating = true
	g.mu.Unlock()
	_, ok := g.Install(batch, []domain.Artifact{{PreviewURL: "new-0"}, {PreviewURL: "new-1"}})
	require.True(t, ok)

	assert.Empty(t, g.Snapshot().Unlocked)
	_, open := g.Pending()
	assert.False(t, open)
	assert.Equal(t, domain.StateLocked, g.StateOf(0))
}

func TestAbortKeepsPreviousArtifactsLocked(t *testing.T) {
	g := newTestGate(t, 2)
	unlock(t, g, 1)
	stale := g.Begin()
	newer := g.Begin()

	assert.False(t, g.Abort(stale), "superseded request cannot end the newer generation")
	assert.True(t, g.Generating())
	require.True(t, g.Abort(newer))

	require.Len(t, g.Artifacts(), 2)
	assert.False(t, g.IsUnlocked(1))
	outcome, _, err := g.RequestUnlock(1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaymentPending, outcome)
}

func TestPaymentSucceededRequiresAttachedOrder(t *testing.T) {
	g := newTestGate(t, 2)
	_, sess, err := g.RequestUnlock(0)
	require.NoError(t, err)

	_, err = g.PaymentSucceeded(sess.Batch, "")
	require.ErrorIs(t, err, domain.ErrStalePayment, "no order attached yet")

	require.NoError(t, g.AttachOrder(sess.Batch, 0, "ORDER-9"))
	_, err = g.PaymentSucceeded(sess.Batch, "ORDER-forged")
	require.ErrorIs(t, err, domain.ErrStalePayment)
	_, err = g.PaymentSucceeded(sess.Batch, "")
	require.ErrorIs(t, err, domain.ErrStalePayment)
	assert.Equal(t, domain.StatePendingPayment, g.StateOf(0), "a rejected callback leaves the session open")

	_, err = g.PaymentSucceeded(sess.Batch, "ORDER-9")
	require.NoError(t, err)
	assert.True(t, g.IsUnlocked(0))
}

func TestRequestUnlockOutOfRange(t *testing.T) {
	g := newTestGate(t, 1)
	_, _, err := g.RequestUnlock(5)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	_, _, err = g.RequestUnlock(-1)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}

func TestAttachOrder(t *testing.T) {
	g := newTestGate(t, 2)
	_, sess, err := g.RequestUnlock(1)
	require.NoError(t, err)

	require.NoError(t, g.AttachOrder(sess.Batch, 1, "ORDER-1"))
	pending, _ := g.Pending()
	assert.Equal(t, "ORDER-1", pending.OrderID)

	assert.ErrorIs(t, g.AttachOrder(sess.Batch, 0, "ORDER-2"), domain.ErrStalePayment)
	g.Cancel()
	assert.ErrorIs(t, g.AttachOrder(sess.Batch, 1, "ORDER-3"), domain.ErrNoPaymentSession)
}

func TestCancelSessionOnlyClosesMatchingSession(t *testing.T) {
	g := newTestGate(t, 2)
	_, first, err := g.RequestUnlock(0)
	require.NoError(t, err)
	_, second, err := g.RequestUnlock(1)
	require.NoError(t, err)

	assert.False(t, g.CancelSession(first.Batch, first.TargetIndex), "replaced session is not closed again")
	assert.Equal(t, domain.StatePendingPayment, g.StateOf(1))

	assert.True(t, g.CancelSession(second.Batch, second.TargetIndex))
	assert.Equal(t, domain.StateLocked, g.StateOf(1))
}
