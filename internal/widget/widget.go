package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/gate"
	"unlockstudio/internal/generator"
	"unlockstudio/internal/infra"
	"unlockstudio/internal/paypal"
	"unlockstudio/internal/preview"
	"unlockstudio/internal/slider"
	"unlockstudio/pkg/zip"
)

// Input is a generation form submission.
type Input struct {
	Prompt    string `json:"prompt"`
	Style     string `json:"style"`
	Username  string `json:"username"`
	InitImage string `json:"init_image"`
	Size      string `json:"size"`
	Locale    string `json:"-"`
}

// UnlockResult tells the caller what to do after an unlock request.
type UnlockResult struct {
	Outcome     gate.Outcome          `json:"-"`
	Status      string                `json:"status"`
	ApprovalURL string                `json:"approval_url,omitempty"`
	Session     domain.PaymentSession `json:"session"`
}

// DownloadResult is either a file or, for a locked artifact, the unlock flow.
type DownloadResult struct {
	Blob   *gate.Blob
	Unlock *UnlockResult
}

// SliderEvent is a pointer or touch event on the comparison slider.
type SliderEvent struct {
	Action  string      `json:"action"`
	X       float64     `json:"x"`
	Rect    slider.Rect `json:"rect"`
	Percent float64     `json:"percent"`
}

// State is a consistent view of a widget.
type State struct {
	ID         string        `json:"id"`
	Mode       domain.Mode   `json:"mode"`
	Gate       gate.Snapshot `json:"gate"`
	Notice     domain.Notice `json:"notice"`
	Percent    float64       `json:"percent"`
	Dragging   bool          `json:"dragging"`
	Generating bool          `json:"generating"`
	BeforeURL  string        `json:"before_url,omitempty"`
}

// Widget is one generator instance.
type Widget struct {
	ID   string
	Mode domain.Mode

	opts   Options
	logger infra.Logger
	gate   *gate.Gate
	slider *slider.Slider
	doc    *slider.Hub

	mu         sync.Mutex
	notice     domain.Notice
	cancel     context.CancelFunc
	generating bool
	beforeURL  string
	seen       time.Time
	previews   map[string][]byte
}

func newWidget(id string, mode domain.Mode, opts Options, logger infra.Logger) *Widget {
	l := logger.With().Str("widget_id", id).Logger()
	w := &Widget{
		ID:     id,
		Mode:   mode,
		opts:   opts,
		logger: l,
		gate: gate.New(gate.Options{
			Price:    opts.Price,
			Fetcher:  opts.Fetcher,
			Logger:   &l,
			Now:      opts.Now,
			NewToken: uuid.NewString,
		}),
		slider:   slider.New(slider.DefaultPercent),
		doc:      slider.NewHub(),
		seen:     opts.Now(),
		previews: make(map[string][]byte),
	}
	w.slider.Mount(w.doc)
	return w
}

func (w *Widget) touch() {
	w.mu.Lock()
	w.seen = w.opts.Now()
	w.mu.Unlock()
}

func (w *Widget) lastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen
}

func (w *Widget) close() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.slider.Unmount()
}

// Gate exposes the widget's unlock gate.
func (w *Widget) Gate() *gate.Gate { return w.gate }

// State returns the current widget state.
func (w *Widget) State() State {
	w.mu.Lock()
	notice, generating, before := w.notice, w.generating, w.beforeURL
	w.mu.Unlock()
	return State{
		ID:         w.ID,
		Mode:       w.Mode,
		Gate:       w.gate.Snapshot(),
		Notice:     notice,
		Percent:    w.slider.Percent(),
		Dragging:   w.slider.Dragging(),
		Generating: generating,
		BeforeURL:  before,
	}
}

func (w *Widget) setNotice(err error) {
	n := domain.NoticeFor(err)
	w.mu.Lock()
	w.notice = n
	w.mu.Unlock()
}

// DismissNotice clears the current notice.
func (w *Widget) DismissNotice() {
	w.mu.Lock()
	w.notice = domain.Notice{}
	w.mu.Unlock()
}

// Submit runs one generation. The gate is reset before the request is sent,
// so earlier artifacts stay visible but locked. A newer Submit cancels this
// one; a superseded result is discarded with ErrGenerationBusy.
func (w *Widget) Submit(ctx context.Context, in Input) (State, error) {
	prompt, err := generator.BuildPrompt(generator.PromptInput{
		Mode:     w.Mode,
		Prompt:   in.Prompt,
		Style:    in.Style,
		Username: in.Username,
		Locale:   in.Locale,
	})
	if err != nil {
		return w.State(), err
	}
	if w.Mode == domain.ModeImageToImage && strings.TrimSpace(in.InitImage) == "" {
		return w.State(), domain.ErrInvalidPrompt
	}
	if w.opts.Generator == nil {
		return w.State(), errors.New("widget: no generator configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	batch := w.gate.Begin()
	prev := w.cancel
	w.cancel = cancel
	w.generating = true
	w.notice = domain.Notice{}
	if w.Mode == domain.ModeImageToImage {
		w.beforeURL = strings.TrimSpace(in.InitImage)
	}
	w.mu.Unlock()
	if prev != nil {
		prev()
	}

	mode := w.Mode
	if mode == domain.ModeAvatar {
		mode = domain.ModeTextToImage
	}
	start := time.Now()
	artifacts, genErr := w.opts.Generator.Generate(runCtx, generator.Request{
		Mode:      mode,
		Prompt:    prompt,
		Size:      in.Size,
		InitImage: in.InitImage,
	})

	// Begin and completion both hold w.mu.
	w.mu.Lock()
	var installed string
	current := false
	if genErr == nil {
		installed, current = w.gate.Install(batch, artifacts)
	} else {
		current = w.gate.Abort(batch)
	}
	if current {
		w.cancel = nil
		w.generating = false
	}
	w.mu.Unlock()
	cancel()

	if !current {
		w.logger.Debug().Str("batch", batch).Err(genErr).Msg("widget: discarding superseded generation")
		return w.State(), domain.ErrGenerationBusy
	}
	if genErr != nil {
		w.logger.Warn().Err(genErr).Str("kind", string(domain.KindOf(genErr))).Dur("took", time.Since(start)).Msg("widget: generation failed")
		w.setNotice(genErr)
		return w.State(), genErr
	}
	w.logger.Info().Str("batch", installed).Int("artifacts", len(artifacts)).Dur("took", time.Since(start)).Msg("widget: generation complete")
	return w.State(), nil
}

// Unlock starts payment for index. An unlocked index needs no payment; a
// failed order closes the session and leaves the artifact locked.
func (w *Widget) Unlock(ctx context.Context, index int) (UnlockResult, error) {
	outcome, sess, err := w.gate.RequestUnlock(index)
	if err != nil {
		return UnlockResult{}, err
	}
	if outcome == gate.OutcomeAlreadyUnlocked {
		return UnlockResult{Outcome: outcome, Status: outcome.String()}, nil
	}
	if w.opts.Payments == nil {
		w.gate.CancelSession(sess.Batch, index)
		err := domain.NewError(domain.KindPaymentInitiation, "payments are not configured", nil)
		w.setNotice(err)
		return UnlockResult{}, err
	}
	order, err := w.opts.Payments.CreateOrder(ctx, paypal.OrderRequest{
		Index:     index,
		Batch:     sess.Batch,
		Price:     sess.Price,
		ReturnURL: w.callbackURL("payment/success", sess.Batch),
		CancelURL: w.callbackURL("payment/cancel", sess.Batch),
	})
	if err != nil {
		w.gate.CancelSession(sess.Batch, index)
		if !domain.IsKind(err, domain.KindPaymentInitiation) {
			err = domain.NewError(domain.KindPaymentInitiation, "could not start payment", err)
		}
		w.logger.Warn().Err(err).Int("index", index).Msg("widget: payment initiation failed")
		w.setNotice(err)
		return UnlockResult{}, err
	}
	if err := w.gate.AttachOrder(sess.Batch, index, order.ID); err != nil {
		// Session was replaced or the batch reset while the order was created.
		return UnlockResult{}, err
	}
	sess.OrderID = order.ID
	return UnlockResult{Outcome: outcome, Status: outcome.String(), ApprovalURL: order.ApprovalURL, Session: sess}, nil
}

func (w *Widget) callbackURL(action, batch string) string {
	base := strings.TrimRight(w.opts.PublicBaseURL, "/")
	return fmt.Sprintf("%s/v1/widgets/%s/%s?batch=%s", base, w.ID, action, url.QueryEscape(batch))
}

// PaymentSucceeded applies a success callback and records it in the ledger.
// orderID is the provider order the callback names. Ledger failures are
// logged; the gate state stays authoritative.
func (w *Widget) PaymentSucceeded(ctx context.Context, batch, orderID string) (domain.PaymentSession, error) {
	sess, err := w.gate.PaymentSucceeded(batch, orderID)
	if err != nil {
		w.logger.Warn().Err(err).Str("batch", batch).Str("order_id", orderID).Msg("widget: payment callback rejected")
		return domain.PaymentSession{}, err
	}
	if w.opts.Ledger != nil {
		rec := domain.UnlockRecord{
			ID:         uuid.NewString(),
			WidgetID:   w.ID,
			Batch:      sess.Batch,
			Index:      sess.TargetIndex,
			OrderID:    sess.OrderID,
			PriceCents: sess.Price.Cents,
			Currency:   sess.Price.Currency,
			CreatedAt:  w.opts.Now(),
		}
		if err := w.opts.Ledger.Record(ctx, rec); err != nil {
			w.logger.Error().Err(err).Int("index", sess.TargetIndex).Msg("widget: ledger record failed")
		}
	}
	return sess, nil
}

// CancelPayment closes the payment modal.
func (w *Widget) CancelPayment() {
	w.gate.Cancel()
}

// Download returns the full image for an unlocked index, or starts the unlock
// flow for a locked one.
func (w *Widget) Download(ctx context.Context, index int) (DownloadResult, error) {
	blob, err := w.gate.Download(ctx, index)
	if errors.Is(err, domain.ErrArtifactLocked) {
		res, err := w.Unlock(ctx, index)
		if err != nil {
			return DownloadResult{}, err
		}
		return DownloadResult{Unlock: &res}, nil
	}
	if err != nil {
		w.logger.Warn().Err(err).Int("index", index).Msg("widget: download failed")
		w.setNotice(err)
		return DownloadResult{}, err
	}
	return DownloadResult{Blob: &blob}, nil
}

// Preview returns the obscured WebP thumbnail for index. Rendered previews
// are memoized per batch.
func (w *Widget) Preview(ctx context.Context, index int) ([]byte, error) {
	batch := w.gate.Batch()
	art, err := w.gate.Artifact(index)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%d", batch, index)
	w.mu.Lock()
	cached, ok := w.previews[key]
	w.mu.Unlock()
	if ok {
		return cached, nil
	}

	src := art.PreviewURL
	var data []byte
	if domain.IsDataURI(src) {
		_, data, err = gate.DecodeDataURI(src)
	} else if w.opts.Fetcher != nil {
		var blob gate.Blob
		blob, err = w.opts.Fetcher.Fetch(ctx, src)
		data = blob.Data
	} else {
		err = errors.New("widget: no fetcher configured")
	}
	if err != nil {
		return nil, fmt.Errorf("widget: load preview source: %w", err)
	}
	out, err := preview.Render(data, w.opts.Preview)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	for k := range w.previews {
		if !strings.HasPrefix(k, batch+"/") {
			delete(w.previews, k)
		}
	}
	if w.gate.Batch() == batch {
		w.previews[key] = out
	}
	w.mu.Unlock()
	return out, nil
}

// Archive zips every unlocked artifact of the current batch.
func (w *Widget) Archive(ctx context.Context) ([]byte, error) {
	snap := w.gate.Snapshot()
	if len(snap.Unlocked) == 0 {
		return nil, domain.ErrArtifactLocked
	}
	entries := make([]zip.Entry, 0, len(snap.Unlocked))
	for _, idx := range snap.Unlocked {
		blob, err := w.gate.Download(ctx, idx)
		if err != nil {
			w.setNotice(err)
			return nil, err
		}
		entries = append(entries, zip.Entry{Filename: blob.Filename, Data: blob.Data})
	}
	return zip.Archive(entries, w.opts.Now())
}

// Slider applies a slider event and returns the new boundary position.
func (w *Widget) Slider(ev SliderEvent) (float64, error) {
	switch strings.ToLower(ev.Action) {
	case "start", "pointerdown", "touchstart":
		w.slider.DragStart(ev.X, ev.Rect)
	case "move", "pointermove", "touchmove":
		w.slider.DragMove(ev.X, ev.Rect)
	case "end", "pointerup", "touchend", "release":
		w.doc.Release()
	case "jump":
		w.slider.Jump(ev.Percent)
	default:
		return w.slider.Percent(), fmt.Errorf("widget: unknown slider action %q", ev.Action)
	}
	return w.slider.Percent(), nil
}

// Unlocks lists the recorded unlocks of this widget.
func (w *Widget) Unlocks(ctx context.Context) ([]domain.UnlockRecord, error) {
	if w.opts.Ledger == nil {
		return nil, nil
	}
	return w.opts.Ledger.ListByWidget(ctx, w.ID)
}
