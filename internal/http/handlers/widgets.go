package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/middleware"
	"unlockstudio/internal/view"
	"unlockstudio/internal/widget"
)

type createWidgetRequest struct {
	Mode string `json:"mode"`
}

type artifactResponse struct {
	Index       int                `json:"index"`
	State       domain.UnlockState `json:"state"`
	Locked      bool               `json:"locked"`
	PreviewURL  string             `json:"preview_url"`
	FullURL     string             `json:"full_url,omitempty"`
	DownloadURL string             `json:"download_url,omitempty"`
	UnlockURL   string             `json:"unlock_url,omitempty"`
}

type pendingResponse struct {
	Index   int    `json:"index"`
	Batch   string `json:"batch"`
	OrderID string `json:"order_id,omitempty"`
}

type noticeResponse struct {
	Kind       domain.ErrorKind `json:"kind"`
	Message    string           `json:"message"`
	DurationMS int64            `json:"duration_ms"`
}

type widgetResponse struct {
	ID           string             `json:"id"`
	Mode         domain.Mode        `json:"mode"`
	Batch        string             `json:"batch"`
	Price        domain.Price       `json:"price"`
	PriceDisplay string             `json:"price_display"`
	Artifacts    []artifactResponse `json:"artifacts"`
	Pending      *pendingResponse   `json:"pending,omitempty"`
	Notice       *noticeResponse    `json:"notice,omitempty"`
	Percent      float64            `json:"percent"`
	Dragging     bool               `json:"dragging"`
	Generating   bool               `json:"generating"`
	BeforeURL    string             `json:"before_url,omitempty"`
}

// newWidgetResponse shapes a widget state for the API. Locked artifacts only
// expose the blurred preview route.
func newWidgetResponse(st widget.State, locale string) widgetResponse {
	resp := widgetResponse{
		ID:           st.ID,
		Mode:         st.Mode,
		Batch:        st.Gate.Batch,
		Price:        st.Gate.Price,
		PriceDisplay: st.Gate.Price.Display(locale),
		Artifacts:    make([]artifactResponse, 0, len(st.Gate.Artifacts)),
		Percent:      st.Percent,
		Dragging:     st.Dragging,
		Generating:   st.Generating,
		BeforeURL:    st.BeforeURL,
	}
	for _, a := range st.Gate.Artifacts {
		item := artifactResponse{Index: a.Index, State: a.State, Locked: a.Locked}
		if a.Locked {
			item.PreviewURL = view.ArtifactPath(st.ID, a.Index, "preview")
			item.UnlockURL = view.ArtifactPath(st.ID, a.Index, "unlock")
		} else {
			item.PreviewURL = a.PreviewURL
			item.FullURL = a.FullURL
			item.DownloadURL = view.ArtifactPath(st.ID, a.Index, "download")
		}
		resp.Artifacts = append(resp.Artifacts, item)
	}
	if p := st.Gate.Pending; p != nil {
		resp.Pending = &pendingResponse{Index: p.TargetIndex, Batch: p.Batch, OrderID: p.OrderID}
	}
	if st.Notice.Kind != "" {
		resp.Notice = &noticeResponse{Kind: st.Notice.Kind, Message: st.Notice.Message, DurationMS: st.Notice.Duration.Milliseconds()}
	}
	return resp
}

func (a *App) CreateWidget(w http.ResponseWriter, r *http.Request) {
	var req createWidgetRequest
	if err := decode(w, r, &req, func(get func(string) string) { req.Mode = get("mode") }); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Mode == "" {
		req.Mode = r.URL.Query().Get("mode")
	}
	wg := a.Registry.Create(domain.NormalizeMode(req.Mode))
	if isForm(r) {
		seeOther(w, r, view.WidgetPath(wg.ID, "view"))
		return
	}
	w.Header().Set("Location", view.WidgetPath(wg.ID, ""))
	a.json(w, http.StatusCreated, newWidgetResponse(wg.State(), middleware.LocaleFromContext(r.Context())))
}

func (a *App) GetWidget(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, newWidgetResponse(wg.State(), middleware.LocaleFromContext(r.Context())))
}

func (a *App) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	a.Registry.Delete(wg.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ViewWidget renders the widget as an HTML page.
func (a *App) ViewWidget(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	st := wg.State()
	page := view.Page(view.PageProps{
		WidgetID:   st.ID,
		Mode:       st.Mode,
		Snapshot:   st.Gate,
		Notice:     st.Notice,
		Percent:    st.Percent,
		BeforeURL:  st.BeforeURL,
		Generating: st.Generating,
		Locale:     middleware.LocaleFromContext(r.Context()),
		Viewer:     middleware.ViewerFromContext(r.Context()),
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := page.Render(w); err != nil {
		a.Logger.Error().Err(err).Str("widget_id", st.ID).Msg("render widget failed")
	}
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var in widget.Input
	err := decode(w, r, &in, func(get func(string) string) {
		in.Prompt = get("prompt")
		in.Style = get("style")
		in.Username = get("username")
		in.InitImage = get("init_image")
		in.Size = get("size")
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	in.Locale = locale

	st, err := wg.Submit(r.Context(), in)
	if isForm(r) {
		seeOther(w, r, view.WidgetPath(wg.ID, "view"))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newWidgetResponse(st, locale))
}

// DismissNotice clears the widget notice once its display duration elapsed.
func (a *App) DismissNotice(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	wg.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Slider(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var ev widget.SliderEvent
	err := decode(w, r, &ev, func(get func(string) string) {
		ev.Action = get("action")
		ev.Percent, _ = strconv.ParseFloat(get("percent"), 64)
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	percent, err := wg.Slider(ev)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if isForm(r) {
		seeOther(w, r, view.WidgetPath(wg.ID, "view"))
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"percent":  percent,
		"dragging": wg.State().Dragging,
	})
}

func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	data, err := wg.Archive(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrArtifactLocked) {
			a.error(w, http.StatusPaymentRequired, "artifact_locked", "no unlocked images to archive")
			return
		}
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="generated-images.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

type unlockRecordResponse struct {
	Batch     string    `json:"batch"`
	Index     int       `json:"index"`
	OrderID   string    `json:"order_id,omitempty"`
	Price     string    `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Unlocks lists the ledger entries of a widget.
func (a *App) Unlocks(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	records, err := wg.Unlocks(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]unlockRecordResponse, 0, len(records))
	for _, rec := range records {
		price := domain.Price{Cents: rec.PriceCents, Currency: rec.Currency}
		items = append(items, unlockRecordResponse{
			Batch:     rec.Batch,
			Index:     rec.Index,
			OrderID:   rec.OrderID,
			Price:     price.String(),
			CreatedAt: rec.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
