package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/infra"
	"unlockstudio/internal/widget"
)

const maxBodyBytes = 12 << 20

type App struct {
	Registry *widget.Registry
	Logger   infra.Logger
}

func NewApp(registry *widget.Registry, logger *infra.Logger) *App {
	return &App{Registry: registry, Logger: infra.OrNop(logger)}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": errCode, "message": message}})
}

// fail maps a domain failure onto its HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	a.error(w, status, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusNotFound, "index_out_of_range"
	case errors.Is(err, domain.ErrInvalidPrompt):
		return http.StatusBadRequest, "invalid_prompt"
	case errors.Is(err, domain.ErrArtifactLocked):
		return http.StatusPaymentRequired, "artifact_locked"
	case errors.Is(err, domain.ErrNoPaymentSession):
		return http.StatusConflict, "no_payment_session"
	case errors.Is(err, domain.ErrStalePayment):
		return http.StatusConflict, "stale_payment"
	case errors.Is(err, domain.ErrGenerating):
		return http.StatusConflict, "generation_in_progress"
	case errors.Is(err, domain.ErrGenerationBusy):
		return http.StatusConflict, "superseded"
	}
	switch domain.KindOf(err) {
	case domain.KindTimeout:
		return http.StatusGatewayTimeout, string(domain.KindTimeout)
	case domain.KindContentPolicy:
		return http.StatusUnprocessableEntity, string(domain.KindContentPolicy)
	case domain.KindGeneration, domain.KindDownload, domain.KindPaymentInitiation:
		return http.StatusBadGateway, string(domain.KindOf(err))
	}
	return http.StatusInternalServerError, "internal"
}

// lookup resolves the {id} route parameter.
func (a *App) lookup(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	wg, err := a.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "widget not found")
		return nil, false
	}
	return wg, true
}

func (a *App) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid artifact index")
		return 0, false
	}
	return idx, true
}

// isForm reports whether the request came from an HTML form rather than the
// JSON API. Form submissions are answered with a redirect.
func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded"
}

// decode fills v from a JSON body or, for forms, from the posted values.
func decode(w http.ResponseWriter, r *http.Request, v any, fromForm func(get func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return err
		}
		fromForm(func(key string) string { return strings.TrimSpace(r.PostForm.Get(key)) })
		return nil
	}
	if r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func seeOther(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}
