package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"unlockstudio/internal/infra"
)

const (
	DefaultMaxBytes = 20 << 20
	DefaultMaxAge   = time.Hour
	maxRedirects    = 3
)

var errTooLarge = errors.New("proxy: upstream body exceeds limit")

// Options configures the proxy handler.
type Options struct {
	Guard      *Guard
	Cache      Cache
	HTTPClient *http.Client
	MaxBytes   int64
	MaxAge     time.Duration
	Logger     *infra.Logger
}

// Handler serves GET /api/proxy-image?url=<encoded>.
type Handler struct {
	guard    *Guard
	cache    Cache
	client   *http.Client
	maxBytes int64
	maxAge   time.Duration
	logger   *infra.Logger
}

// NewHandler builds a Handler. Redirects are re-validated by the guard.
func NewHandler(opts Options) *Handler {
	guard := opts.Guard
	if guard == nil {
		guard = NewGuard(GuardOptions{})
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	client := *base
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("proxy: too many redirects")
		}
		_, err := guard.Validate(req.URL.String())
		return err
	}
	return &Handler{guard: guard, cache: opts.Cache, client: &client, maxBytes: maxBytes, maxAge: maxAge, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	src, err := h.guard.Validate(raw)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", raw).Msg("proxy: rejected source")
		writeError(w, http.StatusBadRequest, "forbidden_source", err.Error())
		return
	}
	key := src.String()

	ctx := r.Context()
	if h.cache != nil {
		entry, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			h.logger.Warn().Err(err).Msg("proxy: cache read failed")
		}
		if ok {
			h.write(w, r, entry, "HIT")
			return
		}
	}

	entry, status, err := h.fetch(ctx, key)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", key).Int("status", status).Msg("proxy: upstream fetch failed")
		switch {
		case errors.Is(err, errTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds size limit")
		case status == http.StatusNotFound:
			writeError(w, http.StatusNotFound, "not_found", "image not found")
		default:
			writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch image")
		}
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, entry, h.maxAge); err != nil {
			h.logger.Warn().Err(err).Msg("proxy: cache write failed")
		}
	}
	h.write(w, r, entry, "MISS")
}

func (h *Handler) fetch(ctx context.Context, rawURL string) (Entry, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Entry{}, 0, err
	}
	req.Header.Set("Accept", "image/*")
	resp, err := h.client.Do(req)
	if err != nil {
		return Entry{}, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Entry{}, resp.StatusCode, fmt.Errorf("proxy: upstream status %d", resp.StatusCode)
	}
	if resp.ContentLength > h.maxBytes {
		return Entry{}, resp.StatusCode, errTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return Entry{}, resp.StatusCode, err
	}
	if int64(len(data)) > h.maxBytes {
		return Entry{}, resp.StatusCode, errTooLarge
	}
	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil && strings.HasPrefix(mt, "image/") {
		ct = mt
	} else {
		sniffed := http.DetectContentType(data)
		if !strings.HasPrefix(sniffed, "image/") {
			return Entry{}, resp.StatusCode, fmt.Errorf("proxy: upstream is not an image (%s)", sniffed)
		}
		ct = sniffed
	}
	return Entry{ContentType: ct, Data: data}, resp.StatusCode, nil
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, e Entry, cacheState string) {
	w.Header().Set("Content-Type", e.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Data)))
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(h.maxAge.Seconds())))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Proxy-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(e.Data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": code, "message": msg}})
}
