package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"unlockstudio/internal/middleware"
	"unlockstudio/internal/preview"
	"unlockstudio/internal/view"
	"unlockstudio/internal/widget"
)

type unlockResponse struct {
	Status      string           `json:"status"`
	ApprovalURL string           `json:"approval_url,omitempty"`
	DownloadURL string           `json:"download_url,omitempty"`
	Pending     *pendingResponse `json:"pending,omitempty"`
	Widget      widgetResponse   `json:"widget"`
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (a *App) unlockReply(w http.ResponseWriter, r *http.Request, wg *widget.Widget, index int, res widget.UnlockResult) {
	if isForm(r) || (r.Method == http.MethodGet && !wantsJSON(r)) {
		if res.ApprovalURL != "" {
			seeOther(w, r, res.ApprovalURL)
			return
		}
		seeOther(w, r, view.WidgetPath(wg.ID, "view"))
		return
	}
	resp := unlockResponse{
		Status:      res.Status,
		ApprovalURL: res.ApprovalURL,
		Widget:      newWidgetResponse(wg.State(), middleware.LocaleFromContext(r.Context())),
	}
	if res.ApprovalURL == "" {
		resp.DownloadURL = view.ArtifactPath(wg.ID, index, "download")
	} else {
		resp.Pending = &pendingResponse{Index: res.Session.TargetIndex, Batch: res.Session.Batch, OrderID: res.Session.OrderID}
	}
	a.json(w, http.StatusOK, resp)
}

// Unlock starts payment for one artifact.
func (a *App) Unlock(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	index, ok := a.index(w, r)
	if !ok {
		return
	}
	res, err := wg.Unlock(r.Context(), index)
	if err != nil {
		if isForm(r) {
			seeOther(w, r, view.WidgetPath(wg.ID, "view"))
			return
		}
		a.fail(w, r, err)
		return
	}
	a.unlockReply(w, r, wg, index, res)
}

// Download serves the full image of an unlocked artifact. A locked artifact
// starts the unlock flow instead.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	index, ok := a.index(w, r)
	if !ok {
		return
	}
	res, err := wg.Download(r.Context(), index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if res.Unlock != nil {
		a.unlockReply(w, r, wg, index, *res.Unlock)
		return
	}
	blob := res.Blob
	w.Header().Set("Content-Type", blob.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, blob.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(blob.Data)
}

// Preview serves the blurred thumbnail of any artifact.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	index, ok := a.index(w, r)
	if !ok {
		return
	}
	data, err := wg.Preview(r.Context(), index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", preview.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}
