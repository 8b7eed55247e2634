package handlers

import (
	"net/http"

	"unlockstudio/internal/middleware"
	"unlockstudio/internal/view"
)

type paymentCallbackRequest struct {
	Batch   string `json:"batch"`
	OrderID string `json:"order_id"`
}

// callbackParams reads the batch token and provider order id. PayPal appends
// the order id to return URLs as "token".
func (a *App) callbackParams(w http.ResponseWriter, r *http.Request) (paymentCallbackRequest, bool) {
	q := r.URL.Query()
	query := paymentCallbackRequest{Batch: q.Get("batch"), OrderID: q.Get("token")}
	if query.OrderID == "" {
		query.OrderID = q.Get("order_id")
	}
	if r.Method != http.MethodPost {
		return query, true
	}
	var req paymentCallbackRequest
	err := decode(w, r, &req, func(get func(string) string) {
		req.Batch = get("batch")
		req.OrderID = get("order_id")
		if req.OrderID == "" {
			req.OrderID = get("token")
		}
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return paymentCallbackRequest{}, false
	}
	if req.Batch == "" {
		req.Batch = query.Batch
	}
	if req.OrderID == "" {
		req.OrderID = query.OrderID
	}
	return req, true
}

// PaymentSuccess applies the provider's success callback. Browser redirects
// (GET) land back on the widget page.
func (a *App) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	cb, ok := a.callbackParams(w, r)
	if !ok {
		return
	}
	sess, err := wg.PaymentSucceeded(r.Context(), cb.Batch, cb.OrderID)
	if r.Method == http.MethodGet || isForm(r) {
		seeOther(w, r, view.WidgetPath(wg.ID, "view"))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"unlocked":     sess.TargetIndex,
		"download_url": view.ArtifactPath(wg.ID, sess.TargetIndex, "download"),
		"widget":       newWidgetResponse(wg.State(), middleware.LocaleFromContext(r.Context())),
	})
}

// PaymentCancel closes the pending session without unlocking.
func (a *App) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	wg, ok := a.lookup(w, r)
	if !ok {
		return
	}
	cb, ok := a.callbackParams(w, r)
	if !ok {
		return
	}
	// A cancel for an earlier batch must not close the current session.
	if cb.Batch == "" || cb.Batch == wg.Gate().Batch() {
		wg.CancelPayment()
	}
	if r.Method == http.MethodGet || isForm(r) {
		seeOther(w, r, view.WidgetPath(wg.ID, "view"))
		return
	}
	a.json(w, http.StatusOK, newWidgetResponse(wg.State(), middleware.LocaleFromContext(r.Context())))
}
