// Package handler exposes the discount engine's operations over HTTP.
// Requests are decoded with encoding/json; responses are streamed with
// go-faster/jx. Monetary values travel as JSON strings with two decimals.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/discount-engine/internal/domain/coupon"
	"github.com/xenking/discount-engine/internal/domain/engine"
)

// Handler holds the engine, the ledger, and the coupon repository needed to
// resolve codes for usage recording.
type Handler struct {
	engine  *engine.Engine
	ledger  *engine.Ledger
	coupons coupon.Repository
}

// New constructs a Handler with the required dependencies.
func New(e *engine.Engine, l *engine.Ledger, coupons coupon.Repository) *Handler {
	return &Handler{engine: e, ledger: l, coupons: coupons}
}

// Register mounts the discount endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/discounts/validate", h.Validate)
	mux.HandleFunc("POST /api/discounts/compute", h.Compute)
	mux.HandleFunc("POST /api/discounts/usage", h.RecordUsage)
}

// writeJSON finishes an encoded jx object and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {code, message} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// internalError logs err with the request-scoped logger and responds 500.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
