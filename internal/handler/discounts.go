package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/discount-engine/internal/domain/coupon"
	"github.com/xenking/discount-engine/internal/domain/engine"
)

type validateRequest struct {
	Code       string `json:"code"`
	OrderTotal string `json:"orderTotal"`
	CustomerID string `json:"customerId"`
}

// Validate checks a coupon code against an order total. Unknown codes and
// failed eligibility are 200 responses with valid=false; only malformed
// input or infrastructure failures produce non-200 statuses.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	orderTotal, ok := parseAmount(req.OrderTotal)
	if !ok {
		writeError(w, http.StatusBadRequest, "orderTotal must be a non-negative decimal")
		return
	}

	res, err := h.engine.Validate(r.Context(), req.Code, orderTotal, req.CustomerID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(res.Valid)
	e.FieldStart("message")
	e.Str(res.Message)
	if res.Coupon != nil {
		e.FieldStart("coupon")
		encodeCoupon(&e, res.Coupon, time.Now())
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

type computeRequest struct {
	OrderTotal    string   `json:"orderTotal"`
	CouponCode    string   `json:"couponCode"`
	CustomerID    string   `json:"customerId"`
	CustomerGroup string   `json:"customerGroup"`
	FirstPurchase bool     `json:"firstPurchase"`
	TotalQuantity int      `json:"totalQuantity"`
	ProductIDs    []string `json:"productIds"`
	CategoryIDs   []string `json:"categoryIds"`
	AllowStacking bool     `json:"allowStacking"`
}

// Compute returns the full applied-discount breakdown for an order.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	orderTotal, ok := parseAmount(req.OrderTotal)
	if !ok {
		writeError(w, http.StatusBadRequest, "orderTotal must be a non-negative decimal")
		return
	}
	if req.TotalQuantity < 0 {
		writeError(w, http.StatusBadRequest, "totalQuantity must not be negative")
		return
	}

	res, err := h.engine.Compute(r.Context(), engine.ComputeRequest{
		OrderTotal:    orderTotal,
		CouponCode:    strings.TrimSpace(req.CouponCode),
		CustomerID:    req.CustomerID,
		CustomerGroup: req.CustomerGroup,
		FirstPurchase: req.FirstPurchase,
		TotalQuantity: req.TotalQuantity,
		ProductIDs:    req.ProductIDs,
		CategoryIDs:   req.CategoryIDs,
		AllowStacking: req.AllowStacking,
	})
	if err != nil {
		internalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("originalTotal")
	e.Str(res.OriginalTotal.StringFixed(2))
	e.FieldStart("discountedTotal")
	e.Str(res.DiscountedTotal.StringFixed(2))
	e.FieldStart("totalDiscount")
	e.Str(res.TotalDiscount.StringFixed(2))
	e.FieldStart("appliedDiscounts")
	e.ArrStart()
	for _, d := range res.Applied {
		e.ObjStart()
		e.FieldStart("source")
		e.Str(string(d.Source))
		e.FieldStart("sourceId")
		e.Str(d.SourceID)
		e.FieldStart("sourceName")
		e.Str(d.SourceName)
		e.FieldStart("discountType")
		e.Str(d.DiscountType)
		e.FieldStart("discountValue")
		e.Str(d.DiscountValue.StringFixed(2))
		e.FieldStart("amount")
		e.Str(d.Amount.StringFixed(2))
		e.FieldStart("appliedTo")
		e.Str(d.AppliedTo.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("errors")
	e.ArrStart()
	for _, msg := range res.Errors {
		e.Str(msg)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

type usageRequest struct {
	Source      string `json:"source"` // "coupon" or "promotion"
	CouponCode  string `json:"couponCode"`
	PromotionID string `json:"promotionId"`
	CustomerID  string `json:"customerId"`
	SaleID      string `json:"saleId"`
	Amount      string `json:"amount"`
	OrderTotal  string `json:"orderTotal"`
}

// RecordUsage records that a discount was consumed by a completed sale.
// The caller invokes this exactly once per discount application, after the
// sale commits. A coupon whose limit was consumed concurrently yields 409.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative decimal")
		return
	}
	orderTotal, ok := parseAmount(req.OrderTotal)
	if !ok {
		writeError(w, http.StatusBadRequest, "orderTotal must be a non-negative decimal")
		return
	}

	var (
		rec *engine.UsageRecord
		err error
	)
	switch engine.Source(req.Source) {
	case engine.SourceCoupon:
		var c *coupon.Coupon
		c, err = h.coupons.FindByCode(r.Context(), strings.TrimSpace(req.CouponCode))
		if err == nil {
			rec, err = h.ledger.RecordCouponUsage(r.Context(),
				c.ID, req.CustomerID, req.SaleID, amount, orderTotal)
		}
	case engine.SourcePromotion:
		if req.PromotionID == "" {
			writeError(w, http.StatusBadRequest, "promotionId is required")
			return
		}
		rec, err = h.ledger.RecordPromotionUsage(r.Context(),
			req.PromotionID, req.CustomerID, req.SaleID, amount, orderTotal)
	default:
		writeError(w, http.StatusBadRequest, "source must be coupon or promotion")
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, "invalid coupon code")
		return
	case errors.Is(err, engine.ErrUsageLimitRace):
		writeError(w, http.StatusConflict, "coupon usage limit reached")
		return
	default:
		internalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(rec.ID)
	e.FieldStart("source")
	e.Str(string(rec.Source))
	e.FieldStart("sourceId")
	e.Str(rec.SourceID)
	if rec.CustomerID != "" {
		e.FieldStart("customerId")
		e.Str(rec.CustomerID)
	}
	if rec.SaleID != "" {
		e.FieldStart("saleId")
		e.Str(rec.SaleID)
	}
	e.FieldStart("amount")
	e.Str(rec.Amount.StringFixed(2))
	e.FieldStart("orderTotal")
	e.Str(rec.OrderTotal.StringFixed(2))
	e.FieldStart("usedAt")
	e.Str(rec.UsedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// encodeCoupon writes the public representation of a coupon.
func encodeCoupon(e *jx.Encoder, c *coupon.Coupon, now time.Time) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("discountType")
	e.Str(c.Kind.Type())
	e.FieldStart("scope")
	e.Str(string(c.Scope))
	e.FieldStart("status")
	e.Str(string(c.Status(now)))
	if left := c.RemainingUses(); left != nil {
		e.FieldStart("remainingUses")
		e.Int(*left)
	}
	e.ObjEnd()
}

// parseAmount parses a non-negative decimal amount. Empty is treated as
// zero; anything unparseable or negative is rejected before reaching the
// engine.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
