// Package api is the thin HTTP edge over the checkout core. Authentication
// and schema validation happen upstream; handlers decode already-validated
// payloads, call the domain services, and map fault kinds to status codes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/oolio-checkout/internal/checkout"
	"github.com/xenking/oolio-checkout/internal/domain/cart"
	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/order"
	"github.com/xenking/oolio-checkout/internal/domain/payment"
)

// userHeader carries the opaque authenticated user id set by the upstream
// auth layer.
const userHeader = "X-User-ID"

// Handler exposes the cart, checkout, order, and payment operations.
type Handler struct {
	carts        *cart.Store
	engine       *order.Engine
	orchestrator *payment.Orchestrator
	facade       *checkout.Facade
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(carts *cart.Store, engine *order.Engine, orchestrator *payment.Orchestrator, facade *checkout.Facade) *Handler {
	return &Handler{
		carts:        carts,
		engine:       engine,
		orchestrator: orchestrator,
		facade:       facade,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{productID}", h.updateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.removeCartItem)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)

	mux.HandleFunc("POST /api/checkout", h.checkout)

	mux.HandleFunc("GET /api/orders/{orderID}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/cancel", h.cancelOrder)

	mux.HandleFunc("POST /api/orders/{orderID}/pay", h.confirmPayment)
	mux.HandleFunc("POST /api/orders/{orderID}/refund", h.refund)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	c, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(c))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get(userHeader)
	c, err := h.carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(c))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get(userHeader)
	result, err := h.carts.UpdateItem(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	state := "updated"
	if result == cart.Removed {
		state = "removed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": state})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	userID := r.Header.Get(userHeader)
	if err := h.carts.RemoveItem(r.Context(), userID, productID); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress order.Address `json:"shipping_address"`
		BillingAddress  order.Address `json:"billing_address"`
		PaymentMethod   string        `json:"payment_method"`
		Notes           string        `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get(userHeader)
	res, err := h.facade.Checkout(r.Context(), userID, checkout.Request{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   checkout.PaymentMethod(req.PaymentMethod),
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	resp := map[string]any{
		"order": orderResponse(res.Order),
	}
	if res.Intent != nil {
		resp["payment_intent"] = intentResponse(res.Intent)
	}
	if res.PaymentErr != nil {
		kind, _ := fault.KindOf(res.PaymentErr)
		resp["payment_error"] = map[string]any{
			"kind":      string(kind),
			"message":   res.PaymentErr.Error(),
			"retryable": fault.Retryable(res.PaymentErr),
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	o, err := h.engine.Get(r.Context(), userID, r.PathValue("orderID"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	// Ownership check before the transition.
	userID := r.Header.Get(userHeader)
	if _, err := h.engine.Get(r.Context(), userID, r.PathValue("orderID")); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	o, err := h.engine.Cancel(r.Context(), r.PathValue("orderID"), req.Reason)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse(o))
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentMethodID string `json:"payment_method_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get(userHeader)
	if _, err := h.engine.Get(r.Context(), userID, r.PathValue("orderID")); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	intent, err := h.orchestrator.Confirm(r.Context(), r.PathValue("orderID"), req.PaymentMethodID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, intentResponse(intent))
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount *string `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get(userHeader)
	if _, err := h.engine.Get(r.Context(), userID, r.PathValue("orderID")); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		v, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}
		amount = &v
	}

	ref, err := h.orchestrator.Refund(r.Context(), r.PathValue("orderID"), amount, req.Reason)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refund_id": ref.ID,
		"amount":    ref.Amount.StringFixed(2),
		"full":      ref.Full,
	})
}

// writeError maps fault kinds to status codes, preserving the
// retryable/permanent distinction for the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind, ok := fault.KindOf(err)
	status := http.StatusInternalServerError
	if ok {
		switch kind {
		case fault.KindNotFound:
			status = http.StatusNotFound
		case fault.KindInvalidState, fault.KindAlreadyExists:
			status = http.StatusConflict
		case fault.KindInsufficientStock, fault.KindItemUnavailable, fault.KindValidationFailed:
			status = http.StatusUnprocessableEntity
		case fault.KindGatewayError:
			status = http.StatusBadGateway
		case fault.KindSignatureInvalid:
			status = http.StatusBadRequest
		}
	}
	if status == http.StatusInternalServerError {
		zctx.From(ctx).Error("Unhandled error", zap.Error(err))
	}
	writeJSON(w, status, map[string]any{
		"kind":      string(kind),
		"message":   err.Error(),
		"retryable": fault.Retryable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
