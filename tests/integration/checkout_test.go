//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func addressBody() map[string]any {
	return map[string]any{
		"shipping_address": map[string]string{
			"Line1":      "1 Main St",
			"City":       "Springfield",
			"PostalCode": "12345",
			"Country":    "US",
		},
		"payment_method": "cash_on_delivery",
	}
}

func TestCartRoundTrip(t *testing.T) {
	const user = "cart-user"
	t.Cleanup(func() { clearCart(t.Context(), user) })

	resp := doJSON(t, http.MethodPost, "/api/cart/items", user, map[string]any{
		"product_id": 1, "quantity": 2,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", resp.StatusCode)
	}

	cart := decodeJSON[cartResponse](t, resp)
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	// Setting quantity to zero removes the line.
	resp = doJSON(t, http.MethodPatch, "/api/cart/items/1", user, map[string]any{"quantity": 0})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update item: expected 200, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/cart", user)
	defer resp.Body.Close()
	cart = decodeJSON[cartResponse](t, resp)
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestCheckout_CashOnDelivery(t *testing.T) {
	const user = "checkout-user"

	resp := doJSON(t, http.MethodPost, "/api/cart/items", user, map[string]any{
		"product_id": 2, "quantity": 1,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, "/api/checkout", user, addressBody())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d", resp.StatusCode)
	}

	out := decodeJSON[checkoutResponse](t, resp)
	if out.Order.Status != "pending" || out.Order.PaymentStatus != "pending" {
		t.Fatalf("unexpected order state: %+v", out.Order)
	}
	if out.Order.Number == "" {
		t.Fatal("order number missing")
	}

	// The cart was cleared by the checkout.
	cartResp := doGet(t, "/api/cart", user)
	defer cartResp.Body.Close()
	cart := decodeJSON[cartResponse](t, cartResp)
	if len(cart.Items) != 0 {
		t.Fatalf("cart not cleared: %+v", cart)
	}

	// The order is visible to its owner and hidden from everyone else.
	orderResp := doGet(t, "/api/orders/"+out.Order.ID, user)
	defer orderResp.Body.Close()
	if orderResp.StatusCode != http.StatusOK {
		t.Fatalf("get order: expected 200, got %d", orderResp.StatusCode)
	}

	otherResp := doGet(t, "/api/orders/"+out.Order.ID, "somebody-else")
	defer otherResp.Body.Close()
	if otherResp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign order: expected 404, got %d", otherResp.StatusCode)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/checkout", "empty-cart-user", addressBody())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	e := decodeJSON[errorResponse](t, resp)
	if e.Kind != "validation_failed" {
		t.Fatalf("unexpected error kind %q", e.Kind)
	}
	if e.Retryable {
		t.Fatal("empty cart must not be retryable")
	}
}

func TestCancelOrder_ReturnsStock(t *testing.T) {
	const user = "cancel-user"

	resp := doJSON(t, http.MethodPost, "/api/cart/items", user, map[string]any{
		"product_id": 6, "quantity": 20,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, "/api/checkout", user, addressBody())
	out := decodeJSON[checkoutResponse](t, resp)
	resp.Body.Close()

	// Product 6 seeds 20 units; the order holds all of them now.
	otherUser := "cancel-observer"
	t.Cleanup(func() { clearCart(t.Context(), otherUser) })
	blocked := doJSON(t, http.MethodPost, "/api/cart/items", otherUser, map[string]any{
		"product_id": 6, "quantity": 1,
	})
	blocked.Body.Close()
	if blocked.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 while stock is reserved, got %d", blocked.StatusCode)
	}

	cancelResp := doJSON(t, http.MethodPost, "/api/orders/"+out.Order.ID+"/cancel", user, map[string]any{
		"reason": "integration test",
	})
	defer cancelResp.Body.Close()
	if cancelResp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", cancelResp.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, cancelResp)
	if cancelled.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}

	// Stock is back.
	unblocked := doJSON(t, http.MethodPost, "/api/cart/items", otherUser, map[string]any{
		"product_id": 6, "quantity": 1,
	})
	unblocked.Body.Close()
	if unblocked.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after cancel released stock, got %d", unblocked.StatusCode)
	}

	// A cancelled order cannot be cancelled again.
	again := doJSON(t, http.MethodPost, "/api/orders/"+out.Order.ID+"/cancel", user, map[string]any{})
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", again.StatusCode)
	}
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/webhooks/payment", "", map[string]any{
		"id": "evt_it_1", "type": "payment_succeeded",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
