//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
)

func TestCorrelationID_Generated(t *testing.T) {
	resp := doGet(t, "/livez", "")
	defer resp.Body.Close()

	correlationID := resp.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		t.Fatal("X-Correlation-ID header not present")
	}
}

func TestCorrelationID_Echoed(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/livez", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("X-Correlation-ID", "custom-correlation-id-12345")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	got := resp.Header.Get("X-Correlation-ID")
	if got != "custom-correlation-id-12345" {
		t.Errorf("X-Correlation-ID: got %q, want %q", got, "custom-correlation-id-12345")
	}
}
