package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetTopHolders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tokens/mint-1/holders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("expected limit 100, got %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"holders": []map[string]interface{}{
				{"wallet": "wallet-a", "balance": 60000.0, "ownership_percent": 60.0},
				{"wallet": "wallet-b", "balance": 40000.0, "ownership_percent": 40.0},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	holders, err := client.GetTopHolders(context.Background(), "mint-1", 100)
	if err != nil {
		t.Fatalf("GetTopHolders: %v", err)
	}

	if len(holders) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(holders))
	}
	if holders[0].Wallet != "wallet-a" || holders[0].Balance != 60000 {
		t.Errorf("unexpected first holder: %+v", holders[0])
	}
	if holders[1].OwnershipPercent != 40 {
		t.Errorf("unexpected ownership: %+v", holders[1])
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tokens/mint-1/holders/wallet-a" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"is_holder": true,
			"balance":   59000.0,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	balance, err := client.GetBalance(context.Background(), "wallet-a", "mint-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if !balance.IsHolder || balance.Balance != 59000 {
		t.Errorf("unexpected balance: %+v", balance)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"is_holder": true, "balance": 1.0})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", WithMaxRetries(5), WithRetryDelay(time.Millisecond))
	balance, err := client.GetBalance(context.Background(), "wallet-a", "mint-1")
	if err != nil {
		t.Fatalf("GetBalance after retries: %v", err)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
	if !balance.IsHolder {
		t.Errorf("unexpected balance: %+v", balance)
	}
}

func TestHTTPClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", WithMaxRetries(5), WithRetryDelay(time.Millisecond))
	_, err := client.GetBalance(context.Background(), "wallet-x", "mint-1")
	if err == nil {
		t.Fatal("expected an error for 404")
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("a 4xx must not be retried, got %d calls", got)
	}
}
