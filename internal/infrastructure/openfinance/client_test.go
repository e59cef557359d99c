package openfinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(newTestTransport(baseURL), testClientID, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writePage[T any](w http.ResponseWriter, totalPages int, results []T) {
	json.NewEncoder(w).Encode(page[T]{
		Total:      len(results),
		TotalPages: totalPages,
		Results:    results,
	})
}

func TestClientReauthenticatesOnceOn401(t *testing.T) {
	var authCalls, itemCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		authCalls++
		json.NewEncoder(w).Encode(map[string]any{"apiKey": fmt.Sprintf("key-%d", authCalls)})
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		itemCalls++
		// The first key has been revoked server-side; only a fresh
		// exchange succeeds.
		if r.Header.Get(headerAPIKey) == "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writePage(w, 1, []Item{{ID: "item-1", Status: "UPDATED"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != "item-1" {
		t.Errorf("items = %+v, want the single item", items)
	}
	if authCalls != 2 {
		t.Errorf("auth calls = %d, want 2 (invalidate then re-auth)", authCalls)
	}
	if itemCalls != 2 {
		t.Errorf("item calls = %d, want 2 (one retry)", itemCalls)
	}
}

func TestClientGivesUpAfterSecond401(t *testing.T) {
	var itemCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		itemCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.ListItems(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication", err)
	}
	if itemCalls != 2 {
		t.Errorf("item calls = %d, want exactly 2 (single retry, then give up)", itemCalls)
	}
}

func TestListAllTransactionsWalksEveryPage(t *testing.T) {
	const totalPages = 3
	var requestedPages []int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
		requestedPages = append(requestedPages, pageNum)
		writePage(w, totalPages, []Transaction{
			{ID: fmt.Sprintf("tx-%d-a", pageNum), Date: "2026-03-01", Amount: -10},
			{ID: fmt.Sprintf("tx-%d-b", pageNum), Date: "2026-03-02", Amount: 25},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	txns, err := c.ListAllTransactions(context.Background(), "acc-1", nil, nil)
	if err != nil {
		t.Fatalf("ListAllTransactions: %v", err)
	}
	if len(txns) != totalPages*2 {
		t.Fatalf("got %d transactions, want %d", len(txns), totalPages*2)
	}
	if len(requestedPages) != totalPages {
		t.Fatalf("requested pages %v, want 1..%d in order", requestedPages, totalPages)
	}
	for i, p := range requestedPages {
		if p != i+1 {
			t.Errorf("page request %d = %d, want %d", i, p, i+1)
		}
	}
	if txns[0].ID != "tx-1-a" || txns[len(txns)-1].ID != "tx-3-b" {
		t.Errorf("results not concatenated in page order: first %s, last %s", txns[0].ID, txns[len(txns)-1].ID)
	}
}

func TestListTransactionsDateWindow(t *testing.T) {
	var gotFrom, gotTo string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("from")
		gotTo = r.URL.Query().Get("to")
		writePage(w, 1, []Transaction{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	from := mustDate(t, "2026-02-01")
	to := mustDate(t, "2026-03-01")
	if _, _, err := c.ListTransactions(context.Background(), "acc-1", &from, &to, 1, 0); err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if gotFrom != "2026-02-01" || gotTo != "2026-03-01" {
		t.Errorf("window sent as from=%q to=%q", gotFrom, gotTo)
	}
}

func TestInvalidRecordFailsClosed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		// Second record is missing its id.
		writePage(w, 1, []Item{{ID: "item-1"}, {}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.ListItems(context.Background())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for an invalid record, got %v", err)
	}
}

func TestGetAllItemTransactionsCollectsAccountFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 1, []Account{
			{ID: "acc-good", ItemID: "item-1", Type: "BANK"},
			{ID: "acc-bad", ItemID: "item-1", Type: "CREDIT"},
		})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("accountId") == "acc-bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writePage(w, 1, []Transaction{{ID: "tx-1", Date: "2026-03-01"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, errs, err := c.GetAllItemTransactions(context.Background(), "item-1", nil, nil)
	if err != nil {
		t.Fatalf("a failing account must not abort the item: %v", err)
	}
	if len(results) != 1 || results[0].Account.ID != "acc-good" {
		t.Errorf("results = %+v, want only the healthy account", results)
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "acc-bad") {
		t.Errorf("errs = %v, want one entry naming acc-bad", errs)
	}
}

func TestGetAllItemTransactionsAbortsOnAuthFailure(t *testing.T) {
	var txnCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 1, []Account{
			{ID: "acc-1", ItemID: "item-1"},
			{ID: "acc-2", ItemID: "item-1"},
		})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		txnCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, _, err := c.GetAllItemTransactions(context.Background(), "item-1", nil, nil)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication to abort the fan-out", err)
	}
	// Two attempts for the first account only; the second is never tried.
	if txnCalls != 2 {
		t.Errorf("transaction calls = %d, want 2", txnCalls)
	}
}

func TestListBillsPermissionDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"apiKey": "key"})
	})
	mux.HandleFunc("/credit_card_bills", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"scope not granted"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.ListBills(context.Background(), "acc-1")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied for callers to degrade on", err)
	}
}
