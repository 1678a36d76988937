package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// pagedServer serves total markets in pages, honouring limit and cursor.
func pagedServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trade-api/v2/markets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "open" {
			t.Errorf("status = %q", r.URL.Query().Get("status"))
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := start + limit
		if end > total {
			end = total
		}
		page := MarketsPage{}
		for i := start; i < end; i++ {
			page.Markets = append(page.Markets, KalshiMarket{
				Ticker: fmt.Sprintf("T-%d", i),
				Title:  fmt.Sprintf("Question %d", i),
				YesAsk: 40,
				NoAsk:  61,
			})
		}
		if end < total {
			page.Cursor = strconv.Itoa(end)
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func TestAdapterFetchActiveEmulatesOffset(t *testing.T) {
	t.Parallel()

	srv := pagedServer(t, 7)
	defer srv.Close()

	a := NewAdapter(NewClient(srv.URL+"/trade-api/v2", "", time.Second))
	got, err := a.FetchActive(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("FetchActive: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ExternalID != "T-2" || got[2].ExternalID != "T-4" {
		t.Errorf("window = %s..%s, want T-2..T-4", got[0].ExternalID, got[2].ExternalID)
	}
}

func TestAdapterFetchActivePastEnd(t *testing.T) {
	t.Parallel()

	srv := pagedServer(t, 2)
	defer srv.Close()

	a := NewAdapter(NewClient(srv.URL+"/trade-api/v2", "", time.Second))
	got, err := a.FetchActive(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("FetchActive: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestSigningPathDropsQuery(t *testing.T) {
	t.Parallel()

	c := NewClient("https://api.elections.kalshi.com/trade-api/v2/", "key", time.Second)
	if got := c.signingPath("/markets?limit=5"); got != "/trade-api/v2/markets" {
		t.Fatalf("signingPath = %q", got)
	}
}
