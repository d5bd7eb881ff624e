package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
	"github.com/lulicookies/storefront-api/internal/infra/supabase"

	"go.uber.org/zap"
)

func testResilience() resilience.Config {
	return resilience.Config{MaxRetries: 1, InitialBackoff: 5 * time.Millisecond, MaxConcurrency: 10}
}

func newTestClient(server *httptest.Server) *supabase.Client {
	return supabase.NewClient(
		server.Client(), server.URL, "anon-key", "service-key",
		resilience.NewCircuitBreaker("test"), testResilience(), zap.NewNop(),
	)
}

// fakeFidelityTable emulates PostgREST conditional PATCH semantics for
// a single fidelity row.
type fakeFidelityTable struct {
	points int
	flag   bool
}

func (f *fakeFidelityTable) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/rest/v1/fidelity") {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		q := r.URL.Query()
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{{
				"id": "f-1", "user_id": "user-1",
				"points": f.points, "free_cookie_earned": f.flag,
				"updated_at": time.Now().UTC().Format(time.RFC3339),
			}})
		case http.MethodPatch:
			expectPoints, _ := strconv.Atoi(strings.TrimPrefix(q.Get("points"), "eq."))
			expectFlag := strings.TrimPrefix(q.Get("free_cookie_earned"), "is.") == "true"
			if f.points != expectPoints || f.flag != expectFlag {
				// No row matches the filters: empty representation.
				w.Write([]byte(`[]`))
				return
			}
			var patch struct {
				Points           int  `json:"points"`
				FreeCookieEarned bool `json:"free_cookie_earned"`
			}
			json.NewDecoder(r.Body).Decode(&patch)
			f.points = patch.Points
			f.flag = patch.FreeCookieEarned
			json.NewEncoder(w).Encode([]map[string]any{{
				"id": "f-1", "user_id": "user-1",
				"points": f.points, "free_cookie_earned": f.flag,
			}})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func TestCompareAndSwap_Succeeds(t *testing.T) {
	table := &fakeFidelityTable{points: 2}
	server := httptest.NewServer(table.handler(t))
	defer server.Close()

	c := newTestClient(server)
	swapped, err := c.CompareAndSwap(context.Background(), "user-1", 2, false, 3, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !swapped {
		t.Fatal("expected the swap to apply")
	}
	if table.points != 3 || table.flag {
		t.Errorf("expected row at points=3 flag=false, got points=%d flag=%t", table.points, table.flag)
	}
}

func TestCompareAndSwap_ConcurrentWriterWins(t *testing.T) {
	// The row moved to points=3 after our read at points=2: the
	// conditional PATCH must not apply.
	table := &fakeFidelityTable{points: 3}
	server := httptest.NewServer(table.handler(t))
	defer server.Close()

	c := newTestClient(server)
	swapped, err := c.CompareAndSwap(context.Background(), "user-1", 2, false, 3, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if swapped {
		t.Fatal("expected the swap to be rejected")
	}
	if table.points != 3 {
		t.Errorf("expected untouched row, got points=%d", table.points)
	}
}

func TestGetFidelity(t *testing.T) {
	table := &fakeFidelityTable{points: 4, flag: false}
	server := httptest.NewServer(table.handler(t))
	defer server.Close()

	record, err := newTestClient(server).GetFidelity(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.Points != 4 || record.FreeCookieEarned {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestGetFidelity_Absent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newTestClient(server).GetFidelity(context.Background(), "user-1")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
