package portapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *MemoryTokenStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := NewMemoryTokenStore()
	c, err := NewClient(Config{BaseURL: srv.URL}, tokens)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, tokens
}

func setCookies(w http.ResponseWriter, access, refresh, csrf string) {
	http.SetCookie(w, &http.Cookie{Name: cookieAccess, Value: access})
	http.SetCookie(w, &http.Cookie{Name: cookieRefresh, Value: refresh})
	http.SetCookie(w, &http.Cookie{Name: cookieCSRF, Value: csrf})
}

func TestLoginStoresSessionCookies(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s", r.Method)
		}
		setCookies(w, "acc-1", "ref-1", "csrf-1")
		w.WriteHeader(http.StatusOK)
	})

	c, tokens := newTestClient(t, mux)
	if err := c.Login(context.Background(), "admin@port.test", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, _ := tokens.Load()
	if got.AccessToken != "acc-1" || got.RefreshToken != "ref-1" || got.CSRFToken != "csrf-1" {
		t.Fatalf("stored tokens = %+v", got)
	}
}

func TestGetRefreshesOnceOn401(t *testing.T) {
	t.Parallel()

	var dataCalls, refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		setCookies(w, "acc-2", "ref-2", "csrf-2")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/analytics/overview", func(w http.ResponseWriter, r *http.Request) {
		if dataCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ck, err := r.Cookie(cookieAccess); err != nil || ck.Value != "acc-2" {
			t.Errorf("retry did not carry refreshed access token")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overview":{"totalBookings":7}}`))
	})

	c, tokens := newTestClient(t, mux)
	_ = tokens.Save(Tokens{AccessToken: "stale", RefreshToken: "ref-1", CSRFToken: "csrf-1"})

	ov, err := c.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalBookings != 7 {
		t.Fatalf("TotalBookings = %d, want 7", ov.TotalBookings)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", refreshCalls.Load())
	}
	if dataCalls.Load() != 2 {
		t.Fatalf("data calls = %d, want 2", dataCalls.Load())
	}
}

func TestGetFailsWhenRefreshRejected(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/analytics/overview", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c, _ := newTestClient(t, mux)
	_, err := c.Overview(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestBookingsBuildsFilterQuery(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/bookings", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("startDate") != "2026-09-01" || q.Get("endDate") != "2026-09-08" {
			t.Errorf("date range query = %v", q)
		}
		if q.Get("status") != "CONFIRMED" || q.Get("terminalId") != "term-1" {
			t.Errorf("filter query = %v", q)
		}
		if q.Get("carrierId") != "" {
			t.Errorf("empty carrier filter leaked: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bookings":[{"id":"b1","status":"CONFIRMED","timeSlot":{"date":"2026-09-02","startTime":"08:00","endTime":"09:00"},"terminal":{"id":"term-1","name":"North Gate"},"carrier":{"companyName":"Acme Freight"},"truck":{"plateNumber":"TX-1234"}}]}`))
	})

	c, _ := newTestClient(t, mux)
	got, err := c.Bookings(context.Background(), BookingFilter{
		Status:     "CONFIRMED",
		TerminalID: "term-1",
		StartDate:  "2026-09-01",
		EndDate:    "2026-09-08",
	})
	if err != nil {
		t.Fatalf("Bookings: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" || got[0].Terminal.Name != "North Gate" {
		t.Fatalf("bookings = %+v", got)
	}
}

func TestTerminalsMapKeysByName(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/terminals", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"terminals":[{"id":"t1","name":"North Gate"},{"id":"t2","name":"South Gate"}]}`))
	})

	c, _ := newTestClient(t, mux)
	m, err := c.TerminalsMap(context.Background())
	if err != nil {
		t.Fatalf("TerminalsMap: %v", err)
	}
	if m["North Gate"] != "t1" || m["South Gate"] != "t2" {
		t.Fatalf("terminals map = %v", m)
	}
}

func TestResolveIdentityMissingAssignment(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/u1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{}}`))
	})

	c, _ := newTestClient(t, mux)
	if _, err := c.ResolveCarrierID(context.Background(), "u1"); err == nil {
		t.Fatal("expected error for user without carrier")
	}
	if _, err := c.ResolveTerminalID(context.Background(), "u1"); err == nil {
		t.Fatal("expected error for user without terminal")
	}
}

func TestCSRFHeaderAttached(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analytics/overview", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerCSRF) != "csrf-9" {
			t.Errorf("missing CSRF header, got %q", r.Header.Get(headerCSRF))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	c, tokens := newTestClient(t, mux)
	_ = tokens.Save(Tokens{AccessToken: "acc", CSRFToken: "csrf-9"})

	if _, err := c.Overview(context.Background()); err != nil {
		t.Fatalf("Overview: %v", err)
	}
}
