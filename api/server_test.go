package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/portsense/portsense/agent/engine"
	"github.com/portsense/portsense/agent/suggest"
)

type fakeTurns struct {
	resp *engine.TurnResponse
	err  error
	last engine.TurnRequest
}

func (f *fakeTurns) HandleTurn(_ context.Context, req engine.TurnRequest) (*engine.TurnResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeSuggestions struct {
	report *suggest.Report
	err    error
}

func (f *fakeSuggestions) Generate(context.Context) (*suggest.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

const testKey = "secret-key"

func newTestServer(t *testing.T, turns TurnHandler, suggestions SuggestionSource) *Server {
	t.Helper()
	s, err := NewServer(Config{Port: 0, Key: testKey}, turns, suggestions)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doRequest(s *Server, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsTurnResponse(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{resp: &engine.TurnResponse{
		Message:       "You have 2 bookings.",
		Blocks:        []engine.Block{{Type: "message", Text: "You have 2 bookings."}},
		ThreadID:      "thread-1",
		CurrentIntent: "booking",
		Language:      "English",
	}}
	s := newTestServer(t, turns, &fakeSuggestions{report: &suggest.Report{}})

	rec := doRequest(s, http.MethodPost, "/chat", testKey,
		`{"message":"my bookings","user_id":"user-1","user_role":"CARRIER","thread_id":"thread-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var resp engine.TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "You have 2 bookings." || resp.ThreadID != "thread-1" {
		t.Fatalf("resp = %+v", resp)
	}
	if turns.last.Role != "CARRIER" || turns.last.Message != "my bookings" {
		t.Fatalf("turn request = %+v", turns.last)
	}
}

func TestChatRejectsMissingAPIKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeTurns{resp: &engine.TurnResponse{}}, &fakeSuggestions{report: &suggest.Report{}})

	rec := doRequest(s, http.MethodPost, "/chat", "", `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a key", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/chat", "wrong-key", `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with a bad key", rec.Code)
	}
}

func TestChatEmptyMessageIsBadRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeTurns{err: engine.ErrEmptyMessage}, &fakeSuggestions{report: &suggest.Report{}})

	rec := doRequest(s, http.MethodPost, "/chat", testKey, `{"message":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatEngineFailureIsInternalError(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeTurns{err: errors.New("model down")}, &fakeSuggestions{report: &suggest.Report{}})

	rec := doRequest(s, http.MethodPost, "/chat", testKey, `{"message":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "model down") {
		t.Fatal("internal error details must not leak to clients")
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	t.Parallel()

	report := &suggest.Report{
		Suggestions: []suggest.Item{{
			Priority: "high", Icon: "🔴", Category: "Increase Capacity",
			Terminal: "Terminal A", Suggestion: "Add slots.",
		}},
		GeneratedAt: "2026-02-07T10:00:00Z",
	}
	s := newTestServer(t, &fakeTurns{resp: &engine.TurnResponse{}}, &fakeSuggestions{report: report})

	rec := doRequest(s, http.MethodGet, "/suggestions", testKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var got suggest.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].Terminal != "Terminal A" {
		t.Fatalf("report = %+v", got)
	}
}

func TestSuggestionsFailureIsInternalError(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeTurns{resp: &engine.TurnResponse{}}, &fakeSuggestions{err: errors.New("backend down")})

	rec := doRequest(s, http.MethodGet, "/suggestions", testKey, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeTurns{resp: &engine.TurnResponse{}}, &fakeSuggestions{report: &suggest.Report{}})

	rec := doRequest(s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, health must not require a key", rec.Code)
	}
}
