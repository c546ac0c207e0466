package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/resumekit/interview-agent/internal/analysis"
	"github.com/resumekit/interview-agent/internal/config"
	"github.com/resumekit/interview-agent/internal/interview"
)

type fakeGenerator struct {
	blob string
	err  error
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, resume string) (string, error) {
	return f.blob, f.err
}

type fakeAnalyzer struct {
	result analysis.Result
	cached bool
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, entries []interview.Entry) (analysis.Result, bool, error) {
	return f.result, f.cached, f.err
}

func sampleLog() string {
	entries := []interview.Entry{
		{Speaker: interview.SpeakerAI, Text: "1. Why Go?", Type: interview.EntryQuestion, Timestamp: time.Now()},
		{Speaker: interview.SpeakerUser, Text: "Channels.", Type: interview.EntryAnswer, Timestamp: time.Now()},
	}
	data, _ := json.Marshal(map[string]any{"conversationLog": entries})
	return string(data)
}

func TestServer_Healthz(t *testing.T) {
	srv := New(config.Config{}, nil, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthOK(t *testing.T) {
	// Missing expected -> accept
	if !authOK(nil, "") {
		t.Fatalf("expected true when expected empty")
	}
	r := httptest.NewRequest(http.MethodGet, "/?password=secret", nil)
	if !authOK(r, "secret") {
		t.Fatalf("expected true with query password")
	}
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Auth-Token", "tok")
	if !authOK(r2, "tok") {
		t.Fatalf("expected true with X-Auth-Token")
	}
	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.Header.Set("Authorization", "Bearer abc")
	if !authOK(r3, "abc") {
		t.Fatalf("expected true with Authorization bearer")
	}
}

func TestAuthOK_BearerCaseInsensitivePrefix(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer abc")
	if !authOK(r, "abc") {
		t.Fatalf("expected true with lowercase bearer prefix")
	}
}

func TestAuthOK_NegativeCases(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/?password=wrong", nil)
	if authOK(r1, "secret") {
		t.Fatalf("expected false with wrong query token")
	}
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Auth-Token", "nope")
	if authOK(r2, "secret") {
		t.Fatalf("expected false with wrong X-Auth-Token")
	}
	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.Header.Set("Authorization", "Bearer nope")
	if authOK(r3, "secret") {
		t.Fatalf("expected false with wrong bearer token")
	}
	if authOK(nil, "secret") {
		t.Fatalf("expected false with nil request")
	}
}

func TestContent_MethodNotAllowed(t *testing.T) {
	srv := New(config.Config{}, &fakeGenerator{}, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/interview/content", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestContent_BadJSON(t *testing.T) {
	srv := New(config.Config{}, &fakeGenerator{}, nil, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/content", strings.NewReader("not-json"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestContent_Unauthorized(t *testing.T) {
	srv := New(config.Config{AuthPassword: "secret"}, &fakeGenerator{}, nil, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/content", strings.NewReader(`{"resume":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestContent_ReturnsQuestions(t *testing.T) {
	srv := New(config.Config{}, &fakeGenerator{blob: "Hi Jane!\n1. Why Go?"}, nil, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/content", strings.NewReader(`{"resume":"Jane, Go dev"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp contentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Questions != "Hi Jane!\n1. Why Go?" {
		t.Fatalf("questions = %q", resp.Questions)
	}
}

func TestContent_EmptyResume(t *testing.T) {
	srv := New(config.Config{}, &fakeGenerator{}, nil, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/content", strings.NewReader(`{"resume":""}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestContent_GeneratorError(t *testing.T) {
	srv := New(config.Config{}, &fakeGenerator{err: errors.New("quota")}, nil, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/content", strings.NewReader(`{"resume":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestAnalyze_Success(t *testing.T) {
	an := &fakeAnalyzer{result: analysis.Result{Metrics: analysis.Metrics{OverallScore: 77}}, cached: true}
	srv := New(config.Config{}, nil, an, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/analyze", strings.NewReader(sampleLog()))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Cached || resp.Analysis.Metrics.OverallScore != 77 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAnalyze_FallbackOnError(t *testing.T) {
	srv := New(config.Config{}, nil, &fakeAnalyzer{err: errors.New("model down")}, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/analyze", strings.NewReader(sampleLog()))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Analysis.Fallback {
		t.Fatalf("expected fallback analysis, got %+v", resp)
	}
	if len(resp.Analysis.QuestionResponses) != 1 {
		t.Fatalf("question responses = %d", len(resp.Analysis.QuestionResponses))
	}
}

func TestAnalyze_EmptyLog(t *testing.T) {
	srv := New(config.Config{}, nil, &fakeAnalyzer{}, nil)
	r := httptest.NewRequest(http.MethodPost, "/interview/analyze", strings.NewReader(`{"conversationLog":[]}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
