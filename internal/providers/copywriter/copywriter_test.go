package copywriter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"swipeshop/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body any) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestStaticGenerateCopy(t *testing.T) {
	s := NewStatic()
	lines, err := s.GenerateCopy(context.Background(), CopyRequest{ProductName: "ceramic mug", Count: 4})
	if err != nil {
		t.Fatalf("GenerateCopy returned error: %v", err)
	}
	want := []string{
		"Upgrade your style with Ceramic Mug",
		"Experience the best of Ceramic Mug",
		"Ceramic Mug: Simply amazing",
		"Upgrade your style with Ceramic Mug",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q", lines)
	}

	lines, _ = s.GenerateCopy(context.Background(), CopyRequest{Defaults: []string{"a", "b"}})
	if strings.Join(lines, "|") != "a|b" {
		t.Fatalf("defaults not honored: %q", lines)
	}
}

func TestStaticRefineAppendsMark(t *testing.T) {
	got, err := NewStatic().Refine(context.Background(), RefineRequest{Copy: "Fresh start "})
	if err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if got != "Fresh start ✨" {
		t.Fatalf("Refine = %q", got)
	}
}

func TestParseCopyList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		limit   int
		want    []string
		wantErr bool
	}{
		{name: "plain", raw: `["a","b"]`, want: []string{"a", "b"}},
		{name: "fenced", raw: "```json\n[\"a\", \" b \"]\n```", want: []string{"a", "b"}},
		{name: "prose around", raw: "Sure! [\"x\"] enjoy", want: []string{"x"}},
		{name: "limit", raw: `["a","b","c"]`, limit: 2, want: []string{"a", "b"}},
		{name: "keeps blank slot", raw: `["a",""]`, want: []string{"a", ""}},
		{name: "all blank", raw: `["", " "]`, wantErr: true},
		{name: "object", raw: `{"a":1}`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCopyList(tc.raw, tc.limit)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrGenerationFailed) {
					t.Fatalf("expected ErrGenerationFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseRefined(t *testing.T) {
	got, err := parseRefined("\"Shine brighter\"\nextra commentary")
	if err != nil || got != "Shine brighter" {
		t.Fatalf("parseRefined = %q, %v", got, err)
	}
	if _, err := parseRefined("  "); !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected failure, got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()
	cw, err := New(ctx, Options{Provider: "gemini"})
	if err != nil || cw.Name() != StaticProviderName {
		t.Fatalf("gemini without key should degrade to static: %v %v", cw, err)
	}
	cw, err = New(ctx, Options{Provider: "openai", OpenAIAPIKey: "k"})
	if err != nil || cw.Name() != OpenAIProviderName {
		t.Fatalf("openai provider: %v %v", cw, err)
	}
	if _, err := New(ctx, Options{Provider: "bard"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown provider: %v", err)
	}
}

func TestOpenAIGenerateCopy(t *testing.T) {
	var gotModel string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		return jsonResponse(http.StatusOK, map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `["Brew joy","Sip better","Mug life"]`},
			}},
		}), nil
	})}
	var warned string
	o, err := NewOpenAI(OpenAIOptions{
		APIKey:     "k",
		Model:      "gpt4o-mini",
		BaseURL:    "https://openai.test/v1/",
		HTTPClient: client,
		OnWarning:  func(reason, _ string) { warned = reason },
	})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	lines, err := o.GenerateCopy(context.Background(), CopyRequest{ProductName: "Mug", Count: 3})
	if err != nil {
		t.Fatalf("GenerateCopy: %v", err)
	}
	if len(lines) != 3 || lines[0] != "Brew joy" {
		t.Fatalf("lines = %q", lines)
	}
	if gotModel != "gpt-4o-mini" || warned != "model_alias" {
		t.Fatalf("model = %q warned = %q", gotModel, warned)
	}
}

func TestOpenAIErrorsAreClassified(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusTooManyRequests, want: domain.ErrRateLimited},
		{status: http.StatusInternalServerError, want: domain.ErrGenerationFailed},
	}
	for _, tc := range tests {
		client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, map[string]any{"error": map[string]any{"message": "nope", "type": "err"}}), nil
		})}
		o, _ := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: "https://openai.test/v1/", HTTPClient: client})
		if _, err := o.Refine(context.Background(), RefineRequest{Copy: "x"}); !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestGeminiGenerateCopy(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": `["Glow up","Own the room"]`}},
				},
			}},
		}), nil
	})}
	g, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k", Model: "gemini-test", BaseURL: "https://gemini.test/v1beta", HTTPClient: client})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	lines, err := g.GenerateCopy(context.Background(), CopyRequest{ProductName: "Lamp", Count: 2})
	if err != nil {
		t.Fatalf("GenerateCopy: %v", err)
	}
	if strings.Join(lines, "|") != "Glow up|Own the room" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestGeminiQuotaIsRateLimited(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		}), nil
	})}
	g, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k", HTTPClient: client})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	if _, err := g.GenerateCopy(context.Background(), CopyRequest{Count: 1}); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSDKBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                                                   "",
		"https://generativelanguage.googleapis.com/v1beta":   "https://generativelanguage.googleapis.com/",
		"https://generativelanguage.googleapis.com/v1beta/":  "https://generativelanguage.googleapis.com/",
		"https://proxy.internal":                             "https://proxy.internal/",
	}
	for in, want := range cases {
		if got := sdkBaseURL(in); got != want {
			t.Fatalf("sdkBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
