package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Path   string
	APIKey string
	Body   map[string]any
}

type fakeGemini struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Path:   r.URL.Path,
		APIKey: r.Header.Get("x-goog-api-key"),
		Body:   body,
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("content-type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeGemini) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func textReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, fake *fakeGemini) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		APIVersion: "v1beta",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func contentsParts(t *testing.T, body map[string]any) []any {
	t.Helper()
	contents, ok := body["contents"].([]any)
	require.True(t, ok, "contents missing: %v", body)
	require.Len(t, contents, 1)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	return first["parts"].([]any)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Options{APIKey: "  "})
	assert.Error(t, err)
}

func TestGenerateText(t *testing.T) {
	fake := &fakeGemini{body: textReply("Buy one, get one free")}
	c := newTestClient(t, fake)

	assert.Equal(t, defaultModel, c.Model())

	text, err := c.GenerateText(context.Background(), "Generate compelling header text")
	require.NoError(t, err)
	assert.Equal(t, "Buy one, get one free", text)

	req := fake.last(t)
	assert.True(t, strings.HasSuffix(req.Path, "models/"+defaultModel+":generateContent"), req.Path)
	assert.Equal(t, "test-key", req.APIKey)

	parts := contentsParts(t, req.Body)
	require.Len(t, parts, 1)
	assert.Equal(t, "Generate compelling header text", parts[0].(map[string]any)["text"])

	gen := req.Body["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.3, gen["temperature"], 1e-6)
}

func TestZeroTemperatureIsSent(t *testing.T) {
	fake := &fakeGemini{body: textReply("ok")}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	zero := float32(0)
	c, err := New(context.Background(), Options{
		APIKey:      "test-key",
		Temperature: &zero,
		BaseURL:     srv.URL + "/",
		APIVersion:  "v1beta",
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)

	_, err = c.GenerateText(context.Background(), "Generate compelling header text")
	require.NoError(t, err)

	gen := fake.last(t).Body["generationConfig"].(map[string]any)
	require.Contains(t, gen, "temperature")
	assert.InDelta(t, 0, gen["temperature"], 1e-6)
}

func TestGenerateWithImagesSendsInlineData(t *testing.T) {
	fake := &fakeGemini{body: textReply("Text: Hi\nPosition: top\nWhy")}
	c := newTestClient(t, fake)

	text, err := c.GenerateWithImages(context.Background(), "Analyze this banner",
		ImageInput{Data: []byte{0xff, 0xd8, 0xff}, MimeType: "image/jpeg"},
		ImageInput{},
	)
	require.NoError(t, err)
	assert.Contains(t, text, "Position: top")

	parts := contentsParts(t, fake.last(t).Body)
	require.Len(t, parts, 2, "empty images are skipped")
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mimeType"])
	assert.Equal(t, "/9j/", inline["data"])
}

func TestGenerateJSONDeclaresSchema(t *testing.T) {
	fake := &fakeGemini{body: textReply(`[{"text":"Shop","position":"top","reasoning":"why"}]`)}
	c := newTestClient(t, fake)

	_, err := c.GenerateJSON(context.Background(), "Analyze", ImageInput{Data: []byte("x"), MimeType: "image/png"})
	require.NoError(t, err)

	gen := fake.last(t).Body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", gen["responseMimeType"])
	schema := gen["responseSchema"].(map[string]any)
	assert.Equal(t, "ARRAY", schema["type"])
}

func TestGenerateEmptyResponse(t *testing.T) {
	fake := &fakeGemini{body: textReply("   ")}
	c := newTestClient(t, fake)

	_, err := c.GenerateText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	fake := &fakeGemini{body: textReply("unused")}
	c := newTestClient(t, fake)

	_, err := c.GenerateText(context.Background(), "  ")
	assert.Error(t, err)
	assert.Empty(t, fake.requests)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`,
			want:   ErrQuota,
		},
		{
			name:   "bad key",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			want:   ErrUnauthorized,
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`,
			want:   ErrUnauthorized,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeGemini{status: tc.status, body: tc.body}
			c := newTestClient(t, fake)

			_, err := c.GenerateText(context.Background(), "hello")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerateOtherErrorsAreWrapped(t *testing.T) {
	fake := &fakeGemini{status: http.StatusInternalServerError, body: `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`}
	c := newTestClient(t, fake)

	_, err := c.GenerateText(context.Background(), "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuota)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "gemini generate")
}
