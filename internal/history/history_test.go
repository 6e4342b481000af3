package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/suggestion"
)

type captured struct {
	method string
	path   string
	apiKey string
	prefer string
	body   []map[string]any
}

func newSupabase(t *testing.T, status int, respBody string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.apiKey = r.Header.Get("apikey")
		got.prefer = r.Header.Get("Prefer")

		raw, _ := io.ReadAll(r.Body)
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err == nil {
			got.body = append(got.body, row)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestSupabaseRecorderInsertsRow(t *testing.T) {
	srv, got := newSupabase(t, http.StatusCreated, "")

	rec, err := NewSupabaseRecorder(SupabaseOptions{URL: srv.URL + "/", Key: "service-key", Table: "analyses"})
	require.NoError(t, err)

	info := brand.Info{Name: "Acme", Industry: "Retail", Audience: "Students", Objective: "Awareness"}
	entry := NewEntry("sess-1", SourceWeb, ActionAnalyze, info, []suggestion.Suggestion{{
		Text: "Shop Now", Position: "top", Styling: suggestion.DefaultStyling(), Reasoning: "contrast",
	}})
	require.NoError(t, rec.Record(context.Background(), entry))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/rest/v1/analyses", got.path)
	assert.Equal(t, "service-key", got.apiKey)
	assert.Equal(t, "return=minimal", got.prefer)

	require.Len(t, got.body, 1)
	row := got.body[0]
	assert.Equal(t, "sess-1", row["session_id"])
	assert.Equal(t, "web", row["source"])
	assert.Equal(t, "analyze", row["action"])
	assert.Equal(t, "Acme", row["brand_name"])
	assert.Equal(t, "Students", row["target_audience"])
	assert.EqualValues(t, 1, row["suggestion_count"])
	assert.Len(t, row["suggestions"], 1)
}

func TestSupabaseRecorderReportsErrors(t *testing.T) {
	srv, _ := newSupabase(t, http.StatusNotFound, `{"code":"42P01","message":"relation \"public.analyses\" does not exist"}`)

	rec, err := NewSupabaseRecorder(SupabaseOptions{URL: srv.URL, Key: "service-key", Table: "analyses"})
	require.NoError(t, err)

	err = rec.Record(context.Background(), NewEntry("s", SourceTelegram, ActionVariants, brand.Info{}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42P01")
}

func TestSupabaseRecorderHonoursCancelledContext(t *testing.T) {
	srv, got := newSupabase(t, http.StatusCreated, "")
	rec, err := NewSupabaseRecorder(SupabaseOptions{URL: srv.URL, Key: "k"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rec.Record(ctx, Entry{}), context.Canceled)
	assert.Empty(t, got.method)
}

func TestNewSupabaseRecorderRequiresSettings(t *testing.T) {
	_, err := NewSupabaseRecorder(SupabaseOptions{URL: "https://example.supabase.co"})
	assert.Error(t, err)
}

func TestNewEntryNeverNilSuggestions(t *testing.T) {
	e := NewEntry("s", SourceWeb, ActionPlacement, brand.Info{Name: "Acme"}, nil)
	assert.NotNil(t, e.Suggestions)
	assert.Equal(t, 0, e.SuggestionCount)
	assert.Equal(t, "Acme", e.BrandName)
	assert.False(t, e.CreatedAt.IsZero())
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, Entry) error { return errors.New("offline") }

func TestRecordLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	Record(context.Background(), failingRecorder{}, logger, Entry{Action: ActionAnalyze})
	assert.Contains(t, buf.String(), "history record failed")
	assert.Contains(t, buf.String(), "offline")

	buf.Reset()
	Record(context.Background(), Nop{}, logger, Entry{})
	Record(context.Background(), nil, logger, Entry{})
	assert.Empty(t, buf.String())
}
