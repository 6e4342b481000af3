package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"

	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/logging"
	"banner-text-advisor/internal/suggestion"
)

const (
	SourceWeb      = "web"
	SourceTelegram = "telegram"

	ActionAnalyze   = "analyze"
	ActionPlacement = "placement"
	ActionVariants  = "variants"
)

// Entry is one row of the analysis log. It carries no API key and no image
// bytes.
type Entry struct {
	SessionID         string                  `json:"session_id"`
	Source            string                  `json:"source"`
	Action            string                  `json:"action"`
	BrandName         string                  `json:"brand_name"`
	Industry          string                  `json:"industry"`
	TargetAudience    string                  `json:"target_audience"`
	CampaignObjective string                  `json:"campaign_objective"`
	SuggestionCount   int                     `json:"suggestion_count"`
	Suggestions       []suggestion.Suggestion `json:"suggestions"`
	CreatedAt         time.Time               `json:"created_at"`
}

// NewEntry fills the brand columns from info and stamps the current time.
func NewEntry(sessionID, source, action string, info brand.Info, suggestions []suggestion.Suggestion) Entry {
	if suggestions == nil {
		suggestions = []suggestion.Suggestion{}
	}
	return Entry{
		SessionID:         sessionID,
		Source:            source,
		Action:            action,
		BrandName:         info.Name,
		Industry:          info.Industry,
		TargetAudience:    info.Audience,
		CampaignObjective: info.Objective,
		SuggestionCount:   len(suggestions),
		Suggestions:       suggestions,
		CreatedAt:         time.Now().UTC(),
	}
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Record stores e and logs a failure instead of returning it. History is
// never allowed to fail a user action.
func Record(ctx context.Context, rec Recorder, logger *slog.Logger, e Entry) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, e); err != nil && logger != nil {
		logger.Warn("history record failed", "action", e.Action, "source", e.Source, "err", err)
	}
}

type SupabaseOptions struct {
	URL    string
	Key    string
	Table  string
	Logger *slog.Logger
}

// SupabaseRecorder inserts entries into a Supabase table through the REST
// API.
type SupabaseRecorder struct {
	client *supabase.Client
	table  string
	logger *slog.Logger
}

func NewSupabaseRecorder(opts SupabaseOptions) (*SupabaseRecorder, error) {
	url := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	key := strings.TrimSpace(opts.Key)
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}

	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = "banner_analyses"
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return &SupabaseRecorder{client: client, table: table, logger: logger}, nil
}

func (r *SupabaseRecorder) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := r.client.From(r.table).Insert(e, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("insert into %s: %w", r.table, err)
	}

	r.logger.Debug("history recorded", "table", r.table, "action", e.Action, "suggestions", e.SuggestionCount)
	return nil
}
