package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/imaging"
	"banner-text-advisor/internal/prompt"
	"banner-text-advisor/internal/suggestion"
)

// State is everything remembered between the actions of one user. It never
// holds the API key; that lives only in memory next to the advisor built
// from it.
type State struct {
	ID              string                     `json:"id"`
	Brand           brand.Info                 `json:"brand"`
	CustomPrompt    string                     `json:"custom_prompt,omitempty"`
	Suggestions     []suggestion.Suggestion    `json:"suggestions,omitempty"`
	RawAnalysis     string                     `json:"raw_analysis,omitempty"`
	PlacementReport string                     `json:"placement_report,omitempty"`
	Variants        map[prompt.TextKind]string `json:"variants,omitempty"`
	Banner          *imaging.Info              `json:"banner,omitempty"`
	Photo           *imaging.Info              `json:"photo,omitempty"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// SetVariants stores the latest copy options of one kind.
func (s *State) SetVariants(kind prompt.TextKind, text string) {
	if s.Variants == nil {
		s.Variants = make(map[prompt.TextKind]string)
	}
	s.Variants[kind] = text
}

// ClearResults forgets model output but keeps brand and prompt settings.
func (s *State) ClearResults() {
	s.Suggestions = nil
	s.RawAnalysis = ""
	s.PlacementReport = ""
	s.Variants = nil
	s.Banner = nil
	s.Photo = nil
}

type Store interface {
	// Get returns the state for id. The boolean is false when nothing is
	// stored or the entry expired.
	Get(ctx context.Context, id string) (State, bool, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}

// Load returns the stored state for id or a fresh one carrying id.
func Load(ctx context.Context, store Store, id string) (State, error) {
	st, ok, err := store.Get(ctx, id)
	if err != nil {
		return State{}, err
	}
	if !ok {
		st = State{ID: id}
	}
	return st, nil
}

type Options struct {
	TTL time.Duration
	Now func() time.Time
}

// MemoryStore keeps states in process memory and forgets them after TTL of
// inactivity.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]State
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 120 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		sessions: make(map[string]State),
		ttl:      ttl,
		now:      now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return State{}, false, nil
	}
	if s.expiredLocked(st) {
		delete(s.sessions, id)
		return State{}, false, nil
	}
	return cloneState(st), true, nil
}

func (s *MemoryStore) Save(_ context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = s.now()
	s.sessions[st.ID] = cloneState(st)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Sweep drops every expired state and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.sessions {
		if s.expiredLocked(st) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports how many states are held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) expiredLocked(st State) bool {
	return s.now().Sub(st.UpdatedAt) > s.ttl
}

// cloneState copies the slices and maps so callers cannot mutate stored
// state through a returned value.
func cloneState(st State) State {
	if st.Suggestions != nil {
		out := make([]suggestion.Suggestion, len(st.Suggestions))
		for i, sg := range st.Suggestions {
			styling := make(map[string]string, len(sg.Styling))
			for k, v := range sg.Styling {
				styling[k] = v
			}
			sg.Styling = styling
			out[i] = sg
		}
		st.Suggestions = out
	}
	if st.Variants != nil {
		variants := make(map[prompt.TextKind]string, len(st.Variants))
		for k, v := range st.Variants {
			variants[k] = v
		}
		st.Variants = variants
	}
	if st.Banner != nil {
		info := *st.Banner
		st.Banner = &info
	}
	if st.Photo != nil {
		info := *st.Photo
		st.Photo = &info
	}
	return st
}
