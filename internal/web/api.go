package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"banner-text-advisor/internal/advisor"
	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/history"
	"banner-text-advisor/internal/imaging"
	"banner-text-advisor/internal/prompt"
	"banner-text-advisor/internal/suggestion"
)

type analyzeResponse struct {
	SessionID   string                  `json:"session_id"`
	Suggestions []suggestion.Suggestion `json:"suggestions"`
	Raw         string                  `json:"raw"`
	Banner      *imaging.Info           `json:"banner,omitempty"`
	Photo       *imaging.Info           `json:"photo,omitempty"`
}

type variantsRequest struct {
	Kind   string     `json:"kind"`
	Brand  brand.Info `json:"brand"`
	APIKey string     `json:"api_key,omitempty"`
}

type variantsResponse struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

var errNoKey = errors.New("no Gemini API key: send api_key or configure GEMINI_API_KEY")

// apiAdvisor binds a key sent with the request before resolving the
// session's advisor.
func (s *Server) apiAdvisor(ctx context.Context, id, apiKey string) (*advisor.Advisor, int, error) {
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		if err := s.advisors.set(ctx, id, apiKey); err != nil {
			return nil, http.StatusBadRequest, err
		}
	}
	adv, ok, err := s.advisors.get(ctx, id)
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	if !ok {
		return nil, http.StatusBadRequest, errNoKey
	}
	return adv, http.StatusOK, nil
}

func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)

	if err := s.parseUploadForm(w, r); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	applyForm(r, &st)

	banner, photo, err := readUploads(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	if banner == nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing banner image"})
		return
	}

	adv, status, err := s.apiAdvisor(ctx, id, r.FormValue("api_key"))
	if err != nil {
		writeJSON(w, status, apiError{Error: err.Error()})
		return
	}

	imgs, err := prepareImages(ctx, banner, photo)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	st.Banner = &imgs.banner.Info
	st.Photo = imgs.photo

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	analysis, err := adv.AnalyzeBanner(callCtx, imgs.banner, st.CustomPrompt, st.Brand)
	if err != nil {
		s.saveState(ctx, st)
		writeJSON(w, http.StatusBadGateway, apiError{Error: "Error analyzing image: " + err.Error()})
		return
	}

	st.Suggestions = analysis.Suggestions
	st.RawAnalysis = analysis.Raw
	s.saveState(ctx, st)
	history.Record(ctx, s.history, s.logger,
		history.NewEntry(id, history.SourceWeb, history.ActionAnalyze, st.Brand, analysis.Suggestions))

	out := analysis.Suggestions
	if out == nil {
		out = []suggestion.Suggestion{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		SessionID:   id,
		Suggestions: out,
		Raw:         analysis.Raw,
		Banner:      st.Banner,
		Photo:       st.Photo,
	})
}

func (s *Server) handleAPIVariants(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req variantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}

	kind, ok := prompt.ParseTextKind(req.Kind)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unknown kind: use header, main or cta"})
		return
	}

	info := st.Brand.Merge(req.Brand)
	if missing := info.Missing(); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing brand fields: " + strings.Join(missing, ", ")})
		return
	}
	st.Brand = info

	adv, status, err := s.apiAdvisor(ctx, id, req.APIKey)
	if err != nil {
		writeJSON(w, status, apiError{Error: err.Error()})
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	text, err := adv.TextVariants(callCtx, kind, info)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiError{Error: "Error generating text: " + err.Error()})
		return
	}

	st.SetVariants(kind, text)
	s.saveState(ctx, st)
	history.Record(ctx, s.history, s.logger,
		history.NewEntry(id, history.SourceWeb, history.ActionVariants, info, nil))

	writeJSON(w, http.StatusOK, variantsResponse{
		SessionID: id,
		Kind:      kind.Key(),
		Title:     kind.Title(),
		Text:      text,
	})
}
