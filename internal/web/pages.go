package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"banner-text-advisor/internal/history"
	"banner-text-advisor/internal/imaging"
	"banner-text-advisor/internal/prompt"
	"banner-text-advisor/internal/session"
	"banner-text-advisor/internal/suggestion"
)

const (
	noticeNoKey       = "Please enter your Gemini API key to analyze banners."
	noticeNoBanner    = "Please upload a banner image for analysis."
	noticeNeedAll     = "Please upload an image and fill in all brand information to get suggestions."
	noticeNeedBrand   = "Please fill in all brand information to generate text options."
	noticeNoSuggested = "The model reply could not be read as suggestions."
)

var templateFuncs = map[string]any{
	"join": strings.Join,
}

type pageData struct {
	State   session.State
	OwnKey  bool
	HasKey  bool
	Notice  string
	Error   string
	Kinds   []prompt.NamedOption
	Missing []string
	// NoPhoto is shown in the photo details panel.
	NoPhoto string

	Analyzed    bool
	Suggestions []suggestionView
	Variants    []variantView
}

type suggestionView struct {
	Heading   string
	Position  string
	Styling   []suggestion.StyleAttr
	Reasoning string
}

type variantView struct {
	Title string
	Text  string
}

func (s *Server) page(st session.State, notice, errMsg string) pageData {
	own, available := s.advisors.hasKey(st.ID)
	data := pageData{
		State:   st,
		OwnKey:  own,
		HasKey:  available,
		Notice:  notice,
		Error:   errMsg,
		Kinds:   prompt.TextKinds(),
		Missing: st.Brand.Missing(),
		NoPhoto: "Please upload a photo to continue.",
	}

	for i, sg := range st.Suggestions {
		data.Suggestions = append(data.Suggestions, suggestionView{
			Heading:   sg.Heading(i + 1),
			Position:  sg.Position,
			Styling:   sg.StyleAttrs(),
			Reasoning: sg.Reasoning,
		})
	}
	for _, opt := range data.Kinds {
		if text, ok := st.Variants[opt.Kind]; ok {
			data.Variants = append(data.Variants, variantView{Title: opt.Name, Text: text})
		}
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	s.renderStatus(w, http.StatusOK, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("render page failed", "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	st := s.loadState(r.Context(), id)
	s.render(w, s.page(st, "", ""))
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)

	if err := r.ParseForm(); err != nil {
		s.render(w, s.page(st, "", err.Error()))
		return
	}

	if err := s.advisors.set(ctx, id, r.PostFormValue("api_key")); err != nil {
		s.logger.Warn("api key rejected", "session", id, "err", err)
		s.render(w, s.page(st, "", "Could not use this API key: "+err.Error()))
		return
	}

	s.saveState(ctx, st)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// applyForm copies brand fields and the custom prompt into st when the form
// carries them.
func applyForm(r *http.Request, st *session.State) {
	if _, ok := r.Form["brand_name"]; ok {
		st.Brand = brandFromForm(r)
	}
	if _, ok := r.Form["custom_prompt"]; ok {
		st.CustomPrompt = strings.TrimSpace(r.FormValue("custom_prompt"))
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)

	if err := s.parseUploadForm(w, r); err != nil {
		s.render(w, s.page(st, "", err.Error()))
		return
	}
	applyForm(r, &st)

	banner, photo, err := readUploads(r)
	if err != nil {
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", err.Error()))
		return
	}

	adv, ok, err := s.advisors.get(ctx, id)
	notice := ""
	switch {
	case err != nil:
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error analyzing image: "+err.Error()))
		return
	case !ok:
		notice = noticeNoKey
	case banner == nil:
		notice = noticeNoBanner
	}
	if notice != "" {
		if photo != nil {
			if info, err := imaging.Inspect(photo.data); err == nil {
				st.Photo = &info
			}
		}
		s.saveState(ctx, st)
		s.render(w, s.page(st, notice, ""))
		return
	}

	imgs, err := prepareImages(ctx, banner, photo)
	if err != nil {
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error processing banner: "+err.Error()))
		return
	}
	st.Banner = &imgs.banner.Info
	st.Photo = imgs.photo

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	analysis, err := adv.AnalyzeBanner(callCtx, imgs.banner, st.CustomPrompt, st.Brand)
	if err != nil {
		st.Suggestions = nil
		st.RawAnalysis = ""
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error analyzing image: "+err.Error()))
		return
	}

	st.Suggestions = analysis.Suggestions
	st.RawAnalysis = analysis.Raw
	s.saveState(ctx, st)
	history.Record(ctx, s.history, s.logger,
		history.NewEntry(id, history.SourceWeb, history.ActionAnalyze, st.Brand, analysis.Suggestions))

	data := s.page(st, "", "")
	data.Analyzed = true
	if len(analysis.Suggestions) == 0 {
		data.Notice = noticeNoSuggested
	}
	s.render(w, data)
}

func (s *Server) handlePlacement(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)

	if err := s.parseUploadForm(w, r); err != nil {
		s.render(w, s.page(st, "", err.Error()))
		return
	}
	applyForm(r, &st)

	banner, _, err := readUploads(r)
	if err != nil {
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", err.Error()))
		return
	}

	adv, ok, err := s.advisors.get(ctx, id)
	switch {
	case err != nil:
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error analyzing image: "+err.Error()))
		return
	case !ok:
		s.saveState(ctx, st)
		s.render(w, s.page(st, noticeNoKey, ""))
		return
	case banner == nil || !st.Brand.Complete():
		s.saveState(ctx, st)
		s.render(w, s.page(st, noticeNeedAll, ""))
		return
	}

	img, err := imaging.Normalize(banner.data)
	if err != nil {
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error processing banner: "+err.Error()))
		return
	}
	st.Banner = &img.Info

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	report, err := adv.PlacementReport(callCtx, img, st.Brand)
	if err != nil {
		st.PlacementReport = ""
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error analyzing image: "+err.Error()))
		return
	}

	st.PlacementReport = report
	s.saveState(ctx, st)
	history.Record(ctx, s.history, s.logger,
		history.NewEntry(id, history.SourceWeb, history.ActionPlacement, st.Brand, nil))

	s.render(w, s.page(st, "", ""))
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)

	kind, ok := prompt.ParseTextKind(mux.Vars(r)["kind"])
	if !ok {
		s.renderStatus(w, http.StatusNotFound, s.page(st, "", "Unknown text element: "+mux.Vars(r)["kind"]))
		return
	}

	if err := s.parseUploadForm(w, r); err != nil {
		s.render(w, s.page(st, "", err.Error()))
		return
	}
	applyForm(r, &st)

	adv, available, err := s.advisors.get(ctx, id)
	switch {
	case err != nil:
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error generating text: "+err.Error()))
		return
	case !available:
		s.saveState(ctx, st)
		s.render(w, s.page(st, noticeNoKey, ""))
		return
	case !st.Brand.Complete():
		s.saveState(ctx, st)
		s.render(w, s.page(st, noticeNeedBrand, ""))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	text, err := adv.TextVariants(callCtx, kind, st.Brand)
	if err != nil {
		s.saveState(ctx, st)
		s.render(w, s.page(st, "", "Error generating text: "+err.Error()))
		return
	}

	st.SetVariants(kind, text)
	s.saveState(ctx, st)
	history.Record(ctx, s.history, s.logger,
		history.NewEntry(id, history.SourceWeb, history.ActionVariants, st.Brand, nil))

	s.render(w, s.page(st, "", ""))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	ctx := r.Context()
	st := s.loadState(ctx, id)
	st.ClearResults()
	s.saveState(ctx, st)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func readUploads(r *http.Request) (banner, photo *upload, err error) {
	banner, err = readUpload(r, "banner")
	if err != nil {
		return nil, nil, err
	}
	photo, err = readUpload(r, "photo")
	if err != nil {
		return nil, nil, err
	}
	return banner, photo, nil
}
