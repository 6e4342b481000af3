// Package handlers turns Telegram updates into advisor calls.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"banner-text-advisor/internal/advisor"
	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/history"
	"banner-text-advisor/internal/imaging"
	"banner-text-advisor/internal/logging"
	"banner-text-advisor/internal/mediagroup"
	"banner-text-advisor/internal/prompt"
	"banner-text-advisor/internal/session"
	"banner-text-advisor/internal/suggestion"
)

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	SendTyping(chatID int64)
	AnswerCallback(callbackID, text string, alert bool) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

// Analyzer is implemented by *advisor.Advisor.
type Analyzer interface {
	AnalyzeBanner(ctx context.Context, img imaging.Image, customPrompt string, info brand.Info) (advisor.Analysis, error)
	TextVariants(ctx context.Context, kind prompt.TextKind, info brand.Info) (string, error)
}

const (
	callbackPrefix = "tv"

	msgStart = "Banner Text Placement Suggester\n\n" +
		"Send me a banner image and I will suggest where to put text on it and how to style it.\n\n" +
		"Tell me about your brand first with /brand, or put the same lines in the photo caption:\n" +
		"Brand: Acme\nIndustry: Retail\nAudience: Young adults\nObjective: Summer sale\n\n" +
		"Send /help for all commands."
	msgHelp = "Commands:\n" +
		"/brand <lines> - set brand name, industry, audience and objective\n" +
		"/prompt <text> - use your own analysis prompt (/prompt alone resets it)\n" +
		"/header - generate header options\n" +
		"/main - generate main text options\n" +
		"/cta - generate call-to-action options\n" +
		"/clear - forget results and brand information\n\n" +
		"Send a banner as a photo or image file to analyze it. Send it together with a second " +
		"image in one album to get that photo's details as well."
	msgBrandUsage = "Send brand information as lines after /brand, for example:\n" +
		"/brand\nBrand: Acme\nIndustry: Retail\nAudience: Young adults\nObjective: Summer sale"
	msgNeedBrand      = "Please fill in all brand information to generate text options. Missing: %s\n\n" + msgBrandUsage
	msgNoSuggestions  = "The model reply could not be read as suggestions. Here is what it said:\n\n%s"
	msgPickVariant    = "Generate specific text elements:"
	msgDownloadFailed = "Could not download the image. Please send it again."
	msgUnsupported    = "Unsupported file type: send a PNG, JPEG or WebP image."
	msgUnknown        = "Unknown command. Send /help for the list."
	msgNotYours       = "These buttons belong to another user."
)

type Options struct {
	Telegram Messenger
	Advisor  Analyzer
	Sessions session.Store
	History  history.Recorder
	Logger   *slog.Logger
	// RequestTimeout bounds each model call. Zero means no extra bound.
	RequestTimeout time.Duration
}

type Handler struct {
	tg             Messenger
	adv            Analyzer
	sessions       session.Store
	history        history.Recorder
	logger         *slog.Logger
	requestTimeout time.Duration
	aggregator     *mediagroup.Aggregator
	locks          *userLocks
}

func New(opts Options) (*Handler, error) {
	switch {
	case opts.Telegram == nil:
		return nil, errors.New("handlers: telegram client is required")
	case opts.Advisor == nil:
		return nil, errors.New("handlers: advisor is required")
	case opts.Sessions == nil:
		return nil, errors.New("handlers: session store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	rec := opts.History
	if rec == nil {
		rec = history.Nop{}
	}

	return &Handler{
		tg:             opts.Telegram,
		adv:            opts.Advisor,
		sessions:       opts.Sessions,
		history:        rec,
		logger:         logger,
		requestTimeout: opts.RequestTimeout,
		locks:          newUserLocks(),
	}, nil
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func sessionID(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From != nil {
			defer h.locks.lock(cb.From.ID)()
		}
		return h.handleCallback(ctx, cb)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	// Album items only queue in the aggregator; the flush takes the lock.
	if msg.MediaGroupID == "" || h.aggregator == nil {
		defer h.locks.lock(userID)()
	}

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if fileID := imageFileID(msg); fileID != "" {
		if msg.MediaGroupID != "" && h.aggregator != nil {
			h.aggregator.Add(mediagroup.Item{
				ChatID:       chatID,
				UserID:       userID,
				MediaGroupID: msg.MediaGroupID,
				Caption:      msg.Caption,
				FileID:       fileID,
			})
			return nil
		}
		return h.processImages(ctx, chatID, userID, msg.Caption, []string{fileID})
	}

	if msg.Document != nil {
		return h.tg.SendText(chatID, msgUnsupported)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, msg.Text)
	}

	return nil
}

func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	defer h.locks.lock(group.UserID)()

	if group.Dropped > 0 {
		h.logger.Info("media group trimmed", "chat_id", group.ChatID, "dropped", group.Dropped)
	}
	if err := h.processImages(ctx, group.ChatID, group.UserID, group.Caption, group.FileIDs); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

// imageFileID returns the largest photo size or an image document.
func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && imaging.Allowed(msg.Document.MimeType) {
		return msg.Document.FileID
	}
	return ""
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID, msgStart)
	case "help":
		return h.tg.SendText(chatID, msgHelp)
	case "brand":
		return h.handleBrand(ctx, chatID, userID, args)
	case "prompt":
		return h.handlePrompt(ctx, chatID, userID, args)
	case "header":
		return h.generateVariants(ctx, chatID, userID, prompt.KindHeader)
	case "main":
		return h.generateVariants(ctx, chatID, userID, prompt.KindMain)
	case "cta":
		return h.generateVariants(ctx, chatID, userID, prompt.KindCTA)
	case "clear":
		if err := h.sessions.Delete(ctx, sessionID(userID)); err != nil {
			h.logger.Error("session delete failed", "user_id", userID, "err", err)
			return h.tg.SendText(chatID, "Could not clear your session. Please try again.")
		}
		return h.tg.SendText(chatID, "Results and brand information cleared.")
	default:
		return h.tg.SendText(chatID, msgUnknown)
	}
}

func (h *Handler) handleBrand(ctx context.Context, chatID, userID int64, args string) error {
	info := brand.ParseLines(args)
	if info.Empty() {
		return h.tg.SendText(chatID, msgBrandUsage)
	}

	st, err := h.load(ctx, userID)
	if err != nil {
		return h.tg.SendText(chatID, "Could not load your session. Please try again.")
	}
	st.Brand = st.Brand.Merge(info)
	h.save(ctx, st)

	return h.tg.SendText(chatID, describeBrand(st.Brand))
}

func (h *Handler) handlePrompt(ctx context.Context, chatID, userID int64, args string) error {
	st, err := h.load(ctx, userID)
	if err != nil {
		return h.tg.SendText(chatID, "Could not load your session. Please try again.")
	}
	st.CustomPrompt = args
	h.save(ctx, st)

	if args == "" {
		return h.tg.SendText(chatID, "Custom prompt cleared. The default analysis will be used.")
	}
	return h.tg.SendText(chatID, "Custom prompt saved. It will be used for your next banner.")
}

func (h *Handler) handleText(ctx context.Context, chatID, userID int64, text string) error {
	if info := brand.ParseLines(text); !info.Empty() {
		return h.handleBrand(ctx, chatID, userID, text)
	}
	if kind, ok := detectTextKind(text); ok {
		return h.generateVariants(ctx, chatID, userID, kind)
	}
	return h.tg.SendText(chatID, "Send me a banner image to analyze, or /help for commands.")
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	owner, kind, ok := parseCallback(cb.Data)
	if !ok || cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		return h.tg.AnswerCallback(cb.ID, "", false)
	}
	if owner != cb.From.ID {
		return h.tg.AnswerCallback(cb.ID, msgNotYours, true)
	}
	if err := h.tg.AnswerCallback(cb.ID, "", false); err != nil {
		h.logger.Debug("answer callback failed", "err", err)
	}
	return h.generateVariants(ctx, cb.Message.Chat.ID, cb.From.ID, kind)
}

func callbackData(userID int64, kind prompt.TextKind) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, userID, kind.Key())
}

func parseCallback(data string) (int64, prompt.TextKind, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return 0, "", false
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	kind, ok := prompt.ParseTextKind(parts[2])
	if !ok {
		return 0, "", false
	}
	return owner, kind, true
}

func variantsKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, opt := range prompt.TextKinds() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(opt.Name, callbackData(userID, opt.Kind)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

type download struct {
	data []byte
	mime string
}

func (h *Handler) processImages(ctx context.Context, chatID, userID int64, caption string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	h.tg.SendTyping(chatID)

	st, err := h.load(ctx, userID)
	if err != nil {
		return h.tg.SendText(chatID, "Could not load your session. Please try again.")
	}
	if info := brand.ParseLines(caption); !info.Empty() {
		st.Brand = st.Brand.Merge(info)
	}

	downloads := make([]download, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			data, mimeType, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			downloads[i] = download{data: data, mime: mimeType}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("image download failed", "chat_id", chatID, "err", err)
		h.save(ctx, st)
		return h.tg.SendText(chatID, msgDownloadFailed)
	}

	for _, d := range downloads {
		if !imaging.Allowed(d.mime) {
			h.save(ctx, st)
			return h.tg.SendText(chatID, msgUnsupported)
		}
	}

	img, err := imaging.Normalize(downloads[0].data)
	if err != nil {
		h.save(ctx, st)
		return h.tg.SendText(chatID, "Error processing banner: "+err.Error())
	}
	st.Banner = &img.Info
	st.Photo = nil

	if len(downloads) > 1 {
		if info, err := imaging.Inspect(downloads[1].data); err == nil {
			st.Photo = &info
			if err := h.tg.SendText(chatID, describeImage(info)); err != nil {
				h.logger.Warn("send photo details failed", "err", err)
			}
		}
	}

	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	analysis, err := h.adv.AnalyzeBanner(callCtx, img, st.CustomPrompt, st.Brand)
	if err != nil {
		st.Suggestions = nil
		st.RawAnalysis = ""
		h.save(ctx, st)
		return h.tg.SendText(chatID, "Error analyzing image: "+err.Error())
	}

	st.Suggestions = analysis.Suggestions
	st.RawAnalysis = analysis.Raw
	h.save(ctx, st)
	history.Record(ctx, h.history, h.logger,
		history.NewEntry(st.ID, history.SourceTelegram, history.ActionAnalyze, st.Brand, analysis.Suggestions))

	if len(analysis.Suggestions) == 0 {
		if err := h.tg.SendText(chatID, fmt.Sprintf(msgNoSuggestions, analysis.Raw)); err != nil {
			return err
		}
	}
	for i, sg := range analysis.Suggestions {
		if err := h.tg.SendText(chatID, formatSuggestion(i+1, sg)); err != nil {
			return err
		}
	}

	_, err = h.tg.SendTextWithKeyboard(chatID, msgPickVariant, variantsKeyboard(userID))
	return err
}

func (h *Handler) generateVariants(ctx context.Context, chatID, userID int64, kind prompt.TextKind) error {
	st, err := h.load(ctx, userID)
	if err != nil {
		return h.tg.SendText(chatID, "Could not load your session. Please try again.")
	}
	if missing := st.Brand.Missing(); len(missing) > 0 {
		return h.tg.SendText(chatID, fmt.Sprintf(msgNeedBrand, strings.Join(missing, ", ")))
	}

	h.tg.SendTyping(chatID)

	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	text, err := h.adv.TextVariants(callCtx, kind, st.Brand)
	if err != nil {
		return h.tg.SendText(chatID, "Error generating text: "+err.Error())
	}

	st.SetVariants(kind, text)
	h.save(ctx, st)
	history.Record(ctx, h.history, h.logger,
		history.NewEntry(st.ID, history.SourceTelegram, history.ActionVariants, st.Brand, nil))

	return h.tg.SendText(chatID, kind.Title()+"\n\n"+text)
}

func (h *Handler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout > 0 {
		return context.WithTimeout(ctx, h.requestTimeout)
	}
	return context.WithCancel(ctx)
}

func (h *Handler) load(ctx context.Context, userID int64) (session.State, error) {
	st, err := session.Load(ctx, h.sessions, sessionID(userID))
	if err != nil {
		h.logger.Error("session load failed", "user_id", userID, "err", err)
	}
	return st, err
}

func (h *Handler) save(ctx context.Context, st session.State) {
	if err := h.sessions.Save(ctx, st); err != nil {
		h.logger.Error("session save failed", "session", st.ID, "err", err)
	}
}

func formatSuggestion(i int, sg suggestion.Suggestion) string {
	var b strings.Builder
	b.WriteString(sg.Heading(i))
	b.WriteString("\n\nPosition: ")
	b.WriteString(sg.Position)
	b.WriteString("\nStyling:")
	for _, attr := range sg.StyleAttrs() {
		fmt.Fprintf(&b, "\n  %s: %s", attr.Key, attr.Value)
	}
	b.WriteString("\nReasoning: ")
	b.WriteString(sg.Reasoning)
	return b.String()
}

func describeImage(info imaging.Info) string {
	return fmt.Sprintf("Image Details:\nFormat: %s\nSize: %s\nMode: %s", info.Format, info.Size(), info.Mode)
}

func describeBrand(info brand.Info) string {
	var b strings.Builder
	b.WriteString("Brand information:")
	for _, f := range info.Fields() {
		value := f.Value
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintf(&b, "\n%s: %s", f.Label, value)
	}
	return b.String()
}
