// Package telegram wires the translation pipelines to a Telegram bot: command
// handlers for chat configuration, message and voice-note handlers gated by
// the chat's mode, and callback handlers for the interactive buttons.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/semaphore"

	"github.com/hitromudr/tg-translator/internal/observe"
	"github.com/hitromudr/tg-translator/internal/speech"
	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/internal/translate"
)

// api is the subset of [bot.Bot] the handlers use. Narrowing the surface
// keeps handler tests free of a live Telegram connection.
type api interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
	SendVoice(ctx context.Context, params *bot.SendVoiceParams) (*models.Message, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
}

// Compile-time assertion that the real client satisfies the handler surface.
var _ api = (*bot.Bot)(nil)

const defaultWorkerLimit = 8

// CleanerLimits bounds a single /clean invocation.
type CleanerLimits struct {
	// DefaultCount is the target when /clean has no argument.
	DefaultCount int

	// MaxCount caps the per-invocation target.
	MaxCount int

	// ScanLimit caps how many message IDs one invocation may probe.
	ScanLimit int
}

func (l CleanerLimits) withDefaults() CleanerLimits {
	if l.DefaultCount <= 0 {
		l.DefaultCount = 10
	}
	if l.MaxCount <= 0 {
		l.MaxCount = 50
	}
	if l.ScanLimit <= 0 {
		l.ScanLimit = 200
	}
	return l
}

// Bot handles Telegram updates for the translation assistant. All update
// processing is bounded by a weighted semaphore so a burst of voice notes
// cannot exhaust the process.
type Bot struct {
	client     api
	store      store.Store
	translator *translate.Pipeline
	speech     *speech.Pipeline
	cleaner    CleanerLimits
	metrics    *observe.Metrics
	log        *slog.Logger
	sem        *semaphore.Weighted
	httpClient *http.Client
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger used by all handlers.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bot) {
		if log != nil {
			b.log = log
		}
	}
}

// WithCleanerLimits overrides the /clean bounds.
func WithCleanerLimits(l CleanerLimits) Option {
	return func(b *Bot) { b.cleaner = l.withDefaults() }
}

// WithWorkerLimit caps concurrent update processing.
func WithWorkerLimit(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bot) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithHTTPClient replaces the client used to download voice attachments.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.httpClient = c }
}

// newBot builds the handler set over an abstract client. Split from [New] so
// tests can inject a fake.
func newBot(client api, st store.Store, translator *translate.Pipeline, sp *speech.Pipeline, opts ...Option) *Bot {
	b := &Bot{
		client:     client,
		store:      st,
		translator: translator,
		speech:     sp,
		cleaner:    CleanerLimits{}.withDefaults(),
		metrics:    observe.DefaultMetrics(),
		log:        slog.Default(),
		sem:        semaphore.NewWeighted(defaultWorkerLimit),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// New connects to Telegram with token and registers all handlers. Call
// [Bot.Run] to start long polling.
func New(token string, st store.Store, translator *translate.Pipeline, sp *speech.Pipeline, opts ...Option) (*Bot, *bot.Bot, error) {
	b := newBot(nil, st, translator, sp, opts...)

	client, err := bot.New(token, bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: connect: %w", err)
	}
	b.client = client
	return b, client, nil
}

// Run registers the command menu and starts long polling, blocking until ctx
// is cancelled.
func (b *Bot) Run(ctx context.Context, client *bot.Bot) {
	b.registerCommands(ctx, client)
	b.log.InfoContext(ctx, "telegram bot started")
	client.Start(ctx)
}

// registerCommands publishes the command menu for private and group chats.
func (b *Bot) registerCommands(ctx context.Context, client *bot.Bot) {
	commands := []models.BotCommand{
		{Command: "start", Description: "translate every message automatically"},
		{Command: "mute", Description: "attach a translate button instead"},
		{Command: "stop", Description: "stop processing messages"},
		{Command: "lang", Description: "set or show the language pair"},
		{Command: "voice", Description: "choose the voice for spoken translations"},
		{Command: "dict", Description: "manage the term dictionary"},
		{Command: "clean", Description: "delete my recent messages"},
		{Command: "help", Description: "show usage"},
	}
	scopes := []models.BotCommandScope{
		&models.BotCommandScopeAllPrivateChats{},
		&models.BotCommandScopeAllGroupChats{},
	}
	for _, scope := range scopes {
		if _, err := client.SetMyCommands(ctx, &bot.SetMyCommandsParams{
			Commands: commands,
			Scope:    scope,
		}); err != nil {
			b.log.WarnContext(ctx, "register commands", "error", err)
		}
	}
}

// handleUpdate is the single entry point for every update. It acquires a
// worker slot, dispatches by update kind, and releases the slot when the
// handler returns.
func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer b.sem.Release(1)

	b.metrics.ActiveJobs.Add(ctx, 1)
	defer b.metrics.ActiveJobs.Add(ctx, -1)

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Voice != nil:
		b.handleVoice(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		if cmd, args, ok := parseCommand(update.Message.Text); ok {
			b.handleCommand(ctx, update.Message, cmd, args)
		} else {
			b.handleText(ctx, update.Message)
		}
	}
}

// parseCommand splits "/cmd@bot args" into its command and argument parts.
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	cmd, args, _ = strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}

// reply sends text as a reply to msg.
func (b *Bot) reply(ctx context.Context, msg *models.Message, text string) (*models.Message, error) {
	return b.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
		ReplyParameters: &models.ReplyParameters{
			MessageID: msg.ID,
		},
	})
}

// downloadFile fetches a Telegram-hosted file by its ID.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := b.client.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("telegram: get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.client.FileDownloadLink(f), nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: build download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read file: %w", err)
	}
	return data, nil
}
