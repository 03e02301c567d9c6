package telegram

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hitromudr/tg-translator/internal/dictionary"
	"github.com/hitromudr/tg-translator/internal/lang"
	"github.com/hitromudr/tg-translator/internal/store"
)

// exportChatID is the reserved chat namespace in the pending store that holds
// dictionary share codes. Real Telegram chat IDs are never zero.
const exportChatID int64 = 0

const helpText = `I translate messages between your chat's two languages.

/start — translate every message automatically
/mute — attach a translate button instead of translating
/stop — stop processing messages
/lang set <primary> [secondary] — set the language pair (default ru en)
/lang status — show the current pair
/lang list — list supported languages
/voice male|female — voice for spoken translations
/dict add "<term>" "<replacement>" — rewrite a term before translating
/dict remove "<term>" | /dict list | /dict export | /dict import <code>
/clean [n] — delete my last n messages (default 10, max 50)`

func (b *Bot) handleCommand(ctx context.Context, msg *models.Message, cmd, args string) {
	var err error
	switch cmd {
	case "/start":
		err = b.setMode(ctx, msg, store.ModeAuto, "Automatic translation is on.")
	case "/mute":
		err = b.setMode(ctx, msg, store.ModeInteractive, "Muted. I will attach a translate button instead.")
	case "/stop":
		err = b.setMode(ctx, msg, store.ModeOff, "Stopped. Send /start to resume.")
	case "/help":
		_, err = b.reply(ctx, msg, helpText)
	case "/lang":
		err = b.cmdLang(ctx, msg, args)
	case "/voice":
		err = b.cmdVoice(ctx, msg, args)
	case "/dict":
		err = b.cmdDict(ctx, msg, args)
	case "/clean":
		err = b.cmdClean(ctx, msg, args)
	default:
		return
	}
	if err != nil {
		b.log.ErrorContext(ctx, "command failed",
			"chat_id", msg.Chat.ID, "command", cmd, "error", err)
	}
}

func (b *Bot) setMode(ctx context.Context, msg *models.Message, mode store.Mode, confirmation string) error {
	settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	settings.Mode = mode
	if err := b.store.SetSettings(ctx, settings); err != nil {
		return err
	}
	b.log.InfoContext(ctx, "mode changed", "chat_id", msg.Chat.ID, "mode", string(mode))
	_, err = b.reply(ctx, msg, confirmation)
	return err
}

func (b *Bot) cmdLang(ctx context.Context, msg *models.Message, args string) error {
	sub, rest, _ := strings.Cut(args, " ")
	switch strings.ToLower(sub) {
	case "set":
		return b.cmdLangSet(ctx, msg, rest)
	case "reset":
		defaults := store.DefaultSettings(msg.Chat.ID)
		settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
		if err != nil {
			return err
		}
		settings.Primary, settings.Secondary = defaults.Primary, defaults.Secondary
		if err := b.store.SetSettings(ctx, settings); err != nil {
			return err
		}
		_, err = b.reply(ctx, msg, fmt.Sprintf("Language pair reset to %s/%s.", defaults.Primary, defaults.Secondary))
		return err
	case "status", "":
		settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
		if err != nil {
			return err
		}
		_, err = b.reply(ctx, msg, fmt.Sprintf("Languages: %s (%s) / %s (%s), mode %s.",
			settings.Primary, lang.Name(settings.Primary),
			settings.Secondary, lang.Name(settings.Secondary),
			settings.Mode))
		return err
	case "list":
		_, err := b.reply(ctx, msg, strings.Join(lang.List(), "\n"))
		return err
	default:
		_, err := b.reply(ctx, msg, "Usage: /lang set <primary> [secondary] | reset | status | list")
		return err
	}
}

func (b *Bot) cmdLangSet(ctx context.Context, msg *models.Message, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		_, err := b.reply(ctx, msg, "Usage: /lang set <primary> [secondary]")
		return err
	}

	primary := lang.Normalize(fields[0])
	if primary == "" {
		_, err := b.reply(ctx, msg, fmt.Sprintf("Unknown language %q. Try /lang list.", fields[0]))
		return err
	}
	settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	secondary := settings.Secondary
	if len(fields) == 2 {
		secondary = lang.Normalize(fields[1])
		if secondary == "" {
			_, err := b.reply(ctx, msg, fmt.Sprintf("Unknown language %q. Try /lang list.", fields[1]))
			return err
		}
	}
	if primary == secondary {
		_, err := b.reply(ctx, msg, "Primary and secondary languages must differ.")
		return err
	}

	settings.Primary, settings.Secondary = primary, secondary
	if err := b.store.SetSettings(ctx, settings); err != nil {
		return err
	}
	_, err = b.reply(ctx, msg, fmt.Sprintf("Languages set: %s / %s.", primary, secondary))
	return err
}

func (b *Bot) cmdVoice(ctx context.Context, msg *models.Message, args string) error {
	gender := strings.ToLower(strings.TrimSpace(args))
	if gender != "male" && gender != "female" {
		_, err := b.reply(ctx, msg, "Usage: /voice male|female")
		return err
	}
	settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	settings.VoiceGender = gender
	if err := b.store.SetSettings(ctx, settings); err != nil {
		return err
	}
	_, err = b.reply(ctx, msg, fmt.Sprintf("Voice set to %s.", gender))
	return err
}

func (b *Bot) cmdDict(ctx context.Context, msg *models.Message, args string) error {
	sub, rest, _ := strings.Cut(args, " ")
	switch strings.ToLower(sub) {
	case "add":
		return b.cmdDictAdd(ctx, msg, rest)
	case "remove":
		return b.cmdDictRemove(ctx, msg, rest)
	case "list":
		return b.cmdDictList(ctx, msg)
	case "export":
		return b.cmdDictExport(ctx, msg)
	case "import":
		return b.cmdDictImport(ctx, msg, rest)
	default:
		_, err := b.reply(ctx, msg, `Usage: /dict add "<term>" "<replacement>" | remove "<term>" | list | export | import <code>`)
		return err
	}
}

func (b *Bot) cmdDictAdd(ctx context.Context, msg *models.Message, args string) error {
	parts := splitQuoted(args)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		_, err := b.reply(ctx, msg, `Usage: /dict add "<term>" "<replacement>"`)
		return err
	}
	source, target := parts[0], parts[1]

	forms := dictionary.Variations(source)
	for _, form := range forms {
		if err := b.store.UpsertEntry(ctx, msg.Chat.ID, store.DictionaryEntry{Source: form, Target: target}); err != nil {
			return err
		}
	}
	b.log.InfoContext(ctx, "dictionary entry added",
		"chat_id", msg.Chat.ID, "source", source, "forms", len(forms))

	text := fmt.Sprintf("Added: %s → %s.", source, target)
	if len(forms) > 1 {
		text = fmt.Sprintf("Added: %s → %s (%d inflected forms).", source, target, len(forms))
	}
	_, err := b.reply(ctx, msg, text)
	return err
}

func (b *Bot) cmdDictRemove(ctx context.Context, msg *models.Message, args string) error {
	parts := splitQuoted(args)
	if len(parts) != 1 || parts[0] == "" {
		_, err := b.reply(ctx, msg, `Usage: /dict remove "<term>"`)
		return err
	}
	err := b.store.RemoveEntry(ctx, msg.Chat.ID, parts[0])
	if errors.Is(err, store.ErrNotFound) {
		_, err = b.reply(ctx, msg, fmt.Sprintf("No entry for %q.", parts[0]))
		return err
	}
	if err != nil {
		return err
	}
	_, err = b.reply(ctx, msg, fmt.Sprintf("Removed %q.", parts[0]))
	return err
}

func (b *Bot) cmdDictList(ctx context.Context, msg *models.Message) error {
	entries, err := b.store.GetDictionary(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err = b.reply(ctx, msg, "The dictionary is empty.")
		return err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Source+" → "+e.Target)
	}
	sort.Strings(lines)
	_, err = b.reply(ctx, msg, strings.Join(lines, "\n"))
	return err
}

func (b *Bot) cmdDictExport(ctx context.Context, msg *models.Message) error {
	entries, err := b.store.GetDictionary(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err = b.reply(ctx, msg, "Nothing to export: the dictionary is empty.")
		return err
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	code, err := shareCode()
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, exportChatID, code, string(payload)); err != nil {
		return err
	}
	_, err = b.reply(ctx, msg, fmt.Sprintf(
		"Share code: %d. In another chat run /dict import %d. The code works once and expires in 24 hours.", code, code))
	return err
}

func (b *Bot) cmdDictImport(ctx context.Context, msg *models.Message, args string) error {
	code, convErr := strconv.Atoi(strings.TrimSpace(args))
	if convErr != nil {
		_, err := b.reply(ctx, msg, "Usage: /dict import <code>")
		return err
	}

	payload, err := b.store.TakeOnce(ctx, exportChatID, code)
	if errors.Is(err, store.ErrNotFound) {
		_, err = b.reply(ctx, msg, "That code is unknown, already used, or expired.")
		return err
	}
	if err != nil {
		return err
	}

	var entries []store.DictionaryEntry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return fmt.Errorf("decode import: %w", err)
	}
	for _, e := range entries {
		if err := b.store.UpsertEntry(ctx, msg.Chat.ID, e); err != nil {
			return err
		}
	}
	_, err = b.reply(ctx, msg, fmt.Sprintf("Imported %d entries.", len(entries)))
	return err
}

func (b *Bot) cmdClean(ctx context.Context, msg *models.Message, args string) error {
	target := b.cleaner.DefaultCount
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			_, err := b.reply(ctx, msg, fmt.Sprintf("Usage: /clean [1-%d]", b.cleaner.MaxCount))
			return err
		}
		target = min(n, b.cleaner.MaxCount)
	}

	// The command itself goes first and does not count toward the target.
	if _, err := b.client.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: msg.Chat.ID, MessageID: msg.ID}); err != nil {
		b.log.DebugContext(ctx, "could not delete /clean command",
			"chat_id", msg.Chat.ID, "error", err)
	}

	deleted := b.cleanHistory(ctx, msg.Chat.ID, msg.ID, target, b.cleaner.ScanLimit)
	b.log.InfoContext(ctx, "history cleaned",
		"chat_id", msg.Chat.ID, "deleted", deleted, "target", target)
	return nil
}

// shareCode returns a random six-digit dictionary share code.
func shareCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return 0, fmt.Errorf("generate share code: %w", err)
	}
	return int(n.Int64()) + 100000, nil
}

// splitQuoted splits args into fields where double-quoted runs form a single
// field, so multi-word terms survive /dict parsing.
func splitQuoted(s string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
		started  bool
	)
	flush := func() {
		if started {
			fields = append(fields, current.String())
			current.Reset()
			started = false
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			if inQuotes {
				fields = append(fields, current.String())
				current.Reset()
				started = false
			}
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return fields
}
