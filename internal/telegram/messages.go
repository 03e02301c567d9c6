package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/internal/translate"
)

// Pending payload kinds. The kind selects what a button press does with the
// cached text.
const (
	payloadTranslate = "translate"
	payloadSpeak     = "speak"
)

// pendingPayload is the JSON document cached in the pending store under the
// message a button is attached to.
type pendingPayload struct {
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

func (p pendingPayload) encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode pending payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(s string) (pendingPayload, error) {
	var p pendingPayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return pendingPayload{}, fmt.Errorf("decode pending payload: %w", err)
	}
	return p, nil
}

const (
	callbackTranslate = "translate_this"
	callbackSpeak     = "speak"

	textPlaceholder  = "💬"
	voicePlaceholder = "🎤"

	unavailableReply = "Translation is unavailable right now, try again later."
)

func translateButton() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Translate", CallbackData: callbackTranslate},
		}},
	}
}

func speakButton() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Speak", CallbackData: callbackSpeak},
		}},
	}
}

// handleText processes a plain chat message according to the chat's mode.
func (b *Bot) handleText(ctx context.Context, msg *models.Message) {
	settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
	if err != nil {
		b.log.ErrorContext(ctx, "load settings", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	b.metrics.RecordMessage(ctx, string(settings.Mode))

	switch settings.Mode {
	case store.ModeOff:
		return
	case store.ModeInteractive:
		b.deferText(ctx, msg)
	default:
		b.translateAndReply(ctx, msg, msg.Text, settings)
	}
}

// translateAndReply runs the translation pipeline and delivers the result,
// attaching a speak button when synthesis is available.
func (b *Bot) translateAndReply(ctx context.Context, msg *models.Message, text string, settings store.ChatSettings) {
	start := time.Now()
	res, err := b.translator.TranslateMessage(ctx, msg.Chat.ID, text)
	b.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.log.ErrorContext(ctx, "translate message", "chat_id", msg.Chat.ID, "error", err)
		if _, err := b.reply(ctx, msg, unavailableReply); err != nil {
			b.log.WarnContext(ctx, "send failure notice", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}
	if res.Fallback {
		b.metrics.RecordFallback(ctx, "translate", res.Tier)
	}

	sent, err := b.reply(ctx, msg, res.Text)
	if err != nil {
		b.log.ErrorContext(ctx, "send translation", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	b.offerSpeak(ctx, msg.Chat.ID, sent, res, settings)
}

// offerSpeak caches the translation for the speak button and attaches the
// button to the delivered message. The cache row is written first so the
// button is never actionable before its payload exists.
func (b *Bot) offerSpeak(ctx context.Context, chatID int64, sent *models.Message, res translate.Result, settings store.ChatSettings) {
	if b.speech == nil || sent == nil {
		return
	}
	payload, err := pendingPayload{
		Kind:     payloadSpeak,
		Text:     res.Text,
		Language: res.Target,
		Gender:   settings.VoiceGender,
	}.encode()
	if err != nil {
		b.log.WarnContext(ctx, "cache speak payload", "chat_id", chatID, "error", err)
		return
	}
	if err := b.store.Put(ctx, chatID, sent.ID, payload); err != nil {
		b.log.WarnContext(ctx, "cache speak payload", "chat_id", chatID, "error", err)
		return
	}
	if _, err := b.client.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   sent.ID,
		Text:        res.Text,
		ReplyMarkup: speakButton(),
	}); err != nil {
		b.log.WarnContext(ctx, "attach speak button", "chat_id", chatID, "error", err)
	}
}

// deferText replies with a placeholder, caches the original text under the
// placeholder's message ID, then attaches the translate button. The store
// write happens between send and edit so a press can never race a missing row.
func (b *Bot) deferText(ctx context.Context, msg *models.Message) {
	sent, err := b.reply(ctx, msg, textPlaceholder)
	if err != nil {
		b.log.ErrorContext(ctx, "send placeholder", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	payload, err := pendingPayload{Kind: payloadTranslate, Text: msg.Text}.encode()
	if err != nil {
		b.log.ErrorContext(ctx, "cache pending text", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	if err := b.store.Put(ctx, msg.Chat.ID, sent.ID, payload); err != nil {
		b.log.ErrorContext(ctx, "cache pending text", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	if _, err := b.client.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   sent.ID,
		Text:        textPlaceholder,
		ReplyMarkup: translateButton(),
	}); err != nil {
		b.log.WarnContext(ctx, "attach translate button", "chat_id", msg.Chat.ID, "error", err)
	}
}

// handleVoice processes a voice note. In auto mode the transcript is
// translated and delivered immediately; in interactive mode the note is
// transcribed eagerly and the translation deferred behind a button.
func (b *Bot) handleVoice(ctx context.Context, msg *models.Message) {
	settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
	if err != nil {
		b.log.ErrorContext(ctx, "load settings", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	b.metrics.RecordMessage(ctx, string(settings.Mode))
	if settings.Mode == store.ModeOff {
		return
	}
	if b.speech == nil {
		return
	}

	var placeholder *models.Message
	if settings.Mode == store.ModeInteractive {
		placeholder, err = b.reply(ctx, msg, voicePlaceholder)
		if err != nil {
			b.log.ErrorContext(ctx, "send voice placeholder", "chat_id", msg.Chat.ID, "error", err)
			return
		}
	}

	ogg, err := b.downloadFile(ctx, msg.Voice.FileID)
	if err != nil {
		b.log.ErrorContext(ctx, "download voice note", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	start := time.Now()
	transcript, err := b.speech.Transcribe(ctx, ogg, "")
	b.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.log.ErrorContext(ctx, "transcribe voice note", "chat_id", msg.Chat.ID, "error", err)
		if _, err := b.reply(ctx, msg, unavailableReply); err != nil {
			b.log.WarnContext(ctx, "send failure notice", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}
	if transcript.Fallback {
		b.metrics.RecordFallback(ctx, "stt", transcript.Tier)
	}

	if settings.Mode == store.ModeInteractive {
		b.deferTranscript(ctx, msg.Chat.ID, placeholder, transcript.Text)
		return
	}
	b.translateAndReply(ctx, msg, transcript.Text, settings)
}

// deferTranscript upgrades the voice placeholder to the transcript text with a
// translate button, caching the transcript first.
func (b *Bot) deferTranscript(ctx context.Context, chatID int64, placeholder *models.Message, text string) {
	payload, err := pendingPayload{Kind: payloadTranslate, Text: text}.encode()
	if err != nil {
		b.log.ErrorContext(ctx, "cache transcript", "chat_id", chatID, "error", err)
		return
	}
	if err := b.store.Put(ctx, chatID, placeholder.ID, payload); err != nil {
		b.log.ErrorContext(ctx, "cache transcript", "chat_id", chatID, "error", err)
		return
	}
	if _, err := b.client.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   placeholder.ID,
		Text:        voicePlaceholder + " " + text,
		ReplyMarkup: translateButton(),
	}); err != nil {
		b.log.WarnContext(ctx, "attach translate button", "chat_id", chatID, "error", err)
	}
}
