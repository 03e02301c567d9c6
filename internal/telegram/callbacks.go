package telegram

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/pkg/provider/tts"
)

const expiredNotice = "This content is no longer available."

// handleCallback dispatches a button press. The payload for the press lives
// in the pending store under the message the button is attached to; TakeOnce
// guarantees each button does its work at most once even under double taps.
func (b *Bot) handleCallback(ctx context.Context, cb *models.CallbackQuery) {
	msg := cb.Message.Message
	if msg == nil {
		b.answer(ctx, cb.ID, expiredNotice)
		return
	}

	payload, err := b.store.TakeOnce(ctx, msg.Chat.ID, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		b.metrics.RecordCacheTake(ctx, false)
		b.answer(ctx, cb.ID, expiredNotice)
		return
	}
	if err != nil {
		b.log.ErrorContext(ctx, "take pending payload",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}
	b.metrics.RecordCacheTake(ctx, true)

	p, err := decodePayload(payload)
	if err != nil {
		b.log.ErrorContext(ctx, "pending payload corrupt",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}

	switch {
	case cb.Data == callbackTranslate && p.Kind == payloadTranslate:
		b.callbackTranslate(ctx, cb, msg, p)
	case cb.Data == callbackSpeak && p.Kind == payloadSpeak:
		b.callbackSpeak(ctx, cb, msg, p)
	default:
		b.log.WarnContext(ctx, "callback does not match payload",
			"chat_id", msg.Chat.ID, "callback", cb.Data, "kind", p.Kind)
		b.answer(ctx, cb.ID, expiredNotice)
	}
}

// callbackTranslate resolves a deferred translation: the placeholder message
// is rewritten with the result, and the result is offered to the speak button.
func (b *Bot) callbackTranslate(ctx context.Context, cb *models.CallbackQuery, msg *models.Message, p pendingPayload) {
	settings, err := b.store.GetSettings(ctx, msg.Chat.ID)
	if err != nil {
		b.log.ErrorContext(ctx, "load settings", "chat_id", msg.Chat.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}

	start := time.Now()
	res, err := b.translator.TranslateMessage(ctx, msg.Chat.ID, p.Text)
	b.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.log.ErrorContext(ctx, "translate deferred message", "chat_id", msg.Chat.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}
	if res.Fallback {
		b.metrics.RecordFallback(ctx, "translate", res.Tier)
	}

	if _, err := b.client.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      res.Text,
	}); err != nil {
		b.log.ErrorContext(ctx, "deliver deferred translation", "chat_id", msg.Chat.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}
	b.answer(ctx, cb.ID, "")
	b.offerSpeak(ctx, msg.Chat.ID, msg, res, settings)
}

// callbackSpeak synthesizes the cached translation and sends it as audio.
func (b *Bot) callbackSpeak(ctx context.Context, cb *models.CallbackQuery, msg *models.Message, p pendingPayload) {
	start := time.Now()
	res, err := b.speech.Synthesize(ctx, p.Text, p.Language, p.Gender)
	b.metrics.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.log.ErrorContext(ctx, "synthesize speech", "chat_id", msg.Chat.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}

	filename := "speech.wav"
	if res.Format == tts.FormatMP3 {
		filename = "speech.mp3"
	}
	if _, err := b.client.SendAudio(ctx, &bot.SendAudioParams{
		ChatID: msg.Chat.ID,
		Audio: &models.InputFileUpload{
			Filename: filename,
			Data:     bytes.NewReader(res.Data),
		},
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	}); err != nil {
		b.log.ErrorContext(ctx, "send audio", "chat_id", msg.Chat.ID, "error", err)
		b.answer(ctx, cb.ID, unavailableReply)
		return
	}
	b.answer(ctx, cb.ID, "")
}

// answer acknowledges a callback query, optionally with a toast text.
func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if _, err := b.client.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		b.log.DebugContext(ctx, "answer callback", "error", err)
	}
}
