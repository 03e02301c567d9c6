package telegram

import (
	"context"

	"github.com/go-telegram/bot"
)

// cleanHistory walks message IDs backward from startID-1 and deletes up to
// targetCount messages, probing at most scanLimit IDs. Messages the bot
// cannot delete (too old, not its own, already gone) are skipped silently;
// IDs that were never assigned in this chat fail the same way and are
// simply counted against the scan limit. Returns the number of deletions.
func (b *Bot) cleanHistory(ctx context.Context, chatID int64, startID, targetCount, scanLimit int) int {
	deleted := 0
	for probed := 0; probed < scanLimit && deleted < targetCount; probed++ {
		id := startID - 1 - probed
		if id <= 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		ok, err := b.client.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    chatID,
			MessageID: id,
		})
		if err != nil || !ok {
			b.log.DebugContext(ctx, "message not deletable",
				"chat_id", chatID, "message_id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}
