package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/bot-go/internal/handlers"
)

// EventFromUpdate keeps commands and button presses; everything else is
// ignored.
func EventFromUpdate(u tgbotapi.Update) (handlers.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return handlers.Event{}, false
		}
		return handlers.Event{
			ChatID:     cq.Message.Chat.ID,
			MessageID:  cq.Message.MessageID,
			HasMedia:   len(cq.Message.Photo) > 0,
			CallbackID: cq.ID,
			Data:       cq.Data,
		}, true
	}
	if m := u.Message; m != nil && m.Chat != nil && m.IsCommand() {
		return handlers.Event{
			ChatID:    m.Chat.ID,
			MessageID: m.MessageID,
			Command:   m.Command(),
			Args:      m.CommandArguments(),
		}, true
	}
	return handlers.Event{}, false
}
