package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/handlers"
)

const chartFileName = "chart.png"

// Client is the Bot API transport behind handlers.Messenger.
type Client struct {
	api   *tgbotapi.BotAPI
	token string
}

// New authenticates with getMe, so a bad token fails here.
func New(cfg config.Config) (*Client, error) {
	hc := &http.Client{Timeout: cfg.PollTimeout + 15*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.TelegramAPIEndpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", redact(err, cfg.BotToken))
	}
	return &Client{api: api, token: cfg.BotToken}, nil
}

func (c *Client) UserName() string {
	return c.api.Self.UserName
}

func (c *Client) GetUpdates(u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	updates, err := c.api.GetUpdates(u)
	return updates, redact(err, c.token)
}

// redact keeps the token out of transport errors, which quote the request URL.
func redact(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

func keyboard(rows [][]handlers.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, btns)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &m
}

func photoFile(s handlers.Screen) tgbotapi.RequestFileData {
	if len(s.Photo) > 0 {
		return tgbotapi.FileBytes{Name: chartFileName, Bytes: s.Photo}
	}
	return tgbotapi.FileURL(s.PhotoURL)
}

func (c *Client) Send(ctx context.Context, chatID int64, replyTo int, s handlers.Screen) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var msg tgbotapi.Chattable
	kb := keyboard(s.Buttons)
	if s.IsPhoto() {
		p := tgbotapi.NewPhoto(chatID, photoFile(s))
		p.Caption = s.Text
		p.ParseMode = tgbotapi.ModeHTML
		p.ReplyToMessageID = replyTo
		if kb != nil {
			p.ReplyMarkup = kb
		}
		msg = p
	} else {
		m := tgbotapi.NewMessage(chatID, s.Text)
		m.ParseMode = tgbotapi.ModeHTML
		m.DisableWebPagePreview = !s.LinkPreview
		m.ReplyToMessageID = replyTo
		if kb != nil {
			m.ReplyMarkup = kb
		}
		msg = m
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, redact(err, c.token))
	}
	return sent.MessageID, nil
}

// Edit replaces text or media of an existing message. Telegram rejects an
// edit that changes nothing; that counts as success.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, s handlers.Screen) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kb := keyboard(s.Buttons)
	var req tgbotapi.Chattable
	if s.IsPhoto() {
		media := tgbotapi.NewInputMediaPhoto(photoFile(s))
		media.Caption = s.Text
		media.ParseMode = tgbotapi.ModeHTML
		req = tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{ChatID: chatID, MessageID: messageID, ReplyMarkup: kb},
			Media:    media,
		}
	} else {
		e := tgbotapi.NewEditMessageText(chatID, messageID, s.Text)
		e.ParseMode = tgbotapi.ModeHTML
		e.DisableWebPagePreview = !s.LinkPreview
		e.ReplyMarkup = kb
		req = e
	}
	if _, err := c.api.Request(req); err != nil {
		if notModified(err) {
			return nil
		}
		return fmt.Errorf("edit %d/%d: %w", chatID, messageID, redact(err, c.token))
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete %d/%d: %w", chatID, messageID, redact(err, c.token))
	}
	return nil
}

func (c *Client) Answer(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", redact(err, c.token))
	}
	return nil
}

func notModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}
