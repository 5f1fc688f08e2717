package handlers

import "context"

// Button is either a callback button (Data) or a link (URL).
type Button struct {
	Text string
	Data string
	URL  string
}

// Screen is one bot message. Text is HTML and becomes the caption when a
// photo is attached.
type Screen struct {
	Text        string
	Buttons     [][]Button
	Photo       []byte
	PhotoURL    string
	LinkPreview bool
}

func (s Screen) IsPhoto() bool {
	return len(s.Photo) > 0 || s.PhotoURL != ""
}

// Messenger is the chat transport the navigator drives.
type Messenger interface {
	Send(ctx context.Context, chatID int64, replyTo int, s Screen) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, s Screen) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Answer(ctx context.Context, callbackID, text string) error
}

// Event is an inbound command or button press. CallbackID is set for button
// presses; Command and Args for commands.
type Event struct {
	ChatID     int64
	MessageID  int
	HasMedia   bool
	CallbackID string
	Data       string
	Command    string
	Args       string
}

func (e Event) IsCallback() bool {
	return e.CallbackID != ""
}
