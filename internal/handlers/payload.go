package handlers

import (
	"errors"
	"fmt"
	"strings"

	"marketbot/bot-go/internal/models"
)

type ActionKind string

const (
	KindMenu     ActionKind = "menu"
	KindCategory ActionKind = "cat"
	KindSymbol   ActionKind = "sym"
	KindPeriod   ActionKind = "per"
)

// MaxPayloadBytes is Telegram's callback_data limit.
const MaxPayloadBytes = 64

const (
	fieldSep    = '|'
	escapeChar  = '\\'
	fieldsCount = 5
)

var (
	ErrPayloadTooLong   = errors.New("payload exceeds 64 bytes")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Action is what a button press asks for. Session is always set; the other
// fields depend on Kind.
type Action struct {
	Kind     ActionKind
	Session  string
	Category models.Bucket
	Symbol   string
	Period   models.Period
}

func (k ActionKind) valid() bool {
	switch k {
	case KindMenu, KindCategory, KindSymbol, KindPeriod:
		return true
	}
	return false
}

func escapeField(s string) string {
	if !strings.ContainsAny(s, `\|`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == fieldSep || s[i] == escapeChar {
			b.WriteByte(escapeChar)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EncodeAction renders a as kind|session|category|symbol|period.
func EncodeAction(a Action) (string, error) {
	if !a.Kind.valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedPayload, a.Kind)
	}
	out := strings.Join([]string{
		escapeField(string(a.Kind)),
		escapeField(a.Session),
		escapeField(string(a.Category)),
		escapeField(a.Symbol),
		escapeField(string(a.Period)),
	}, string(fieldSep))
	if len(out) > MaxPayloadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(out))
	}
	return out, nil
}

func DecodeAction(s string) (Action, error) {
	if len(s) > MaxPayloadBytes {
		return Action{}, ErrPayloadTooLong
	}
	fields := make([]string, 0, fieldsCount)
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar:
			if i+1 >= len(s) {
				return Action{}, fmt.Errorf("%w: dangling escape", ErrMalformedPayload)
			}
			i++
			cur.WriteByte(s[i])
		case fieldSep:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	fields = append(fields, cur.String())
	if len(fields) != fieldsCount {
		return Action{}, fmt.Errorf("%w: %d fields", ErrMalformedPayload, len(fields))
	}
	a := Action{
		Kind:     ActionKind(fields[0]),
		Session:  fields[1],
		Category: models.Bucket(fields[2]),
		Symbol:   fields[3],
		Period:   models.Period(fields[4]),
	}
	if !a.Kind.valid() {
		return Action{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedPayload, a.Kind)
	}
	if a.Session == "" {
		return Action{}, fmt.Errorf("%w: missing session", ErrMalformedPayload)
	}
	return a, nil
}
