package bot

import (
	"github.com/m3rciful/shiftbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Transport performs the outbound calls of a turn.
type Transport interface {
	Send(c tele.Context, text string, markup *tele.ReplyMarkup) (*tele.Message, error)
	Edit(c tele.Context, msg tele.Editable, text string, markup *tele.ReplyMarkup) (*tele.Message, error)
	Delete(c tele.Context, msg tele.Editable) error
	// Answer acknowledges a callback, showing text as a toast when set.
	Answer(c tele.Context, text string) error
}

type telegramTransport struct{}

func (telegramTransport) Send(c tele.Context, text string, markup *tele.ReplyMarkup) (*tele.Message, error) {
	return helpers.SendHTML(c, text, markup)
}

func (telegramTransport) Edit(c tele.Context, msg tele.Editable, text string, markup *tele.ReplyMarkup) (*tele.Message, error) {
	return helpers.EditHTML(c, msg, text, markup)
}

func (telegramTransport) Delete(c tele.Context, msg tele.Editable) error {
	return helpers.DeleteAsync(c, msg)
}

func (telegramTransport) Answer(c tele.Context, text string) error {
	if text == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
