// Package ui holds the contracts between the transport router and the bot.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider answers updates that match no command, conversation
// state or callback tag.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
