// Package commands describes slash commands registered with the router.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one slash command. Hidden and AdminOnly commands are left out
// of the menu published to Telegram; AdminOnly ones are also guarded by the
// admin middleware.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	// Aliases resolve to the same handler.
	Aliases []string
}
