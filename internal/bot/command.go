// Package bot routes parsed Telegram updates to command and callback
// handlers for the Bazar marketplace bot.
package bot

import (
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// Raw message text is parsed into a typed Command before dispatch, so the
// middleware stages and the router agree on what command an update carries.
// ══════════════════════════════════════════════════════════════════════════════

// Command is a typed bot command, without the leading "/".
type Command string

const (
	// CmdNone means the message carries no command (plain text).
	CmdNone Command = ""

	CmdStart      Command = "start"
	CmdHelp       Command = "help"
	CmdSell       Command = "sell"
	CmdMyListings Command = "mylistings"
	CmdSearch     Command = "search"
	CmdAppeal     Command = "appeal"
	CmdSupport    Command = "support"

	CmdAdminStats Command = "admin_stats"
	CmdAdminBan   Command = "admin_ban"
	CmdAdminUnban Command = "admin_unban"
)

// adminPrefix marks the command family restricted to the configured admin.
const adminPrefix = "admin_"

// IsAdminCommand reports whether the command belongs to the admin-only
// family.
func (c Command) IsAdminCommand() bool {
	return strings.HasPrefix(string(c), adminPrefix)
}

// String returns the command with its leading slash.
func (c Command) String() string {
	if c == CmdNone {
		return ""
	}
	return "/" + string(c)
}

// ParseCommand extracts the command and its arguments from raw message
// text. "/search ноутбук" yields (CmdSearch, "ноутбук"). A "@botname"
// suffix on the command is stripped. Text that does not start with "/"
// yields (CmdNone, text).
func ParseCommand(text string) (Command, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return CmdNone, text
	}

	name := text[1:]
	args := ""
	if i := strings.IndexAny(name, " \n\t"); i >= 0 {
		args = strings.TrimSpace(name[i+1:])
		name = name[:i]
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}

	return Command(strings.ToLower(name)), args
}
