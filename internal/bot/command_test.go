package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCmd  Command
		wantArgs string
	}{
		{"simple command", "/help", CmdHelp, ""},
		{"command with args", "/search ноутбук бу", CmdSearch, "ноутбук бу"},
		{"bot mention stripped", "/start@bazar_bot", CmdStart, ""},
		{"mention with args", "/admin_ban@bazar_bot 42 спам", CmdAdminBan, "42 спам"},
		{"uppercase normalized", "/HELP", CmdHelp, ""},
		{"plain text", "продам велосипед", CmdNone, "продам велосипед"},
		{"leading whitespace", "  /sell  ", CmdSell, ""},
		{"slash only", "/", CmdNone, ""},
		{"empty", "", CmdNone, ""},
		{"newline separated args", "/sell\nвелосипед", CmdSell, "велосипед"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseCommand(tt.text)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCommand_IsAdminCommand(t *testing.T) {
	assert.True(t, CmdAdminStats.IsAdminCommand())
	assert.True(t, CmdAdminBan.IsAdminCommand())
	assert.True(t, CmdAdminUnban.IsAdminCommand())
	assert.False(t, CmdHelp.IsAdminCommand())
	assert.False(t, CmdNone.IsAdminCommand())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "/help", CmdHelp.String())
	assert.Equal(t, "", CmdNone.String())
}
