package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		name      string
		text      string
		wantCmd   string
		wantArgs  []string
		isCommand bool
	}{
		{name: "plain command", text: "/start", wantCmd: "start", isCommand: true},
		{name: "command with args", text: "/pay 254712345678 50", wantCmd: "pay", wantArgs: []string{"254712345678", "50"}, isCommand: true},
		{name: "group mention stripped", text: "/register_group@ViralMusicBot", wantCmd: "register_group", isCommand: true},
		{name: "uppercase normalized", text: "/BUY", wantCmd: "buy", isCommand: true},
		{name: "surrounding whitespace", text: "  /promote https://t.me/song  ", wantCmd: "promote", wantArgs: []string{"https://t.me/song"}, isCommand: true},
		{name: "not a command", text: "hello there", isCommand: false},
		{name: "bare slash", text: "/", isCommand: false},
		{name: "empty", text: "", isCommand: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			assert.Equal(t, tt.isCommand, ok)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
