package bot

import "strings"

// CommandParser splits incoming text into a command and its arguments.
// Only the "/" prefix is recognized; a trailing @botname mention on the
// command (the form Telegram uses in groups) is stripped.
type CommandParser struct {
	prefix string
}

func NewCommandParser() *CommandParser {
	return &CommandParser{prefix: "/"}
}

// ParseCommand returns the lowercase command name, its arguments, and
// whether the text was a command at all.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, p.prefix) {
		return "", nil, false
	}
	text = strings.TrimPrefix(text, p.prefix)

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
