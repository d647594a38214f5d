package tui

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Command is one line typed at the ":" prompt: a case-insensitive name
// and the raw remainder.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits input at its first whitespace. A leading ':' is
// tolerated. Args keep their inner spacing, since they may be message text.
func ParseCommand(input string) Command {
	input = strings.TrimPrefix(strings.TrimSpace(input), ":")
	name, args := input, ""
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		name, args = input[:i], strings.TrimSpace(input[i:])
	}
	return Command{Name: strings.ToLower(name), Args: args}
}

// MessageArgs splits "<id> [text]" arguments of message commands.
func (c Command) MessageArgs() (int64, string, error) {
	idPart, text, _ := strings.Cut(c.Args, " ")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("%s: expected a message id, got %q", c.Name, idPart)
	}
	return id, strings.TrimSpace(text), nil
}
