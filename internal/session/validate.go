package session

import (
	"errors"
	"fmt"
	"strings"
)

const maxNameLen = 64

// ValidateName reports whether name can be used as a session directory:
// 1 to 64 characters from [a-z0-9_-].
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("invalid session name: empty")
	case len(name) > maxNameLen:
		return fmt.Errorf("invalid session name %q: longer than %d characters", name, maxNameLen)
	}
	if i := strings.IndexFunc(name, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-'
	}); i >= 0 {
		return fmt.Errorf("invalid session name %q: character %q not in [a-z0-9_-]", name, name[i])
	}
	return nil
}
