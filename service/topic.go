package service

import (
	"errors"
	"fmt"
)

// ValidateTopic checks name against the broker's topic naming rules. Wildcards
// and patterns are not topics.
func ValidateTopic(name string) error {
	switch {
	case name == "":
		return errors.New("topic is required")
	case len(name) > MaxTopicLength:
		return fmt.Errorf("topic is longer than %d characters", MaxTopicLength)
	case name == "." || name == "..":
		return fmt.Errorf("topic %q is reserved", name)
	}
	for _, r := range name {
		if !isTopicRune(r) {
			return fmt.Errorf("topic %q contains %q; only letters, digits, '.', '_' and '-' are allowed", name, r)
		}
	}
	return nil
}

func isTopicRune(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '.' || r == '_' || r == '-'
}
