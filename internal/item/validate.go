package item

import (
	"errors"
	"strings"
)

var (
	// ErrNameEmpty is returned when a name tag is empty or whitespace.
	ErrNameEmpty = errors.New("name cannot be empty")
	// ErrNameGeneric is returned for placeholder names that carry no
	// information, including the analysis fallback "Unknown".
	ErrNameGeneric = errors.New("please provide a more specific name")
)

// genericNames are rejected case-insensitively after trimming.
var genericNames = map[string]struct{}{
	"unknown":    {},
	"item":       {},
	"unnamed":    {},
	"lost item":  {},
	"found item": {},
}

// ValidateNameTag checks a draft's name tag against the non-empty /
// non-placeholder rule. It returns nil for acceptable names.
func ValidateNameTag(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameEmpty
	}
	if _, generic := genericNames[strings.ToLower(trimmed)]; generic {
		return ErrNameGeneric
	}
	return nil
}
