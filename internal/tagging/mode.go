package tagging

import (
	"fmt"
	"strings"
)

// Mode is the write policy for computed tags.
type Mode string

const (
	// ModeMerge unions computed tags with the item's existing tags.
	ModeMerge Mode = "merge"
	// ModeOverwrite replaces the item's tags with the computed set.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode normalizes a write mode label.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "merge":
		return ModeMerge, nil
	case "overwrite":
		return ModeOverwrite, nil
	default:
		return "", fmt.Errorf("invalid write mode %q", s)
	}
}
