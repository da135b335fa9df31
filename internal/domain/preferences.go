package domain

import "fmt"

// ReminderPreferences controls which reminder categories a user receives and
// how many hours before a deadline each reminder fires. Every hour offset
// expands into one scheduled notification when a deadline is recorded.
type ReminderPreferences struct {
	UserID      string `json:"userId"`
	Enabled     bool   `json:"enabled"`
	Categories  []Type `json:"categories,omitempty"`
	HourOffsets []int  `json:"hourOffsets"`
}

// DefaultHourOffsets is used when a user has no stored preferences.
var DefaultHourOffsets = []int{24}

func (p *ReminderPreferences) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: preferences are required", ErrValidation)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	seen := make(map[int]bool, len(p.HourOffsets))
	for _, h := range p.HourOffsets {
		if h <= 0 {
			return fmt.Errorf("%w: hour offset must be positive, got %d", ErrValidation, h)
		}
		if seen[h] {
			return fmt.Errorf("%w: duplicate hour offset %d", ErrValidation, h)
		}
		seen[h] = true
	}
	for _, c := range p.Categories {
		if !c.IsValid() {
			return fmt.Errorf("%w: invalid reminder category %q", ErrValidation, c)
		}
	}
	return nil
}

// WantsCategory reports whether reminders of the given type are enabled.
// An empty category list means all reminder categories.
func (p *ReminderPreferences) WantsCategory(t Type) bool {
	if p == nil || !p.Enabled {
		return false
	}
	if len(p.Categories) == 0 {
		return true
	}
	for _, c := range p.Categories {
		if c == t {
			return true
		}
	}
	return false
}
