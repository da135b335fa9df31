package outbound

import (
	"fmt"
	"strings"

	"github.com/campushub/notifyhub/internal/domain"
	"github.com/campushub/notifyhub/internal/provider"
)

// Delivery is the broker payload for one external-channel send.
type Delivery struct {
	MessageID string          `json:"messageId"`
	UserID    string          `json:"userId"`
	Kind      provider.Kind   `json:"kind"`
	To        string          `json:"to"`
	Subject   string          `json:"subject,omitempty"`
	Content   string          `json:"content"`
	Priority  domain.Priority `json:"priority"`
}

func (d Delivery) Validate() error {
	if strings.TrimSpace(d.MessageID) == "" {
		return fmt.Errorf("messageId is required")
	}
	if !d.Kind.IsValid() {
		return fmt.Errorf("invalid kind %q", d.Kind)
	}
	if strings.TrimSpace(d.To) == "" {
		return fmt.Errorf("recipient contact is required")
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("content is required")
	}
	if !d.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", d.Priority)
	}
	return nil
}
