package provider

import "context"

// Kind names an outbound side channel.
type Kind string

const (
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	return k == KindEmail || k == KindSMS
}

// Message is the rendered content handed to an outbound adapter.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Content string
}

// Provider is the outbound delivery port for one side channel.
type Provider interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}

// Response stores adapter call metadata for audit logging.
type Response struct {
	StatusCode int
	Body       string
	MessageID  string
}
