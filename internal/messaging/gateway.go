package messaging

import "context"

// Kind classifies an outbound item.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
)

// Outbound is one item handed to the messaging boundary.
type Outbound struct {
	Recipient string
	Sender    string
	Kind      Kind
	Body      string
	MediaURL  string
	Caption   string
	Filename  string
}

// Gateway is the capability surface of a messaging provider. Delivery
// failures are logged by callers and never roll back conversation state.
type Gateway interface {
	// SendText delivers a plain text message and returns the provider
	// message id.
	SendText(ctx context.Context, recipient, sender, body string) (string, error)
	// SendMedia delivers one media item and returns the provider message id.
	SendMedia(ctx context.Context, out Outbound) (string, error)
}
