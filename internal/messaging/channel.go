package messaging

import (
	"fmt"
	"strings"
)

// Channel is the messaging surface a conversation lives on. Business logic
// never branches on channel name strings; it asks the enum for
// capabilities instead.
type Channel string

const (
	ChannelWidget   Channel = "widget"
	ChannelWhatsApp Channel = "whatsapp"
)

// ParseChannel maps a stored channel value onto the closed enum.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelWidget:
		return ChannelWidget, nil
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	}
	return "", fmt.Errorf("messaging: unknown channel %q", s)
}

// NeedsPush reports whether replies must be explicitly pushed through the
// gateway. Widget replies are delivered in-band to the connected session.
func (c Channel) NeedsPush() bool {
	return c == ChannelWhatsApp
}
