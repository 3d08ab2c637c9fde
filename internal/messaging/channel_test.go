package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel(" WhatsApp ")
	require.NoError(t, err)
	assert.Equal(t, ChannelWhatsApp, ch)

	ch, err = ParseChannel("widget")
	require.NoError(t, err)
	assert.Equal(t, ChannelWidget, ch)

	_, err = ParseChannel("sms")
	assert.Error(t, err)
}

func TestNeedsPush(t *testing.T) {
	assert.True(t, ChannelWhatsApp.NeedsPush())
	assert.False(t, ChannelWidget.NeedsPush())
}
