package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeepMessage(t *testing.T) {
	assert.False(t, keepMessage("1", &ClearMessagesOnChannelOptions{}))
	assert.True(t, keepMessage("1", &ClearMessagesOnChannelOptions{Blacklist: []string{"1"}}))
	assert.True(t, keepMessage("1", &ClearMessagesOnChannelOptions{Whitelist: []string{"2"}}))
	assert.False(t, keepMessage("2", &ClearMessagesOnChannelOptions{Whitelist: []string{"2"}}))
	assert.True(t, keepMessage("2", &ClearMessagesOnChannelOptions{Blacklist: []string{"2"}, Whitelist: []string{"2"}}))
}
