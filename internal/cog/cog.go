package cog

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"cogbot/internal/config"
	"cogbot/internal/util"
)

type Cog interface {
	Name() string
	Init() error
}

// requestTimeout bounds the store and API work done for one message.
const requestTimeout = 10 * time.Second

func prefix() string {
	if config.Configuration != nil && config.Configuration.BotPrefix != "" {
		return config.Configuration.BotPrefix
	}
	return util.DefaultPrefix
}

// ignored filters out bots and direct messages.
func ignored(m *discordgo.MessageCreate) bool {
	return m.Author == nil || m.Author.Bot || m.GuildID == ""
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
