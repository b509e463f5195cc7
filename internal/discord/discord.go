package discord

import (
	"cogbot/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

var Session *discordgo.Session

func Init() error {
	var err error
	Session, err = discordgo.New("Bot " + config.Configuration.DiscordToken)
	if err != nil {
		return errors.Wrap(err, "Failed while creating discordgo session")
	}
	Session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
	return nil
}

// InitConnection opens the gateway once every cog has registered its handlers.
func InitConnection() error {
	Session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		config.Logger.Infof("Logged in as %s#%s", r.User.Username, r.User.Discriminator)
		if status := config.Configuration.BotStatus; status != "" {
			if err := s.UpdateGameStatus(0, status); err != nil {
				config.Logger.Warnln("Failed to set status:", err)
			}
		}
	})

	if err := Session.Open(); err != nil {
		return errors.Wrap(err, "Failed to open discord connection")
	}
	return nil
}
