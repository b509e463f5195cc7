package cog

import (
	"cogbot/internal/config"
	"cogbot/internal/discord"
	"cogbot/internal/util"

	"github.com/bwmarrin/discordgo"
)

type CommandData struct {
	Enabled         bool              `json:"Enabled"`
	Description     string            `json:"Description"`
	AllowedChannels map[string]string `json:"Allowed_channels"` // Allowed channels (name and ID)
	Ephemeral       bool              `json:"Ephemeral"`
	Response        util.MessageData  `json:"Response"`
}

type CommandConfig struct {
	Enabled  bool                   `json:"Enabled"`
	Commands map[string]CommandData `json:"Commands"`
}

// CommandCog registers slash commands that answer with a canned message.
type CommandCog struct {
	ConfigName string

	Session *discordgo.Session
	Config  *CommandConfig
}

func (m *CommandCog) Name() string {
	return "CommandCog"
}

func (m *CommandCog) Init() error {
	var commandConfig CommandConfig
	if err := config.LoadConfig(m.ConfigName, &commandConfig); err != nil {
		return err
	}
	m.Config = &commandConfig

	if !commandConfig.Enabled {
		config.Logger.Infoln("Command feature disabled in configs")
		return nil
	}

	m.Session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		config.Logger.Infoln("Bot is ready, registering commands...")
		if err := m.registerCommands(r.User.ID); err != nil {
			config.Logger.Errorf("Failed to register commands: %v", err)
		}
	})

	m.Session.AddHandler(m.HandleInteraction)

	config.Logger.Infoln(m.Name(), "initialized!")
	return nil
}

func (m *CommandCog) registerCommands(appID string) error {
	commands := m.applicationCommands()
	_, err := m.Session.ApplicationCommandBulkOverwrite(appID, config.Configuration.GuildID, commands)
	if err != nil {
		return err
	}
	for _, c := range commands {
		config.Logger.Infoln("Succesfully registered command:", c.Name)
	}
	return nil
}

func (m *CommandCog) applicationCommands() []*discordgo.ApplicationCommand {
	var commands []*discordgo.ApplicationCommand
	for name, command := range m.Config.Commands {
		if !command.Enabled {
			continue
		}
		commands = append(commands, &discordgo.ApplicationCommand{
			Name:        name,
			Description: command.Description,
		})
	}
	return commands
}

func (m *CommandCog) HandleInteraction(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ms, ephemeral, ok := m.response(interaction.ApplicationCommandData().Name, interaction.ChannelID)
	if !ok {
		return
	}

	if err := discord.SendInteractionResponse(session, interaction.Interaction, ms, ephemeral); err != nil {
		config.Logger.Errorln(err)
	}
}

// response builds the reply for a command used in a channel. ok is false for
// commands this cog does not own.
func (m *CommandCog) response(name, channelID string) (ms *discordgo.MessageSend, ephemeral, ok bool) {
	command, exists := m.Config.Commands[name]
	if !exists || !command.Enabled {
		return nil, false, false
	}

	if !isChannelAllowed(channelID, command.AllowedChannels) {
		return &discordgo.MessageSend{Content: "This command is not allowed in this channel."}, true, true
	}
	return util.CreateMessageSend(command.Response), command.Ephemeral, true
}

func isChannelAllowed(channelID string, allowedChannels map[string]string) bool {
	if len(allowedChannels) == 0 {
		return true
	}

	for _, allowedID := range allowedChannels {
		if allowedID == channelID {
			return true
		}
	}
	return false
}
