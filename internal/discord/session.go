package discord

import (
	"bytes"
	"time"

	"cogbot/internal/config"

	"github.com/bwmarrin/discordgo"
)

type ClearMessagesOnChannelOptions struct {
	Blacklist []string // User ids to exclude
	Whitelist []string // User ids to include
	Before    string   // Message id to fetch messages before
	After     string   // Message id to fetch messages after
	Limit     int
}

func SendReply(session *discordgo.Session, msg *discordgo.Message, content string) {
	if content == "" {
		return
	}
	_, err := session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content:         content,
		Reference:       msg.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}},
	})
	if err != nil {
		config.Logger.Warnf("Failed to reply in channel %s: %v", msg.ChannelID, err)
	}
}

func SendReplyMessageTimed(session *discordgo.Session, channelID, messageID, content string, timeout time.Duration) error {
	msg, err := session.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
		MessageID: messageID,
		ChannelID: channelID,
	})
	if err != nil {
		return err
	}

	time.AfterFunc(timeout, func() {
		err := session.ChannelMessageDelete(channelID, msg.ID)
		if err != nil {
			config.Logger.Warnf("Failed to delete message %s: %v", msg.ID, err)
		}
	})

	return nil
}

// SendFile posts an attachment, e.g. a rendered emulator frame.
func SendFile(session *discordgo.Session, channelID, name, contentType string, data []byte, content string) error {
	_, err := session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: contentType,
			Reader:      bytes.NewReader(data),
		}},
	})
	return err
}

func SendInteractionResponse(session *discordgo.Session, interaction *discordgo.Interaction, msg *discordgo.MessageSend, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{
		Content: msg.Content,
		Embeds:  msg.Embeds,
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// IsAdmin reports whether the user has the Administrator permission in the channel.
func IsAdmin(session *discordgo.Session, userID, channelID string) bool {
	perms, err := session.UserChannelPermissions(userID, channelID)
	if err != nil {
		config.Logger.Warnf("Failed to get permissions of %s: %v", userID, err)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func GetUserVoiceState(s *discordgo.Session, guildID, userID string) *discordgo.VoiceState {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		config.Logger.Errorln("Failed to get guild:", err)
		return nil
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs
		}
	}
	return nil
}

func ClearMessagesOnChannel(session *discordgo.Session, channelID string, options *ClearMessagesOnChannelOptions) error {
	if options == nil {
		options = &ClearMessagesOnChannelOptions{}
	}

	limit := options.Limit
	if limit == 0 {
		limit = 100
	}

	messages, err := session.ChannelMessages(channelID, limit, options.Before, options.After, "")
	if err != nil {
		return err
	}

	var messagesToDelete []string
	for _, msg := range messages {
		if keepMessage(msg.Author.ID, options) {
			continue
		}
		messagesToDelete = append(messagesToDelete, msg.ID)
	}

	for i := 0; i < len(messagesToDelete); i += 100 {
		end := i + 100
		if end > len(messagesToDelete) {
			end = len(messagesToDelete)
		}

		if err := session.ChannelMessagesBulkDelete(channelID, messagesToDelete[i:end]); err != nil {
			config.Logger.Infof("Failed to delete messages in channel %s: %v", channelID, err)
		}
	}

	return nil
}

func keepMessage(authorID string, options *ClearMessagesOnChannelOptions) bool {
	for _, id := range options.Blacklist {
		if id == authorID {
			return true
		}
	}
	if len(options.Whitelist) == 0 {
		return false
	}
	for _, id := range options.Whitelist {
		if id == authorID {
			return false
		}
	}
	return true
}
