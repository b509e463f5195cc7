package util

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type MessageData struct {
	Content string     `json:"Content,omitempty"`
	Embed   *EmbedData `json:"Embed,omitempty"`
}

type EmbedData struct {
	Title       string `json:"Title,omitempty"`
	Description string `json:"Description,omitempty"`
	URL         string `json:"Url,omitempty"`
	Color       string `json:"Color,omitempty"`
	Footer      Footer `json:"Footer,omitempty"`
	Image       string `json:"Image,omitempty"`
	Thumbnail   string `json:"Thumbnail,omitempty"`
}

type Footer struct {
	Text    string `json:"Text,omitempty"`
	IconURL string `json:"Icon_url,omitempty"`
}

func CreateMessageSend(message MessageData) *discordgo.MessageSend {
	mess := &discordgo.MessageSend{Content: message.Content}
	if embed := CreateEmbed(message.Embed); embed != nil {
		mess.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return mess
}

// CreateEmbed returns nil for a missing embed so plain text replies carry none.
func CreateEmbed(message *EmbedData) *discordgo.MessageEmbed {
	if message == nil {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title:       message.Title,
		Description: message.Description,
		URL:         message.URL,
	}
	if message.Color != "" {
		embed.Color = ParseHexColor(message.Color)
	}
	if message.Footer.Text != "" || message.Footer.IconURL != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    message.Footer.Text,
			IconURL: message.Footer.IconURL,
		}
	}
	if message.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: message.Thumbnail}
	}
	if message.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: message.Image}
	}
	return embed
}

// ParseHexColor accepts "0xRRGGBB" or "#RRGGBB".
func ParseHexColor(color string) int {
	color = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(color), "#"), "0x")
	parsed, err := strconv.ParseInt(color, 16, 32)
	if err != nil {
		return 0xFFFFFF // Default to white if parsing fails
	}
	return int(parsed)
}
