package cog

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/dgvoice"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"cogbot/internal/audio"
	"cogbot/internal/config"
	"cogbot/internal/discord"
	"cogbot/internal/gameboy"
	"cogbot/internal/util"
)

type GameBoyConfig struct {
	Enabled bool   `json:"Enabled"`
	Channel string `json:"Channel"`
	// ClearOnStart wipes the input channel when the bot starts.
	ClearOnStart bool `json:"Clear_on_start"`

	Emulator struct {
		Command string   `json:"Command"`
		Args    []string `json:"Args"`
		ROM     string   `json:"Rom"`
		// TimeoutSeconds bounds one emulator command, 10 by default.
		TimeoutSeconds int `json:"Timeout_seconds"`
	} `json:"Emulator"`

	Scale        int `json:"Scale"`
	HoldFrames   int `json:"Hold_frames"`
	SettleFrames int `json:"Settle_frames"`

	InputsPerUser        int `json:"Inputs_per_user"`
	InputIntervalSeconds int `json:"Input_interval_seconds"`

	ClipFrames int `json:"Clip_frames"`
	ClipEvery  int `json:"Clip_every"`

	Voice struct {
		Enabled bool              `json:"Enabled"`
		GuildID string            `json:"Guild_id"`
		Channel string            `json:"Channel"`
		Format  audio.InputFormat `json:"Format"`
	} `json:"Voice"`
}

// GameBoyCog lets a channel play a game together. Every message made of
// button presses is fed to the emulator and answered with the new screen.
type GameBoyCog struct {
	ConfigName string
	Session    *discordgo.Session
	Config     *GameBoyConfig

	// Emulator replaces the configured emulator process, used by tests.
	Emulator gameboy.Emulator

	console *gameboy.Console
	ctx     context.Context
	cancel  context.CancelFunc

	voiceMu         sync.Mutex
	VoiceConnection *discordgo.VoiceConnection
}

func (g *GameBoyCog) Name() string {
	return "GameBoyCog"
}

func (g *GameBoyCog) Init() error {
	var gbConfig GameBoyConfig
	if err := config.LoadConfig(g.ConfigName, &gbConfig); err != nil {
		return err
	}

	if !gbConfig.Enabled {
		g.Config = &gbConfig
		config.Logger.Infoln("Game Boy feature disabled in configs")
		return nil
	}

	if err := g.start(&gbConfig); err != nil {
		return err
	}

	if gbConfig.ClearOnStart {
		if err := discord.ClearMessagesOnChannel(g.Session, gbConfig.Channel, nil); err != nil {
			config.Logger.Warnln("Failed to clear Game Boy channel:", err)
		}
	}

	g.Session.AddHandler(g.handleMessage)
	if gbConfig.Voice.Enabled && gbConfig.Voice.Channel != "" {
		g.Session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
			if err := g.joinVoice(gbConfig.Voice.GuildID, gbConfig.Voice.Channel); err != nil {
				config.Logger.Errorln("Failed to stream Game Boy audio:", err)
			}
		})
	}

	config.Logger.Infoln(g.Name(), "initialized!")
	return nil
}

// start applies defaults and boots the emulator.
func (g *GameBoyCog) start(c *GameBoyConfig) error {
	if c.Scale <= 0 {
		c.Scale = 2
	}
	if c.ClipFrames <= 0 {
		c.ClipFrames = 30
	}
	if c.ClipEvery <= 0 {
		c.ClipEvery = 4
	}
	g.Config = c
	g.ctx, g.cancel = context.WithCancel(context.Background())

	emu := g.Emulator
	if emu == nil {
		var err error
		emu, err = gameboy.NewProcessEmulator(g.ctx, gameboy.ProcessOptions{
			Command: c.Emulator.Command,
			Args:    c.Emulator.Args,
			ROM:     c.Emulator.ROM,
			Timeout: time.Duration(c.Emulator.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			g.cancel()
			return err
		}
	}

	g.console = gameboy.NewConsole(emu, gameboy.ConsoleOptions{
		HoldFrames:    c.HoldFrames,
		SettleFrames:  c.SettleFrames,
		InputsPerUser: c.InputsPerUser,
		InputInterval: time.Duration(c.InputIntervalSeconds) * time.Second,
	})
	return nil
}

func (g *GameBoyCog) Close() error {
	if g.console == nil {
		return nil
	}
	g.disconnectFromVoice()
	err := g.console.Close()
	g.cancel()
	return err
}

func (g *GameBoyCog) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if ignored(m) || m.ChannelID != g.Config.Channel {
		return
	}

	if cmd, ok := util.ParseCommand(prefix(), m.Content); ok && cmd.Name == "gb" && cmd.Arg(0) == "join" {
		g.handleJoin(s, m)
		return
	}

	out, err := g.respond(m.Author.ID, m.Content)
	if err != nil {
		var te *gameboy.ThrottleError
		if errors.As(err, &te) {
			_ = discord.SendReplyMessageTimed(s, m.ChannelID, m.ID, te.Error(), 3*time.Second)
			return
		}
		config.Logger.Errorf("gameboy: message %s: %v", m.ID, err)
		return
	}
	if out == nil {
		return
	}

	if err := discord.SendFile(s, m.ChannelID, out.Name, out.ContentType, out.Data, out.Caption); err != nil {
		config.Logger.Warnf("gameboy: send %s: %v", out.Name, err)
	}
}

// gameboyReply is an image to post back to the channel.
type gameboyReply struct {
	Name        string
	ContentType string
	Data        []byte
	Caption     string
}

// respond turns a message into a screen. Chatter that is neither input nor
// a command yields nil.
func (g *GameBoyCog) respond(userID, content string) (*gameboyReply, error) {
	var buf bytes.Buffer

	if cmd, ok := util.ParseCommand(prefix(), content); ok {
		if cmd.Name != "gb" {
			return nil, nil
		}
		switch cmd.Arg(0) {
		case "clip", "gif":
			frames, err := g.console.Clip(g.Config.ClipFrames, g.Config.ClipEvery)
			if err != nil {
				return nil, err
			}
			delay := g.Config.ClipEvery * 100 / gameboy.FramesPerSecond
			if err := gameboy.EncodeGIF(&buf, frames, g.Config.Scale, delay); err != nil {
				return nil, err
			}
			return &gameboyReply{Name: "clip.gif", ContentType: "image/gif", Data: buf.Bytes()}, nil
		default:
			frame, err := g.console.Screenshot()
			if err != nil {
				return nil, err
			}
			if err := gameboy.EncodePNG(&buf, frame, g.Config.Scale); err != nil {
				return nil, err
			}
			caption := fmt.Sprintf("%s button presses so far.", humanize.Comma(int64(g.console.Presses())))
			return &gameboyReply{Name: "screen.png", ContentType: "image/png", Data: buf.Bytes(), Caption: caption}, nil
		}
	}

	presses, err := gameboy.ParseInputs(content)
	if errors.Is(err, gameboy.ErrNotInput) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	frame, err := g.console.Play(userID, presses)
	if err != nil {
		return nil, err
	}
	if err := gameboy.EncodePNG(&buf, frame, g.Config.Scale); err != nil {
		return nil, err
	}
	return &gameboyReply{Name: "screen.png", ContentType: "image/png", Data: buf.Bytes()}, nil
}

// handleJoin moves the audio stream to the caller's voice channel.
func (g *GameBoyCog) handleJoin(s *discordgo.Session, m *discordgo.MessageCreate) {
	if !g.Config.Voice.Enabled {
		discord.SendReply(s, m.Message, "Game Boy audio is disabled.")
		return
	}
	vs := discord.GetUserVoiceState(s, m.GuildID, m.Author.ID)
	if vs == nil {
		discord.SendReply(s, m.Message, "Join a voice channel first.")
		return
	}
	if err := g.joinVoice(m.GuildID, vs.ChannelID); err != nil {
		config.Logger.Errorln("Failed to stream Game Boy audio:", err)
		discord.SendReply(s, m.Message, "Could not join your voice channel.")
	}
}

func (g *GameBoyCog) joinVoice(guildID, channelID string) error {
	g.voiceMu.Lock()
	defer g.voiceMu.Unlock()

	if g.VoiceConnection != nil {
		if g.VoiceConnection.ChannelID == channelID {
			return nil
		}
		// the running stream follows the connection to the new channel
		return g.VoiceConnection.ChangeChannel(channelID, false, true)
	}

	vc, err := g.Session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %v", err)
	}
	g.VoiceConnection = vc

	go g.streamAudio(vc)
	return nil
}

func (g *GameBoyCog) streamAudio(vc *discordgo.VoiceConnection) {
	pcmChan := make(chan []int16, 64)

	go func() {
		err := audio.DecodeAudioToPCM(g.ctx, g.console.Audio(), g.Config.Voice.Format, pcmChan)
		if err != nil && g.ctx.Err() == nil {
			config.Logger.Errorf("Error decoding emulator audio: %v", err)
		}
		close(pcmChan)
	}()

	dgvoice.SendPCM(vc, pcmChan)
}

func (g *GameBoyCog) disconnectFromVoice() {
	g.voiceMu.Lock()
	defer g.voiceMu.Unlock()

	if g.VoiceConnection != nil {
		if err := g.VoiceConnection.Disconnect(); err != nil {
			config.Logger.Warnln("Failed to leave voice:", err)
		}
		g.VoiceConnection = nil
	}
}
