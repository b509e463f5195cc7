package cog

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/beefsack/go-rate"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"cogbot/internal/config"
	"cogbot/internal/discord"
	"cogbot/internal/store"
	"cogbot/internal/util"
)

const triggersEnabledKey = "triggers.enabled"

type Trigger struct {
	Name      string   `json:"Name"`
	Pattern   string   `json:"Pattern"`
	Responses []string `json:"Responses"`
	// Reaction is a unicode emoji or "name:id" of a custom one.
	Reaction        string  `json:"Reaction"`
	CooldownSeconds int     `json:"Cooldown_seconds"`
	Chance          float64 `json:"Chance"`

	re *regexp.Regexp
}

type TriggerConfig struct {
	Enabled       bool      `json:"Enabled"`
	CaseSensitive bool      `json:"Case_sensitive"`
	Triggers      []Trigger `json:"Triggers"`
}

// TriggerCog answers meme phrases. Channels can opt out with "!triggers off".
type TriggerCog struct {
	ConfigName string
	Session    *discordgo.Session
	Settings   *store.Settings
	Config     *TriggerConfig

	mu        sync.Mutex
	rng       *rand.Rand
	cooldowns map[string]*rate.RateLimiter
}

// triggerReply is what a matched message gets back.
type triggerReply struct {
	Content  string
	Reaction string
}

func (t *TriggerCog) Name() string {
	return "TriggerCog"
}

func (t *TriggerCog) Init() error {
	var triggerConfig TriggerConfig
	if err := config.LoadConfig(t.ConfigName, &triggerConfig); err != nil {
		return err
	}
	if err := t.setConfig(&triggerConfig); err != nil {
		return err
	}

	if !triggerConfig.Enabled {
		config.Logger.Infoln("Trigger feature disabled in configs")
		return nil
	}

	t.Session.AddHandler(t.handleMessage)
	config.Logger.Infof("%s initialized with %d triggers!", t.Name(), len(triggerConfig.Triggers))
	return nil
}

// setConfig compiles the patterns, a bad pattern fails the whole config.
func (t *TriggerCog) setConfig(c *TriggerConfig) error {
	for i := range c.Triggers {
		tr := &c.Triggers[i]
		pattern := tr.Pattern
		if !c.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return errors.Wrapf(err, "trigger %q", tr.Name)
		}
		tr.re = re
		if tr.Chance <= 0 || tr.Chance > 1 {
			tr.Chance = 1
		}
	}

	t.Config = c
	t.cooldowns = make(map[string]*rate.RateLimiter)
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return nil
}

func (t *TriggerCog) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if ignored(m) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if cmd, ok := util.ParseCommand(prefix(), m.Content); ok {
		if cmd.Name != "triggers" {
			return
		}
		admin := discord.IsAdmin(s, m.Author.ID, m.ChannelID)
		discord.SendReply(s, m.Message, t.toggleReply(ctx, m.ChannelID, cmd.Arg(0), admin))
		return
	}

	reply, err := t.match(ctx, m.ChannelID, m.Content)
	if err != nil {
		config.Logger.Errorf("triggers: message %s: %v", m.ID, err)
		return
	}
	if reply == nil {
		return
	}

	if reply.Reaction != "" {
		if err := s.MessageReactionAdd(m.ChannelID, m.ID, reply.Reaction); err != nil {
			config.Logger.Warnf("triggers: react %s: %v", reply.Reaction, err)
		}
	}
	if reply.Content != "" {
		if _, err := s.ChannelMessageSend(m.ChannelID, reply.Content); err != nil {
			config.Logger.Warnf("triggers: send in %s: %v", m.ChannelID, err)
		}
	}
}

func (t *TriggerCog) toggleReply(ctx context.Context, channelID, arg string, admin bool) string {
	reply, err := t.toggle(ctx, channelID, arg, admin)
	if err != nil {
		config.Logger.Errorf("triggers: toggle in %s: %v", channelID, err)
		return "Couldn't change triggers, try again later."
	}
	return reply
}

// toggle handles "!triggers on|off" for a channel.
func (t *TriggerCog) toggle(ctx context.Context, channelID, arg string, admin bool) (string, error) {
	var enable bool
	switch strings.ToLower(arg) {
	case "on":
		enable = true
	case "off":
		enable = false
	case "":
		on, err := t.Settings.GetBool(ctx, store.ScopeChannel, channelID, triggersEnabledKey, true)
		if err != nil {
			return "", err
		}
		if on {
			return "Triggers are on in this channel.", nil
		}
		return "Triggers are off in this channel.", nil
	default:
		return "Usage: " + prefix() + "triggers on|off", nil
	}

	if !admin {
		return "Only admins can change triggers.", nil
	}
	if err := t.Settings.SetBool(ctx, store.ScopeChannel, channelID, triggersEnabledKey, enable); err != nil {
		return "", err
	}
	if enable {
		return "Triggers enabled for this channel.", nil
	}
	return "Triggers disabled for this channel.", nil
}

// match returns the reply of the first trigger matching content, nil when
// none fires.
func (t *TriggerCog) match(ctx context.Context, channelID, content string) (*triggerReply, error) {
	var hit *Trigger
	for i := range t.Config.Triggers {
		if t.Config.Triggers[i].re.MatchString(content) {
			hit = &t.Config.Triggers[i]
			break
		}
	}
	if hit == nil {
		return nil, nil
	}

	on, err := t.Settings.GetBool(ctx, store.ScopeChannel, channelID, triggersEnabledKey, true)
	if err != nil || !on {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if hit.Chance < 1 && t.rng.Float64() >= hit.Chance {
		return nil, nil
	}
	if hit.CooldownSeconds > 0 {
		key := hit.Name + "/" + channelID
		rl, ok := t.cooldowns[key]
		if !ok {
			rl = rate.New(1, time.Duration(hit.CooldownSeconds)*time.Second)
			t.cooldowns[key] = rl
		}
		if ok, _ := rl.Try(); !ok {
			return nil, nil
		}
	}

	reply := &triggerReply{Reaction: hit.Reaction}
	if len(hit.Responses) > 0 {
		reply.Content = hit.Responses[t.rng.Intn(len(hit.Responses))]
	}
	return reply, nil
}
