package cog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beefsack/go-rate"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"cogbot/internal/config"
	"cogbot/internal/discord"
	"cogbot/internal/ledger"
	"cogbot/internal/util"
)

type PointsConfig struct {
	Enabled bool `json:"Enabled"`
	// Command is the text command name, "chodecoin" by default.
	Command  string   `json:"Command"`
	Currency string   `json:"Currency"`
	Admins   []string `json:"Admins"`
	// AwardsPerMinute limits how many award messages one user can send, 0 is unlimited.
	AwardsPerMinute int `json:"Awards_per_minute"`
	TopSize         int `json:"Top_size"`
}

// PointsCog is the ChodeCoin ledger: "<@user>++" in chat moves points and
// "!chodecoin" shows them.
type PointsCog struct {
	ConfigName string
	Session    *discordgo.Session
	Ledger     ledger.Store
	Config     *PointsConfig

	mu       sync.Mutex
	limiters map[string]*rate.RateLimiter
}

// pointsRequest is one chat message as seen by the ledger.
type pointsRequest struct {
	GuildID  string
	AuthorID string
	Content  string
	Admin    bool
}

func (p *PointsCog) Name() string {
	return "PointsCog"
}

func (p *PointsCog) Init() error {
	var pointsConfig PointsConfig
	if err := config.LoadConfig(p.ConfigName, &pointsConfig); err != nil {
		return err
	}
	p.setConfig(&pointsConfig)

	if !pointsConfig.Enabled {
		config.Logger.Infoln("Points feature disabled in configs")
		return nil
	}
	if p.Ledger == nil {
		return errors.New("points cog needs a ledger")
	}

	p.Session.AddHandler(p.handleMessage)
	config.Logger.Infoln(p.Name(), "initialized!")
	return nil
}

func (p *PointsCog) setConfig(c *PointsConfig) {
	if c.Command == "" {
		c.Command = "chodecoin"
	}
	if c.Currency == "" {
		c.Currency = "ChodeCoin"
	}
	if c.TopSize <= 0 {
		c.TopSize = 10
	}
	p.Config = c
	p.limiters = make(map[string]*rate.RateLimiter)
}

func (p *PointsCog) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if ignored(m) {
		return
	}

	req := pointsRequest{GuildID: m.GuildID, AuthorID: m.Author.ID, Content: m.Content}
	if cmd, ok := util.ParseCommand(prefix(), m.Content); ok && cmd.Name == p.Config.Command {
		req.Admin = p.isAdmin(m.Author.ID) || discord.IsAdmin(s, m.Author.ID, m.ChannelID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reply, err := p.respond(ctx, req)
	if err != nil {
		config.Logger.Errorf("points: message %s: %v", m.ID, err)
		reply = "Something went wrong with the " + p.Config.Currency + " ledger."
	}
	discord.SendReply(s, m.Message, reply)
}

// respond handles one message and returns the reply, "" when the message
// is not for this cog.
func (p *PointsCog) respond(ctx context.Context, req pointsRequest) (string, error) {
	if cmd, ok := util.ParseCommand(prefix(), req.Content); ok {
		if cmd.Name != p.Config.Command {
			return "", nil
		}
		return p.command(ctx, req, cmd)
	}

	awards := ledger.ParseAwards(req.Content)
	if len(awards) == 0 {
		return "", nil
	}
	for _, a := range awards {
		if a.UserID == req.AuthorID {
			return fmt.Sprintf("You can't give %s to yourself.", p.Config.Currency), nil
		}
	}
	if wait, ok := p.allow(req.GuildID, req.AuthorID); !ok {
		return fmt.Sprintf("Slow down! You can hand out %s again in %s.", p.Config.Currency, wait.Round(time.Second)), nil
	}

	entries, err := ledger.Apply(ctx, p.Ledger, req.GuildID, req.AuthorID, awards)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s now has %s %s.", util.Mention(e.UserID), humanize.Comma(e.Points), p.Config.Currency))
	}
	return strings.Join(lines, "\n"), nil
}

func (p *PointsCog) command(ctx context.Context, req pointsRequest, cmd util.Command) (string, error) {
	currency := p.Config.Currency
	sub := strings.ToLower(cmd.Arg(0))

	if id, ok := util.MentionedUserID(sub); ok || sub == "" || sub == "balance" {
		target := req.AuthorID
		if ok {
			target = id
		} else if id, ok := util.MentionedUserID(cmd.Arg(1)); ok {
			target = id
		}
		points, err := p.Ledger.Balance(ctx, req.GuildID, target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s has %s %s.", util.Mention(target), humanize.Comma(points), currency), nil
	}

	switch sub {
	case "top", "leaderboard":
		entries, err := p.Ledger.Top(ctx, req.GuildID, p.Config.TopSize)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return fmt.Sprintf("Nobody has any %s yet.", currency), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "**%s leaderboard**", currency)
		for i, e := range entries {
			fmt.Fprintf(&sb, "\n%s %s: %s", humanize.Ordinal(i+1), util.Mention(e.UserID), humanize.Comma(e.Points))
		}
		return sb.String(), nil

	case "give", "set":
		if !req.Admin {
			return fmt.Sprintf("Only admins can %s %s.", sub, currency), nil
		}
		target, ok := util.MentionedUserID(cmd.Arg(1))
		amount, err := strconv.ParseInt(cmd.Arg(2), 10, 64)
		if !ok || err != nil {
			return fmt.Sprintf("Usage: %s%s %s @user <amount>", prefix(), p.Config.Command, sub), nil
		}
		if sub == "set" {
			if err := p.Ledger.Set(ctx, req.GuildID, target, amount); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s now has %s %s.", util.Mention(target), humanize.Comma(amount), currency), nil
		}
		points, err := p.Ledger.Add(ctx, req.GuildID, target, amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Gave %s %s to %s, they now have %s.", humanize.Comma(amount), currency, util.Mention(target), humanize.Comma(points)), nil
	}

	return fmt.Sprintf("Usage: %[1]s%[2]s [@user] | %[1]s%[2]s top | %[1]s%[2]s give @user <amount>", prefix(), p.Config.Command), nil
}

func (p *PointsCog) isAdmin(userID string) bool {
	for _, id := range p.Config.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// allow applies the per-user award limit.
func (p *PointsCog) allow(guildID, userID string) (time.Duration, bool) {
	if p.Config.AwardsPerMinute <= 0 {
		return 0, true
	}

	p.mu.Lock()
	key := guildID + "/" + userID
	rl, ok := p.limiters[key]
	if !ok {
		rl = rate.New(p.Config.AwardsPerMinute, time.Minute)
		p.limiters[key] = rl
	}
	p.mu.Unlock()

	ok, remaining := rl.Try()
	return remaining, ok
}
