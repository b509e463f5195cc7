package cog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"cogbot/internal/config"
	"cogbot/internal/discord"
	"cogbot/internal/pokemon"
	"cogbot/internal/store"
	"cogbot/internal/util"
)

type PokemonConfig struct {
	Enabled     bool           `json:"Enabled"`
	Command     string         `json:"Command"`
	Channels    []string       `json:"Channels"`
	Starters    []string       `json:"Starters"`
	WildPool    []string       `json:"Wild_pool"`
	StartLevel  int            `json:"Start_level"`
	StartMoney  int64          `json:"Start_money"`
	StartingBag map[string]int `json:"Starting_bag"`
	TopSize     int            `json:"Top_size"`
}

// PokemonCog is the "!pkmn" text game.
type PokemonCog struct {
	ConfigName string
	Session    *discordgo.Session
	DB         *store.DB
	Dex        pokemon.Dex
	Config     *PokemonConfig

	Service *pokemon.Service
}

// playerErrors are answered with their message, anything else is a bug.
var playerErrors = []error{
	pokemon.ErrNoTrainer, pokemon.ErrAlreadyStarted, pokemon.ErrUnknownStarter,
	pokemon.ErrInBattle, pokemon.ErrNotInBattle, pokemon.ErrNoHealthy,
	pokemon.ErrUnknownMove, pokemon.ErrBadQuantity, pokemon.ErrNotABall,
	pokemon.ErrNoWildPokemon, pokemon.ErrBallOutOfBattle, pokemon.ErrUnknownItem,
	pokemon.ErrNoEffect, pokemon.ErrNotEnoughMoney, pokemon.ErrNotEnoughItems,
	pokemon.ErrNoSuchSlot,
}

func (p *PokemonCog) Name() string {
	return "PokemonCog"
}

func (p *PokemonCog) Init() error {
	var pokemonConfig PokemonConfig
	if err := config.LoadConfig(p.ConfigName, &pokemonConfig); err != nil {
		return err
	}
	p.setConfig(&pokemonConfig)

	if !pokemonConfig.Enabled {
		config.Logger.Infoln("Pokemon feature disabled in configs")
		return nil
	}

	if p.Service == nil {
		if p.DB == nil || p.Dex == nil {
			return errors.New("pokemon cog needs a database and a dex")
		}
		p.Service = pokemon.NewService(pokemon.NewSQLRepository(p.DB), p.Dex, pokemon.Options{
			Starters:    pokemonConfig.Starters,
			WildPool:    pokemonConfig.WildPool,
			StartLevel:  pokemonConfig.StartLevel,
			StartMoney:  pokemonConfig.StartMoney,
			StartingBag: pokemonConfig.StartingBag,
		})
	}

	p.Session.AddHandler(p.handleMessage)
	config.Logger.Infoln(p.Name(), "initialized!")
	return nil
}

func (p *PokemonCog) setConfig(c *PokemonConfig) {
	if c.Command == "" {
		c.Command = "pkmn"
	}
	if c.TopSize <= 0 {
		c.TopSize = 10
	}
	p.Config = c
}

func (p *PokemonCog) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if ignored(m) || !p.channelAllowed(m.ChannelID) {
		return
	}
	cmd, ok := util.ParseCommand(prefix(), m.Content)
	if !ok || cmd.Name != p.Config.Command {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reply, err := p.respond(ctx, m.Author.ID, displayName(m), cmd.Args)
	if err != nil {
		reply = p.errorReply(err)
	}
	discord.SendReply(s, m.Message, reply)
}

func (p *PokemonCog) channelAllowed(channelID string) bool {
	if len(p.Config.Channels) == 0 {
		return true
	}
	for _, id := range p.Config.Channels {
		if id == channelID {
			return true
		}
	}
	return false
}

func (p *PokemonCog) errorReply(err error) string {
	for _, known := range playerErrors {
		if errors.Is(err, known) {
			msg := err.Error()
			msg = strings.ToUpper(msg[:1]) + msg[1:]
			if !strings.HasSuffix(msg, "?") && !strings.HasSuffix(msg, "!") {
				msg += "."
			}
			return msg
		}
	}
	config.Logger.Errorf("pokemon: %v", err)
	return "Something went wrong, try again later."
}

func (p *PokemonCog) respond(ctx context.Context, userID, userName string, args []string) (string, error) {
	cmd := util.Command{Args: args}
	svc := p.Service

	switch strings.ToLower(cmd.Arg(0)) {
	case "starters":
		names := make([]string, 0, len(svc.Starters()))
		for _, s := range svc.Starters() {
			names = append(names, pokemon.DisplayName(s))
		}
		return "Choose your starter with `" + p.usage("start <name>") + "`: " + strings.Join(names, ", "), nil

	case "start":
		if cmd.Arg(1) == "" {
			return "Usage: " + p.usage("start <starter>"), nil
		}
		mon, err := svc.Start(ctx, userID, userName, cmd.Rest(1))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Welcome, %s! %s (Lv. %d) joins you on your journey. Try `%s` to find a wild pokémon.",
			userName, mon.Name(), mon.Level, p.usage("wild")), nil

	case "trainer", "profile":
		t, err := svc.Trainer(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("**%s**\nMoney: ₽%s\nBattles: %d won, %d lost\nCaught: %d\nTrainer since %s",
			t.Name, humanize.Comma(t.Money), t.Wins, t.Losses, t.Caught, humanize.Time(t.CreatedAt)), nil

	case "party":
		party, box, err := svc.Party(ctx, userID)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		sb.WriteString("**Party**")
		for _, mon := range party {
			sb.WriteString("\n" + formatPokemon(mon))
		}
		if len(box) > 0 {
			fmt.Fprintf(&sb, "\n%d more in the box.", len(box))
		}
		return sb.String(), nil

	case "bag":
		bag, err := svc.Bag(ctx, userID)
		if err != nil {
			return "", err
		}
		if len(bag) == 0 {
			return "Your bag is empty.", nil
		}
		var lines []string
		for _, name := range pokemon.ItemNames() {
			if n := bag[name]; n > 0 {
				lines = append(lines, fmt.Sprintf("%s x%d", pokemon.DisplayName(name), n))
			}
		}
		return "**Bag**\n" + strings.Join(lines, "\n"), nil

	case "shop":
		var sb strings.Builder
		sb.WriteString("**Shop**")
		for _, it := range svc.Shop() {
			fmt.Fprintf(&sb, "\n%s: ₽%s, %s", pokemon.DisplayName(it.Name), humanize.Comma(it.Price), it.Description)
		}
		return sb.String(), nil

	case "buy":
		item, qty, ok := splitTrailingNumber(cmd.Args[1:], 1)
		if !ok {
			return "Usage: " + p.usage("buy <item> [quantity]"), nil
		}
		it, total, err := svc.Buy(ctx, userID, item, qty)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("You bought %d %s for ₽%s.", qty, pokemon.DisplayName(it.Name), humanize.Comma(total)), nil

	case "use":
		item, slot, ok := splitTrailingNumber(cmd.Args[1:], 1)
		if !ok {
			return "Usage: " + p.usage("use <item> [slot]"), nil
		}
		msg, res, err := svc.Use(ctx, userID, item, slot)
		if err != nil {
			return "", err
		}
		if res != nil {
			return p.formatTurn(userID, res), nil
		}
		return msg, nil

	case "heal", "center":
		if err := svc.Heal(ctx, userID); err != nil {
			return "", err
		}
		return "Your pokémon are fighting fit!", nil

	case "swap":
		a, errA := strconv.Atoi(cmd.Arg(1))
		b, errB := strconv.Atoi(cmd.Arg(2))
		if errA != nil || errB != nil {
			return "Usage: " + p.usage("swap <slot> <slot>"), nil
		}
		if err := svc.Swap(ctx, userID, a, b); err != nil {
			return "", err
		}
		return fmt.Sprintf("Swapped slots %d and %d.", a, b), nil

	case "wild", "encounter":
		b, err := svc.Encounter(ctx, userID)
		if err != nil {
			return "", err
		}
		config.Logger.Infow("Wild encounter", "battle", b.ID.String(), "user", userID,
			"wild", b.Wild.Species.Name, "level", b.Wild.Level)
		return fmt.Sprintf("A wild %s (Lv. %d) appeared!\nGo, %s!\n%s\nUse `%s`, `%s` or `%s`.\n%s",
			b.Wild.Name(), b.Wild.Level, b.Player.Name(), formatMoves(b.Player),
			p.usage("fight <move>"), p.usage("throw [ball]"), p.usage("run"), battleTag(b.ID)), nil

	case "fight", "attack":
		if cmd.Arg(1) == "" {
			return "Usage: " + p.usage("fight <move>"), nil
		}
		res, err := svc.Fight(ctx, userID, cmd.Rest(1))
		if err != nil {
			return "", err
		}
		return p.formatTurn(userID, res), nil

	case "throw", "catch":
		ball := cmd.Rest(1)
		if ball == "" {
			ball = "poke-ball"
		}
		res, err := svc.Throw(ctx, userID, ball)
		if err != nil {
			return "", err
		}
		return p.formatTurn(userID, res), nil

	case "run", "flee":
		res, err := svc.Run(ctx, userID)
		if err != nil {
			return "", err
		}
		return p.formatTurn(userID, res), nil

	case "top", "leaderboard":
		board, err := svc.Leaderboard(ctx, p.Config.TopSize)
		if err != nil {
			return "", err
		}
		if len(board) == 0 {
			return "No trainers yet.", nil
		}
		var sb strings.Builder
		sb.WriteString("**Top trainers**")
		for i, e := range board {
			fmt.Fprintf(&sb, "\n%s %s: %s exp, %d pokémon, best Lv. %d",
				humanize.Ordinal(i+1), e.Name, humanize.Comma(e.TotalExp), e.Pokemon, e.TopLevel)
		}
		return sb.String(), nil
	}

	return p.help(), nil
}

func (p *PokemonCog) usage(sub string) string {
	return prefix() + p.Config.Command + " " + sub
}

func (p *PokemonCog) help() string {
	subs := []string{
		"starters", "start <starter>", "trainer", "party", "bag", "shop",
		"buy <item> [quantity]", "use <item> [slot]", "heal", "swap <slot> <slot>",
		"wild", "fight <move>", "throw [ball]", "run", "top",
	}
	lines := make([]string, 0, len(subs))
	for _, s := range subs {
		lines = append(lines, "`"+p.usage(s)+"`")
	}
	return "**Pokémon commands**\n" + strings.Join(lines, "\n")
}

// formatTurn prints the battle log and, while it goes on, both HP bars.
func (p *PokemonCog) formatTurn(userID string, res *pokemon.TurnResult) string {
	lines := append([]string{}, res.Events...)
	if res.Outcome == pokemon.Ongoing {
		if b, ok := p.Service.Battle(userID); ok {
			lines = append(lines, fmt.Sprintf("%s HP %d/%d | wild %s HP %d/%d",
				b.Player.Name(), b.Player.HP, b.Player.MaxHP(), b.Wild.Name(), b.Wild.HP, b.Wild.MaxHP()))
		}
	}
	if res.Outcome == pokemon.Won {
		lines = append(lines, fmt.Sprintf("You earned ₽%s.", humanize.Comma(res.Reward)))
	}
	config.Logger.Infow("Battle turn", "battle", res.BattleID.String(), "user", userID, "outcome", res.Outcome.String())
	lines = append(lines, battleTag(res.BattleID))
	return strings.Join(lines, "\n")
}

// battleTag is the small footer naming the battle a reply belongs to.
func battleTag(id uuid.UUID) string {
	return "-# battle " + id.String()[:8]
}

func formatPokemon(mon *pokemon.Pokemon) string {
	status := fmt.Sprintf("HP %d/%d", mon.HP, mon.MaxHP())
	if mon.Fainted() {
		status = "fainted"
	}
	moves := make([]string, 0, len(mon.Moves))
	for _, m := range mon.Moves {
		moves = append(moves, pokemon.DisplayName(m))
	}
	return fmt.Sprintf("%d. %s Lv. %d, %s [%s]", mon.Slot, mon.Name(), mon.Level, status, strings.Join(moves, ", "))
}

func formatMoves(mon *pokemon.Pokemon) string {
	moves := make([]string, 0, len(mon.Moves))
	for i, m := range mon.Moves {
		moves = append(moves, fmt.Sprintf("%d. %s", i+1, pokemon.DisplayName(m)))
	}
	return "Moves: " + strings.Join(moves, "  ")
}

// splitTrailingNumber reads "great ball 3" as ("great ball", 3).
func splitTrailingNumber(args []string, def int) (string, int, bool) {
	if len(args) == 0 {
		return "", 0, false
	}
	if n, err := strconv.Atoi(args[len(args)-1]); err == nil {
		if len(args) == 1 {
			return "", 0, false
		}
		return strings.Join(args[:len(args)-1], " "), n, true
	}
	return strings.Join(args, " "), def, true
}
