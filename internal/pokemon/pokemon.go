package pokemon

import (
	"context"
	"math/rand"
	"sort"
	"strings"
)

type DamageClass string

const (
	Physical DamageClass = "physical"
	Special  DamageClass = "special"
	Status   DamageClass = "status"
)

type Move struct {
	Name     string
	Type     Type
	Power    int
	Accuracy int // 0 never misses
	Priority int
	Class    DamageClass
}

type LearnableMove struct {
	Name  string
	Level int
}

type Species struct {
	ID          int
	Name        string
	Types       []Type
	Base        Stats
	EVYield     Stats
	BaseExp     int
	CaptureRate int
	GrowthRate  GrowthRate
	Learnset    []LearnableMove
}

func (s *Species) HasType(t Type) bool {
	for _, own := range s.Types {
		if own == t {
			return true
		}
	}
	return false
}

// MovesAt returns the moves a freshly met pokémon of this level knows: the
// latest MaxMoves level-up moves at or below the level.
func (s *Species) MovesAt(level int) []string {
	learnable := make([]LearnableMove, 0, len(s.Learnset))
	for _, m := range s.Learnset {
		if m.Level <= level {
			learnable = append(learnable, m)
		}
	}
	sort.SliceStable(learnable, func(i, j int) bool { return learnable[i].Level < learnable[j].Level })

	var moves []string
	for _, m := range learnable {
		if contains(moves, m.Name) {
			continue
		}
		moves = append(moves, m.Name)
	}
	if len(moves) > MaxMoves {
		moves = moves[len(moves)-MaxMoves:]
	}
	return moves
}

// Dex resolves reference data for species and moves.
type Dex interface {
	Species(ctx context.Context, name string) (*Species, error)
	Move(ctx context.Context, name string) (*Move, error)
}

// Pokemon is one owned or wild individual.
type Pokemon struct {
	ID       int64
	Slot     int
	Species  *Species
	Nickname string
	Level    int
	Exp      int
	HP       int
	IVs      Stats
	EVs      Stats
	Moves    []string
	Stats    Stats
}

// NewPokemon rolls random IVs and gives the default moveset for the level.
func NewPokemon(species *Species, level int, rng *rand.Rand) *Pokemon {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	p := &Pokemon{
		Species: species,
		Level:   level,
		Exp:     ExpForLevel(species.GrowthRate, level),
		IVs: Stats{
			HP:        rng.Intn(MaxIV + 1),
			Attack:    rng.Intn(MaxIV + 1),
			Defense:   rng.Intn(MaxIV + 1),
			SpAttack:  rng.Intn(MaxIV + 1),
			SpDefense: rng.Intn(MaxIV + 1),
			Speed:     rng.Intn(MaxIV + 1),
		},
		Moves: species.MovesAt(level),
	}
	p.Recalc()
	p.HP = p.Stats.HP
	return p
}

func (p *Pokemon) Name() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return DisplayName(p.Species.Name)
}

func (p *Pokemon) Recalc() {
	p.Stats = CalcStats(p.Species.Base, p.IVs, p.EVs, p.Level)
	if p.HP > p.Stats.HP {
		p.HP = p.Stats.HP
	}
}

func (p *Pokemon) MaxHP() int {
	return p.Stats.HP
}

func (p *Pokemon) Fainted() bool {
	return p.HP <= 0
}

// Heal restores up to amount HP (amount < 0 heals fully) and returns what was restored.
func (p *Pokemon) Heal(amount int) int {
	missing := p.Stats.HP - p.HP
	if amount < 0 || amount > missing {
		amount = missing
	}
	p.HP += amount
	return amount
}

func (p *Pokemon) TakeDamage(n int) {
	p.HP -= n
	if p.HP < 0 {
		p.HP = 0
	}
}

// GainExp adds experience and applies any level ups. Max HP growth is added to
// current HP. It returns the moves learned on the way.
func (p *Pokemon) GainExp(exp int) (levels int, learned []string) {
	if p.Level >= MaxLevel {
		return 0, nil
	}
	p.Exp += exp
	target := LevelForExp(p.Species.GrowthRate, p.Exp)
	for p.Level < target {
		learned = append(learned, p.levelUp()...)
		levels++
	}
	return levels, learned
}

// LevelUp raises the level by one, setting exp to the new threshold.
func (p *Pokemon) LevelUp() []string {
	if p.Level >= MaxLevel {
		return nil
	}
	learned := p.levelUp()
	if floor := ExpForLevel(p.Species.GrowthRate, p.Level); p.Exp < floor {
		p.Exp = floor
	}
	return learned
}

func (p *Pokemon) levelUp() []string {
	oldMax := p.Stats.HP
	p.Level++
	p.Recalc()
	if !p.Fainted() {
		p.HP += p.Stats.HP - oldMax
	}

	var learned []string
	for _, m := range p.Species.Learnset {
		if m.Level != p.Level || contains(p.Moves, m.Name) {
			continue
		}
		if len(p.Moves) >= MaxMoves {
			// forget the oldest move
			p.Moves = p.Moves[1:]
		}
		p.Moves = append(p.Moves, m.Name)
		learned = append(learned, m.Name)
	}
	return learned
}

// DisplayName turns an API identifier like "mr-mime" into "Mr Mime".
func DisplayName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// NormalizeName turns chat input like "Poké Ball" into "poke-ball".
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "é", "e")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), "-")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
