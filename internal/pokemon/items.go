package pokemon

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	ErrUnknownItem = errors.New("unknown item")
	ErrNoEffect    = errors.New("it won't have any effect")
)

type ItemKind int

const (
	Medicine ItemKind = iota
	Ball
	Candy
)

type Item struct {
	Name        string
	Description string
	Kind        ItemKind
	Price       int64

	Heal   int // HP restored, -1 restores everything
	Revive bool
	Bonus  float64 // catch rate multiplier for balls
}

const masterBallBonus = 255

// Items is the shop and effect table, keyed by normalized name.
var Items = map[string]Item{
	"potion":       {Name: "potion", Description: "Restores 20 HP.", Kind: Medicine, Price: 300, Heal: 20},
	"super-potion": {Name: "super-potion", Description: "Restores 50 HP.", Kind: Medicine, Price: 700, Heal: 50},
	"hyper-potion": {Name: "hyper-potion", Description: "Restores 200 HP.", Kind: Medicine, Price: 1500, Heal: 200},
	"max-potion":   {Name: "max-potion", Description: "Fully restores HP.", Kind: Medicine, Price: 2500, Heal: -1},
	"full-restore": {Name: "full-restore", Description: "Fully restores HP.", Kind: Medicine, Price: 3000, Heal: -1},
	"revive":       {Name: "revive", Description: "Revives a fainted pokémon with half its HP.", Kind: Medicine, Price: 2000, Revive: true},
	"rare-candy":   {Name: "rare-candy", Description: "Raises a pokémon's level by one.", Kind: Candy, Price: 4800},
	"poke-ball":    {Name: "poke-ball", Description: "A ball for catching wild pokémon.", Kind: Ball, Price: 200, Bonus: 1},
	"great-ball":   {Name: "great-ball", Description: "A better ball.", Kind: Ball, Price: 600, Bonus: 1.5},
	"ultra-ball":   {Name: "ultra-ball", Description: "An even better ball.", Kind: Ball, Price: 1200, Bonus: 2},
	"master-ball":  {Name: "master-ball", Description: "Catches without fail.", Kind: Ball, Price: 50000, Bonus: masterBallBonus},
}

// LookupItem accepts loose chat spellings ("Poké Ball", "pokeball").
func LookupItem(name string) (Item, error) {
	key := NormalizeName(name)
	if it, ok := Items[key]; ok {
		return it, nil
	}
	for k, it := range Items {
		if removeDashes(k) == removeDashes(key) {
			return it, nil
		}
	}
	if s := Suggest(key, ItemNames()); len(s) > 0 {
		return Item{}, fmt.Errorf("%w %q, did you mean %s?", ErrUnknownItem, name, DisplayName(s[0]))
	}
	return Item{}, fmt.Errorf("%w %q", ErrUnknownItem, name)
}

func ItemNames() []string {
	names := make([]string, 0, len(Items))
	for k := range Items {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Suggest ranks candidates by edit distance to a fuzzy match of input.
func Suggest(input string, candidates []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(input, candidates)
	if len(ranks) == 0 {
		// the user may have typed more than the name, try the other way around
		for _, c := range candidates {
			if fuzzy.MatchNormalizedFold(c, input) {
				ranks = append(ranks, fuzzy.Rank{Target: c, Distance: fuzzy.LevenshteinDistance(c, input)})
			}
		}
	}
	sort.Sort(ranks)
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, r.Target)
	}
	return out
}

// UseOn applies a medicine or candy outside of a catch attempt and describes the result.
func (it Item) UseOn(p *Pokemon) (string, error) {
	switch {
	case it.Kind == Ball:
		return "", ErrNoEffect
	case it.Kind == Candy:
		if p.Level >= MaxLevel {
			return "", ErrNoEffect
		}
		learned := p.LevelUp()
		msg := fmt.Sprintf("%s grew to level %d!", p.Name(), p.Level)
		for _, m := range learned {
			msg += fmt.Sprintf(" %s learned %s!", p.Name(), DisplayName(m))
		}
		return msg, nil
	case it.Revive:
		if !p.Fainted() {
			return "", ErrNoEffect
		}
		p.HP = p.MaxHP() / 2
		return fmt.Sprintf("%s was revived!", p.Name()), nil
	}

	if p.Fainted() || p.HP >= p.MaxHP() {
		return "", ErrNoEffect
	}
	healed := p.Heal(it.Heal)
	return fmt.Sprintf("%s recovered %d HP.", p.Name(), healed), nil
}

// CatchRate is the modified catch rate ((3M - 2H) * rate * ball) / 3M.
func CatchRate(maxHP, hp, captureRate int, ball float64) float64 {
	if maxHP < 1 {
		maxHP = 1
	}
	return float64(3*maxHP-2*hp) * float64(captureRate) * ball / float64(3*maxHP)
}

func AttemptCatch(rng *rand.Rand, target *Pokemon, ball Item) bool {
	if ball.Bonus >= masterBallBonus {
		return true
	}
	a := CatchRate(target.MaxHP(), target.HP, target.Species.CaptureRate, ball.Bonus)
	if a >= 255 {
		return true
	}
	return float64(rng.Intn(255)) < a
}

func removeDashes(s string) string {
	return strings.ReplaceAll(s, "-", "")
}
