package pokemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sethgrid/pester"

	"cogbot/internal/config"
)

var ErrNotFound = errors.New("not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PokeAPI is a Dex backed by the public pokeapi.co REST API.
type PokeAPI struct {
	baseURL string
	client  *pester.Client

	species *cache[*Species]
	moves   *cache[*Move]
}

func NewPokeAPI(baseURL string) *PokeAPI {
	client := pester.New()
	client.MaxRetries = 3
	client.Backoff = pester.ExponentialBackoff
	client.Timeout = 10 * time.Second
	client.LogHook = func(e pester.ErrEntry) {
		config.Logger.Warnf("pokeapi attempt %d for %s failed: %v", e.Attempt, e.URL, e.Err)
	}

	return &PokeAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		species: newCache[*Species](24 * time.Hour),
		moves:   newCache[*Move](24 * time.Hour),
	}
}

type namedResource struct {
	Name string `json:"name"`
}

type pokemonDto struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	BaseExperience int           `json:"base_experience"`
	Species        namedResource `json:"species"`
	Types          []struct {
		Slot int           `json:"slot"`
		Type namedResource `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int           `json:"base_stat"`
		Effort   int           `json:"effort"`
		Stat     namedResource `json:"stat"`
	} `json:"stats"`
	Moves []struct {
		Move                namedResource `json:"move"`
		VersionGroupDetails []struct {
			LevelLearnedAt  int           `json:"level_learned_at"`
			MoveLearnMethod namedResource `json:"move_learn_method"`
		} `json:"version_group_details"`
	} `json:"moves"`
}

type speciesDto struct {
	CaptureRate int           `json:"capture_rate"`
	GrowthRate  namedResource `json:"growth_rate"`
}

type moveDto struct {
	Name        string        `json:"name"`
	Power       *int          `json:"power"`
	Accuracy    *int          `json:"accuracy"`
	Priority    int           `json:"priority"`
	Type        namedResource `json:"type"`
	DamageClass namedResource `json:"damage_class"`
}

func (p *PokeAPI) Species(ctx context.Context, name string) (*Species, error) {
	key := NormalizeName(name)
	if s, ok := p.species.Get(key); ok {
		return s, nil
	}

	var pd pokemonDto
	if err := p.get(ctx, "pokemon/"+key, &pd); err != nil {
		return nil, errors.Wrapf(err, "species %q", name)
	}

	speciesName := pd.Species.Name
	if speciesName == "" {
		speciesName = pd.Name
	}
	var sd speciesDto
	if err := p.get(ctx, "pokemon-species/"+speciesName, &sd); err != nil {
		return nil, errors.Wrapf(err, "species %q", name)
	}

	s := speciesFromDto(&pd, &sd)
	p.species.Set(key, s)
	return s, nil
}

func (p *PokeAPI) Move(ctx context.Context, name string) (*Move, error) {
	key := NormalizeName(name)
	if m, ok := p.moves.Get(key); ok {
		return m, nil
	}

	var md moveDto
	if err := p.get(ctx, "move/"+key, &md); err != nil {
		return nil, errors.Wrapf(err, "move %q", name)
	}

	m := &Move{
		Name:     md.Name,
		Type:     Type(md.Type.Name),
		Priority: md.Priority,
		Class:    DamageClass(md.DamageClass.Name),
	}
	if md.Power != nil {
		m.Power = *md.Power
	}
	if md.Accuracy != nil {
		m.Accuracy = *md.Accuracy
	}
	p.moves.Set(key, m)
	return m, nil
}

func speciesFromDto(pd *pokemonDto, sd *speciesDto) *Species {
	s := &Species{
		ID:          pd.ID,
		Name:        pd.Name,
		BaseExp:     pd.BaseExperience,
		CaptureRate: sd.CaptureRate,
		GrowthRate:  GrowthRate(sd.GrowthRate.Name),
	}

	for _, t := range pd.Types {
		s.Types = append(s.Types, Type(t.Type.Name))
	}

	for _, st := range pd.Stats {
		var base, yield *int
		switch st.Stat.Name {
		case "hp":
			base, yield = &s.Base.HP, &s.EVYield.HP
		case "attack":
			base, yield = &s.Base.Attack, &s.EVYield.Attack
		case "defense":
			base, yield = &s.Base.Defense, &s.EVYield.Defense
		case "special-attack":
			base, yield = &s.Base.SpAttack, &s.EVYield.SpAttack
		case "special-defense":
			base, yield = &s.Base.SpDefense, &s.EVYield.SpDefense
		case "speed":
			base, yield = &s.Base.Speed, &s.EVYield.Speed
		default:
			continue
		}
		*base, *yield = st.BaseStat, st.Effort
	}

	for _, m := range pd.Moves {
		// the newest version group that teaches it by level-up wins
		level := -1
		for _, d := range m.VersionGroupDetails {
			if d.MoveLearnMethod.Name == "level-up" {
				level = d.LevelLearnedAt
			}
		}
		if level < 0 {
			continue
		}
		if level == 0 {
			// evolution moves
			level = 1
		}
		s.Learnset = append(s.Learnset, LearnableMove{Name: m.Move.Name, Level: level})
	}
	return s
}

func (p *PokeAPI) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("pokeapi %s: unexpected status %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
