package pokemon

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"cogbot/internal/store"
)

var testMoves = map[string]*Move{
	"tackle":       {Name: "tackle", Type: Normal, Power: 40, Accuracy: 100, Class: Physical},
	"scratch":      {Name: "scratch", Type: Normal, Power: 40, Accuracy: 100, Class: Physical},
	"growl":        {Name: "growl", Type: Normal, Accuracy: 100, Class: Status},
	"vine-whip":    {Name: "vine-whip", Type: Grass, Power: 45, Accuracy: 100, Class: Physical},
	"ember":        {Name: "ember", Type: Fire, Power: 40, Accuracy: 100, Class: Special},
	"gust":         {Name: "gust", Type: Flying, Power: 40, Accuracy: 100, Class: Special},
	"quick-attack": {Name: "quick-attack", Type: Normal, Power: 40, Accuracy: 100, Priority: 1, Class: Physical},
}

func testSpecies() map[string]*Species {
	return map[string]*Species{
		"bulbasaur": {
			ID: 1, Name: "bulbasaur", Types: []Type{Grass, Poison},
			Base:        Stats{HP: 45, Attack: 49, Defense: 49, SpAttack: 65, SpDefense: 65, Speed: 45},
			EVYield:     Stats{SpAttack: 1},
			BaseExp:     64,
			CaptureRate: 45,
			GrowthRate:  GrowthMediumSlow,
			Learnset: []LearnableMove{
				{Name: "tackle", Level: 1},
				{Name: "growl", Level: 1},
				{Name: "vine-whip", Level: 3},
			},
		},
		"charmander": {
			ID: 4, Name: "charmander", Types: []Type{Fire},
			Base:        Stats{HP: 39, Attack: 52, Defense: 43, SpAttack: 60, SpDefense: 50, Speed: 65},
			EVYield:     Stats{Speed: 1},
			BaseExp:     62,
			CaptureRate: 45,
			GrowthRate:  GrowthMediumSlow,
			Learnset: []LearnableMove{
				{Name: "scratch", Level: 1},
				{Name: "growl", Level: 1},
				{Name: "ember", Level: 4},
			},
		},
		"pidgey": {
			ID: 16, Name: "pidgey", Types: []Type{Normal, Flying},
			Base:        Stats{HP: 40, Attack: 45, Defense: 40, SpAttack: 35, SpDefense: 35, Speed: 56},
			EVYield:     Stats{Speed: 1},
			BaseExp:     50,
			CaptureRate: 255,
			GrowthRate:  GrowthMediumSlow,
			Learnset: []LearnableMove{
				{Name: "tackle", Level: 1},
				{Name: "gust", Level: 9},
				{Name: "quick-attack", Level: 13},
			},
		},
	}
}

type fakeDex struct {
	species map[string]*Species
	moves   map[string]*Move
}

func newFakeDex() *fakeDex {
	return &fakeDex{species: testSpecies(), moves: testMoves}
}

func (d *fakeDex) Species(_ context.Context, name string) (*Species, error) {
	s, ok := d.species[NormalizeName(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (d *fakeDex) Move(_ context.Context, name string) (*Move, error) {
	m, ok := d.moves[NormalizeName(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return NewSQLRepository(db)
}

func newTestService(t *testing.T, seed int64) *Service {
	t.Helper()
	return NewService(newTestRepo(t), newFakeDex(), Options{
		Starters: []string{"bulbasaur", "charmander"},
		WildPool: []string{"pidgey"},
		Rand:     rand.New(rand.NewSource(seed)),
	})
}

func newTestPokemon(name string, level int) *Pokemon {
	return NewPokemon(testSpecies()[name], level, rand.New(rand.NewSource(1)))
}
