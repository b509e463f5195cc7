package pokemon

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveness(t *testing.T) {
	tests := []struct {
		attack    Type
		defenders []Type
		want      float64
	}{
		{Fire, []Type{Grass}, 2},
		{Water, []Type{Fire}, 2},
		{Fire, []Type{Water}, 0.5},
		{Normal, []Type{Ghost}, 0},
		{Electric, []Type{Ground}, 0},
		{Ice, []Type{Grass, Flying}, 4},
		{Fire, []Type{Water, Dragon}, 0.25},
		{Grass, []Type{Water, Ground}, 4},
		{Fighting, []Type{Normal, Flying}, 1},
		{Dragon, []Type{Fairy}, 0},
		{Psychic, []Type{Normal}, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Effectiveness(tt.attack, tt.defenders...), "%s vs %v", tt.attack, tt.defenders)
	}
}

func TestEffectivenessText(t *testing.T) {
	assert.Equal(t, "It's super effective!", EffectivenessText(2))
	assert.Equal(t, "It's not very effective...", EffectivenessText(0.5))
	assert.Equal(t, "It had no effect...", EffectivenessText(0))
	assert.Empty(t, EffectivenessText(1))
}

func TestCalcStats(t *testing.T) {
	// level 78 with base 108 HP, 24 IV, 74 EV
	assert.Equal(t, 289, CalcHP(108, 24, 74, 78))
	// level 78 with base 130 attack, 12 IV, 195 EV, neutral nature
	assert.Equal(t, 254, CalcStat(130, 12, 195, 78))

	s := CalcStats(Stats{HP: 45, Attack: 49, Defense: 49, SpAttack: 65, SpDefense: 65, Speed: 45}, Stats{}, Stats{}, 5)
	assert.Equal(t, Stats{HP: 19, Attack: 9, Defense: 9, SpAttack: 11, SpDefense: 11, Speed: 9}, s)
}

func TestExpGain(t *testing.T) {
	assert.Equal(t, 46, ExpGain(1, 1, 64, 5))
	assert.Equal(t, 69, ExpGain(1.5, 1, 64, 5))
	assert.Equal(t, 103, ExpGain(1.5, 1.5, 64, 5))
	assert.Equal(t, 0, ExpGain(1, 1, 0, 50))
}

func TestAddEVs(t *testing.T) {
	evs := AddEVs(Stats{}, Stats{Speed: 2})
	assert.Equal(t, Stats{Speed: 2}, evs)

	evs = AddEVs(Stats{Attack: 251}, Stats{Attack: 3})
	assert.Equal(t, MaxStatEV, evs.Attack)

	full := Stats{HP: 252, Attack: 252, Defense: 5}
	evs = AddEVs(full, Stats{Speed: 3})
	assert.Equal(t, MaxTotalEV, evs.Total())
	assert.Equal(t, 1, evs.Speed)
}

func TestExpForLevel(t *testing.T) {
	assert.Equal(t, 1000, ExpForLevel(GrowthMediumFast, 10))
	assert.Equal(t, 800, ExpForLevel(GrowthFast, 10))
	assert.Equal(t, 1250, ExpForLevel(GrowthSlow, 10))
	assert.Equal(t, 560, ExpForLevel(GrowthMediumSlow, 10))
	assert.Equal(t, 600000, ExpForLevel(GrowthErratic, 100))
	assert.Equal(t, 1640000, ExpForLevel(GrowthFluctuating, 100))
	assert.Equal(t, 0, ExpForLevel(GrowthSlow, 1))
}

func TestLevelForExp(t *testing.T) {
	assert.Equal(t, 1, LevelForExp(GrowthMediumFast, 0))
	assert.Equal(t, 9, LevelForExp(GrowthMediumFast, 999))
	assert.Equal(t, 10, LevelForExp(GrowthMediumFast, 1000))
	assert.Equal(t, MaxLevel, LevelForExp(GrowthMediumFast, 5_000_000))

	for _, rate := range []GrowthRate{GrowthFast, GrowthMediumFast, GrowthMediumSlow, GrowthSlow, GrowthErratic, GrowthFluctuating} {
		for n := 2; n <= MaxLevel; n++ {
			assert.Equal(t, n, LevelForExp(rate, ExpForLevel(rate, n)), "%s level %d", rate, n)
		}
	}
}

func TestBaseDamage(t *testing.T) {
	assert.Equal(t, 37, BaseDamage(50, 80, 100, 100))
	assert.Equal(t, 2, BaseDamage(1, 0, 10, 10))
	// zero defense does not divide by zero
	assert.Positive(t, BaseDamage(5, 40, 10, 0))
}

func TestCalcDamage(t *testing.T) {
	attacker := newTestPokemon("charmander", 20)
	grass := newTestPokemon("bulbasaur", 20)
	pidgey := newTestPokemon("pidgey", 20)

	ember := *testMoves["ember"]
	base := BaseDamage(attacker.Level, ember.Power, attacker.Stats.SpAttack, grass.Stats.SpDefense)
	// STAB and super effective, before the random spread
	hi := float64(base) * 1.5 * 2 * 1.5
	lo := float64(base) * 1.5 * 2 * 0.85

	for seed := int64(0); seed < 200; seed++ {
		res := CalcDamage(rand.New(rand.NewSource(seed)), attacker, grass, ember)
		assert.False(t, res.Missed)
		assert.Equal(t, 2.0, res.Effectiveness)
		assert.GreaterOrEqual(t, float64(res.Damage), lo-1)
		assert.LessOrEqual(t, float64(res.Damage), hi)
	}

	growl := *testMoves["growl"]
	res := CalcDamage(rand.New(rand.NewSource(1)), attacker, pidgey, growl)
	assert.Zero(t, res.Damage)

	ghost := newTestPokemon("pidgey", 20)
	ghost.Species = &Species{Name: "gastly", Types: []Type{Ghost, Poison}}
	res = CalcDamage(rand.New(rand.NewSource(1)), attacker, ghost, *testMoves["scratch"])
	assert.Zero(t, res.Damage)
	assert.Zero(t, res.Effectiveness)
}

func TestCalcDamageAccuracy(t *testing.T) {
	attacker := newTestPokemon("charmander", 20)
	target := newTestPokemon("pidgey", 20)

	never := Move{Name: "swift", Type: Normal, Power: 60, Class: Special}
	shaky := Move{Name: "shaky", Type: Normal, Power: 60, Accuracy: 50, Class: Physical}

	rng := rand.New(rand.NewSource(7))
	missed := 0
	for i := 0; i < 200; i++ {
		assert.False(t, CalcDamage(rng, attacker, target, never).Missed)
		if CalcDamage(rng, attacker, target, shaky).Missed {
			missed++
		}
	}
	assert.Greater(t, missed, 50)
	assert.Less(t, missed, 150)
}

func TestMovesFirst(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	assert.True(t, MovesFirst(rng, 1, 10, 0, 200), "priority beats speed")
	assert.False(t, MovesFirst(rng, 0, 200, 1, 10))
	assert.True(t, MovesFirst(rng, 0, 100, 0, 50))
	assert.False(t, MovesFirst(rng, 0, 50, 0, 100))

	first := map[bool]int{}
	for i := 0; i < 100; i++ {
		first[MovesFirst(rng, 0, 50, 0, 50)]++
	}
	assert.Positive(t, first[true])
	assert.Positive(t, first[false])
}
