package pokemon

import "math/rand"

const (
	stabBonus    = 1.5
	critBonus    = 1.5
	critOdds     = 24
	randomFloor  = 85
	randomSpread = 16
)

type DamageResult struct {
	Damage        int
	Effectiveness float64
	Critical      bool
	Missed        bool
}

// BaseDamage is floor(floor(floor(2L/5 + 2) * P * A / D) / 50) + 2.
func BaseDamage(level, power, attack, defense int) int {
	if defense < 1 {
		defense = 1
	}
	return ((2*level/5+2)*power*attack/defense)/50 + 2
}

// CalcDamage rolls accuracy, critical hit and the random spread for one hit.
func CalcDamage(rng *rand.Rand, attacker, defender *Pokemon, move Move) DamageResult {
	if move.Accuracy > 0 && rng.Intn(100) >= move.Accuracy {
		return DamageResult{Missed: true, Effectiveness: 1}
	}

	eff := Effectiveness(move.Type, defender.Species.Types...)
	if move.Class == Status || move.Power == 0 {
		return DamageResult{Effectiveness: eff}
	}
	if eff == 0 {
		return DamageResult{Effectiveness: 0}
	}

	atk, def := attacker.Stats.Attack, defender.Stats.Defense
	if move.Class == Special {
		atk, def = attacker.Stats.SpAttack, defender.Stats.SpDefense
	}

	modifier := eff
	if attacker.Species.HasType(move.Type) {
		modifier *= stabBonus
	}
	res := DamageResult{Effectiveness: eff}
	if rng.Intn(critOdds) == 0 {
		res.Critical = true
		modifier *= critBonus
	}
	modifier *= float64(randomFloor+rng.Intn(randomSpread)) / 100

	res.Damage = int(float64(BaseDamage(attacker.Level, move.Power, atk, def)) * modifier)
	if res.Damage < 1 {
		res.Damage = 1
	}
	return res
}

// MovesFirst reports whether side a acts before side b: priority, then speed,
// then a coin flip.
func MovesFirst(rng *rand.Rand, aPriority, aSpeed, bPriority, bSpeed int) bool {
	if aPriority != bPriority {
		return aPriority > bPriority
	}
	if aSpeed != bSpeed {
		return aSpeed > bSpeed
	}
	return rng.Intn(2) == 0
}
