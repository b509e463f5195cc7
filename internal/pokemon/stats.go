package pokemon

import "math"

const (
	MaxIV       = 31
	MaxStatEV   = 252
	MaxTotalEV  = 510
	MaxLevel    = 100
	MaxMoves    = 4
	MaxPartyLen = 6
)

type Stats struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"special-attack"`
	SpDefense int `json:"special-defense"`
	Speed     int `json:"speed"`
}

func (s Stats) Total() int {
	return s.HP + s.Attack + s.Defense + s.SpAttack + s.SpDefense + s.Speed
}

func (s *Stats) fields() []*int {
	return []*int{&s.HP, &s.Attack, &s.Defense, &s.SpAttack, &s.SpDefense, &s.Speed}
}

// CalcHP is floor((2B + I + floor(E/4)) * L / 100) + L + 10.
func CalcHP(base, iv, ev, level int) int {
	return (2*base+iv+ev/4)*level/100 + level + 10
}

// CalcStat is floor((2B + I + floor(E/4)) * L / 100) + 5.
func CalcStat(base, iv, ev, level int) int {
	return (2*base+iv+ev/4)*level/100 + 5
}

func CalcStats(base, ivs, evs Stats, level int) Stats {
	return Stats{
		HP:        CalcHP(base.HP, ivs.HP, evs.HP, level),
		Attack:    CalcStat(base.Attack, ivs.Attack, evs.Attack, level),
		Defense:   CalcStat(base.Defense, ivs.Defense, evs.Defense, level),
		SpAttack:  CalcStat(base.SpAttack, ivs.SpAttack, evs.SpAttack, level),
		SpDefense: CalcStat(base.SpDefense, ivs.SpDefense, evs.SpDefense, level),
		Speed:     CalcStat(base.Speed, ivs.Speed, evs.Speed, level),
	}
}

// ExpGain is round(a * t * b * L / 7). a is 1 for wild and 1.5 for trainer-owned
// opponents, t is 1 for the original trainer and 1.5 for traded pokémon, b is the
// defeated species' base experience and L its level.
func ExpGain(a, t float64, baseExp, level int) int {
	return int(math.Round(a * t * float64(baseExp) * float64(level) / 7))
}

// AddEVs adds an effort yield while respecting the per-stat and total caps.
func AddEVs(evs, yield Stats) Stats {
	out := evs
	total := out.Total()
	dst := out.fields()
	src := yield.fields()
	for i := range dst {
		add := *src[i]
		if *dst[i]+add > MaxStatEV {
			add = MaxStatEV - *dst[i]
		}
		if total+add > MaxTotalEV {
			add = MaxTotalEV - total
		}
		if add <= 0 {
			continue
		}
		*dst[i] += add
		total += add
	}
	return out
}
