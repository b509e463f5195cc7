package pokemon

// GrowthRate uses the identifiers the reference API returns.
type GrowthRate string

const (
	GrowthFast        GrowthRate = "fast"
	GrowthMediumFast  GrowthRate = "medium"
	GrowthMediumSlow  GrowthRate = "medium-slow"
	GrowthSlow        GrowthRate = "slow"
	GrowthErratic     GrowthRate = "slow-then-very-fast"
	GrowthFluctuating GrowthRate = "fast-then-very-slow"
)

// ExpForLevel is the total experience needed to reach level n.
func ExpForLevel(rate GrowthRate, n int) int {
	if n <= 1 {
		return 0
	}
	if n > MaxLevel {
		n = MaxLevel
	}
	cube := n * n * n

	switch rate {
	case GrowthFast:
		return 4 * cube / 5
	case GrowthMediumSlow:
		return 6*cube/5 - 15*n*n + 100*n - 140
	case GrowthSlow:
		return 5 * cube / 4
	case GrowthErratic:
		switch {
		case n < 50:
			return cube * (100 - n) / 50
		case n < 68:
			return cube * (150 - n) / 100
		case n < 98:
			return cube * ((1911 - 10*n) / 3) / 500
		default:
			return cube * (160 - n) / 100
		}
	case GrowthFluctuating:
		switch {
		case n < 15:
			return cube * ((n+1)/3 + 24) / 50
		case n < 36:
			return cube * (n + 14) / 50
		default:
			return cube * (n/2 + 32) / 50
		}
	}
	return cube
}

// LevelForExp is the highest level whose threshold exp has reached.
func LevelForExp(rate GrowthRate, exp int) int {
	level := 1
	for n := 2; n <= MaxLevel; n++ {
		if ExpForLevel(rate, n) > exp {
			break
		}
		level = n
	}
	return level
}
