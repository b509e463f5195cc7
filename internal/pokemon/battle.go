package pokemon

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

type Outcome int

const (
	Ongoing Outcome = iota
	Won
	Lost
	Fled
	Caught
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case Lost:
		return "lost"
	case Fled:
		return "fled"
	case Caught:
		return "caught"
	}
	return "ongoing"
}

// struggle is used by a wild pokémon that knows no damaging move.
var struggle = Move{Name: "struggle", Type: Normal, Power: 50, Class: Physical}

type TurnResult struct {
	BattleID uuid.UUID
	Events   []string
	Outcome  Outcome

	Exp     int
	Levels  int
	Learned []string
	Reward  int64
}

func (r *TurnResult) log(format string, args ...any) {
	r.Events = append(r.Events, fmt.Sprintf(format, args...))
}

// Battle is a wild encounter against the trainer's lead pokémon.
type Battle struct {
	mu sync.Mutex

	ID        uuid.UUID
	UserID    string
	Player    *Pokemon
	Wild      *Pokemon
	WildMoves []Move
	Turn      int
	Outcome   Outcome

	fleeAttempts int
	rng          *rand.Rand
}

func NewBattle(userID string, player, wild *Pokemon, wildMoves []Move, rng *rand.Rand) *Battle {
	return &Battle{
		ID:        uuid.New(),
		UserID:    userID,
		Player:    player,
		Wild:      wild,
		WildMoves: wildMoves,
		rng:       rng,
	}
}

// Fight resolves a turn where the player uses move and the wild pokémon answers.
func (b *Battle) Fight(move Move) *TurnResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := b.begin()
	if res == nil {
		return &TurnResult{BattleID: b.ID, Outcome: b.Outcome}
	}

	wildMove := b.pickWildMove()
	if MovesFirst(b.rng, move.Priority, b.Player.Stats.Speed, wildMove.Priority, b.Wild.Stats.Speed) {
		b.attack(res, b.Player, b.Wild, move)
		if b.settle(res) {
			return res
		}
		b.attack(res, b.Wild, b.Player, wildMove)
	} else {
		b.attack(res, b.Wild, b.Player, wildMove)
		if b.settle(res) {
			return res
		}
		b.attack(res, b.Player, b.Wild, move)
	}
	b.settle(res)
	return res
}

// UseItem applies a medicine to the active pokémon; the wild pokémon then attacks.
func (b *Battle) UseItem(it Item) (*TurnResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Outcome != Ongoing {
		return &TurnResult{BattleID: b.ID, Outcome: b.Outcome}, nil
	}
	msg, err := it.UseOn(b.Player)
	if err != nil {
		return nil, err
	}

	res := b.begin()
	res.log("%s", msg)
	b.attack(res, b.Wild, b.Player, b.pickWildMove())
	b.settle(res)
	return res, nil
}

// Throw tries to catch the wild pokémon. A failed throw costs the turn.
func (b *Battle) Throw(ball Item) *TurnResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := b.begin()
	if res == nil {
		return &TurnResult{BattleID: b.ID, Outcome: b.Outcome}
	}

	res.log("You threw a %s!", DisplayName(ball.Name))
	if AttemptCatch(b.rng, b.Wild, ball) {
		res.log("Gotcha! %s was caught!", b.Wild.Name())
		b.Outcome = Caught
		res.Outcome = Caught
		return res
	}
	res.log("Oh no! The wild %s broke free!", b.Wild.Name())
	b.attack(res, b.Wild, b.Player, b.pickWildMove())
	b.settle(res)
	return res
}

// Run uses the classic escape odds: (A*128/B + 30*attempts) mod 256.
func (b *Battle) Run() *TurnResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := b.begin()
	if res == nil {
		return &TurnResult{BattleID: b.ID, Outcome: b.Outcome}
	}

	b.fleeAttempts++
	a, d := b.Player.Stats.Speed, b.Wild.Stats.Speed
	if d < 1 {
		d = 1
	}
	odds := (a*128/d + 30*b.fleeAttempts) % 256
	if a >= d || b.rng.Intn(256) < odds {
		res.log("Got away safely!")
		b.Outcome = Fled
		res.Outcome = Fled
		return res
	}

	res.log("Can't escape!")
	b.attack(res, b.Wild, b.Player, b.pickWildMove())
	b.settle(res)
	return res
}

func (b *Battle) Over() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Outcome != Ongoing
}

func (b *Battle) begin() *TurnResult {
	if b.Outcome != Ongoing {
		return nil
	}
	b.Turn++
	return &TurnResult{BattleID: b.ID}
}

func (b *Battle) pickWildMove() Move {
	var damaging []Move
	for _, m := range b.WildMoves {
		if m.Power > 0 && m.Class != Status {
			damaging = append(damaging, m)
		}
	}
	if len(damaging) == 0 {
		return struggle
	}
	return damaging[b.rng.Intn(len(damaging))]
}

func (b *Battle) attack(res *TurnResult, attacker, defender *Pokemon, move Move) {
	name := attacker.Name()
	if attacker == b.Wild {
		name = "The wild " + name
	}
	res.log("%s used %s!", name, DisplayName(move.Name))

	dmg := CalcDamage(b.rng, attacker, defender, move)
	switch {
	case dmg.Missed:
		res.log("But it missed!")
		return
	case move.Class == Status || move.Power == 0:
		res.log("But nothing happened!")
		return
	}

	if dmg.Critical {
		res.log("A critical hit!")
	}
	if text := EffectivenessText(dmg.Effectiveness); text != "" {
		res.log("%s", text)
	}
	defender.TakeDamage(dmg.Damage)
	if dmg.Damage > 0 {
		res.log("%s took %d damage (%d/%d HP).", defender.Name(), dmg.Damage, defender.HP, defender.MaxHP())
	}
}

// settle ends the battle if either side fainted and hands out rewards.
func (b *Battle) settle(res *TurnResult) bool {
	switch {
	case b.Wild.Fainted():
		res.log("The wild %s fainted!", b.Wild.Name())
		b.Outcome = Won
		res.Outcome = Won

		res.Exp = ExpGain(1, 1, b.Wild.Species.BaseExp, b.Wild.Level)
		b.Player.EVs = AddEVs(b.Player.EVs, b.Wild.Species.EVYield)
		b.Player.Recalc()
		res.Levels, res.Learned = b.Player.GainExp(res.Exp)
		res.Reward = int64(b.Wild.Level) * 10

		res.log("%s gained %d exp.", b.Player.Name(), res.Exp)
		if res.Levels > 0 {
			res.log("%s grew to level %d!", b.Player.Name(), b.Player.Level)
		}
		for _, m := range res.Learned {
			res.log("%s learned %s!", b.Player.Name(), DisplayName(m))
		}
		return true
	case b.Player.Fainted():
		res.log("%s fainted!", b.Player.Name())
		b.Outcome = Lost
		res.Outcome = Lost
		return true
	}
	return false
}
