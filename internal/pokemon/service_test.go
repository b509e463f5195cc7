package pokemon

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTrainer(t *testing.T, s *Service, userID, starter string) *Pokemon {
	t.Helper()
	p, err := s.Start(context.Background(), userID, "trainer "+userID, starter)
	require.NoError(t, err)
	return p
}

// editLead rewrites the stored pokémon in slot 1.
func editLead(t *testing.T, s *Service, userID string, edit func(*Record)) {
	t.Helper()
	ctx := context.Background()
	recs, err := s.repo.ListParty(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	edit(&recs[0])
	require.NoError(t, s.repo.UpdatePokemon(ctx, recs[0]))
}

func TestServiceStart(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)

	p := startTrainer(t, s, "u1", "Charmander")
	assert.Equal(t, "charmander", p.Species.Name)
	assert.Equal(t, 5, p.Level)
	assert.Equal(t, 1, p.Slot)
	assert.Equal(t, []string{"scratch", "growl", "ember"}, p.Moves)

	tr, err := s.Trainer(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "trainer u1", tr.Name)
	assert.EqualValues(t, 3000, tr.Money)

	bag, err := s.Bag(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"poke-ball": 5, "potion": 3}, bag)

	party, box, err := s.Party(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, party, 1)
	assert.Empty(t, box)
	assert.Equal(t, p.IVs, party[0].IVs)
	assert.Equal(t, p.MaxHP(), party[0].HP)

	_, err = s.Start(ctx, "u1", "again", "bulbasaur")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestServiceStartUnknownStarter(t *testing.T) {
	s := newTestService(t, 1)

	_, err := s.Start(context.Background(), "u1", "ash", "charmandr")
	require.ErrorIs(t, err, ErrUnknownStarter)
	assert.Contains(t, err.Error(), "did you mean Charmander?")

	_, err = s.Trainer(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoTrainer, "nothing was created")

	_, err = s.Start(context.Background(), "u1", "ash", "pidgey")
	assert.ErrorIs(t, err, ErrUnknownStarter, "wild species are not starters")
}

func TestServiceWithoutTrainer(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)

	_, err := s.Bag(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNoTrainer)
	_, _, err = s.Party(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNoTrainer)
	_, err = s.Encounter(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNoTrainer)
	_, _, err = s.Buy(ctx, "nobody", "potion", 1)
	assert.ErrorIs(t, err, ErrNoTrainer)
}

func TestServiceBuy(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	it, total, err := s.Buy(ctx, "u1", "Potion", 2)
	require.NoError(t, err)
	assert.Equal(t, "potion", it.Name)
	assert.EqualValues(t, 600, total)

	tr, err := s.Trainer(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2400, tr.Money)

	bag, err := s.Bag(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, bag["potion"])

	_, _, err = s.Buy(ctx, "u1", "master ball", 1)
	assert.ErrorIs(t, err, ErrNotEnoughMoney)
	tr, err = s.Trainer(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2400, tr.Money, "failed purchase keeps the money")

	_, _, err = s.Buy(ctx, "u1", "potion", 0)
	assert.ErrorIs(t, err, ErrBadQuantity)
	_, _, err = s.Buy(ctx, "u1", "banana", 1)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestServiceUseAndHeal(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	_, _, err := s.Use(ctx, "u1", "potion", 1)
	assert.ErrorIs(t, err, ErrNoEffect)

	editLead(t, s, "u1", func(r *Record) { r.HP = 1 })

	msg, res, err := s.Use(ctx, "u1", "potion", 1)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Contains(t, msg, "Bulbasaur recovered")

	bag, err := s.Bag(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, bag["potion"])

	_, _, err = s.Use(ctx, "u1", "potion", 4)
	assert.ErrorIs(t, err, ErrNoSuchSlot)

	_, _, err = s.Use(ctx, "u1", "super potion", 1)
	assert.ErrorIs(t, err, ErrNoEffect, "already checked before the bag")

	editLead(t, s, "u1", func(r *Record) { r.HP = 2 })
	_, _, err = s.Use(ctx, "u1", "super potion", 1)
	assert.ErrorIs(t, err, ErrNotEnoughItems)

	require.NoError(t, s.Heal(ctx, "u1"))
	party, _, err := s.Party(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, party[0].MaxHP(), party[0].HP)
}

func TestServiceSwapAndBox(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	for i := 0; i < MaxPartyLen; i++ {
		rec, err := s.repo.AddToParty(ctx, Record{UserID: "u1", Species: "pidgey", Level: 3, HP: 10, Moves: []string{"tackle"}})
		require.NoError(t, err)
		assert.Equal(t, i+2, rec.Slot)
		assert.NotZero(t, rec.ID)
	}

	party, box, err := s.Party(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, party, MaxPartyLen)
	require.Len(t, box, 1)
	assert.Equal(t, MaxPartyLen+1, box[0].Slot)

	require.NoError(t, s.Swap(ctx, "u1", 1, 7))
	party, box, err = s.Party(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pidgey", party[0].Species.Name)
	assert.Equal(t, "bulbasaur", box[0].Species.Name)

	assert.ErrorIs(t, s.Swap(ctx, "u1", 1, 9), ErrNoSuchSlot)
	assert.NoError(t, s.Swap(ctx, "u1", 2, 2))
}

func TestServiceEncounterAndFight(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 3)
	startTrainer(t, s, "u1", "charmander")

	b, err := s.Encounter(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pidgey", b.Wild.Species.Name)
	assert.GreaterOrEqual(t, b.Wild.Level, 3)
	assert.LessOrEqual(t, b.Wild.Level, 7)

	got, ok := s.Battle("u1")
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)

	_, err = s.Encounter(ctx, "u1")
	assert.ErrorIs(t, err, ErrInBattle)
	assert.ErrorIs(t, s.Heal(ctx, "u1"), ErrInBattle)
	assert.ErrorIs(t, s.Swap(ctx, "u1", 1, 1), ErrInBattle)

	_, err = s.Fight(ctx, "u1", "hyper beam")
	assert.ErrorIs(t, err, ErrUnknownMove)
	_, err = s.Fight(ctx, "u1", "9")
	assert.ErrorIs(t, err, ErrUnknownMove)

	var res *TurnResult
	for i := 0; i < 50; i++ {
		res, err = s.Fight(ctx, "u1", "ember")
		require.NoError(t, err)
		require.Equal(t, b.ID, res.BattleID, "every turn belongs to the encounter")
		if res.Outcome != Ongoing {
			break
		}
	}
	require.NotEqual(t, Ongoing, res.Outcome)

	tr, err := s.Trainer(ctx, "u1")
	require.NoError(t, err)
	party, _, err := s.Party(ctx, "u1")
	require.NoError(t, err)

	switch res.Outcome {
	case Won:
		assert.Equal(t, 1, tr.Wins)
		assert.Equal(t, 3000+res.Reward, tr.Money)
		assert.Greater(t, party[0].Exp, ExpForLevel(GrowthMediumSlow, 5))
	case Lost:
		assert.Equal(t, 1, tr.Losses)
		assert.EqualValues(t, 2700, tr.Money)
		assert.True(t, party[0].Fainted())
	default:
		t.Fatalf("unexpected outcome %s", res.Outcome)
	}

	_, ok = s.Battle("u1")
	assert.False(t, ok)
	_, err = s.Fight(ctx, "u1", "1")
	assert.ErrorIs(t, err, ErrNotInBattle)
}

func TestServiceFaintedPartyCannotBattle(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")
	editLead(t, s, "u1", func(r *Record) { r.HP = 0 })

	_, err := s.Encounter(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoHealthy)
}

func TestServiceThrow(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	_, err := s.Throw(ctx, "u1", "poke ball")
	assert.ErrorIs(t, err, ErrBallOutOfBattle)
	_, err = s.Throw(ctx, "u1", "potion")
	assert.ErrorIs(t, err, ErrNotABall)

	b, err := s.Encounter(ctx, "u1")
	require.NoError(t, err)

	_, err = s.Throw(ctx, "u1", "master ball")
	assert.ErrorIs(t, err, ErrNotEnoughItems)

	require.NoError(t, s.repo.AddItem(ctx, "u1", "master-ball", 1))
	_, res, err := s.Use(ctx, "u1", "Master Ball", 0)
	require.NoError(t, err)
	assert.Equal(t, Caught, res.Outcome)

	party, _, err := s.Party(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, party, 2)
	assert.Equal(t, "pidgey", party[1].Species.Name)
	assert.Equal(t, b.Wild.Level, party[1].Level)
	assert.Equal(t, b.Wild.IVs, party[1].IVs)

	tr, err := s.Trainer(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Caught)

	bag, err := s.Bag(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, bag, "master-ball")
}

func TestServiceRun(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	_, err := s.Run(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotInBattle)

	_, err = s.Encounter(ctx, "u1")
	require.NoError(t, err)

	var res *TurnResult
	for i := 0; i < 20; i++ {
		res, err = s.Run(ctx, "u1")
		require.NoError(t, err)
		if res.Outcome != Ongoing {
			break
		}
	}
	// escape odds grow each attempt, unless the lead faints first
	assert.Contains(t, []Outcome{Fled, Lost}, res.Outcome)

	tr, err := s.Trainer(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, tr.Wins)
	if res.Outcome == Fled {
		assert.EqualValues(t, 3000, tr.Money)
	}
}

func TestServiceLeaderboard(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")
	startTrainer(t, s, "u2", "charmander")

	_, err := s.repo.AddToParty(ctx, Record{UserID: "u2", Species: "pidgey", Level: 40, Exp: 100000, HP: 1, Moves: []string{"tackle"}})
	require.NoError(t, err)

	board, err := s.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "u2", board[0].UserID)
	assert.Equal(t, 2, board[0].Pokemon)
	assert.Equal(t, 40, board[0].TopLevel)
	assert.Equal(t, "u1", board[1].UserID)

	board, err = s.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, board, 1)
}

func TestServiceErrorsWrap(t *testing.T) {
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	_, _, err := s.Use(context.Background(), "u1", "hyper-portion", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownItem))
	assert.Contains(t, err.Error(), "Hyper Potion")
}

func TestServiceShop(t *testing.T) {
	s := newTestService(t, 1)

	items := s.Shop()
	require.Len(t, items, len(Items))
	assert.Equal(t, "poke-ball", items[0].Name)
	assert.Equal(t, "master-ball", items[len(items)-1].Name)
	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i-1].Price, items[i].Price)
	}
}

func TestRepositoryUseItemIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 1)
	startTrainer(t, s, "u1", "bulbasaur")

	recs, err := s.repo.ListParty(ctx, "u1")
	require.NoError(t, err)
	lead := recs[0]

	gone := lead
	gone.ID = lead.ID + 100
	gone.HP = 1
	err = s.repo.UseItem(ctx, "potion", gone)
	assert.ErrorIs(t, err, ErrNoSuchSlot)

	bag, err := s.Bag(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, bag["potion"], "failed save keeps the potion")

	lead.HP = 1
	assert.ErrorIs(t, s.repo.UseItem(ctx, "full-restore", lead), ErrNotEnoughItems)
	recs, err = s.repo.ListParty(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, 1, recs[0].HP, "missing item leaves the pokémon alone")

	require.NoError(t, s.repo.UseItem(ctx, "potion", lead))
	bag, err = s.Bag(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, bag["potion"])
	recs, err = s.repo.ListParty(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, recs[0].HP)
}
