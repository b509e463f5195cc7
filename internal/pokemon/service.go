package pokemon

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoTrainer       = errors.New("you haven't started your journey yet")
	ErrAlreadyStarted  = errors.New("you already have a trainer")
	ErrUnknownStarter  = errors.New("that is not one of the starters")
	ErrInBattle        = errors.New("you are in a battle")
	ErrNotInBattle     = errors.New("you are not in a battle")
	ErrNoHealthy       = errors.New("all your pokémon have fainted")
	ErrUnknownMove     = errors.New("your pokémon doesn't know that move")
	ErrBadQuantity     = errors.New("quantity must be between 1 and 99")
	ErrNotABall        = errors.New("that is not a poké ball")
	ErrNoWildPokemon   = errors.New("no wild pokémon are configured")
	ErrBallOutOfBattle = errors.New("there is nothing to catch")
)

type Options struct {
	Starters    []string
	WildPool    []string
	StartLevel  int
	StartMoney  int64
	StartingBag map[string]int
	Rand        *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		Starters:    []string{"bulbasaur", "charmander", "squirtle", "pikachu"},
		WildPool:    []string{"pidgey", "rattata", "caterpie", "weedle", "spearow", "oddish", "zubat", "geodude", "magikarp", "eevee"},
		StartLevel:  5,
		StartMoney:  3000,
		StartingBag: map[string]int{"poke-ball": 5, "potion": 3},
	}
}

// Service is the chat-facing game: trainers, party, bag and wild battles.
type Service struct {
	repo Repository
	dex  Dex
	opts Options

	rngMu sync.Mutex
	rng   *rand.Rand

	locks   sync.Map // user id -> *sync.Mutex
	battles sync.Map // user id -> *Battle
}

func NewService(repo Repository, dex Dex, opts Options) *Service {
	def := DefaultOptions()
	if len(opts.Starters) == 0 {
		opts.Starters = def.Starters
	}
	if len(opts.WildPool) == 0 {
		opts.WildPool = def.WildPool
	}
	if opts.StartLevel <= 0 {
		opts.StartLevel = def.StartLevel
	}
	if opts.StartMoney <= 0 {
		opts.StartMoney = def.StartMoney
	}
	if opts.StartingBag == nil {
		opts.StartingBag = def.StartingBag
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{repo: repo, dex: dex, opts: opts, rng: rng}
}

func (s *Service) Starters() []string {
	return s.opts.Starters
}

// Shop lists the items for sale, cheapest first.
func (s *Service) Shop() []Item {
	items := make([]Item, 0, len(Items))
	for _, name := range ItemNames() {
		items = append(items, Items[name])
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	return items
}

// lock serialises commands of one user.
func (s *Service) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// childRand gives each battle its own source so battles never share rng state.
func (s *Service) childRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewSource(s.rng.Int63()))
}

func (s *Service) Start(ctx context.Context, userID, name, starter string) (*Pokemon, error) {
	defer s.lock(userID)()

	existing, err := s.repo.GetTrainer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyStarted
	}

	key := NormalizeName(starter)
	if !contains(s.opts.Starters, key) {
		if sug := Suggest(key, s.opts.Starters); len(sug) > 0 {
			return nil, fmt.Errorf("%w, did you mean %s?", ErrUnknownStarter, DisplayName(sug[0]))
		}
		return nil, ErrUnknownStarter
	}

	species, err := s.dex.Species(ctx, key)
	if err != nil {
		return nil, err
	}
	p := NewPokemon(species, s.opts.StartLevel, s.childRand())

	t := Trainer{UserID: userID, Name: name, Money: s.opts.StartMoney}
	if err := s.repo.CreateTrainer(ctx, t, toRecord(userID, p), s.opts.StartingBag); err != nil {
		return nil, err
	}
	p.Slot = 1
	return p, nil
}

func (s *Service) Trainer(ctx context.Context, userID string) (*Trainer, error) {
	t, err := s.repo.GetTrainer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTrainer
	}
	return t, nil
}

// Party returns the carried pokémon and the boxed ones.
func (s *Service) Party(ctx context.Context, userID string) (party, box []*Pokemon, err error) {
	all, err := s.loadAll(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(all) > MaxPartyLen {
		return all[:MaxPartyLen], all[MaxPartyLen:], nil
	}
	return all, nil, nil
}

func (s *Service) Bag(ctx context.Context, userID string) (map[string]int, error) {
	if _, err := s.Trainer(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Inventory(ctx, userID)
}

func (s *Service) Buy(ctx context.Context, userID, itemName string, qty int) (Item, int64, error) {
	if qty < 1 || qty > 99 {
		return Item{}, 0, ErrBadQuantity
	}
	it, err := LookupItem(itemName)
	if err != nil {
		return Item{}, 0, err
	}
	if _, err := s.Trainer(ctx, userID); err != nil {
		return Item{}, 0, err
	}

	defer s.lock(userID)()
	total := it.Price * int64(qty)
	if err := s.repo.BuyItem(ctx, userID, it.Name, qty, it.Price); err != nil {
		return it, total, err
	}
	return it, total, nil
}

// Use applies an item. In battle it targets the active pokémon and costs a turn,
// otherwise it targets the given party slot.
func (s *Service) Use(ctx context.Context, userID, itemName string, slot int) (string, *TurnResult, error) {
	it, err := LookupItem(itemName)
	if err != nil {
		return "", nil, err
	}
	if it.Kind == Ball {
		res, err := s.Throw(ctx, userID, itemName)
		return "", res, err
	}

	defer s.lock(userID)()

	if b, ok := s.activeBattle(userID); ok {
		if err := s.repo.TakeItem(ctx, userID, it.Name, 1); err != nil {
			return "", nil, err
		}
		res, err := b.UseItem(it)
		if err != nil {
			// nothing happened, give it back
			if rerr := s.repo.AddItem(ctx, userID, it.Name, 1); rerr != nil {
				return "", nil, rerr
			}
			return "", nil, err
		}
		return "", res, s.finishTurn(ctx, b, res)
	}

	all, err := s.loadAll(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	target := bySlot(all, slot)
	if target == nil {
		return "", nil, ErrNoSuchSlot
	}

	msg, err := it.UseOn(target)
	if err != nil {
		return "", nil, err
	}
	if err := s.repo.UseItem(ctx, it.Name, toRecord(userID, target)); err != nil {
		return "", nil, err
	}
	return msg, nil, nil
}

// Heal is the pokémon center: everyone is restored, free of charge.
func (s *Service) Heal(ctx context.Context, userID string) error {
	defer s.lock(userID)()

	if _, ok := s.activeBattle(userID); ok {
		return ErrInBattle
	}
	all, err := s.loadAll(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.HP == p.MaxHP() {
			continue
		}
		p.HP = p.MaxHP()
		if err := s.repo.UpdatePokemon(ctx, toRecord(userID, p)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Swap(ctx context.Context, userID string, a, b int) error {
	defer s.lock(userID)()

	if _, ok := s.activeBattle(userID); ok {
		return ErrInBattle
	}
	if _, err := s.Trainer(ctx, userID); err != nil {
		return err
	}
	return s.repo.SwapSlots(ctx, userID, a, b)
}

// Encounter starts a battle with a random wild pokémon near the lead's level.
func (s *Service) Encounter(ctx context.Context, userID string) (*Battle, error) {
	defer s.lock(userID)()

	if _, ok := s.activeBattle(userID); ok {
		return nil, ErrInBattle
	}
	if len(s.opts.WildPool) == 0 {
		return nil, ErrNoWildPokemon
	}

	all, err := s.loadAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	lead := firstHealthy(all)
	if lead == nil {
		return nil, ErrNoHealthy
	}

	rng := s.childRand()
	species, err := s.dex.Species(ctx, s.opts.WildPool[rng.Intn(len(s.opts.WildPool))])
	if err != nil {
		return nil, err
	}
	level := lead.Level + rng.Intn(5) - 2
	if level < 2 {
		level = 2
	}
	wild := NewPokemon(species, level, rng)

	var wildMoves []Move
	for _, name := range wild.Moves {
		m, err := s.dex.Move(ctx, name)
		if err != nil {
			return nil, err
		}
		wildMoves = append(wildMoves, *m)
	}

	b := NewBattle(userID, lead, wild, wildMoves, rng)
	s.battles.Store(userID, b)
	return b, nil
}

func (s *Service) Battle(userID string) (*Battle, bool) {
	return s.activeBattle(userID)
}

// Fight accepts a move by name or by its 1-based position.
func (s *Service) Fight(ctx context.Context, userID, moveName string) (*TurnResult, error) {
	defer s.lock(userID)()

	b, ok := s.activeBattle(userID)
	if !ok {
		return nil, ErrNotInBattle
	}

	name, err := resolveMove(b.Player, moveName)
	if err != nil {
		return nil, err
	}
	move, err := s.dex.Move(ctx, name)
	if err != nil {
		return nil, err
	}

	res := b.Fight(*move)
	return res, s.finishTurn(ctx, b, res)
}

func (s *Service) Throw(ctx context.Context, userID, ballName string) (*TurnResult, error) {
	it, err := LookupItem(ballName)
	if err != nil {
		return nil, err
	}
	if it.Kind != Ball {
		return nil, ErrNotABall
	}

	defer s.lock(userID)()

	b, ok := s.activeBattle(userID)
	if !ok {
		return nil, ErrBallOutOfBattle
	}
	if err := s.repo.TakeItem(ctx, userID, it.Name, 1); err != nil {
		return nil, err
	}

	res := b.Throw(it)
	return res, s.finishTurn(ctx, b, res)
}

func (s *Service) Run(ctx context.Context, userID string) (*TurnResult, error) {
	defer s.lock(userID)()

	b, ok := s.activeBattle(userID)
	if !ok {
		return nil, ErrNotInBattle
	}
	res := b.Run()
	return res, s.finishTurn(ctx, b, res)
}

func (s *Service) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	return s.repo.Leaderboard(ctx, n)
}

// finishTurn persists the player's pokémon and settles a finished battle.
func (s *Service) finishTurn(ctx context.Context, b *Battle, res *TurnResult) error {
	if err := s.repo.UpdatePokemon(ctx, toRecord(b.UserID, b.Player)); err != nil {
		return err
	}
	if res.Outcome == Ongoing {
		return nil
	}
	s.battles.Delete(b.UserID)

	t, err := s.Trainer(ctx, b.UserID)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case Won:
		t.Wins++
		t.Money += res.Reward
	case Lost:
		t.Losses++
		loss := t.Money / 10
		t.Money -= loss
		res.Reward = -loss
		res.log("You blacked out and dropped %d money.", loss)
	case Caught:
		t.Caught++
		rec, err := s.repo.AddToParty(ctx, toRecord(b.UserID, b.Wild))
		if err != nil {
			return err
		}
		if rec.Slot > MaxPartyLen {
			res.log("%s was sent to the box.", b.Wild.Name())
		}
	case Fled:
		return nil
	}
	return s.repo.UpdateTrainer(ctx, t)
}

func (s *Service) activeBattle(userID string) (*Battle, bool) {
	v, ok := s.battles.Load(userID)
	if !ok {
		return nil, false
	}
	b := v.(*Battle)
	if b.Over() {
		s.battles.Delete(userID)
		return nil, false
	}
	return b, true
}

func (s *Service) loadAll(ctx context.Context, userID string) ([]*Pokemon, error) {
	if _, err := s.Trainer(ctx, userID); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListParty(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*Pokemon, 0, len(recs))
	for _, rec := range recs {
		species, err := s.dex.Species(ctx, rec.Species)
		if err != nil {
			return nil, err
		}
		out = append(out, fromRecord(rec, species))
	}
	return out, nil
}

func resolveMove(p *Pokemon, input string) (string, error) {
	if i, err := strconv.Atoi(input); err == nil {
		if i < 1 || i > len(p.Moves) {
			return "", ErrUnknownMove
		}
		return p.Moves[i-1], nil
	}
	key := NormalizeName(input)
	if contains(p.Moves, key) {
		return key, nil
	}
	if sug := Suggest(key, p.Moves); len(sug) == 1 {
		return sug[0], nil
	}
	return "", ErrUnknownMove
}

func firstHealthy(all []*Pokemon) *Pokemon {
	for i, p := range all {
		if i >= MaxPartyLen {
			break
		}
		if !p.Fainted() {
			return p
		}
	}
	return nil
}

func bySlot(all []*Pokemon, slot int) *Pokemon {
	for _, p := range all {
		if p.Slot == slot {
			return p
		}
	}
	return nil
}

func toRecord(userID string, p *Pokemon) Record {
	return Record{
		ID:       p.ID,
		UserID:   userID,
		Slot:     p.Slot,
		Species:  p.Species.Name,
		Nickname: p.Nickname,
		Level:    p.Level,
		Exp:      p.Exp,
		HP:       p.HP,
		IVs:      p.IVs,
		EVs:      p.EVs,
		Moves:    p.Moves,
	}
}

func fromRecord(rec Record, species *Species) *Pokemon {
	p := &Pokemon{
		ID:       rec.ID,
		Slot:     rec.Slot,
		Species:  species,
		Nickname: rec.Nickname,
		Level:    rec.Level,
		Exp:      rec.Exp,
		HP:       rec.HP,
		IVs:      rec.IVs,
		EVs:      rec.EVs,
		Moves:    rec.Moves,
	}
	p.Recalc()
	return p
}
