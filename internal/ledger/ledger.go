// Package ledger keeps the per-guild ChodeCoin point balances.
package ledger

import (
	"context"
	"errors"
	"regexp"
	"sort"
)

var (
	ErrSelfAward = errors.New("cannot award points to yourself")
	ErrNoAwards  = errors.New("no awards in message")
)

type Entry struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Points  int64  `json:"points"`
}

// Store persists balances. Add must be atomic with respect to concurrent callers.
type Store interface {
	Add(ctx context.Context, guildID, userID string, delta int64) (int64, error)
	Balance(ctx context.Context, guildID, userID string) (int64, error)
	Top(ctx context.Context, guildID string, n int) ([]Entry, error)
	Set(ctx context.Context, guildID, userID string, points int64) error
}

type Award struct {
	UserID string
	Delta  int64
}

// Phones autocorrect "--" into an em dash, so both count as a minus.
var (
	mentionThenOp = regexp.MustCompile(`<@!?(\d+)>\s*(\+\+|--|—)`)
	opThenMention = regexp.MustCompile(`(\+\+|--|—)\s*<@!?(\d+)>`)
)

// ParseAwards finds "<@id>++", "<@id> --" and "++ <@id>" in a message.
// An operator directly after a mention belongs to that mention. Each user is
// awarded at most once per message, the first operator wins.
func ParseAwards(content string) []Award {
	type hit struct {
		pos   int
		award Award
	}
	var hits []hit

	consumed := make(map[int]struct{})
	for _, m := range mentionThenOp.FindAllStringSubmatchIndex(content, -1) {
		consumed[m[4]] = struct{}{}
		hits = append(hits, hit{m[0], Award{content[m[2]:m[3]], delta(content[m[4]:m[5]])}})
	}
	for _, m := range opThenMention.FindAllStringSubmatchIndex(content, -1) {
		if _, taken := consumed[m[2]]; taken {
			continue
		}
		hits = append(hits, hit{m[0], Award{content[m[4]:m[5]], delta(content[m[2]:m[3]])}})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]struct{})
	var awards []Award
	for _, h := range hits {
		if _, dup := seen[h.award.UserID]; dup {
			continue
		}
		seen[h.award.UserID] = struct{}{}
		awards = append(awards, h.award)
	}
	return awards
}

func delta(op string) int64 {
	if op == "++" {
		return 1
	}
	return -1
}

// Apply validates and stores every award made by author in one message.
// The returned entries carry the new balances in award order.
func Apply(ctx context.Context, s Store, guildID, authorID string, awards []Award) ([]Entry, error) {
	if len(awards) == 0 {
		return nil, ErrNoAwards
	}
	for _, a := range awards {
		if a.UserID == authorID {
			return nil, ErrSelfAward
		}
	}

	out := make([]Entry, 0, len(awards))
	for _, a := range awards {
		points, err := s.Add(ctx, guildID, a.UserID, a.Delta)
		if err != nil {
			return out, err
		}
		out = append(out, Entry{GuildID: guildID, UserID: a.UserID, Points: points})
	}
	return out, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
}
