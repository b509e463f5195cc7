package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogbot/internal/store"
)

func TestParseAwards(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Award
	}{
		{"plain increment", "<@123>++", []Award{{"123", 1}}},
		{"nickname mention", "<@!123> ++ nice one", []Award{{"123", 1}}},
		{"decrement", "boo <@42>--", []Award{{"42", -1}}},
		{"em dash", "<@42>—", []Award{{"42", -1}}},
		{"prefix operator", "++ <@7> for the carry", []Award{{"7", 1}}},
		{"several users", "<@1>++ <@2>--", []Award{{"1", 1}, {"2", -1}}},
		{"duplicate counts once", "<@1>++ <@1>++ <@1>++", []Award{{"1", 1}}},
		{"no operator", "hey <@1> how are you", nil},
		{"no mention", "c++ is fine", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAwards(tt.content))
		})
	}
}

func newSQLStore(t *testing.T) Store {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return NewSQLStore(db)
}

func newFileStore(t *testing.T) Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "chodecoin.json"))
	require.NoError(t, err)
	return fs
}

func backends() map[string]func(*testing.T) Store {
	return map[string]func(*testing.T) Store{
		"sql":  newSQLStore,
		"file": newFileStore,
	}
}

func TestStoreBehaviour(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			bal, err := s.Balance(ctx, "g1", "nobody")
			require.NoError(t, err)
			assert.Zero(t, bal)

			p, err := s.Add(ctx, "g1", "u1", 1)
			require.NoError(t, err)
			assert.EqualValues(t, 1, p)

			p, err = s.Add(ctx, "g1", "u1", 1)
			require.NoError(t, err)
			assert.EqualValues(t, 2, p)

			_, err = s.Add(ctx, "g1", "u2", -1)
			require.NoError(t, err)
			require.NoError(t, s.Set(ctx, "g1", "u3", 2))

			// other guilds are separate ledgers
			_, err = s.Add(ctx, "g2", "u1", 50)
			require.NoError(t, err)

			top, err := s.Top(ctx, "g1", 10)
			require.NoError(t, err)
			assert.Equal(t, []Entry{
				{GuildID: "g1", UserID: "u1", Points: 2},
				{GuildID: "g1", UserID: "u3", Points: 2},
				{GuildID: "g1", UserID: "u2", Points: -1},
			}, top)

			top, err = s.Top(ctx, "g1", 1)
			require.NoError(t, err)
			assert.Len(t, top, 1)
		})
	}
}

func TestTopDefaultsToTen(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			for i := 0; i < 15; i++ {
				_, err := s.Add(ctx, "g1", fmt.Sprintf("u%02d", i), int64(i+1))
				require.NoError(t, err)
			}

			top, err := s.Top(ctx, "g1", 0)
			require.NoError(t, err)
			require.Len(t, top, 10)
			assert.Equal(t, "u14", top[0].UserID)

			top, err = s.Top(ctx, "g1", -3)
			require.NoError(t, err)
			assert.Len(t, top, 10)
		})
	}
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Add(ctx, "g", "u", 1)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			bal, err := s.Balance(ctx, "g", "u")
			require.NoError(t, err)
			assert.EqualValues(t, 20, bal)
		})
	}
}

func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chodecoin.json")

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = fs.Add(ctx, "g", "u", 5)
	require.NoError(t, err)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	bal, err := reopened.Balance(ctx, "g", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 5, bal)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chodecoin.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	_, err := Apply(ctx, s, "g", "me", nil)
	assert.ErrorIs(t, err, ErrNoAwards)

	_, err = Apply(ctx, s, "g", "me", []Award{{"you", 1}, {"me", 1}})
	assert.ErrorIs(t, err, ErrSelfAward)

	// a rejected message awards nobody
	bal, _ := s.Balance(ctx, "g", "you")
	assert.Zero(t, bal)

	out, err := Apply(ctx, s, "g", "me", []Award{{"you", 1}, {"them", -1}})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{GuildID: "g", UserID: "you", Points: 1},
		{GuildID: "g", UserID: "them", Points: -1},
	}, out)
}
