package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore keeps every balance in a single JSON document: guild -> user -> points.
// Writes hold the mutex for the whole read-modify-write so increments never race.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]map[string]int64
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]map[string]int64),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "ledger: read file")
	}
	if len(raw) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, errors.Wrap(err, "ledger: decode file")
	}
	return fs, nil
}

func (f *FileStore) Add(_ context.Context, guildID, userID string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	guild := f.guild(guildID)
	prev := guild[userID]
	guild[userID] = prev + delta

	if err := f.flush(); err != nil {
		guild[userID] = prev
		return 0, err
	}
	return guild[userID], nil
}

func (f *FileStore) Balance(_ context.Context, guildID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.data[guildID][userID], nil
}

func (f *FileStore) Top(_ context.Context, guildID string, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	f.mu.Lock()
	entries := make([]Entry, 0, len(f.data[guildID]))
	for user, points := range f.data[guildID] {
		entries = append(entries, Entry{GuildID: guildID, UserID: user, Points: points})
	}
	f.mu.Unlock()

	sortEntries(entries)
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (f *FileStore) Set(_ context.Context, guildID, userID string, points int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	guild := f.guild(guildID)
	prev, had := guild[userID]
	guild[userID] = points

	if err := f.flush(); err != nil {
		if had {
			guild[userID] = prev
		} else {
			delete(guild, userID)
		}
		return err
	}
	return nil
}

func (f *FileStore) guild(id string) map[string]int64 {
	g, ok := f.data[id]
	if !ok {
		g = make(map[string]int64)
		f.data[id] = g
	}
	return g
}

// flush writes to a temp file and renames it so a crash never leaves half a document.
func (f *FileStore) flush() error {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "ledger: encode file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".ledger-*")
	if err != nil {
		return errors.Wrap(err, "ledger: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, "ledger: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "ledger: close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrap(err, "ledger: replace file")
	}
	return nil
}
