// Package memory is an in-process ledger used for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tabs/internal/core"
)

type Store struct {
	mu    sync.RWMutex
	users map[core.UserID]core.User
	txs   []core.Transaction
}

func New(users ...core.User) *Store {
	s := &Store{users: make(map[core.UserID]core.User)}
	for _, u := range users {
		if u.ID != "" {
			s.users[u.ID] = u
		}
	}
	return s
}

// NewFromFiles seeds the user directory from base/seed_users.txt, one
// "id,name,email" entry per line.
func NewFromFiles(base string) *Store {
	var users []core.User
	for _, line := range readLines(filepath.Join(base, "seed_users.txt")) {
		parts := strings.SplitN(line, ",", 3)
		u := core.User{ID: core.UserID(strings.TrimSpace(parts[0]))}
		if len(parts) > 1 {
			u.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			u.Email = strings.TrimSpace(parts[2])
		}
		users = append(users, u)
	}
	return New(users...)
}

func (s *Store) ScanTransactions(_ context.Context, participant core.UserID) ([]core.Transaction, error) {
	return s.scan(participant, time.Time{}, time.Time{}), nil
}

func (s *Store) ScanTransactionsBetween(_ context.Context, participant core.UserID, from, to time.Time) ([]core.Transaction, error) {
	return s.scan(participant, from, to), nil
}

func (s *Store) scan(participant core.UserID, from, to time.Time) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if !tx.Involves(participant) {
			continue
		}
		if !from.IsZero() && tx.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && tx.CreatedAt.After(to) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return s.txs[i], nil
}

func (s *Store) InsertOne(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(tx.ID) >= 0 {
		return core.Transaction{}, fmt.Errorf("%w: duplicate id %s", core.ErrStore, tx.ID)
	}
	s.txs = append(s.txs, tx)
	return tx, nil
}

// InsertMany validates the whole batch under one lock before appending
// anything.
func (s *Store) InsertMany(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
		if _, dup := ids[tx.ID]; dup || s.indexOf(tx.ID) >= 0 {
			return nil, fmt.Errorf("%w: duplicate id %s", core.ErrStore, tx.ID)
		}
		ids[tx.ID] = struct{}{}
	}
	s.txs = append(s.txs, txs...)
	return append([]core.Transaction(nil), txs...), nil
}

func (s *Store) UpdateOne(_ context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.txs[i] = s.txs[i].Apply(patch)
	return s.txs[i], nil
}

func (s *Store) DeleteOne(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.txs {
		if s.txs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) ResolveUsers(_ context.Context, ids []core.UserID) (map[core.UserID]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[core.UserID]core.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) SearchUsers(_ context.Context, query string, excluding core.UserID, limit int) ([]core.User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.User
	for _, u := range s.users {
		if u.ID == excluding {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertUser records a profile, keeping an existing name when the new one
// is empty.
func (s *Store) UpsertUser(_ context.Context, u core.User) error {
	if u.ID == "" {
		return core.ErrMissingUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.users[u.ID]; ok {
		if u.Name == "" {
			u.Name = prev.Name
		}
		if u.Email == "" {
			u.Email = prev.Email
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) RenameUser(_ context.Context, id core.UserID, name string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	u.Name = name
	s.users[id] = u
	return u, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
