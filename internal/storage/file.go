package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "ticketwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend: the whole chat set is
// kept in memory and rewritten atomically (temp file + rename) on change.
type fileStore struct {
	log logx.Logger

	mu    sync.Mutex
	path  string
	chats map[int64]struct{}
}

type fileSnapshot struct {
	Chats []int64 `json:"chats"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	chats := map[int64]struct{}{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		var snap fileSnapshot
		if err := json.Unmarshal(b, &snap); err != nil {
			return nil, err
		}
		for _, id := range snap.Chats {
			chats[id] = struct{}{}
		}
	case os.IsNotExist(err):
		// fresh store
	default:
		return nil, err
	}

	return &fileStore{log: log, path: path, chats: chats}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) AddChat(ctx context.Context, chatID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; ok {
		return nil
	}
	s.chats[chatID] = struct{}{}
	return s.flushLocked()
}

func (s *fileStore) RemoveChat(ctx context.Context, chatID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return nil
	}
	delete(s.chats, chatID)
	return s.flushLocked()
}

func (s *fileStore) ListChats(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fileStore) flushLocked() error {
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	b, err := json.MarshalIndent(fileSnapshot{Chats: ids}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
