package app

import (
	"context"
	"sort"
	"sync"

	"ticketwatch/internal/storage"
	kit "ticketwatch/internal/transport"
	logx "ticketwatch/pkg/logx"
)

// subscriptions is the set of chats receiving watch notifications: an
// in-memory set backed (optionally) by persistent storage. Storage
// write failures are logged, never fatal — the in-memory set is the
// source of truth for the running process.
type subscriptions struct {
	mu    sync.Mutex
	chats map[int64]struct{}
	store storage.Store
	log   logx.Logger
}

func newSubscriptions(store storage.Store, log logx.Logger) *subscriptions {
	return &subscriptions{chats: map[int64]struct{}{}, store: store, log: log}
}

func (s *subscriptions) load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	ids, err := s.store.ListChats(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.chats[id] = struct{}{}
	}
	return nil
}

// add returns false when the chat was already subscribed.
func (s *subscriptions) add(ctx context.Context, chatID int64) bool {
	s.mu.Lock()
	_, exists := s.chats[chatID]
	s.chats[chatID] = struct{}{}
	s.mu.Unlock()
	if exists {
		return false
	}
	if s.store != nil {
		if err := s.store.AddChat(ctx, chatID); err != nil {
			s.log.Warn("persist subscription failed", logx.Int64("chat_id", chatID), logx.Err(err))
		}
	}
	return true
}

// remove returns false when the chat was not subscribed.
func (s *subscriptions) remove(ctx context.Context, chatID int64) bool {
	s.mu.Lock()
	_, exists := s.chats[chatID]
	delete(s.chats, chatID)
	s.mu.Unlock()
	if !exists {
		return false
	}
	if s.store != nil {
		if err := s.store.RemoveChat(ctx, chatID); err != nil {
			s.log.Warn("remove subscription failed", logx.Int64("chat_id", chatID), logx.Err(err))
		}
	}
	return true
}

func (s *subscriptions) targets() []kit.ChatTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]kit.ChatTarget, 0, len(s.chats))
	for id := range s.chats {
		out = append(out, kit.ChatTarget{ChatID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

func (s *subscriptions) list() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
