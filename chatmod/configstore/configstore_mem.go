package configstore

import (
	"context"
	"sync"
	"time"

	"github.com/warden-mod/warden/chatmod/policy"
)

// In-process store, used in tests and single-node deployments without
// external persistence.
type MemStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.Policy
	states   map[string]*UserState
	auditIDs map[string]bool
	audits   map[string][]*AuditRecord
	stats    map[string]map[string]int64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		policies: make(map[string]*policy.Policy),
		states:   make(map[string]*UserState),
		auditIDs: make(map[string]bool),
		audits:   make(map[string][]*AuditRecord),
		stats:    make(map[string]map[string]int64),
	}
}

func (s *MemStore) GetPolicy(ctx context.Context, group string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pol, ok := s.policies[group]
	if !ok {
		return policy.Default(), nil
	}
	cp := *pol
	cp.AllowList = append([]string(nil), pol.AllowList...)
	cp.BlockList = append([]string(nil), pol.BlockList...)
	return &cp, nil
}

func (s *MemStore) PutPolicy(ctx context.Context, group string, pol *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pol
	cp.AllowList = append([]string(nil), pol.AllowList...)
	cp.BlockList = append([]string(nil), pol.BlockList...)
	s.policies[group] = &cp
	return nil
}

func (s *MemStore) GetUserState(ctx context.Context, group, user string) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[group+"/"+user]
	if !ok {
		return NewUserState(), nil
	}
	cp := *st
	return &cp, nil
}

func (s *MemStore) PutUserState(ctx context.Context, group, user string, st *UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.states[group+"/"+user] = &cp
	return nil
}

func (s *MemStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditIDs[rec.EventID] {
		return nil
	}
	s.auditIDs[rec.EventID] = true
	cp := *rec
	s.audits[rec.GroupID] = append(s.audits[rec.GroupID], &cp)
	return nil
}

func (s *MemStore) HasAudit(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditIDs[eventID], nil
}

func (s *MemStore) ListAudit(ctx context.Context, group string, since time.Time) ([]*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AuditRecord
	for _, rec := range s.audits[group] {
		if rec.CreatedAt.Before(since) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) IncrementStat(ctx context.Context, group, name string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.stats[group]
	if !ok {
		m = make(map[string]int64)
		s.stats[group] = m
	}
	m[name] += delta
	return nil
}

func (s *MemStore) GetStats(ctx context.Context, group string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.stats[group]))
	for k, v := range s.stats[group] {
		out[k] = v
	}
	return out, nil
}
