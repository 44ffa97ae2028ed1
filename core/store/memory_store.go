package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryState struct {
	ncs           map[string]NC
	analyses      map[string]Analysis
	actions       map[string]Action
	verifications map[string]Verification
	counters      map[int]int64
	order         map[string]int64
	nextOrder     int64
}

func newMemoryState() memoryState {
	return memoryState{
		ncs:           make(map[string]NC),
		analyses:      make(map[string]Analysis),
		actions:       make(map[string]Action),
		verifications: make(map[string]Verification),
		counters:      make(map[int]int64),
		order:         make(map[string]int64),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.ncs {
		out.ncs[k] = v
	}
	for k, v := range s.analyses {
		v.Whys = append([]string(nil), v.Whys...)
		out.analyses[k] = v
	}
	for k, v := range s.actions {
		out.actions[k] = v
	}
	for k, v := range s.verifications {
		out.verifications[k] = v
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	for k, v := range s.order {
		out.order[k] = v
	}
	out.nextOrder = s.nextOrder
	return out
}

// MemoryStore keeps the four collections in process. Each RunInTx works on
// a clone of the state which replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

var _ RecordStore = (*MemoryStore)(nil)

func (s *MemoryStore) RunInTx(_ context.Context, fn func(tx Records) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// write runs a single mutation as its own transaction.
func (s *MemoryStore) write(fn func(tx *memoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *MemoryStore) read() *memoryTx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memoryTx{state: s.state.clone()}
}

func (s *MemoryStore) InsertNC(ctx context.Context, nc *NC) error {
	return s.write(func(tx *memoryTx) error { return tx.InsertNC(ctx, nc) })
}

func (s *MemoryStore) UpdateNC(ctx context.Context, nc *NC, expectedVersion int) error {
	return s.write(func(tx *memoryTx) error { return tx.UpdateNC(ctx, nc, expectedVersion) })
}

func (s *MemoryStore) DeleteNC(ctx context.Context, id string) error {
	return s.write(func(tx *memoryTx) error { return tx.DeleteNC(ctx, id) })
}

func (s *MemoryStore) GetNC(ctx context.Context, id string) (*NC, error) {
	return s.read().GetNC(ctx, id)
}

func (s *MemoryStore) ListNCs(ctx context.Context, filter NCFilter) ([]NC, error) {
	return s.read().ListNCs(ctx, filter)
}

func (s *MemoryStore) NextRegSeq(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := s.write(func(tx *memoryTx) error {
		var err error
		seq, err = tx.NextRegSeq(ctx, year)
		return err
	})
	return seq, err
}

func (s *MemoryStore) InsertAnalysis(ctx context.Context, a *Analysis) error {
	return s.write(func(tx *memoryTx) error { return tx.InsertAnalysis(ctx, a) })
}

func (s *MemoryStore) GetAnalysisByNC(ctx context.Context, ncID string) (*Analysis, error) {
	return s.read().GetAnalysisByNC(ctx, ncID)
}

func (s *MemoryStore) DeleteAnalysesByNC(ctx context.Context, ncID string) (int, error) {
	var n int
	err := s.write(func(tx *memoryTx) error {
		var err error
		n, err = tx.DeleteAnalysesByNC(ctx, ncID)
		return err
	})
	return n, err
}

func (s *MemoryStore) InsertAction(ctx context.Context, a *Action) error {
	return s.write(func(tx *memoryTx) error { return tx.InsertAction(ctx, a) })
}

func (s *MemoryStore) UpdateAction(ctx context.Context, a *Action) error {
	return s.write(func(tx *memoryTx) error { return tx.UpdateAction(ctx, a) })
}

func (s *MemoryStore) GetAction(ctx context.Context, id string) (*Action, error) {
	return s.read().GetAction(ctx, id)
}

func (s *MemoryStore) ListActionsByNC(ctx context.Context, ncID string) ([]Action, error) {
	return s.read().ListActionsByNC(ctx, ncID)
}

func (s *MemoryStore) DeleteActionsByNC(ctx context.Context, ncID string) (int, error) {
	var n int
	err := s.write(func(tx *memoryTx) error {
		var err error
		n, err = tx.DeleteActionsByNC(ctx, ncID)
		return err
	})
	return n, err
}

func (s *MemoryStore) InsertVerification(ctx context.Context, v *Verification) error {
	return s.write(func(tx *memoryTx) error { return tx.InsertVerification(ctx, v) })
}

func (s *MemoryStore) GetVerificationByNC(ctx context.Context, ncID string) (*Verification, error) {
	return s.read().GetVerificationByNC(ctx, ncID)
}

func (s *MemoryStore) DeleteVerificationsByNC(ctx context.Context, ncID string) (int, error) {
	var n int
	err := s.write(func(tx *memoryTx) error {
		var err error
		n, err = tx.DeleteVerificationsByNC(ctx, ncID)
		return err
	})
	return n, err
}

type memoryTx struct {
	state memoryState
}

func (tx *memoryTx) stamp(id string) {
	tx.state.nextOrder++
	tx.state.order[id] = tx.state.nextOrder
}

func (tx *memoryTx) InsertNC(_ context.Context, nc *NC) error {
	if _, exists := tx.state.ncs[nc.ID]; exists {
		return ErrConflict
	}
	for _, existing := range tx.state.ncs {
		if existing.RegNo == nc.RegNo {
			return ErrConflict
		}
	}
	if nc.Version <= 0 {
		nc.Version = 1
	}
	tx.state.ncs[nc.ID] = *nc
	tx.stamp(nc.ID)
	return nil
}

func (tx *memoryTx) UpdateNC(_ context.Context, nc *NC, expectedVersion int) error {
	current, ok := tx.state.ncs[nc.ID]
	if !ok || current.Version != expectedVersion {
		return ErrConflict
	}
	updated := *nc
	updated.RegNo = current.RegNo
	updated.CreatedAt = current.CreatedAt
	updated.Version = expectedVersion + 1
	tx.state.ncs[nc.ID] = updated
	nc.Version = updated.Version
	return nil
}

func (tx *memoryTx) DeleteNC(_ context.Context, id string) error {
	delete(tx.state.ncs, id)
	delete(tx.state.order, id)
	return nil
}

func (tx *memoryTx) GetNC(_ context.Context, id string) (*NC, error) {
	nc, ok := tx.state.ncs[id]
	if !ok {
		return nil, nil
	}
	return &nc, nil
}

func (tx *memoryTx) ListNCs(_ context.Context, filter NCFilter) ([]NC, error) {
	statuses := map[string]struct{}{}
	for _, raw := range filter.StatusIn {
		if v := strings.TrimSpace(raw); v != "" {
			statuses[v] = struct{}{}
		}
	}
	if len(statuses) == 0 && filter.Status != "" {
		statuses[filter.Status] = struct{}{}
	}
	search := strings.ToLower(filter.Search)
	var res []NC
	for _, nc := range tx.state.ncs {
		if len(statuses) > 0 {
			if _, ok := statuses[nc.Status]; !ok {
				continue
			}
		}
		if filter.Severity != "" && nc.Severity != filter.Severity {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(nc.Title), search) &&
			!strings.Contains(strings.ToLower(nc.Description), search) &&
			!strings.Contains(strings.ToLower(nc.RegNo), search) {
			continue
		}
		res = append(res, nc)
	}
	sort.Slice(res, func(i, j int) bool {
		return tx.state.order[res[i].ID] > tx.state.order[res[j].ID]
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(res) {
			return nil, nil
		}
		res = res[filter.Offset:]
	}
	if filter.Limit > 0 && len(res) > filter.Limit {
		res = res[:filter.Limit]
	}
	return res, nil
}

func (tx *memoryTx) NextRegSeq(_ context.Context, year int) (int64, error) {
	tx.state.counters[year]++
	return tx.state.counters[year], nil
}

func (tx *memoryTx) InsertAnalysis(_ context.Context, a *Analysis) error {
	if _, ok := tx.state.ncs[a.NCID]; !ok {
		return ErrConflict
	}
	cp := *a
	cp.Whys = append([]string(nil), a.Whys...)
	tx.state.analyses[a.ID] = cp
	tx.stamp(a.ID)
	return nil
}

func (tx *memoryTx) GetAnalysisByNC(_ context.Context, ncID string) (*Analysis, error) {
	var latest *Analysis
	var latestOrder int64
	for id, a := range tx.state.analyses {
		if a.NCID != ncID {
			continue
		}
		if o := tx.state.order[id]; latest == nil || o > latestOrder {
			cp := a
			cp.Whys = append([]string(nil), a.Whys...)
			latest = &cp
			latestOrder = o
		}
	}
	return latest, nil
}

func (tx *memoryTx) DeleteAnalysesByNC(_ context.Context, ncID string) (int, error) {
	n := 0
	for id, a := range tx.state.analyses {
		if a.NCID == ncID {
			delete(tx.state.analyses, id)
			delete(tx.state.order, id)
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertAction(_ context.Context, a *Action) error {
	if _, ok := tx.state.ncs[a.NCID]; !ok {
		return ErrConflict
	}
	tx.state.actions[a.ID] = *a
	tx.stamp(a.ID)
	return nil
}

func (tx *memoryTx) UpdateAction(_ context.Context, a *Action) error {
	current, ok := tx.state.actions[a.ID]
	if !ok {
		return ErrConflict
	}
	updated := *a
	updated.NCID = current.NCID
	updated.CreatedAt = current.CreatedAt
	tx.state.actions[a.ID] = updated
	return nil
}

func (tx *memoryTx) GetAction(_ context.Context, id string) (*Action, error) {
	a, ok := tx.state.actions[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (tx *memoryTx) ListActionsByNC(_ context.Context, ncID string) ([]Action, error) {
	var res []Action
	for _, a := range tx.state.actions {
		if a.NCID == ncID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].DueDate.Equal(res[j].DueDate) {
			return res[i].DueDate.Before(res[j].DueDate)
		}
		return tx.state.order[res[i].ID] < tx.state.order[res[j].ID]
	})
	return res, nil
}

func (tx *memoryTx) DeleteActionsByNC(_ context.Context, ncID string) (int, error) {
	n := 0
	for id, a := range tx.state.actions {
		if a.NCID == ncID {
			delete(tx.state.actions, id)
			delete(tx.state.order, id)
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertVerification(_ context.Context, v *Verification) error {
	if _, ok := tx.state.ncs[v.NCID]; !ok {
		return ErrConflict
	}
	tx.state.verifications[v.ID] = *v
	tx.stamp(v.ID)
	return nil
}

func (tx *memoryTx) GetVerificationByNC(_ context.Context, ncID string) (*Verification, error) {
	var latest *Verification
	var latestOrder int64
	for id, v := range tx.state.verifications {
		if v.NCID != ncID {
			continue
		}
		if o := tx.state.order[id]; latest == nil || o > latestOrder {
			cp := v
			latest = &cp
			latestOrder = o
		}
	}
	return latest, nil
}

func (tx *memoryTx) DeleteVerificationsByNC(_ context.Context, ncID string) (int, error) {
	n := 0
	for id, v := range tx.state.verifications {
		if v.NCID == ncID {
			delete(tx.state.verifications, id)
			delete(tx.state.order, id)
			n++
		}
	}
	return n, nil
}
