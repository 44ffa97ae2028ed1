package nc

import (
	"context"
	"fmt"
	"time"

	"qualitrack/core/store"
	"qualitrack/core/utils"

	"github.com/gofrs/uuid/v5"
)

// Recorder receives workflow events after they are committed.
type Recorder interface {
	Created(severity string)
	Transition(from, to string)
	Failed(operation, kind string)
}

type nopRecorder struct{}

func (nopRecorder) Created(string)            {}
func (nopRecorder) Transition(string, string) {}
func (nopRecorder) Failed(string, string)     {}

type IDGenerator func() (string, error)

func uuidV4() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type Service struct {
	store       store.RecordStore
	now         func() time.Time
	newID       IDGenerator
	logger      *utils.Logger
	recorder    Recorder
	regFormat   string
	enforceFlow bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithLogger(logger *utils.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithRegNoFormat(format string) Option {
	return func(s *Service) { s.regFormat = format }
}

// WithTransitionGuards makes attach operations fail with TransitionViolation
// when the NC is not in the stage the operation expects.
func WithTransitionGuards(enabled bool) Option {
	return func(s *Service) { s.enforceFlow = enabled }
}

func NewService(rs store.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:     rs,
		now:       utils.NowUTC,
		newID:     uuidV4,
		recorder:  nopRecorder{},
		regFormat: DefaultRegNoFormat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GuardsEnabled() bool { return s.enforceFlow }

type transition struct {
	from, to string
}

// unit collects what a transaction wants published once it commits.
type unit struct {
	transitions []transition
	created     []string
}

// run executes fn atomically and reports committed events. Failures are
// counted per operation and kind.
func (s *Service) run(ctx context.Context, op string, fn func(tx store.Records, u *unit) error) error {
	u := &unit{}
	err := s.store.RunInTx(ctx, func(tx store.Records) error {
		u.transitions = u.transitions[:0]
		u.created = u.created[:0]
		return fn(tx, u)
	})
	if err != nil {
		kind := ErrorKind(err)
		s.recorder.Failed(op, kind)
		if kind == "internal" {
			s.logger.Errorf("nc %s failed: %v", op, err)
		} else {
			s.logger.Warnf("nc %s rejected: %v", op, err)
		}
		return err
	}
	for _, sev := range u.created {
		s.recorder.Created(sev)
	}
	for _, t := range u.transitions {
		s.recorder.Transition(t.from, t.to)
		s.logger.Debugf("nc status %s -> %s", t.from, t.to)
	}
	return nil
}

func (s *Service) id() (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}

// loadNC returns the NC or err built by missing when it does not exist.
func loadNC(ctx context.Context, tx store.Records, id string, missing func() error) (*store.NC, error) {
	item, err := tx.GetNC(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, missing()
	}
	return item, nil
}

func (s *Service) guard(item *store.NC, op string) error {
	if !s.enforceFlow || CheckTransition(item.Status, op) {
		return nil
	}
	return &TransitionViolation{NCID: item.ID, Status: item.Status, Operation: op}
}

// recomputeMode says how much of the NC row a recompute writes.
type recomputeMode int

const (
	// recomputeOnly writes the NC only when the derived status changes.
	recomputeOnly recomputeMode = iota
	// recomputeBump always writes the NC so its version moves with every
	// dependent change. Concurrent writers then meet at the version check.
	recomputeBump
	// recomputeTouch is recomputeBump that also refreshes UpdatedAt.
	recomputeTouch
)

// recompute reloads the dependents of item and writes the derived status
// back according to mode.
func (s *Service) recompute(ctx context.Context, tx store.Records, item *store.NC, mode recomputeMode, u *unit) error {
	analysis, err := tx.GetAnalysisByNC(ctx, item.ID)
	if err != nil {
		return err
	}
	actions, err := tx.ListActionsByNC(ctx, item.ID)
	if err != nil {
		return err
	}
	verification, err := tx.GetVerificationByNC(ctx, item.ID)
	if err != nil {
		return err
	}
	next := RecomputeStatus(analysis, actions, verification)
	changed := next != item.Status
	if !changed && mode == recomputeOnly {
		return nil
	}
	prev := item.Status
	item.Status = next
	if changed || mode == recomputeTouch {
		item.UpdatedAt = s.now()
	}
	if err := tx.UpdateNC(ctx, item, item.Version); err != nil {
		return fmt.Errorf("update nc %s: %w", item.ID, err)
	}
	if prev != next {
		u.transitions = append(u.transitions, transition{from: prev, to: next})
	}
	return nil
}
