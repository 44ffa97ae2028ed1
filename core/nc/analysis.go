package nc

import (
	"context"
	"strings"

	"qualitrack/core/store"
)

func validateAnalysis(in NewAnalysis) ([]string, error) {
	var errs fieldErrors
	whys := make([]string, 0, len(in.Whys))
	for _, w := range in.Whys {
		whys = append(whys, strings.TrimSpace(w))
	}
	// Trailing blanks carry no information; inner blanks keep their slot.
	for len(whys) > 1 && whys[len(whys)-1] == "" {
		whys = whys[:len(whys)-1]
	}
	switch {
	case len(whys) == 0 || whys[0] == "":
		errs.add("whys[0]")
	case len(whys) > maxWhys:
		errs.add("whys")
	}
	if strings.TrimSpace(in.Responsible) == "" {
		errs.add("responsible")
	}
	return whys, errs.err()
}

// AttachAnalysis records the five-whys analysis and moves the NC to
// action planning.
func (s *Service) AttachAnalysis(ctx context.Context, ncID string, in NewAnalysis) (*store.Analysis, error) {
	whys, verr := validateAnalysis(in)
	var attached *store.Analysis
	err := s.run(ctx, OpAttachAnalysis, func(tx store.Records, u *unit) error {
		item, err := loadNC(ctx, tx, ncID, func() error { return &NotFoundError{Kind: "nc", ID: ncID} })
		if err != nil {
			return err
		}
		if verr != nil {
			return verr
		}
		if err := s.guard(item, OpAttachAnalysis); err != nil {
			return err
		}
		id, err := s.id()
		if err != nil {
			return err
		}
		now := s.now()
		analyzedAt := in.AnalyzedAt
		if analyzedAt.IsZero() {
			analyzedAt = now
		}
		a := &store.Analysis{
			ID:          id,
			NCID:        item.ID,
			Whys:        whys,
			Responsible: strings.TrimSpace(in.Responsible),
			AnalyzedAt:  analyzedAt.UTC(),
			CreatedAt:   now,
		}
		if err := tx.InsertAnalysis(ctx, a); err != nil {
			return err
		}
		attached = a
		return s.recompute(ctx, tx, item, recomputeTouch, u)
	})
	if err != nil {
		return nil, err
	}
	return attached, nil
}

func (s *Service) GetAnalysisForNC(ctx context.Context, ncID string) (*store.Analysis, error) {
	if _, err := s.GetNC(ctx, ncID); err != nil {
		return nil, err
	}
	a, err := s.store.GetAnalysisByNC(ctx, ncID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Kind: "analysis", ID: ncID}
	}
	return a, nil
}
