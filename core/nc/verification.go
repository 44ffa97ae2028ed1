package nc

import (
	"context"
	"strings"

	"qualitrack/core/store"
)

// AttachVerification records the closing review. The NC ends up closed
// even when the verification says it was not resolved or should reopen.
func (s *Service) AttachVerification(ctx context.Context, ncID string, in NewVerification) (*store.Verification, error) {
	var errs fieldErrors
	if strings.TrimSpace(in.Responsible) == "" {
		errs.add("responsible")
	}
	if in.VerifiedAt.IsZero() {
		errs.add("verified_at")
	}
	final, ok := ParseFinalStatus(in.FinalStatus)
	if !ok {
		errs.add("final_status")
	}
	var attached *store.Verification
	err := s.run(ctx, OpAttachVerification, func(tx store.Records, u *unit) error {
		item, err := loadNC(ctx, tx, ncID, func() error { return &ReferentialIntegrityError{Kind: "verification", NCID: ncID} })
		if err != nil {
			return err
		}
		if err := errs.err(); err != nil {
			return err
		}
		if err := s.guard(item, OpAttachVerification); err != nil {
			return err
		}
		id, err := s.id()
		if err != nil {
			return err
		}
		v := &store.Verification{
			ID:           id,
			NCID:         item.ID,
			VerifiedAt:   in.VerifiedAt.UTC(),
			Responsible:  strings.TrimSpace(in.Responsible),
			Resolved:     in.Resolved,
			Observations: strings.TrimSpace(in.Observations),
			FinalStatus:  final,
			CreatedAt:    s.now(),
		}
		if err := tx.InsertVerification(ctx, v); err != nil {
			return err
		}
		attached = v
		return s.recompute(ctx, tx, item, recomputeBump, u)
	})
	if err != nil {
		return nil, err
	}
	if attached.FinalStatus == FinalReopened {
		s.logger.Warnf("nc %s verified as reopened; status stays %s", ncID, StatusClosed)
	}
	return attached, nil
}

func (s *Service) GetVerificationForNC(ctx context.Context, ncID string) (*store.Verification, error) {
	if _, err := s.GetNC(ctx, ncID); err != nil {
		return nil, err
	}
	v, err := s.store.GetVerificationByNC(ctx, ncID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &NotFoundError{Kind: "verification", ID: ncID}
	}
	return v, nil
}

// ListOutstandingActions returns the actions of an NC that are not yet
// completed, earliest due first.
func (s *Service) ListOutstandingActions(ctx context.Context, ncID string) ([]store.Action, error) {
	actions, err := s.ListActionsForNC(ctx, ncID)
	if err != nil {
		return nil, err
	}
	out := make([]store.Action, 0, len(actions))
	for _, a := range actions {
		if a.Status != ActionCompleted {
			out = append(out, a)
		}
	}
	return out, nil
}
