package nc

import (
	"context"
	"fmt"
	"strings"

	"qualitrack/core/store"
)

func validateNewAction(i int, in NewAction, errs *fieldErrors) string {
	prefix := fmt.Sprintf("actions[%d].", i)
	if strings.TrimSpace(in.Description) == "" {
		errs.add(prefix + "description")
	}
	if strings.TrimSpace(in.Responsible) == "" {
		errs.add(prefix + "responsible")
	}
	if in.DueDate.IsZero() {
		errs.add(prefix + "due_date")
	}
	status := ActionPending
	if strings.TrimSpace(in.Status) != "" {
		parsed, ok := ParseActionStatus(in.Status)
		if !ok {
			errs.add(prefix + "status")
		}
		status = parsed
	}
	return status
}

// AddActions plans a batch of corrective actions for an NC. The batch is
// stored as a whole or not at all.
func (s *Service) AddActions(ctx context.Context, ncID string, batch []NewAction) ([]store.Action, error) {
	var errs fieldErrors
	if len(batch) == 0 {
		errs.add("actions")
	}
	statuses := make([]string, len(batch))
	for i, in := range batch {
		statuses[i] = validateNewAction(i, in, &errs)
	}
	var added []store.Action
	err := s.run(ctx, OpAddActions, func(tx store.Records, u *unit) error {
		item, err := loadNC(ctx, tx, ncID, func() error { return &ReferentialIntegrityError{Kind: "action", NCID: ncID} })
		if err != nil {
			return err
		}
		if err := errs.err(); err != nil {
			return err
		}
		if err := s.guard(item, OpAddActions); err != nil {
			return err
		}
		now := s.now()
		added = added[:0]
		for i, in := range batch {
			id, err := s.id()
			if err != nil {
				return err
			}
			a := store.Action{
				ID:          id,
				NCID:        item.ID,
				Description: strings.TrimSpace(in.Description),
				Responsible: strings.TrimSpace(in.Responsible),
				DueDate:     in.DueDate.UTC(),
				Resources:   strings.TrimSpace(in.Resources),
				Status:      statuses[i],
				Evidence:    strings.TrimSpace(in.Evidence),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.InsertAction(ctx, &a); err != nil {
				return err
			}
			added = append(added, a)
		}
		return s.recompute(ctx, tx, item, recomputeBump, u)
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateActionStatus sets one action's status and re-derives the owning NC
// status from all of its actions. Repeating the same status changes nothing.
func (s *Service) UpdateActionStatus(ctx context.Context, actionID, status string) (*store.Action, error) {
	return s.UpdateAction(ctx, actionID, ActionPatch{Status: &status})
}

func (s *Service) UpdateAction(ctx context.Context, actionID string, patch ActionPatch) (*store.Action, error) {
	var errs fieldErrors
	var status string
	if patch.Status != nil {
		parsed, ok := ParseActionStatus(*patch.Status)
		if !ok {
			errs.add("status")
		}
		status = parsed
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		errs.add("description")
	}
	if patch.Responsible != nil && strings.TrimSpace(*patch.Responsible) == "" {
		errs.add("responsible")
	}
	if patch.DueDate != nil && patch.DueDate.IsZero() {
		errs.add("due_date")
	}
	if err := errs.err(); err != nil {
		s.recorder.Failed(OpUpdateAction, ErrorKind(err))
		return nil, err
	}

	var updated *store.Action
	err := s.run(ctx, OpUpdateAction, func(tx store.Records, u *unit) error {
		a, err := tx.GetAction(ctx, actionID)
		if err != nil {
			return err
		}
		if a == nil {
			return &NotFoundError{Kind: "action", ID: actionID}
		}
		item, err := loadNC(ctx, tx, a.NCID, func() error { return &ReferentialIntegrityError{Kind: "action", NCID: a.NCID} })
		if err != nil {
			return err
		}
		changed := applyPatch(a, patch, status)
		if !changed {
			updated = a
			return s.recompute(ctx, tx, item, recomputeOnly, u)
		}
		if err := s.guard(item, OpUpdateAction); err != nil {
			return err
		}
		a.UpdatedAt = s.now()
		if err := tx.UpdateAction(ctx, a); err != nil {
			return fmt.Errorf("update action %s: %w", a.ID, err)
		}
		updated = a
		return s.recompute(ctx, tx, item, recomputeBump, u)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyPatch(a *store.Action, patch ActionPatch, status string) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&a.Description, patch.Description)
	set(&a.Responsible, patch.Responsible)
	set(&a.Resources, patch.Resources)
	set(&a.Evidence, patch.Evidence)
	if patch.DueDate != nil && !patch.DueDate.UTC().Equal(a.DueDate) {
		a.DueDate = patch.DueDate.UTC()
		changed = true
	}
	if patch.Status != nil && a.Status != status {
		a.Status = status
		changed = true
	}
	return changed
}

func (s *Service) ListActionsForNC(ctx context.Context, ncID string) ([]store.Action, error) {
	if _, err := s.GetNC(ctx, ncID); err != nil {
		return nil, err
	}
	return s.store.ListActionsByNC(ctx, ncID)
}
