package nc

import (
	"context"
	"fmt"
	"strings"

	"qualitrack/core/store"
)

func (s *Service) CreateNC(ctx context.Context, in NewNC) (*store.NC, error) {
	var errs fieldErrors
	title := strings.TrimSpace(in.Title)
	if title == "" {
		errs.add("title")
	}
	if in.OccurredAt.IsZero() {
		errs.add("occurred_at")
	}
	identifiedBy := strings.TrimSpace(in.IdentifiedBy)
	if identifiedBy == "" {
		errs.add("identified_by")
	}
	area := strings.TrimSpace(in.Area)
	if area == "" {
		errs.add("area")
	}
	classification, ok := ParseClassification(in.Classification)
	if !ok {
		errs.add("classification")
	}
	ncType, ok := ParseType(in.Type)
	if !ok {
		errs.add("type")
	}
	severity, ok := ParseSeverity(in.Severity)
	if !ok {
		errs.add("severity")
	}
	if err := errs.err(); err != nil {
		s.recorder.Failed("create", ErrorKind(err))
		return nil, err
	}

	var created *store.NC
	err := s.run(ctx, "create", func(tx store.Records, u *unit) error {
		id, err := s.id()
		if err != nil {
			return err
		}
		now := s.now()
		seq, err := tx.NextRegSeq(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("next reg seq: %w", err)
		}
		item := &store.NC{
			ID:             id,
			RegNo:          BuildRegNo(s.regFormat, now.Year(), seq),
			Title:          title,
			Description:    strings.TrimSpace(in.Description),
			OccurredAt:     in.OccurredAt.UTC(),
			IdentifiedBy:   identifiedBy,
			Area:           area,
			Classification: classification,
			Type:           ncType,
			Severity:       severity,
			Status:         StatusRegistered,
			CreatedAt:      now,
			UpdatedAt:      now,
			Version:        1,
		}
		if err := tx.InsertNC(ctx, item); err != nil {
			return err
		}
		u.created = append(u.created, severity)
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Printf("nc %s registered (%s)", created.RegNo, created.Severity)
	return created, nil
}

// DeleteNC removes the NC together with every analysis, action and
// verification that references it.
func (s *Service) DeleteNC(ctx context.Context, id string) error {
	return s.run(ctx, "delete", func(tx store.Records, _ *unit) error {
		if _, err := loadNC(ctx, tx, id, func() error { return &NotFoundError{Kind: "nc", ID: id} }); err != nil {
			return err
		}
		if _, err := tx.DeleteVerificationsByNC(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteActionsByNC(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteAnalysesByNC(ctx, id); err != nil {
			return err
		}
		return tx.DeleteNC(ctx, id)
	})
}

func (s *Service) GetNC(ctx context.Context, id string) (*store.NC, error) {
	item, err := s.store.GetNC(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &NotFoundError{Kind: "nc", ID: id}
	}
	return item, nil
}

func (s *Service) ListNCsByStatus(ctx context.Context, status string) ([]store.NC, error) {
	canonical, ok := ParseStatus(status)
	if !ok {
		return nil, &ValidationError{Fields: []string{"status"}}
	}
	return s.store.ListNCs(ctx, store.NCFilter{Status: canonical})
}

// ListNCs passes the filter through after canonicalising status values.
func (s *Service) ListNCs(ctx context.Context, filter store.NCFilter) ([]store.NC, error) {
	if filter.Status != "" {
		canonical, ok := ParseStatus(filter.Status)
		if !ok {
			return nil, &ValidationError{Fields: []string{"status"}}
		}
		filter.Status = canonical
	}
	if len(filter.StatusIn) > 0 {
		in := make([]string, 0, len(filter.StatusIn))
		for _, raw := range filter.StatusIn {
			canonical, ok := ParseStatus(raw)
			if !ok {
				return nil, &ValidationError{Fields: []string{"status_in"}}
			}
			in = append(in, canonical)
		}
		filter.StatusIn = in
	}
	if filter.Severity != "" {
		canonical, ok := ParseSeverity(filter.Severity)
		if !ok {
			return nil, &ValidationError{Fields: []string{"severity"}}
		}
		filter.Severity = canonical
	}
	return s.store.ListNCs(ctx, filter)
}
