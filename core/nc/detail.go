package nc

import (
	"context"

	"qualitrack/core/store"
)

type Completion struct {
	Total     int `json:"total" yaml:"total"`
	Completed int `json:"completed" yaml:"completed"`
	Percent   int `json:"percent" yaml:"percent"`
}

// NCDetail is the read model used for display, printing and export.
type NCDetail struct {
	NC           store.NC            `json:"nc" yaml:"nc"`
	Analysis     *store.Analysis     `json:"analysis" yaml:"analysis"`
	Actions      []store.Action      `json:"actions" yaml:"actions"`
	Verification *store.Verification `json:"verification" yaml:"verification"`
	Completion   Completion          `json:"completion" yaml:"completion"`
}

func completionOf(actions []store.Action) Completion {
	c := Completion{Total: len(actions)}
	for _, a := range actions {
		if a.Status == ActionCompleted {
			c.Completed++
		}
	}
	if c.Total > 0 {
		c.Percent = c.Completed * 100 / c.Total
	}
	return c
}

func (s *Service) GetNCDetail(ctx context.Context, id string) (*NCDetail, error) {
	var detail *NCDetail
	err := s.store.RunInTx(ctx, func(tx store.Records) error {
		item, err := loadNC(ctx, tx, id, func() error { return &NotFoundError{Kind: "nc", ID: id} })
		if err != nil {
			return err
		}
		detail, err = loadDetail(ctx, tx, *item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListNCDetails expands every NC matching filter into its detail view.
func (s *Service) ListNCDetails(ctx context.Context, filter store.NCFilter) ([]NCDetail, error) {
	items, err := s.ListNCs(ctx, filter)
	if err != nil {
		return nil, err
	}
	res := make([]NCDetail, 0, len(items))
	for _, item := range items {
		d, err := loadDetail(ctx, s.store, item)
		if err != nil {
			return nil, err
		}
		res = append(res, *d)
	}
	return res, nil
}

func loadDetail(ctx context.Context, r store.Records, item store.NC) (*NCDetail, error) {
	analysis, err := r.GetAnalysisByNC(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	actions, err := r.ListActionsByNC(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []store.Action{}
	}
	verification, err := r.GetVerificationByNC(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return &NCDetail{
		NC:           item,
		Analysis:     analysis,
		Actions:      actions,
		Verification: verification,
		Completion:   completionOf(actions),
	}, nil
}
