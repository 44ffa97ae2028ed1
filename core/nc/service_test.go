package nc

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qualitrack/config"
	"qualitrack/core/store"
	"qualitrack/core/utils"

	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func seqIDs() IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%04d", n), nil
	}
}

type fakeRecorder struct {
	created     []string
	transitions []string
	failures    []string
}

func (r *fakeRecorder) Created(severity string) { r.created = append(r.created, severity) }
func (r *fakeRecorder) Transition(from, to string) {
	r.transitions = append(r.transitions, from+"->"+to)
}
func (r *fakeRecorder) Failed(op, kind string) { r.failures = append(r.failures, op+":"+kind) }

func newTestService(t *testing.T, rs store.RecordStore, opts ...Option) (*Service, *fakeRecorder) {
	t.Helper()
	if rs == nil {
		rs = store.NewMemoryStore()
	}
	rec := &fakeRecorder{}
	clk := &stepClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	base := []Option{WithClock(clk.Now), WithIDGenerator(seqIDs()), WithRecorder(rec)}
	return NewService(rs, append(base, opts...)...), rec
}

func newSQLiteRecords(t *testing.T) store.RecordStore {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "nc.db")}
	db, err := store.NewDB(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(context.Background(), db, utils.NewLogger()))
	return store.NewNCStore(db, store.DialectFor(cfg))
}

func validNC() NewNC {
	return NewNC{
		Title:          "Toner cartridge leaking",
		Description:    "Leak found on refilled batch",
		OccurredAt:     time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC),
		IdentifiedBy:   "Ana",
		Area:           "Recycling",
		Classification: "process",
		Type:           "non_conformant",
		Severity:       "medium",
	}
}

func validActions(n int) []NewAction {
	out := make([]NewAction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewAction{
			Description: fmt.Sprintf("Corrective step %d", i+1),
			Responsible: "Caio",
			DueDate:     time.Date(2025, 3, 10+i, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func createPlanned(t *testing.T, svc *Service, actions int) (*store.NC, []store.Action) {
	t.Helper()
	ctx := context.Background()
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)
	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"seal worn"}, Responsible: "Bia"})
	require.NoError(t, err)
	var added []store.Action
	if actions > 0 {
		added, err = svc.AddActions(ctx, item.ID, validActions(actions))
		require.NoError(t, err)
	}
	return item, added
}

func statusOf(t *testing.T, svc *Service, id string) string {
	t.Helper()
	item, err := svc.GetNC(context.Background(), id)
	require.NoError(t, err)
	return item.Status
}

func TestCreateNCAssignsRegisteredAndUniqueRegNo(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		item, err := svc.CreateNC(ctx, validNC())
		require.NoError(t, err)
		require.Equal(t, StatusRegistered, item.Status)
		require.False(t, seen[item.RegNo], "duplicate reg no %s", item.RegNo)
		seen[item.RegNo] = true
		require.False(t, item.UpdatedAt.IsZero())
	}
	require.True(t, seen["NC-2025-0001"])
	require.True(t, seen["NC-2025-0003"])
	require.Equal(t, []string{"medium", "medium", "medium"}, rec.created)
}

func TestCreateNCValidationListsEveryField(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.CreateNC(context.Background(), NewNC{Classification: "weird"})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ElementsMatch(t, []string{"title", "occurred_at", "identified_by", "area", "classification", "type", "severity"}, verr.Fields)

	items, err := svc.ListNCs(context.Background(), store.NCFilter{})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestAttachAnalysisMovesToActionPlanning(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)

	an, err := svc.AttachAnalysis(ctx, item.ID, NewAnalysis{
		Whys:        []string{"seal worn", "", "no inspection", "", "no maintenance plan"},
		Responsible: "Bia",
	})
	require.NoError(t, err)
	require.Equal(t, "no maintenance plan", an.RootCause())
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

	got, err := svc.GetAnalysisForNC(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, an.ID, got.ID)
	require.Equal(t, []string{"seal worn", "", "no inspection", "", "no maintenance plan"}, got.Whys)
	require.Equal(t, []string{"registered->action_planning"}, rec.transitions)
}

func TestAttachAnalysisValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)

	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"", "second"}, Responsible: "Bia"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"1", "2", "3", "4", "5", "6"}, Responsible: "Bia"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"only"}})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AttachAnalysis(ctx, "missing", NewAnalysis{Whys: []string{"only"}, Responsible: "Bia"})
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, StatusRegistered, statusOf(t, svc, item.ID))
	_, err = svc.GetAnalysisForNC(ctx, item.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAttachAnalysisRefreshesUpdatedAt(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)
	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"a"}, Responsible: "Bia"})
	require.NoError(t, err)
	first, err := svc.GetNC(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, first.UpdatedAt.After(item.UpdatedAt))

	// Second analysis is accepted without guards; status is unchanged but
	// the NC is still touched.
	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"b"}, Responsible: "Bia"})
	require.NoError(t, err)
	second, err := svc.GetNC(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActionPlanning, second.Status)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	latest, err := svc.GetAnalysisForNC(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, latest.Whys)
}

func TestCompletingLastActionMovesToVerifying(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 3)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

	// Out of order on purpose.
	for _, idx := range []int{2, 0} {
		_, err := svc.UpdateActionStatus(ctx, actions[idx].ID, ActionCompleted)
		require.NoError(t, err)
		require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))
	}
	_, err := svc.UpdateActionStatus(ctx, actions[1].ID, ActionInProgress)
	require.NoError(t, err)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

	_, err = svc.UpdateActionStatus(ctx, actions[1].ID, ActionCompleted)
	require.NoError(t, err)
	require.Equal(t, StatusVerifying, statusOf(t, svc, item.ID))

	before, err := svc.GetNC(ctx, item.ID)
	require.NoError(t, err)
	transitions := len(rec.transitions)

	again, err := svc.UpdateActionStatus(ctx, actions[1].ID, ActionCompleted)
	require.NoError(t, err)
	require.Equal(t, ActionCompleted, again.Status)
	after, err := svc.GetNC(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVerifying, after.Status)
	require.Equal(t, before.Version, after.Version)
	require.Equal(t, before.UpdatedAt, after.UpdatedAt)
	require.Len(t, rec.transitions, transitions)
}

func TestPartialCompletionStaysInPlanning(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 2)
	_, err := svc.UpdateActionStatus(ctx, actions[0].ID, "completed")
	require.NoError(t, err)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

	outstanding, err := svc.ListOutstandingActions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	require.Equal(t, actions[1].ID, outstanding[0].ID)
}

func TestReopeningActionReturnsToPlanning(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 1)
	_, err := svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
	require.NoError(t, err)
	require.Equal(t, StatusVerifying, statusOf(t, svc, item.ID))

	_, err = svc.UpdateActionStatus(ctx, actions[0].ID, ActionPending)
	require.NoError(t, err)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))
	require.Contains(t, rec.transitions, "verifying->action_planning")
}

func TestDependentChangeBumpsVersion(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 2)
	before, err := svc.GetNC(ctx, item.ID)
	require.NoError(t, err)
	transitions := len(rec.transitions)

	_, err = svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
	require.NoError(t, err)
	after, err := svc.GetNC(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActionPlanning, after.Status)
	require.Equal(t, before.Version+1, after.Version)
	require.Equal(t, before.UpdatedAt, after.UpdatedAt)
	require.Len(t, rec.transitions, transitions)
}

// staleNCReads hands out NCs one version behind the stored row, as a
// concurrent writer that committed first would leave them.
type staleNCReads struct {
	store.RecordStore
}

func (s staleNCReads) RunInTx(ctx context.Context, fn func(tx store.Records) error) error {
	return s.RecordStore.RunInTx(ctx, func(tx store.Records) error {
		return fn(staleTx{tx})
	})
}

type staleTx struct {
	store.Records
}

func (tx staleTx) GetNC(ctx context.Context, id string) (*store.NC, error) {
	item, err := tx.Records.GetNC(ctx, id)
	if item != nil {
		item.Version--
	}
	return item, err
}

func TestStaleRecomputeIsRejected(t *testing.T) {
	for name, newRecords := range map[string]func(t *testing.T) store.RecordStore{
		"memory": func(*testing.T) store.RecordStore { return store.NewMemoryStore() },
		"sqlite": newSQLiteRecords,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			records := newRecords(t)
			svc, _ := newTestService(t, records)
			item, actions := createPlanned(t, svc, 2)

			stale, rec := newTestService(t, staleNCReads{records})
			_, err := stale.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
			require.ErrorIs(t, err, store.ErrConflict)
			require.Equal(t, "conflict", ErrorKind(err))
			require.Contains(t, rec.failures, OpUpdateAction+":conflict")

			listed, err := svc.ListActionsForNC(ctx, item.ID)
			require.NoError(t, err)
			for _, a := range listed {
				require.Equal(t, ActionPending, a.Status, "action %s should be rolled back", a.ID)
			}
			require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))
		})
	}
}

func TestZeroActionsNeverReachVerifying(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, _ := createPlanned(t, svc, 0)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

	_, err := svc.AddActions(ctx, item.ID, nil)
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

	detail, err := svc.GetNCDetail(ctx, item.ID)
	require.NoError(t, err)
	require.Empty(t, detail.Actions)
	require.Equal(t, 0, detail.Completion.Percent)
}

func TestAddActionsIsAllOrNothing(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	item, _ := createPlanned(t, svc, 0)
	batch := validActions(2)
	batch[1].Responsible = " "
	_, err := svc.AddActions(ctx, item.ID, batch)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"actions[1].responsible"}, verr.Fields)

	actions, err := svc.ListActionsForNC(ctx, item.ID)
	require.NoError(t, err)
	require.Empty(t, actions)
	require.Contains(t, rec.failures, "add_actions:validation")
}

func TestAddActionsDefaultsAndExplicitStatus(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, _ := createPlanned(t, svc, 0)
	batch := validActions(2)
	batch[1].Status = "em andamento"
	batch[1].Resources = "new seals"
	added, err := svc.AddActions(ctx, item.ID, batch)
	require.NoError(t, err)
	require.Equal(t, ActionPending, added[0].Status)
	require.Equal(t, ActionInProgress, added[1].Status)
	require.Equal(t, "new seals", added[1].Resources)
}

func TestAllCompletedBatchGoesStraightToVerifying(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, _ := createPlanned(t, svc, 0)
	batch := validActions(1)
	batch[0].Status = ActionCompleted
	_, err := svc.AddActions(ctx, item.ID, batch)
	require.NoError(t, err)
	require.Equal(t, StatusVerifying, statusOf(t, svc, item.ID))
}

func TestUpdateActionPatch(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 1)
	evidence := "https://files.example/photo.jpg"
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	status := "concluída"
	updated, err := svc.UpdateAction(ctx, actions[0].ID, ActionPatch{Evidence: &evidence, DueDate: &due, Status: &status})
	require.NoError(t, err)
	require.Equal(t, evidence, updated.Evidence)
	require.True(t, due.Equal(updated.DueDate))
	require.Equal(t, StatusVerifying, statusOf(t, svc, item.ID))

	blank := ""
	_, err = svc.UpdateAction(ctx, actions[0].ID, ActionPatch{Responsible: &blank})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateActionErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, err := svc.UpdateActionStatus(ctx, "ghost", ActionCompleted)
	require.ErrorIs(t, err, ErrNotFound)

	_, actions := createPlanned(t, svc, 1)
	_, err = svc.UpdateActionStatus(ctx, actions[0].ID, "done-ish")
	require.ErrorIs(t, err, ErrValidation)
}

func TestReferentialIntegrity(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, err := svc.AddActions(ctx, "missing", validActions(1))
	require.ErrorIs(t, err, ErrReferential)
	_, err = svc.AttachVerification(ctx, "missing", NewVerification{VerifiedAt: time.Now(), Responsible: "Duda", FinalStatus: FinalClosed})
	require.ErrorIs(t, err, ErrReferential)
}

func TestAttachVerificationCloses(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 1)
	_, err := svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
	require.NoError(t, err)

	v, err := svc.AttachVerification(ctx, item.ID, NewVerification{
		VerifiedAt:  time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Responsible: "Duda",
		Resolved:    true,
		FinalStatus: FinalClosed,
	})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, statusOf(t, svc, item.ID))
	got, err := svc.GetVerificationForNC(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, v.ID, got.ID)
}

// A reopened verification still closes the NC; there is no transition back
// to an earlier stage.
func TestReopenedVerificationStillCloses(t *testing.T) {
	svc, rec := newTestService(t, nil)
	ctx := context.Background()
	item, actions := createPlanned(t, svc, 1)
	_, err := svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
	require.NoError(t, err)

	v, err := svc.AttachVerification(ctx, item.ID, NewVerification{
		VerifiedAt:  time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Responsible: "Duda",
		Resolved:    false,
		FinalStatus: "reaberto",
	})
	require.NoError(t, err)
	require.Equal(t, FinalReopened, v.FinalStatus)
	require.Equal(t, StatusClosed, statusOf(t, svc, item.ID))
	require.Equal(t, "verifying->closed", rec.transitions[len(rec.transitions)-1])
}

func TestVerificationValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, _ := createPlanned(t, svc, 1)
	_, err := svc.AttachVerification(ctx, item.ID, NewVerification{FinalStatus: "maybe"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ElementsMatch(t, []string{"responsible", "verified_at", "final_status"}, verr.Fields)
	require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))
}

func TestDeleteNCCascades(t *testing.T) {
	for name, rs := range map[string]func(t *testing.T) store.RecordStore{
		"memory": func(*testing.T) store.RecordStore { return store.NewMemoryStore() },
		"sqlite": newSQLiteRecords,
	} {
		t.Run(name, func(t *testing.T) {
			records := rs(t)
			svc, _ := newTestService(t, records)
			ctx := context.Background()
			item, actions := createPlanned(t, svc, 2)
			for _, a := range actions {
				_, err := svc.UpdateActionStatus(ctx, a.ID, ActionCompleted)
				require.NoError(t, err)
			}
			_, err := svc.AttachVerification(ctx, item.ID, NewVerification{VerifiedAt: time.Now(), Responsible: "Duda", FinalStatus: FinalClosed})
			require.NoError(t, err)

			require.NoError(t, svc.DeleteNC(ctx, item.ID))

			got, err := records.GetNC(ctx, item.ID)
			require.NoError(t, err)
			require.Nil(t, got)
			an, err := records.GetAnalysisByNC(ctx, item.ID)
			require.NoError(t, err)
			require.Nil(t, an)
			left, err := records.ListActionsByNC(ctx, item.ID)
			require.NoError(t, err)
			require.Empty(t, left)
			v, err := records.GetVerificationByNC(ctx, item.ID)
			require.NoError(t, err)
			require.Nil(t, v)

			require.ErrorIs(t, svc.DeleteNC(ctx, item.ID), ErrNotFound)
		})
	}
}

func TestDeleteNCWithoutDependents(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)
	require.NoError(t, svc.DeleteNC(ctx, item.ID))
}

func TestListNCsByStatus(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	planned, _ := createPlanned(t, svc, 1)
	fresh, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)

	registered, err := svc.ListNCsByStatus(ctx, "registrada")
	require.NoError(t, err)
	require.Len(t, registered, 1)
	require.Equal(t, fresh.ID, registered[0].ID)

	planning, err := svc.ListNCsByStatus(ctx, StatusActionPlanning)
	require.NoError(t, err)
	require.Len(t, planning, 1)
	require.Equal(t, planned.ID, planning[0].ID)

	_, err = svc.ListNCsByStatus(ctx, "archived")
	require.ErrorIs(t, err, ErrValidation)
}

func TestTransitionGuards(t *testing.T) {
	svc, _ := newTestService(t, nil, WithTransitionGuards(true))
	ctx := context.Background()
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)

	_, err = svc.AddActions(ctx, item.ID, validActions(1))
	var tv *TransitionViolation
	require.ErrorAs(t, err, &tv)
	require.Equal(t, StatusRegistered, tv.Status)
	require.Equal(t, OpAddActions, tv.Operation)

	_, err = svc.AttachVerification(ctx, item.ID, NewVerification{VerifiedAt: time.Now(), Responsible: "Duda", FinalStatus: FinalClosed})
	require.ErrorIs(t, err, ErrTransition)
	require.NotErrorIs(t, err, ErrValidation)

	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"a"}, Responsible: "Bia"})
	require.NoError(t, err)
	_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"b"}, Responsible: "Bia"})
	require.ErrorIs(t, err, ErrTransition)

	actions, err := svc.AddActions(ctx, item.ID, validActions(1))
	require.NoError(t, err)
	_, err = svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
	require.NoError(t, err)
	_, err = svc.AttachVerification(ctx, item.ID, NewVerification{VerifiedAt: time.Now(), Responsible: "Duda", FinalStatus: FinalClosed})
	require.NoError(t, err)

	_, err = svc.UpdateActionStatus(ctx, actions[0].ID, ActionPending)
	require.ErrorIs(t, err, ErrTransition)
	require.Equal(t, StatusClosed, statusOf(t, svc, item.ID))
}

func TestPermissiveModeAllowsSkippingStages(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	require.False(t, svc.GuardsEnabled())
	item, err := svc.CreateNC(ctx, validNC())
	require.NoError(t, err)
	_, err = svc.AttachVerification(ctx, item.ID, NewVerification{VerifiedAt: time.Now(), Responsible: "Duda", FinalStatus: FinalClosed})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, statusOf(t, svc, item.ID))
}

func TestEndToEndScenario(t *testing.T) {
	for name, rs := range map[string]func(t *testing.T) store.RecordStore{
		"memory": func(*testing.T) store.RecordStore { return store.NewMemoryStore() },
		"sqlite": newSQLiteRecords,
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestService(t, rs(t))
			ctx := context.Background()
			in := validNC()
			in.Severity = "critica"
			in.Classification = "processo"
			item, err := svc.CreateNC(ctx, in)
			require.NoError(t, err)
			require.Equal(t, "critical", item.Severity)
			require.Equal(t, "process", item.Classification)
			require.Equal(t, StatusRegistered, item.Status)

			_, err = svc.AttachAnalysis(ctx, item.ID, NewAnalysis{Whys: []string{"Seal dried out", "", "", "", ""}, Responsible: "Bia"})
			require.NoError(t, err)
			require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

			actions, err := svc.AddActions(ctx, item.ID, validActions(2))
			require.NoError(t, err)
			require.Len(t, actions, 2)
			for _, a := range actions {
				require.Equal(t, ActionPending, a.Status)
			}
			require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))

			_, err = svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
			require.NoError(t, err)
			require.Equal(t, StatusActionPlanning, statusOf(t, svc, item.ID))
			_, err = svc.UpdateActionStatus(ctx, actions[1].ID, ActionCompleted)
			require.NoError(t, err)
			require.Equal(t, StatusVerifying, statusOf(t, svc, item.ID))

			_, err = svc.AttachVerification(ctx, item.ID, NewVerification{
				VerifiedAt:  time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC),
				Responsible: "Duda",
				Resolved:    true,
				FinalStatus: "encerrado",
			})
			require.NoError(t, err)
			require.Equal(t, StatusClosed, statusOf(t, svc, item.ID))

			detail, err := svc.GetNCDetail(ctx, item.ID)
			require.NoError(t, err)
			require.Equal(t, StatusClosed, detail.NC.Status)
			require.Equal(t, []string{"Seal dried out"}, detail.Analysis.Whys)
			require.Equal(t, "Seal dried out", detail.Analysis.RootCause())
			require.Equal(t, Completion{Total: 2, Completed: 2, Percent: 100}, detail.Completion)
			require.Equal(t, FinalClosed, detail.Verification.FinalStatus)
		})
	}
}

func TestListNCDetails(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, actions := createPlanned(t, svc, 2)
	_, err := svc.UpdateActionStatus(ctx, actions[0].ID, ActionCompleted)
	require.NoError(t, err)
	_, err = svc.CreateNC(ctx, validNC())
	require.NoError(t, err)

	details, err := svc.ListNCDetails(ctx, store.NCFilter{StatusIn: []string{"plano_de_acao"}})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, Completion{Total: 2, Completed: 1, Percent: 50}, details[0].Completion)
	require.Nil(t, details[0].Verification)
}
