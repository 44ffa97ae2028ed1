package nc

import "qualitrack/core/store"

const (
	OpAttachAnalysis     = "attach_analysis"
	OpAddActions         = "add_actions"
	OpUpdateAction       = "update_action"
	OpAttachVerification = "attach_verification"
)

// RecomputeStatus derives an NC status from its dependents. The highest
// completed stage wins. A verification closes the NC whatever its final
// status says; a reopened verification does not move it back.
func RecomputeStatus(analysis *store.Analysis, actions []store.Action, verification *store.Verification) string {
	if verification != nil {
		return StatusClosed
	}
	if allCompleted(actions) {
		return StatusVerifying
	}
	if analysis != nil {
		return StatusActionPlanning
	}
	return StatusRegistered
}

// allCompleted is false for an empty slice.
func allCompleted(actions []store.Action) bool {
	if len(actions) == 0 {
		return false
	}
	for _, a := range actions {
		if a.Status != ActionCompleted {
			return false
		}
	}
	return true
}

var allowedFrom = map[string]map[string]struct{}{
	OpAttachAnalysis:     {StatusRegistered: {}},
	OpAddActions:         {StatusActionPlanning: {}},
	OpUpdateAction:       {StatusActionPlanning: {}, StatusVerifying: {}},
	OpAttachVerification: {StatusVerifying: {}},
}

// CheckTransition reports whether op may run against an NC in current.
func CheckTransition(current, op string) bool {
	allowed, ok := allowedFrom[op]
	if !ok {
		return false
	}
	_, ok = allowed[current]
	return ok
}
