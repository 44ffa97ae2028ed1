package routegroups

import (
	"qualitrack/api/handlers"
	"qualitrack/core/authz"

	"github.com/go-chi/chi/v5"
)

func RegisterNC(apiRouter chi.Router, g Guards, nc *handlers.NCHandler) {
	apiRouter.Route("/nc", func(ncRouter chi.Router) {
		ncRouter.MethodFunc("GET", "/", g.SessionPerm(authz.PermRead, nc.List))
		ncRouter.MethodFunc("POST", "/", g.SessionPerm(authz.PermWrite, nc.Create))
		ncRouter.MethodFunc("GET", "/export", g.SessionPerm(authz.PermRead, nc.Export))
		ncRouter.MethodFunc("GET", "/{id}", g.SessionPerm(authz.PermRead, nc.Get))
		ncRouter.MethodFunc("DELETE", "/{id}", g.SessionPerm(authz.PermDelete, nc.Delete))
		ncRouter.MethodFunc("POST", "/{id}/analysis", g.SessionPerm(authz.PermWrite, nc.AttachAnalysis))
		ncRouter.MethodFunc("GET", "/{id}/analysis", g.SessionPerm(authz.PermRead, nc.GetAnalysis))
		ncRouter.MethodFunc("POST", "/{id}/actions", g.SessionPerm(authz.PermWrite, nc.AddActions))
		ncRouter.MethodFunc("GET", "/{id}/actions", g.SessionPerm(authz.PermRead, nc.ListActions))
		ncRouter.MethodFunc("GET", "/{id}/actions/outstanding", g.SessionPerm(authz.PermRead, nc.ListOutstandingActions))
		ncRouter.MethodFunc("POST", "/{id}/verification", g.SessionPerm(authz.PermWrite, nc.AttachVerification))
		ncRouter.MethodFunc("GET", "/{id}/verification", g.SessionPerm(authz.PermRead, nc.GetVerification))
	})

	apiRouter.Route("/actions", func(actionsRouter chi.Router) {
		actionsRouter.MethodFunc("PATCH", "/{action_id}", g.SessionPerm(authz.PermWrite, nc.UpdateAction))
		actionsRouter.MethodFunc("PUT", "/{action_id}/status", g.SessionPerm(authz.PermWrite, nc.UpdateActionStatus))
	})
}
