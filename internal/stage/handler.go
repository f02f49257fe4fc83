package stage

import (
	"context"

	"dubflow/internal/session"
)

// Handler describes the contract the orchestrator needs from each pipeline
// stage. Prepare validates preconditions and may stage inputs; Execute does
// the work and mutates the session in place; HealthCheck reports whether
// the stage's external dependencies are reachable.
type Handler interface {
	Prepare(context.Context, *session.Session) error
	Execute(context.Context, *session.Session) error
	HealthCheck(context.Context) Health
}
