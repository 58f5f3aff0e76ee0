// Package quartermaster is the failure fan-out service. It is a stub today:
// it drains its queue so failure events have somewhere to go. Its route table
// is empty, so every delivery is logged as unroutable and acknowledged by the
// dispatch loop; routes will grow here once failure events carry actionable
// payloads.
package quartermaster

import (
	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/core/router"
)

// Deps is the dependency aggregate passed to future quartermaster handlers.
type Deps struct {
	Cfg *config.Config
	Log zerolog.Logger
}

// Routes declares the quartermaster's (currently empty) route table.
func Routes(rt *router.Router[*Deps]) error {
	return router.RegisterGuards(rt)
}
