package syncer

import (
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

// Failure is one entity that could not be pushed or applied.
type Failure struct {
	LocalID  int64
	ServerID int64
	Err      error
}

// Result summarises one Manager pass.
type Result struct {
	EntityType models.EntityType

	// push
	Pushed   int
	Created  int
	Updated  int
	Deferred int
	Failed   int

	// pull
	Pulled       int
	Inserted     int
	ServerWins   int
	LocalWins    int
	PullDeferred int
	ApplyFailed  int

	Checkpoint         string
	CheckpointAdvanced bool

	Failures []Failure
}

func (r Result) String() string {
	return fmt.Sprintf("%s: pushed %d (created %d, updated %d, deferred %d, failed %d); pulled %d (inserted %d, server wins %d, local wins %d, deferred %d, failed %d)",
		r.EntityType, r.Pushed, r.Created, r.Updated, r.Deferred, r.Failed,
		r.Pulled, r.Inserted, r.ServerWins, r.LocalWins, r.PullDeferred, r.ApplyFailed)
}

// Outcome of applying one server entity.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeServerWins
	OutcomeLocalWins
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeServerWins:
		return "server_wins"
	case OutcomeLocalWins:
		return "local_wins"
	default:
		return "unknown"
	}
}
