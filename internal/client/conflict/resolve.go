// Package conflict decides which of two versions of the same record wins.
//
// The newer updated_at wins. A tie, or a timestamp that cannot be parsed,
// goes to the side named by defaultToServer. Flags implementing FlagMerger
// are OR-ed from both sides whatever the outcome.
package conflict

import (
	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

type Winner int

const (
	ServerWins Winner = iota
	LocalWins
)

func (w Winner) String() string {
	if w == LocalWins {
		return "local_wins"
	}
	return "server_wins"
}

// Resolution carries the winning version.
type Resolution[P any] struct {
	Winner Winner
	Entity P
}

// FlagMerger is implemented by entities holding conditions detected on the
// device that the server may not know about yet.
type FlagMerger[P any] interface {
	MergeFlags(other P)
}

// Resolve compares local and server. Neither input is modified; the winner
// is returned as a copy.
func Resolve[T any, P interface {
	*T
	models.Entity
}](local, server P, defaultToServer bool) Resolution[P] {
	winner := decide(local.Meta().UpdatedAt, server.Meta().UpdatedAt, defaultToServer)

	won, lost := server, local
	if winner == LocalWins {
		won, lost = local, server
	}

	out := models.Clone(won)
	if m, ok := any(out).(FlagMerger[P]); ok {
		m.MergeFlags(lost)
	}
	return Resolution[P]{Winner: winner, Entity: out}
}

func decide(localTS, serverTS string, defaultToServer bool) Winner {
	fallback := LocalWins
	if defaultToServer {
		fallback = ServerWins
	}

	l, err := ParseTimestamp(localTS)
	if err != nil {
		return fallback
	}
	s, err := ParseTimestamp(serverTS)
	if err != nil {
		return fallback
	}

	switch {
	case s.After(l):
		return ServerWins
	case l.After(s):
		return LocalWins
	default:
		return fallback
	}
}
