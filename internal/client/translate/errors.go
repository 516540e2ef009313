package translate

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

// Direction says which way a translation was going.
type Direction string

const (
	DirectionToServer   Direction = "to_server"
	DirectionFromServer Direction = "from_server"
)

// ErrUnresolved matches every *IDResolutionError with errors.Is.
var ErrUnresolved = errors.New("unresolved reference")

// IDResolutionError names the foreign key that could not be translated.
// The entity is not broken; its parent just has not been synchronized yet.
type IDResolutionError struct {
	EntityType models.EntityType
	Field      string
	Target     models.EntityType
	ID         int64
	Direction  Direction
}

func (e *IDResolutionError) Error() string {
	return fmt.Sprintf("%s: %s.%s -> %s id %d (%s)", ErrUnresolved, e.EntityType, e.Field, e.Target, e.ID, e.Direction)
}

func (e *IDResolutionError) Is(target error) bool {
	return target == ErrUnresolved
}
