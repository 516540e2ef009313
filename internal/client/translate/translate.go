// Package translate rewrites foreign keys between local-id space and
// server-id space.
//
// Entities in the local store reference each other by local id; on the wire
// they must carry server ids only. ToServer and FromServer never modify their
// input; they return a rewritten copy or an *IDResolutionError naming the
// first reference that could not be translated.
package translate

import (
	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

// ToServer returns a copy of e whose foreign keys hold server ids.
func ToServer[T any, P interface {
	*T
	models.Entity
}](ix Lookup, t models.EntityType, e P) (P, error) {
	out := models.Clone(e)
	for _, ref := range out.Refs() {
		if ref.Optional && *ref.ID == 0 {
			continue
		}
		serverID, ok := ix.ServerID(ref.Target, *ref.ID)
		if !ok {
			return nil, &IDResolutionError{
				EntityType: t,
				Field:      ref.Field,
				Target:     ref.Target,
				ID:         *ref.ID,
				Direction:  DirectionToServer,
			}
		}
		*ref.ID = serverID
	}
	return out, nil
}

// FromServer returns a copy of e whose foreign keys hold local ids.
//
// A server id missing from the index falls back to the value the existing
// local counterpart holds for the same field. existing may be nil.
func FromServer[T any, P interface {
	*T
	models.Entity
}](ix Lookup, t models.EntityType, e P, existing P) (P, error) {
	out := models.Clone(e)

	var fallback []models.Ref
	if existing != nil {
		fallback = existing.Refs()
	}

	for i, ref := range out.Refs() {
		if ref.Optional && *ref.ID == 0 {
			continue
		}
		if localID, ok := ix.LocalID(ref.Target, *ref.ID); ok {
			*ref.ID = localID
			continue
		}
		if i < len(fallback) && *fallback[i].ID != 0 {
			*ref.ID = *fallback[i].ID
			continue
		}
		return nil, &IDResolutionError{
			EntityType: t,
			Field:      ref.Field,
			Target:     ref.Target,
			ID:         *ref.ID,
			Direction:  DirectionFromServer,
		}
	}
	return out, nil
}
