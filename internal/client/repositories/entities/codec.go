package entities

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

// Encode turns e into a Record of type t.
func Encode(t models.EntityType, e models.Entity) (Record, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s: %w", t, err)
	}
	meta := e.Meta()
	return Record{
		Type:      t,
		LocalID:   meta.LocalID,
		ServerID:  meta.ServerID,
		UpdatedAt: meta.UpdatedAt,
		Status:    meta.SyncStatus,
		Payload:   payload,
	}, nil
}

// Decode rebuilds the entity stored in rec.
func Decode[T any, P interface {
	*T
	models.Entity
}](rec Record) (P, error) {
	var v T
	p := P(&v)
	if err := json.Unmarshal(rec.Payload, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s local_id=%d: %w", rec.Type, rec.LocalID, err)
	}
	meta := p.Meta()
	meta.LocalID = rec.LocalID
	meta.ServerID = rec.ServerID
	meta.UpdatedAt = rec.UpdatedAt
	meta.SyncStatus = rec.Status
	return p, nil
}

// DecodeAll decodes recs in order.
func DecodeAll[T any, P interface {
	*T
	models.Entity
}](recs []Record) ([]P, error) {
	out := make([]P, 0, len(recs))
	for _, rec := range recs {
		p, err := Decode[T, P](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
