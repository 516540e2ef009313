package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Synced entity types. Records of other types are rejected.
var EntityTypes = map[string]bool{
	"users":               true,
	"groups":              true,
	"group_members":       true,
	"requisitions":        true,
	"bank_accounts":       true,
	"payments":            true,
	"payment_splits":      true,
	"transactions":        true,
	"user_group_archives": true,
}

const (
	fieldID        = "id"
	fieldClientKey = "client_key"
)

// Record is one stored entity. Body holds the client's JSON object without
// the server-owned "id" and "client_key" fields.
type Record struct {
	ID         int64
	OwnerID    int64
	EntityType string
	ClientKey  string
	Body       json.RawMessage
	ModifiedAt time.Time
}

// ParseBody checks that raw is a JSON object and strips the server-owned
// fields from it.
func ParseBody(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("entity must be a JSON object")
	}
	delete(fields, fieldID)
	delete(fields, fieldClientKey)
	return json.Marshal(fields)
}

// Entity returns the record as sent to clients: Body plus "id" and, when
// set, "client_key".
func (r *Record) Entity() (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(r.Body) > 0 {
		if err := json.Unmarshal(r.Body, &fields); err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
	}
	fields[fieldID] = json.RawMessage(strconv.FormatInt(r.ID, 10))
	if r.ClientKey != "" {
		fields[fieldClientKey] = json.RawMessage(strconv.Quote(r.ClientKey))
	}
	return json.Marshal(fields)
}
