package syncrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

const StatusOK = "OK"

type PingResponse struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	AccountID int64 `json:"account_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccountID   int64  `json:"account_id"`
	AccessToken string `json:"access_token"`
}

// CreateRequest creates a record. Repeating it with the same idempotency key
// returns the record created the first time.
type CreateRequest struct {
	EntityType     string          `json:"entity_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Entity         json.RawMessage `json:"entity"`
}

// UpdateRequest replaces the data of record ID.
type UpdateRequest struct {
	EntityType string          `json:"entity_type"`
	ID         int64           `json:"id"`
	Entity     json.RawMessage `json:"entity"`
}

// EntityResponse carries the stored record including its "id".
type EntityResponse struct {
	Entity json.RawMessage `json:"entity"`
}

type ListSinceRequest struct {
	EntityType string `json:"entity_type"`
	Since      string `json:"since,omitempty"`
	UserID     int64  `json:"user_id"`
}

// ListSinceResponse lists records modified after the requested time.
// ServerTime is the checkpoint for the next request.
type ListSinceResponse struct {
	Entities   []json.RawMessage `json:"entities"`
	ServerTime string            `json:"server_time"`
}

// Encode converts v, which must marshal to a JSON object, into a Struct.
//
// Struct numbers are float64: integers above 2^53 lose precision.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return s, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
