package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/server/models"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/repomanager"
)

// RecordService stores entities on behalf of an authenticated account.
// Every call is scoped to the caller's own records.
type RecordService struct {
	repos repomanager.RepositoryManager
}

func NewRecordService(m repomanager.RepositoryManager) *RecordService {
	return &RecordService{repos: m}
}

func checkType(entityType string) error {
	if !models.EntityTypes[entityType] {
		return fmt.Errorf("%w: unknown entity type %q", common.ErrorValidation, entityType)
	}
	return nil
}

// Create stores entity under the caller's client key. Repeating a key returns
// the record stored the first time.
func (s *RecordService) Create(ctx context.Context, ownerID int64, entityType, clientKey string, entity json.RawMessage) (json.RawMessage, error) {
	if err := checkType(entityType); err != nil {
		return nil, err
	}
	if strings.TrimSpace(clientKey) == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", common.ErrorValidation)
	}
	body, err := models.ParseBody(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	rec, _, err := s.repos.Records(s.repos.Conn()).Create(ctx, &models.Record{
		OwnerID:    ownerID,
		EntityType: entityType,
		ClientKey:  clientKey,
		Body:       body,
	})
	if err != nil {
		return nil, err
	}
	return rec.Entity()
}

// Update replaces the data of the caller's record id. Records of other owners
// are reported as not found.
func (s *RecordService) Update(ctx context.Context, ownerID int64, entityType string, id int64, entity json.RawMessage) (json.RawMessage, error) {
	if err := checkType(entityType); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: id is required", common.ErrorValidation)
	}
	body, err := models.ParseBody(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	rec, err := s.repos.Records(s.repos.Conn()).Update(ctx, &models.Record{
		ID:         id,
		OwnerID:    ownerID,
		EntityType: entityType,
		Body:       body,
	})
	if err != nil {
		return nil, err
	}
	return rec.Entity()
}

// ListSince returns the caller's records of entityType changed after since
// (RFC 3339; empty means everything) and the checkpoint for the next call:
// the newest modification time returned, or since itself when nothing
// changed.
func (s *RecordService) ListSince(ctx context.Context, ownerID int64, entityType, since string, userID int64) ([]json.RawMessage, string, error) {
	if err := checkType(entityType); err != nil {
		return nil, "", err
	}
	if userID != ownerID {
		return nil, "", common.ErrorUnauthorized
	}

	var from time.Time
	if since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			return nil, "", fmt.Errorf("%w: since: %v", common.ErrorValidation, err)
		}
		from = t
	}

	recs, err := s.repos.Records(s.repos.Conn()).ListSince(ctx, ownerID, entityType, from)
	if err != nil {
		return nil, "", err
	}

	out := make([]json.RawMessage, 0, len(recs))
	serverTime := since
	for _, rec := range recs {
		e, err := rec.Entity()
		if err != nil {
			return nil, "", err
		}
		out = append(out, e)
		serverTime = rec.ModifiedAt.UTC().Format(time.RFC3339Nano)
	}
	return out, serverTime, nil
}
