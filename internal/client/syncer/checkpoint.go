package syncer

import (
	"context"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/metadata"
)

// CheckpointPrefix prefixes the metadata keys holding pull checkpoints.
const CheckpointPrefix = "checkpoint:"

// CheckpointStore persists, per entity type, the server time up to which
// changes have been pulled. An empty checkpoint means "from the beginning".
type CheckpointStore interface {
	Get(ctx context.Context, t models.EntityType) (string, error)
	Set(ctx context.Context, t models.EntityType, ts string) error
}

type MetadataCheckpoints struct {
	repo metadata.Repository
}

func NewMetadataCheckpoints(repo metadata.Repository) *MetadataCheckpoints {
	return &MetadataCheckpoints{repo: repo}
}

func (c *MetadataCheckpoints) Get(ctx context.Context, t models.EntityType) (string, error) {
	v, err := c.repo.Get(ctx, CheckpointPrefix+string(t))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (c *MetadataCheckpoints) Set(ctx context.Context, t models.EntityType, ts string) error {
	return c.repo.Set(ctx, CheckpointPrefix+string(t), []byte(ts))
}

// All returns every stored checkpoint keyed by entity type.
func (c *MetadataCheckpoints) All(ctx context.Context) (map[models.EntityType]string, error) {
	raw, err := c.repo.ListPrefix(ctx, CheckpointPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[models.EntityType]string, len(raw))
	for k, v := range raw {
		out[models.EntityType(k[len(CheckpointPrefix):])] = string(v)
	}
	return out, nil
}
