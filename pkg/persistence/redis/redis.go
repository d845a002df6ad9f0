// Package redis provides Redis persistence implementation for workflow definitions.
//
// Each version is a JSON string under stageflow:definition:<id>. A group keeps its
// version ids in the sorted set stageflow:group:<groupID> scored by version number,
// and the id of its published version under stageflow:group:<groupID>:published.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "stageflow:"
	maxRetries = 10
)

// ErrConcurrentWrite is returned when a group kept changing during every retry.
var ErrConcurrentWrite = errors.New("definition group modified concurrently")

// Persistence implements the persistence layer for Redis.
type Persistence struct {
	client         *redis.Client
	logger         *slog.Logger
	definitionRepo *DefinitionRepository
}

// NewPersistence connects to the Redis server at redisURL (redis://[user:pass@]host:port/db).
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{
		client:         client,
		logger:         logger,
		definitionRepo: NewDefinitionRepository(client, logger),
	}, nil
}

// Close closes the Redis client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the Redis server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// DefinitionRepository returns the definition repository.
func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitionRepo
}

// reader is the command subset shared by the client and a watched transaction.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
}

// DefinitionRepository stores definition versions in Redis.
type DefinitionRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(client redis.UniversalClient, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{client: client, logger: logger}
}

func definitionKey(id string) string {
	return keyPrefix + "definition:" + id
}

func groupKey(groupID string) string {
	return keyPrefix + "group:" + groupID
}

func publishedKey(groupID string) string {
	return groupKey(groupID) + ":published"
}

// SaveDraft stores the definition as a new draft version of its group.
func (r *DefinitionRepository) SaveDraft(ctx context.Context, definition *models.Definition) (persistence.DraftID, error) {
	version, err := r.store(ctx, definition, models.DefinitionStatusDraft)
	if err != nil {
		return "", err
	}

	return persistence.DraftID(version.ID), nil
}

// Publish stores the definition as the published version of its group and marks
// the previously published version unpublished.
func (r *DefinitionRepository) Publish(ctx context.Context, definition *models.Definition) (persistence.PublishedID, error) {
	version, err := r.store(ctx, definition, models.DefinitionStatusPublished)
	if err != nil {
		return "", err
	}

	return persistence.PublishedID(version.ID), nil
}

func (r *DefinitionRepository) store(ctx context.Context, definition *models.Definition, status models.DefinitionStatus) (*models.Definition, error) {
	if definition == nil {
		return nil, persistence.ErrDefinitionNil
	}

	grouped := definition.Clone()
	if grouped.GroupID == "" {
		grouped.GroupID = uuid.New().String()
	}

	var version *models.Definition

	// Optimistic transaction: the group keys are watched, so a concurrent writer
	// makes EXEC fail with redis.TxFailedErr and the whole attempt is retried.
	txf := func(tx *redis.Tx) error {
		latest, err := r.latestVersion(ctx, tx, grouped.GroupID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		version, err = persistence.NewVersion(grouped, status, latest, now)
		if err != nil {
			return err
		}

		var previous *models.Definition

		if status == models.DefinitionStatusPublished {
			previous, err = r.currentPublished(ctx, tx, grouped.GroupID)
			if err != nil {
				return err
			}

			if previous != nil {
				previous.Status = models.DefinitionStatusUnpublished
				previous.UpdatedAt = now
			}
		}

		data, err := json.Marshal(version)
		if err != nil {
			return fmt.Errorf("failed to marshal definition %s: %w", version.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, definitionKey(version.ID), data, 0)
			pipe.ZAdd(ctx, groupKey(version.GroupID), redis.Z{Score: float64(version.Version), Member: version.ID})

			if status != models.DefinitionStatusPublished {
				return nil
			}

			if previous != nil {
				previousData, err := json.Marshal(previous)
				if err != nil {
					return fmt.Errorf("failed to marshal definition %s: %w", previous.ID, err)
				}

				pipe.Set(ctx, definitionKey(previous.ID), previousData, 0)
			}

			pipe.Set(ctx, publishedKey(version.GroupID), version.ID, 0)

			return nil
		})

		return err
	}

	keys := []string{groupKey(grouped.GroupID), publishedKey(grouped.GroupID)}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, keys...)
		if err == nil {
			return version, nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			r.logger.DebugContext(ctx, "retrying concurrent definition write", "group_id", grouped.GroupID, "attempt", attempt+1)

			continue
		}

		return nil, fmt.Errorf("failed to store definition: %w", err)
	}

	return nil, persistence.NewGroupError("store", grouped.GroupID, ErrConcurrentWrite)
}

func (r *DefinitionRepository) latestVersion(ctx context.Context, cmd reader, groupID string) (int, error) {
	latest, err := cmd.ZRevRangeWithScores(ctx, groupKey(groupID), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to query latest version: %w", err)
	}

	if len(latest) == 0 {
		return 0, nil
	}

	return int(latest[0].Score), nil
}

func (r *DefinitionRepository) currentPublished(ctx context.Context, cmd reader, groupID string) (*models.Definition, error) {
	id, err := cmd.Get(ctx, publishedKey(groupID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read published version: %w", err)
	}

	definition, err := r.load(ctx, cmd, id)
	if persistence.IsDefinitionNotFound(err) {
		return nil, nil
	}

	return definition, err
}

func (r *DefinitionRepository) load(ctx context.Context, cmd reader, id string) (*models.Definition, error) {
	data, err := cmd.Get(ctx, definitionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch definition %s: %w", id, err)
	}

	var definition models.Definition

	err = json.Unmarshal(data, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", id, err)
	}

	return &definition, nil
}

// GetByID retrieves a definition version by its ID.
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.Definition, error) {
	return r.load(ctx, r.client, id)
}

// ListByGroup returns every version of a group ordered by version number.
func (r *DefinitionRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Definition, error) {
	ids, err := r.client.ZRange(ctx, groupKey(groupID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	definitions := make([]*models.Definition, 0, len(ids))

	for _, id := range ids {
		definition, err := r.load(ctx, r.client, id)
		if persistence.IsDefinitionNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}

// GetPublished returns the published version of a group.
func (r *DefinitionRepository) GetPublished(ctx context.Context, groupID string) (*models.Definition, error) {
	definition, err := r.currentPublished(ctx, r.client, groupID)
	if err != nil {
		return nil, err
	}

	if definition == nil {
		return nil, persistence.NewGroupError("GetPublished", groupID, persistence.ErrPublishedDefinitionNotFound)
	}

	return definition, nil
}

// Delete removes a definition version and its group membership.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	definition, err := r.load(ctx, r.client, id)
	if persistence.IsDefinitionNotFound(err) {
		return nil
	}

	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, definitionKey(id))
		pipe.ZRem(ctx, groupKey(definition.GroupID), id)

		if definition.Status == models.DefinitionStatusPublished {
			pipe.Del(ctx, publishedKey(definition.GroupID))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete definition %s: %w", id, err)
	}

	return nil
}
