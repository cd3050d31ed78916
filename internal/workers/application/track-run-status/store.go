// internal/workers/application/track-run-status/store.go
package trackrunstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// Store keeps the pollable status of each run in Redis. Postgres is read when the
// cached entry has expired or Redis is unreachable.
type Store struct {
	config *Config
	redis  *redis.Client
	db     *sql.DB
}

func NewStore(config *Config, rdb *redis.Client, db *sql.DB) *Store {
	if config == nil {
		config = LoadConfig()
	}
	return &Store{config: config, redis: rdb, db: db}
}

func (s *Store) key(applicationID string) string {
	return s.config.KeyPrefix + applicationID
}

// Create records the first status of a run. It fails with RUN_ALREADY_EXISTS when the
// application already has a live status entry.
func (s *Store) Create(ctx context.Context, view models.RunStatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return errors.NewStatusStoreFailedError(err)
	}
	ok, err := s.redis.SetNX(ctx, s.key(view.ApplicationID), string(data), s.config.TTL).Result()
	if err != nil {
		return errors.NewStatusStoreFailedError(err)
	}
	if !ok {
		return errors.NewRunAlreadyExistsError(view.ApplicationID)
	}
	return nil
}

// Save overwrites the status entry and refreshes its TTL.
func (s *Store) Save(ctx context.Context, view models.RunStatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return errors.NewStatusStoreFailedError(err)
	}
	if err := s.redis.Set(ctx, s.key(view.ApplicationID), string(data), s.config.TTL).Err(); err != nil {
		return errors.NewStatusStoreFailedError(err)
	}
	return nil
}

// Get returns the latest status for applicationID and where it was read from.
func (s *Store) Get(ctx context.Context, applicationID string) (*models.RunStatusView, string, error) {
	raw, err := s.redis.Get(ctx, s.key(applicationID)).Result()
	if err == nil {
		var view models.RunStatusView
		if err := json.Unmarshal([]byte(raw), &view); err != nil {
			return nil, "", errors.NewStatusStoreFailedError(fmt.Errorf("decode cached status: %w", err))
		}
		return &view, SourceCache, nil
	}

	if s.db == nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, "", errors.NewRunNotFoundError(applicationID)
		}
		return nil, "", errors.NewStatusStoreFailedError(err)
	}

	view, err := s.loadPersisted(ctx, applicationID)
	if err != nil {
		return nil, "", err
	}
	return view, SourceDatabase, nil
}

func (s *Store) loadPersisted(ctx context.Context, applicationID string) (*models.RunStatusView, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, current_stage, progress_percent, errors, agent_responses, outcome, updated_at
		FROM application_runs
		WHERE application_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, applicationID)

	var (
		view          models.RunStatusView
		errsJSON      []byte
		responsesJSON []byte
		outcome       sql.NullString
		updatedAt     time.Time
	)
	err := row.Scan(&view.RunID, &view.Status, &view.CurrentStage, &view.ProgressPercent,
		&errsJSON, &responsesJSON, &outcome, &updatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewRunNotFoundError(applicationID)
		}
		return nil, errors.NewStatusStoreFailedError(err)
	}

	view.ApplicationID = applicationID
	view.UpdatedAt = updatedAt.UTC()
	view.Outcome = models.Outcome(outcome.String)
	view.Errors = []string{}
	view.AgentResponses = []models.StageResponse{}
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &view.Errors); err != nil {
			return nil, errors.NewStatusStoreFailedError(fmt.Errorf("decode errors: %w", err))
		}
	}
	if len(responsesJSON) > 0 {
		if err := json.Unmarshal(responsesJSON, &view.AgentResponses); err != nil {
			return nil, errors.NewStatusStoreFailedError(fmt.Errorf("decode agent responses: %w", err))
		}
	}
	return &view, nil
}
