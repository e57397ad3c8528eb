package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/core"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/otel"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
)

const sportConfigColumns = "id, version, sport_id, name, config"

// GetSportConfig returns the sport configuration with the given id
func (s *pgStore) GetSportConfig(ctx context.Context, id uuid.UUID) (*core.SportConfig, error) {
	ctx, span := s.startSpan(ctx, "pgStore.GetSportConfig")
	defer span.End()
	span.SetAttributes(otel.AttrEntityID.String(id.String()))

	row := s.pool.QueryRow(ctx,
		"SELECT "+sportConfigColumns+" FROM sport_configs WHERE id = $1", id)

	config, err := scanSportConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("sport config %s: %w", id, storage.ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, err
	}
	return config, nil
}

// SaveSportConfig inserts or updates a sport configuration depending on its
// IdVersion state. Updates are conditioned on the stored version still
// matching.
func (s *pgStore) SaveSportConfig(
	ctx context.Context,
	config *core.SportConfig,
) (*core.SportConfig, error) {
	ctx, span := s.startSpan(ctx, "pgStore.SaveSportConfig")
	defer span.End()
	span.SetAttributes(otel.AttrEntityKind.String("sport-config"))

	if config == nil {
		err := fmt.Errorf("sport config is required")
		otel.RecordError(span, err)
		return nil, err
	}
	if config.SportID == uuid.Nil {
		err := fmt.Errorf("sport id is required")
		otel.RecordError(span, err)
		return nil, err
	}

	saved := config.Clone()

	if config.IdVersion.IsNew() {
		idv, err := s.insertSportConfig(ctx, config)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		saved.IdVersion = idv
	} else {
		idv, err := s.updateSportConfig(ctx, config)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		saved.IdVersion = idv
	}

	logger.Debugf("Saved sport config %s (request_id=%s)",
		saved.IdVersion, middleware.GetReqID(ctx))
	return saved, nil
}

func (s *pgStore) insertSportConfig(
	ctx context.Context,
	config *core.SportConfig,
) (core.IdVersion, error) {
	raw := config.Config
	if raw == nil {
		raw = []byte("{}")
	}

	var (
		row pgx.Row
		id  uuid.UUID
	)

	if initialID, ok := config.IdVersion.InitialID(); ok {
		row = s.pool.QueryRow(ctx,
			`INSERT INTO sport_configs (id, sport_id, name, config)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, version`,
			initialID, config.SportID, config.Name, raw)
	} else {
		row = s.pool.QueryRow(ctx,
			`INSERT INTO sport_configs (sport_id, name, config)
			 VALUES ($1, $2, $3)
			 RETURNING id, version`,
			config.SportID, config.Name, raw)
	}

	var version int64
	if err := row.Scan(&id, &version); err != nil {
		return core.IdVersion{}, translateError(err)
	}
	return core.ExistingIdVersion(id, uint32(version)), nil
}

func (s *pgStore) updateSportConfig(
	ctx context.Context,
	config *core.SportConfig,
) (core.IdVersion, error) {
	id, _ := config.IdVersion.ID()
	version, _ := config.IdVersion.Version()

	raw := config.Config
	if raw == nil {
		raw = []byte("{}")
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE sport_configs
		 SET sport_id = $1, name = $2, config = $3, version = version + 1, updated_at = now()
		 WHERE id = $4 AND version = $5
		 RETURNING version`,
		config.SportID, config.Name, raw, id, int64(version))

	var newVersion int64
	err := row.Scan(&newVersion)
	if err == nil {
		return core.ExistingIdVersion(id, uint32(newVersion)), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.IdVersion{}, translateError(err)
	}

	var exists bool
	if checkErr := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM sport_configs WHERE id = $1)", id,
	).Scan(&exists); checkErr != nil {
		return core.IdVersion{}, translateError(checkErr)
	}
	if exists {
		return core.IdVersion{}, fmt.Errorf("sport config %s@%d: %w",
			id, version, storage.ErrOptimisticLockConflict)
	}
	return core.IdVersion{}, fmt.Errorf("sport config %s: %w", id, storage.ErrNotFound)
}

// ListSportConfigs returns sport configurations ordered by name, then id
func (s *pgStore) ListSportConfigs(
	ctx context.Context,
	opts ...storage.ListOption,
) ([]*core.SportConfig, error) {
	ctx, span := s.startSpan(ctx, "pgStore.ListSportConfigs")
	defer span.End()

	options, err := storage.NewListOptions(opts...)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		otel.AttrListLimit.Int(options.Limit),
		otel.AttrListFiltered.Bool(options.NameFilter != ""),
	)

	query := "SELECT " + sportConfigColumns + " FROM sport_configs"
	args := []any{}
	if options.NameFilter != "" {
		query += ` WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'`
		args = append(args, escapeLike(options.NameFilter))
	}
	query += fmt.Sprintf(" ORDER BY lower(name) ASC, id ASC LIMIT %d", options.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		otel.RecordError(span, err)
		return nil, translateError(err)
	}
	defer rows.Close()

	configs := []*core.SportConfig{}
	for rows.Next() {
		config, err := scanSportConfig(rows)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, translateError(err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(configs)))
	return configs, nil
}

func scanSportConfig(row pgx.Row) (*core.SportConfig, error) {
	var (
		id      uuid.UUID
		version int64
		raw     []byte
		config  core.SportConfig
	)
	if err := row.Scan(&id, &version, &config.SportID, &config.Name, &raw); err != nil {
		return nil, err
	}
	config.IdVersion = core.ExistingIdVersion(id, uint32(version))
	config.Config = raw
	return &config, nil
}
