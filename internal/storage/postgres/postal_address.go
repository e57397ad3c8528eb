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

const postalAddressColumns = "id, version, name, street, postal_code, locality, region, country"

// GetPostalAddress returns the address with the given id
func (s *pgStore) GetPostalAddress(ctx context.Context, id uuid.UUID) (*core.PostalAddress, error) {
	ctx, span := s.startSpan(ctx, "pgStore.GetPostalAddress")
	defer span.End()
	span.SetAttributes(otel.AttrEntityID.String(id.String()))

	row := s.pool.QueryRow(ctx,
		"SELECT "+postalAddressColumns+" FROM postal_addresses WHERE id = $1", id)

	address, err := scanPostalAddress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("postal address %s: %w", id, storage.ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, err
	}
	return address, nil
}

// SavePostalAddress inserts or updates an address depending on its IdVersion
// state. Updates are conditioned on the stored version still matching.
func (s *pgStore) SavePostalAddress(
	ctx context.Context,
	address *core.PostalAddress,
) (*core.PostalAddress, error) {
	ctx, span := s.startSpan(ctx, "pgStore.SavePostalAddress")
	defer span.End()
	span.SetAttributes(otel.AttrEntityKind.String("address"))

	if address == nil {
		err := fmt.Errorf("postal address is required")
		otel.RecordError(span, err)
		return nil, err
	}

	saved := address.Clone()

	if address.IdVersion.IsNew() {
		idv, err := s.insertPostalAddress(ctx, address)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		saved.IdVersion = idv
	} else {
		idv, err := s.updatePostalAddress(ctx, address)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		saved.IdVersion = idv
	}

	logger.Debugf("Saved postal address %s (request_id=%s)",
		saved.IdVersion, middleware.GetReqID(ctx))
	return saved, nil
}

func (s *pgStore) insertPostalAddress(
	ctx context.Context,
	address *core.PostalAddress,
) (core.IdVersion, error) {
	var (
		row pgx.Row
		id  uuid.UUID
	)

	if initialID, ok := address.IdVersion.InitialID(); ok {
		row = s.pool.QueryRow(ctx,
			`INSERT INTO postal_addresses (id, name, street, postal_code, locality, region, country)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, version`,
			initialID, nullIfEmpty(address.Name), address.Street, address.PostalCode,
			address.Locality, nullIfEmpty(address.Region), address.Country)
	} else {
		row = s.pool.QueryRow(ctx,
			`INSERT INTO postal_addresses (name, street, postal_code, locality, region, country)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, version`,
			nullIfEmpty(address.Name), address.Street, address.PostalCode,
			address.Locality, nullIfEmpty(address.Region), address.Country)
	}

	var version int64
	if err := row.Scan(&id, &version); err != nil {
		return core.IdVersion{}, translateError(err)
	}
	return core.ExistingIdVersion(id, uint32(version)), nil
}

func (s *pgStore) updatePostalAddress(
	ctx context.Context,
	address *core.PostalAddress,
) (core.IdVersion, error) {
	id, _ := address.IdVersion.ID()
	version, _ := address.IdVersion.Version()

	row := s.pool.QueryRow(ctx,
		`UPDATE postal_addresses
		 SET name = $1, street = $2, postal_code = $3, locality = $4,
		     region = $5, country = $6, version = version + 1, updated_at = now()
		 WHERE id = $7 AND version = $8
		 RETURNING version`,
		nullIfEmpty(address.Name), address.Street, address.PostalCode,
		address.Locality, nullIfEmpty(address.Region), address.Country,
		id, int64(version))

	var newVersion int64
	err := row.Scan(&newVersion)
	if err == nil {
		return core.ExistingIdVersion(id, uint32(newVersion)), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.IdVersion{}, translateError(err)
	}

	// No row matched id+version. Distinguish a stale version from a
	// missing row.
	var exists bool
	if checkErr := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM postal_addresses WHERE id = $1)", id,
	).Scan(&exists); checkErr != nil {
		return core.IdVersion{}, translateError(checkErr)
	}
	if exists {
		return core.IdVersion{}, fmt.Errorf("postal address %s@%d: %w",
			id, version, storage.ErrOptimisticLockConflict)
	}
	return core.IdVersion{}, fmt.Errorf("postal address %s: %w", id, storage.ErrNotFound)
}

// ListPostalAddresses returns addresses ordered by name (unnamed last), then id
func (s *pgStore) ListPostalAddresses(
	ctx context.Context,
	opts ...storage.ListOption,
) ([]*core.PostalAddress, error) {
	ctx, span := s.startSpan(ctx, "pgStore.ListPostalAddresses")
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

	query := "SELECT " + postalAddressColumns + " FROM postal_addresses"
	args := []any{}
	if options.NameFilter != "" {
		query += ` WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'`
		args = append(args, escapeLike(options.NameFilter))
	}
	query += fmt.Sprintf(" ORDER BY lower(name) ASC NULLS LAST, id ASC LIMIT %d", options.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		otel.RecordError(span, err)
		return nil, translateError(err)
	}
	defer rows.Close()

	addresses := []*core.PostalAddress{}
	for rows.Next() {
		address, err := scanPostalAddress(rows)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, translateError(err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(addresses)))
	return addresses, nil
}

func scanPostalAddress(row pgx.Row) (*core.PostalAddress, error) {
	var (
		id           uuid.UUID
		version      int64
		name, region *string
		address      core.PostalAddress
	)
	if err := row.Scan(&id, &version, &name, &address.Street, &address.PostalCode,
		&address.Locality, &region, &address.Country); err != nil {
		return nil, err
	}
	address.IdVersion = core.ExistingIdVersion(id, uint32(version))
	address.Name = orEmpty(name)
	address.Region = orEmpty(region)
	return &address, nil
}
