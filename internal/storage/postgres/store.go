// Package postgres provides the PostgreSQL-backed implementation of the
// storage interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/otel"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
)

// Postgres error codes we translate into the storage error taxonomy.
const (
	pgCodeUniqueViolation      = "23505"
	pgCodeForeignKeyViolation  = "23503"
	pgCodeCheckViolation       = "23514"
	pgCodeSerializationFailure = "40001"
)

// options holds configuration options for the postgres store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option is a functional option for configuring the postgres store
type Option func(*options) error

// WithPool sets the pgx pool backing the store. The caller is responsible
// for closing the pool when it is done.
func WithPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// pgStore implements the storage.Store interface on a pgx pool
type pgStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ storage.Store = (*pgStore)(nil)

// New creates a new PostgreSQL-backed store with the given options
func New(opts ...Option) (storage.Store, error) {
	o := &options{}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}

	return &pgStore{
		pool:   o.pool,
		tracer: o.tracer,
	}, nil
}

// CheckReadiness checks if the store is ready to serve requests
func (s *pgStore) CheckReadiness(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// startSpan starts a new span for database operations. All spans carry the
// db.system attribute per OTEL semantic conventions.
func (s *pgStore) startSpan(
	ctx context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithAttributes(semconv.DBSystemPostgreSQL)}, opts...)
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}

// translateError maps driver errors onto the storage error taxonomy. Errors
// without a mapping pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgCodeUniqueViolation:
		return &storage.UniqueViolationError{Constraint: pgErr.ConstraintName}
	case pgCodeForeignKeyViolation:
		return &storage.ForeignKeyViolationError{Constraint: pgErr.ConstraintName}
	case pgCodeCheckViolation:
		return &storage.CheckViolationError{Constraint: pgErr.ConstraintName}
	case pgCodeSerializationFailure:
		return fmt.Errorf("%w: %s", storage.ErrSerializationFailure, pgErr.Message)
	default:
		return err
	}
}

// escapeLike treats LIKE wildcards in a user-supplied filter literally.
// Queries using the result must declare ESCAPE '\'.
func escapeLike(filter string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(filter)
}

// nullIfEmpty maps the empty string onto SQL NULL for optional text columns.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
