package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockroom/internal/core/storage"
	"stockroom/pkg/logger"
)

var tracer = otel.Tracer("stockroom/postgres")

// TxOptions configures transactions started by the store.
type TxOptions struct {
	IsolationLevel pgx.TxIsoLevel
	AccessMode     pgx.TxAccessMode

	// StatementTimeout protects against long-running statements; 0 disables it.
	StatementTimeout time.Duration
}

// DefaultTxOptions returns read-committed, read-write transactions with a 30s statement timeout.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// Store is the PostgreSQL storage.Store.
type Store struct {
	pool *Pool
	opts TxOptions
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a store over pool.
func NewStore(pool *Pool, opts TxOptions) *Store {
	return &Store{pool: pool, opts: opts}
}

// Pool returns the underlying pool.
func (s *Store) Pool() *Pool { return s.pool }

// Session returns a session that runs each statement on a pooled connection.
func (s *Store) Session() storage.Session {
	return &session{q: s.pool.Pool}
}

// Begin starts a transaction with the store's TxOptions.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.isolation", string(s.opts.IsolationLevel))))

	ptx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   s.opts.IsolationLevel,
		AccessMode: s.opts.AccessMode,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if s.opts.StatementTimeout > 0 {
		_, err = ptx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", s.opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = ptx.Rollback(context.WithoutCancel(ctx))
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	return &transaction{session: session{q: ptx, inTx: true}, tx: ptx, span: span}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
	logger.Info(context.Background(), "database pool closed")
}

type transaction struct {
	session
	tx   pgx.Tx
	span trace.Span
}

var _ storage.Tx = (*transaction)(nil)

func (t *transaction) Commit(ctx context.Context) error {
	defer t.span.End()
	if err := t.tx.Commit(ctx); err != nil {
		t.span.SetStatus(codes.Error, err.Error())
		return mapError(err)
	}
	return nil
}

// Rollback uses a context detached from cancellation so it completes even
// when the request context is done.
func (t *transaction) Rollback(ctx context.Context) error {
	defer t.span.End()
	if err := t.tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		return mapError(err)
	}
	t.span.SetAttributes(attribute.Bool("tx.rolled_back", true))
	return nil
}
