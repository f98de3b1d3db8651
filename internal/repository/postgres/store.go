package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskboard/internal/repository"
	"taskboard/pkg/config"
	"taskboard/pkg/db"
)

const backendName = "postgres"

var errNotPostgres = errors.New("postgres store requires a pool")

type Store struct {
	pool  *pgxpool.Pool
	users *UserRepository
	tasks *TaskRepository
}

var _ repository.Store = (*Store)(nil)

// Open connects to PostgreSQL and applies the schema.
func Open(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*Store, error) {
	pool, err := db.NewConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool, logger)
}

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, errNotPostgres
	}
	return &Store{
		pool:  pool,
		users: NewUserRepository(pool, logger),
		tasks: NewTaskRepository(pool, logger),
	}, nil
}

func (s *Store) Users() repository.UserRepository { return s.users }
func (s *Store) Tasks() repository.TaskRepository { return s.tasks }
func (s *Store) Backend() string                  { return backendName }
func (s *Store) Ping(ctx context.Context) error   { return s.pool.Ping(ctx) }

// TaskRepository returns the concrete repository, which can commit task
// events with the write.
func (s *Store) TaskRepository() *TaskRepository { return s.tasks }

// Pool exposes the connection pool for the event outbox.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
