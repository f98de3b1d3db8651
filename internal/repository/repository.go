package repository

import (
	"context"

	"taskboard/internal/model"
)

// UserRepository persists accounts. CreateUser returns
// model.ErrDuplicateEmail when the email is taken; lookups return
// model.ErrUserNotFound.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// TaskRepository persists tasks. Every single-task operation is scoped by
// (id, userID) and returns model.ErrNotFound when either does not match.
type TaskRepository interface {
	// ListByUser returns the owner's tasks in insertion order.
	ListByUser(ctx context.Context, userID string) ([]model.Task, error)
	// Insert assigns t.ID, unique across the whole store.
	Insert(ctx context.Context, t *model.Task) error
	Get(ctx context.Context, id int64, userID string) (*model.Task, error)
	// Update replaces the stored record matching (t.ID, t.UserID).
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id int64, userID string) error
}

// Event is a task event stored in the same transaction as the write that
// caused it.
type Event struct {
	RoutingKey string
	Payload    any
}

// EventFunc builds the event once the write has given the task its id.
type EventFunc func(t *model.Task) Event

// TransactionalTaskRepository commits a task write and its event together:
// both land or neither does.
type TransactionalTaskRepository interface {
	TaskRepository
	InsertWithEvent(ctx context.Context, t *model.Task, ev EventFunc) error
	UpdateWithEvent(ctx context.Context, t *model.Task, ev EventFunc) error
	DeleteWithEvent(ctx context.Context, id int64, userID string, ev EventFunc) error
}

// Store bundles the repositories of one backend.
type Store interface {
	Users() UserRepository
	Tasks() TaskRepository
	Ping(ctx context.Context) error
	Close() error
	Backend() string
}
