// Package jsonfile keeps users and tasks as pretty-printed JSON arrays on
// disk (users.json, tasks.json). Each collection has a single writer: every
// mutation holds the collection lock across read-modify-write, and files are
// replaced via a temp file + rename so readers never see a torn write.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/pkg/metrics"
)

const (
	backendName = "file"
	usersFile   = "users.json"
	tasksFile   = "tasks.json"
)

type Store struct {
	dir    string
	logger *zap.Logger

	usersMu sync.Mutex
	tasksMu sync.Mutex
}

var _ repository.Store = (*Store)(nil)

// Open creates dir and empty collections if they do not exist yet.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir %q: %v", model.ErrPersistence, dir, err)
	}
	s := &Store{dir: dir, logger: logger}
	for _, name := range []string{usersFile, tasksFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := writeJSON(path, []struct{}{}); err != nil {
				return nil, err
			}
		}
	}
	logger.Info("JSON file store ready", zap.String("dir", dir))
	return s, nil
}

func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }
func (s *Store) Tasks() repository.TaskRepository { return (*taskRepo)(s) }
func (s *Store) Backend() string                  { return backendName }
func (s *Store) Close() error                     { return nil }

func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func readJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	var out []T
	if len(data) == 0 {
		return []T{}, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", model.ErrPersistence, filepath.Base(path), err)
	}
	return nil
}

// userRecord is the on-disk shape; model.User hides the hash from JSON.
type userRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r userRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.Password,
		CreatedAt:    r.CreatedAt,
	}
}

type userRepo Store

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	defer metrics.RecordStoreOperation("create_user", backendName, time.Now())
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := readJSON[userRecord](s.path(usersFile))
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Email == u.Email {
			return model.ErrDuplicateEmail
		}
	}

	users = append(users, userRecord{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Password:  u.PasswordHash,
		CreatedAt: u.CreatedAt,
	})
	if err := writeJSON(s.path(usersFile), users); err != nil {
		s.logger.Error("Failed to save users file", zap.Error(err))
		return err
	}
	return nil
}

func (r *userRepo) find(match func(userRecord) bool) (*model.User, error) {
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := readJSON[userRecord](s.path(usersFile))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			return u.toModel(), nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer metrics.RecordStoreOperation("find_user", backendName, time.Now())
	return r.find(func(u userRecord) bool { return u.Email == email })
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	defer metrics.RecordStoreOperation("find_user", backendName, time.Now())
	return r.find(func(u userRecord) bool { return u.ID == id })
}

func (r *userRepo) CountUsers(ctx context.Context) (int, error) {
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := readJSON[userRecord](s.path(usersFile))
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

type taskRepo Store

func (r *taskRepo) load() ([]model.Task, error) {
	return readJSON[model.Task]((*Store)(r).path(tasksFile))
}

func (r *taskRepo) save(tasks []model.Task) error {
	s := (*Store)(r)
	if err := writeJSON(s.path(tasksFile), tasks); err != nil {
		s.logger.Error("Failed to save tasks file", zap.Error(err))
		return err
	}
	return nil
}

func (r *taskRepo) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	defer metrics.RecordStoreOperation("list_tasks", backendName, time.Now())
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()

	tasks, err := r.load()
	if err != nil {
		return nil, err
	}
	out := []model.Task{}
	for _, t := range tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *taskRepo) Insert(ctx context.Context, t *model.Task) error {
	defer metrics.RecordStoreOperation("insert_task", backendName, time.Now())
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()

	tasks, err := r.load()
	if err != nil {
		return err
	}
	var maxID int64
	for _, existing := range tasks {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	t.ID = maxID + 1

	if err := r.save(append(tasks, t.Clone())); err != nil {
		t.ID = 0
		return err
	}
	return nil
}

func (r *taskRepo) Get(ctx context.Context, id int64, userID string) (*model.Task, error) {
	defer metrics.RecordStoreOperation("get_task", backendName, time.Now())
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()

	tasks, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id && t.UserID == userID {
			return &t, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *taskRepo) Update(ctx context.Context, t *model.Task) error {
	defer metrics.RecordStoreOperation("update_task", backendName, time.Now())
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()

	tasks, err := r.load()
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].ID == t.ID && tasks[i].UserID == t.UserID {
			tasks[i] = t.Clone()
			return r.save(tasks)
		}
	}
	return model.ErrNotFound
}

func (r *taskRepo) Delete(ctx context.Context, id int64, userID string) error {
	defer metrics.RecordStoreOperation("delete_task", backendName, time.Now())
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()

	tasks, err := r.load()
	if err != nil {
		return err
	}
	kept := tasks[:0]
	removed := false
	for _, t := range tasks {
		if t.ID == id && t.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return model.ErrNotFound
	}
	return r.save(kept)
}
