package client

import (
	"context"
	"errors"
	"sync"

	"taskboard/internal/model"
)

// Store is a write-through cache of the signed-in user's tasks. The server
// is authoritative: every mutation is sent first and the cache only changes
// once the server has accepted it. Calls are serialized, so the cache never
// reorders the caller's intents.
type Store struct {
	api *Client

	mu     sync.Mutex
	user   *model.PublicUser
	tasks  []model.Task
	loaded bool
}

func NewStore(api *Client) *Store {
	return &Store{api: api}
}

// User returns the cached signed-in user, or nil.
func (s *Store) User() *model.PublicUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Signup(ctx context.Context, name, email, password string) (*model.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.api.Signup(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	s.signedIn(u)
	return u, nil
}

func (s *Store) Login(ctx context.Context, email, password string) (*model.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.signedIn(u)
	return u, nil
}

// Logout ends the session. Local state is dropped even when the server call
// fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.api.Logout(ctx)
	s.reset()
	return err
}

func (s *Store) signedIn(u *model.PublicUser) {
	s.user = u
	s.tasks = nil
	s.loaded = false
}

func (s *Store) reset() {
	s.user = nil
	s.tasks = nil
	s.loaded = false
}

// check drops everything cached once the server stops recognising the
// session.
func (s *Store) check(err error) error {
	if errors.Is(err, model.ErrUnauthenticated) {
		s.reset()
	}
	return err
}

// Refresh replaces the cache with the server's copy.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

func (s *Store) refresh(ctx context.Context) error {
	tasks, err := s.api.ListTasks(ctx, "")
	if err != nil {
		return s.check(err)
	}
	s.tasks = tasks
	s.loaded = true
	return nil
}

// Tasks returns copies of the cached tasks, loading them on first use.
func (s *Store) Tasks(ctx context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
	}
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, in TaskInput) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.api.CreateTask(ctx, in)
	if err != nil {
		return nil, s.check(err)
	}
	if s.loaded {
		s.tasks = append(s.tasks, t.Clone())
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, in TaskInput) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.api.UpdateTask(ctx, in)
	if err != nil {
		s.dropIfGone(in.ID, err)
		return nil, s.check(err)
	}
	s.replace(*t)
	return t, nil
}

func (s *Store) ToggleImportant(ctx context.Context, id int64) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.api.ToggleImportant(ctx, id)
	if err != nil {
		s.dropIfGone(id, err)
		return nil, s.check(err)
	}
	s.replace(*t)
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.api.DeleteTask(ctx, id); err != nil {
		s.dropIfGone(id, err)
		return s.check(err)
	}
	s.remove(id)
	return nil
}

// Stats is always answered by the server.
func (s *Store) Stats(ctx context.Context, granularity string, windows int) (*Summary, error) {
	sum, err := s.api.Stats(ctx, granularity, windows)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.check(err)
	}
	return sum, nil
}

func (s *Store) replace(t model.Task) {
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t.Clone()
			return
		}
	}
	if s.loaded {
		s.tasks = append(s.tasks, t.Clone())
	}
}

func (s *Store) remove(id int64) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// dropIfGone forgets a cached task the server no longer has for us.
func (s *Store) dropIfGone(id int64, err error) {
	if errors.Is(err, model.ErrNotFound) {
		s.remove(id)
	}
}
