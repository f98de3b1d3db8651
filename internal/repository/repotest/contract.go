// Package repotest holds behaviour every repository.Store backend must share.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) repository.Store

func newUser(id, email string) *model.User {
	return &model.User{
		ID:           id,
		Name:         "User " + id,
		Email:        email,
		PasswordHash: "$2a$10$hash-" + id,
		CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTask(owner, title string) *model.Task {
	at := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	return &model.Task{
		UserID:    owner,
		Title:     title,
		Date:      at,
		Status:    model.StatusNotStarted,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// seedUsers creates u1 and u2 so relational backends can satisfy the
// tasks -> users foreign key.
func seedUsers(t *testing.T, s repository.Store) {
	t.Helper()
	ctx := context.Background()
	for _, u := range []*model.User{newUser("u1", "u1@example.com"), newUser("u2", "u2@example.com")} {
		if err := s.Users().CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
}

// RunUserContract checks account persistence.
func RunUserContract(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		s := newStore(t)
		u := newUser("abc", "x@example.com")
		if err := s.Users().CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}

		byEmail, err := s.Users().FindByEmail(ctx, "x@example.com")
		if err != nil {
			t.Fatalf("FindByEmail() error = %v", err)
		}
		if byEmail.ID != "abc" || byEmail.PasswordHash != u.PasswordHash || byEmail.Name != u.Name {
			t.Errorf("FindByEmail() = %+v, want %+v", byEmail, u)
		}

		byID, err := s.Users().FindByID(ctx, "abc")
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if byID.Email != "x@example.com" {
			t.Errorf("FindByID().Email = %q", byID.Email)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newStore(t)
		if err := s.Users().CreateUser(ctx, newUser("a", "x@example.com")); err != nil {
			t.Fatalf("first CreateUser() error = %v", err)
		}
		err := s.Users().CreateUser(ctx, newUser("b", "x@example.com"))
		if !errors.Is(err, model.ErrDuplicateEmail) {
			t.Fatalf("second CreateUser() error = %v, want ErrDuplicateEmail", err)
		}
		n, err := s.Users().CountUsers(ctx)
		if err != nil {
			t.Fatalf("CountUsers() error = %v", err)
		}
		if n != 1 {
			t.Errorf("CountUsers() = %d, want 1", n)
		}
	})

	t.Run("email match is case-sensitive", func(t *testing.T) {
		s := newStore(t)
		if err := s.Users().CreateUser(ctx, newUser("a", "Case@example.com")); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		if _, err := s.Users().FindByEmail(ctx, "case@example.com"); !errors.Is(err, model.ErrUserNotFound) {
			t.Errorf("FindByEmail(lowercase) error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Users().FindByID(ctx, "missing"); !errors.Is(err, model.ErrUserNotFound) {
			t.Errorf("FindByID() error = %v, want ErrUserNotFound", err)
		}
		if _, err := s.Users().FindByEmail(ctx, "missing@example.com"); !errors.Is(err, model.ErrUserNotFound) {
			t.Errorf("FindByEmail() error = %v, want ErrUserNotFound", err)
		}
	})
}

// RunTaskContract checks owner scoping, id allocation and full replace.
func RunTaskContract(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("insert assigns store-wide unique ids", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		seen := map[int64]bool{}
		for i, owner := range []string{"u1", "u2", "u1", "u2"} {
			task := newTask(owner, fmt.Sprintf("task %d", i))
			if err := s.Tasks().Insert(ctx, task); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if task.ID <= 0 || seen[task.ID] {
				t.Fatalf("Insert() id = %d, already seen = %v", task.ID, seen[task.ID])
			}
			seen[task.ID] = true
		}
	})

	t.Run("list is owner scoped and in insertion order", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		for _, tc := range []struct{ owner, title string }{
			{"u1", "first"}, {"u2", "other"}, {"u1", "second"}, {"u1", "third"},
		} {
			if err := s.Tasks().Insert(ctx, newTask(tc.owner, tc.title)); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
		}

		got, err := s.Tasks().ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		want := []string{"first", "second", "third"}
		if len(got) != len(want) {
			t.Fatalf("ListByUser() returned %d tasks, want %d", len(got), len(want))
		}
		for i, task := range got {
			if task.Title != want[i] || task.UserID != "u1" {
				t.Errorf("task[%d] = %q owned by %q, want %q owned by u1", i, task.Title, task.UserID, want[i])
			}
		}

		none, err := s.Tasks().ListByUser(ctx, "nobody")
		if err != nil {
			t.Fatalf("ListByUser(nobody) error = %v", err)
		}
		if len(none) != 0 {
			t.Errorf("ListByUser(nobody) = %d tasks, want 0", len(none))
		}
	})

	t.Run("links and attachments round trip in order", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		task := newTask("u1", "with children")
		task.Notes = "# heading\n- item"
		task.Links = []model.Link{
			{ID: "l1", Title: "Docs", URL: "https://example.com/docs"},
			{ID: "l2", Title: "Ticket", URL: "https://example.com/t/1"},
		}
		task.Attachments = []model.Attachment{
			{ID: "a1", Type: model.AttachmentImage, Name: "shot.png", URL: "/files/shot.png"},
		}
		if err := s.Tasks().Insert(ctx, task); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		got, err := s.Tasks().Get(ctx, task.ID, "u1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Notes != task.Notes {
			t.Errorf("Notes = %q, want %q", got.Notes, task.Notes)
		}
		if len(got.Links) != 2 || got.Links[0].ID != "l1" || got.Links[1].URL != "https://example.com/t/1" {
			t.Errorf("Links = %+v", got.Links)
		}
		if len(got.Attachments) != 1 || got.Attachments[0].Type != model.AttachmentImage {
			t.Errorf("Attachments = %+v", got.Attachments)
		}
	})

	t.Run("update replaces the whole record", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		task := newTask("u1", "before")
		task.Important = true
		task.Links = []model.Link{{ID: "l1", Title: "old", URL: "https://old.example.com"}}
		if err := s.Tasks().Insert(ctx, task); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		replacement := newTask("u1", "after")
		replacement.ID = task.ID
		replacement.Status = model.StatusCompleted
		if err := s.Tasks().Update(ctx, replacement); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, err := s.Tasks().Get(ctx, task.ID, "u1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Title != "after" || got.Status != model.StatusCompleted || got.Important || len(got.Links) != 0 {
			t.Errorf("after Update got %+v, want full replacement", got)
		}
	})

	t.Run("other owners cannot read, update or delete", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		task := newTask("u1", "private")
		if err := s.Tasks().Insert(ctx, task); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		if _, err := s.Tasks().Get(ctx, task.ID, "u2"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Get(u2) error = %v, want ErrNotFound", err)
		}
		hijack := newTask("u2", "hijacked")
		hijack.ID = task.ID
		if err := s.Tasks().Update(ctx, hijack); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Update(u2) error = %v, want ErrNotFound", err)
		}
		if err := s.Tasks().Delete(ctx, task.ID, "u2"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Delete(u2) error = %v, want ErrNotFound", err)
		}

		got, err := s.Tasks().Get(ctx, task.ID, "u1")
		if err != nil {
			t.Fatalf("Get(u1) error = %v", err)
		}
		if got.Title != "private" || got.UserID != "u1" {
			t.Errorf("task changed by another owner: %+v", got)
		}
	})

	t.Run("delete twice", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		task := newTask("u1", "temp")
		task.Attachments = []model.Attachment{{ID: "a1", Type: model.AttachmentFile, Name: "a.txt", URL: "/a.txt"}}
		if err := s.Tasks().Insert(ctx, task); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		if err := s.Tasks().Delete(ctx, task.ID, "u1"); err != nil {
			t.Fatalf("first Delete() error = %v", err)
		}
		if err := s.Tasks().Delete(ctx, task.ID, "u1"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
		if _, err := s.Tasks().Get(ctx, task.ID, "u1"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent inserts do not lose writes", func(t *testing.T) {
		s := newStore(t)
		seedUsers(t, s)
		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Tasks().Insert(ctx, newTask("u1", fmt.Sprintf("t%d", i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
		}

		got, err := s.Tasks().ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(got) != n {
			t.Fatalf("ListByUser() = %d tasks, want %d", len(got), n)
		}
		ids := map[int64]bool{}
		for _, task := range got {
			if ids[task.ID] {
				t.Fatalf("duplicate id %d", task.ID)
			}
			ids[task.ID] = true
		}
	})
}
