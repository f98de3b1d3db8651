package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/repository/repotest"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	s, err := Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestUserContract(t *testing.T) {
	repotest.RunUserContract(t, newTestStore)
}

func TestTaskContract(t *testing.T) {
	repotest.RunTaskContract(t, newTestStore)
}

func TestOpenCreatesEmptyCollections(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := Open(dir, zap.NewNop()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, name := range []string{usersFile, tasksFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("%s = %q, want []", name, data)
		}
	}
}

func TestTasksFileIsPrettyPrintedAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	task := &model.Task{
		UserID: "u1",
		Title:  "Buy milk",
		Date:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Status: model.StatusNotStarted,
	}
	if err := s.Tasks().Insert(context.Background(), task); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, tasksFile))
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	if !strings.Contains(string(data), "\n  {\n    \"id\": 1,") {
		t.Errorf("tasks.json not indented as expected:\n%s", data)
	}
	var decoded []model.Task
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("tasks.json is not valid JSON: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("left temp file %s behind", e.Name())
		}
	}
}

func TestUsersFileKeepsHashOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	u := &model.User{ID: "u1", Name: "Ann", Email: "ann@example.com", PasswordHash: "$2a$10$abc", CreatedAt: time.Now()}
	if err := s.Users().CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, usersFile))
	if err != nil {
		t.Fatalf("read users: %v", err)
	}
	if !strings.Contains(string(data), `"password": "$2a$10$abc"`) {
		t.Errorf("users.json missing password hash:\n%s", data)
	}
}

func TestCorruptFileIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tasksFile), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = s.Tasks().ListByUser(context.Background(), "u1")
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("ListByUser() error = %v, want ErrPersistence", err)
	}
	if strings.Contains(err.Error(), dir) {
		t.Errorf("error leaks data dir path: %v", err)
	}
}

func TestIDsContinueAfterDeletingHighest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var ids []int64
	for _, title := range []string{"a", "b", "c"} {
		task := &model.Task{UserID: "u1", Title: title, Status: model.StatusNotStarted}
		if err := s.Tasks().Insert(ctx, task); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		ids = append(ids, task.ID)
	}
	if err := s.Tasks().Delete(ctx, ids[0], "u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	next := &model.Task{UserID: "u1", Title: "d", Status: model.StatusNotStarted}
	if err := s.Tasks().Insert(ctx, next); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if next.ID != ids[2]+1 {
		t.Errorf("next id = %d, want %d", next.ID, ids[2]+1)
	}
}
