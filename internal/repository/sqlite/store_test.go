package sqlite

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"taskboard/internal/repository"
	"taskboard/internal/repository/repotest"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserContract(t *testing.T) {
	repotest.RunUserContract(t, newTestStore)
}

func TestTaskContract(t *testing.T) {
	repotest.RunTaskContract(t, newTestStore)
}

func TestWithForeignKeys(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"data/app.db", "data/app.db?_foreign_keys=on"},
		{"file:app.db?cache=shared", "file:app.db?cache=shared&_foreign_keys=on"},
		{"app.db?_foreign_keys=off", "app.db?_foreign_keys=off"},
	}
	for _, tt := range tests {
		if got := withForeignKeys(tt.dsn); got != tt.want {
			t.Errorf("withForeignKeys(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
