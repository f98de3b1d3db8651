package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/handler"
	"taskboard/internal/httpserver"
	"taskboard/internal/repository/jsonfile"
	"taskboard/internal/service/auth"
	"taskboard/internal/service/task"
	"taskboard/internal/session"
)

type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	store, err := jsonfile.Open(t.TempDir(), log)
	if err != nil {
		t.Fatalf("jsonfile.Open() error = %v", err)
	}
	authSvc := auth.NewService(store.Users(), session.NewMemoryRegistry(), "cli-secret", time.Hour, log)
	router := httpserver.NewRouter(
		handler.NewAuthHandler(authSvc, handler.CookieOptions{TTL: time.Hour}, log),
		handler.NewTaskHandler(task.NewService(store.Tasks(), nil, log), log),
		authSvc, store, log,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	config := filepath.Join(dir, "taskctl.yaml")
	body := fmt.Sprintf("server: %s\nsession_file: %s\n", srv.URL, filepath.Join(dir, "session.json"))
	if err := os.WriteFile(config, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return &cli{t: t, config: config}
}

// run executes one invocation, as a separate process would.
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("taskctl %v: %v", args, err)
	}
	return out
}

func TestTaskctlWorkflow(t *testing.T) {
	c := newCLI(t)

	if out := c.mustRun("whoami"); !strings.Contains(out, "Not logged in") {
		t.Errorf("whoami before signup = %q", out)
	}

	c.mustRun("signup", "-n", "Ann", "-e", "ann@example.com", "-p", "secret1")

	// the session survives into the next invocation
	if out := c.mustRun("whoami"); !strings.Contains(out, "ann@example.com") {
		t.Errorf("whoami = %q", out)
	}

	out := c.mustRun("add", "Buy milk", "--date", "2024-05-01", "--important")
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "*") {
		t.Errorf("add output = %q", out)
	}
	id := strings.Fields(out)[0]

	c.mustRun("add", "Write report")
	if out := c.mustRun("list", "--view", "important"); strings.Contains(out, "Write report") || !strings.Contains(out, "Buy milk") {
		t.Errorf("list important = %q", out)
	}

	if out := c.mustRun("done", id); !strings.Contains(out, "completed") {
		t.Errorf("done output = %q", out)
	}
	out = c.mustRun("stats", "-w", "3")
	if !strings.Contains(out, "Total: 2") || !strings.Contains(out, "Completion rate: 50%") {
		t.Errorf("stats output = %q", out)
	}

	c.mustRun("rm", id)
	if _, err := c.run("rm", id); err == nil {
		t.Error("second rm succeeded")
	}
	if _, err := c.run("done", "abc"); err == nil {
		t.Error("done with a bad id succeeded")
	}

	c.mustRun("logout")
	if _, err := c.run("list"); err == nil {
		t.Error("list after logout succeeded")
	}

	c.mustRun("login", "-e", "ann@example.com", "-p", "secret1")
	if out := c.mustRun("list"); !strings.Contains(out, "Write report") {
		t.Errorf("list after login = %q", out)
	}
}

func TestTaskctlBadCredentials(t *testing.T) {
	c := newCLI(t)
	c.mustRun("signup", "-n", "Ann", "-e", "ann@example.com", "-p", "secret1")
	c.mustRun("logout")

	if _, err := c.run("login", "-e", "ann@example.com", "-p", "nope123"); err == nil {
		t.Fatal("login with wrong password succeeded")
	}
	if out := c.mustRun("whoami"); !strings.Contains(out, "Not logged in") {
		t.Errorf("whoami = %q", out)
	}
}
