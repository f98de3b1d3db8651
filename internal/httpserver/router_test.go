package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/handler"
	"taskboard/internal/repository/jsonfile"
	"taskboard/internal/service/auth"
	"taskboard/internal/service/task"
	"taskboard/internal/session"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type stubAuth struct{ valid string }

func (a stubAuth) Authenticate(ctx context.Context, token, userIDCookie string) (string, error) {
	if token != "" && token == a.valid {
		return "u1", nil
	}
	return "", errors.New("unauthenticated")
}

func newTestRouter(t *testing.T, pinger Pinger) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store, err := jsonfile.Open(t.TempDir(), log)
	if err != nil {
		t.Fatalf("jsonfile.Open() error = %v", err)
	}
	if pinger == nil {
		pinger = store
	}
	authSvc := auth.NewService(store.Users(), session.NewMemoryRegistry(), "router-secret", time.Hour, log)
	taskSvc := task.NewService(store.Tasks(), nil, log)

	ah := handler.NewAuthHandler(authSvc, handler.CookieOptions{TTL: time.Hour}, log)
	th := handler.NewTaskHandler(taskSvc, log)
	return NewRouter(ah, th, authSvc, pinger, log)
}

func serve(r http.Handler, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want PathClass
	}{
		{"/dashboard", PathProtected},
		{"/dashboard/today", PathProtected},
		{"/dashboards", PathOpen},
		{"/login", PathAuthEntry},
		{"/signup", PathAuthEntry},
		{"/", PathOpen},
		{"/tasks", PathOpen},
	}
	for _, tt := range tests {
		if got := ClassifyPath(tt.path); got != tt.want {
			t.Errorf("ClassifyPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestPageGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PageGuard(stubAuth{valid: "good"}))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/login", ok)
	r.GET("/dashboard", ok)
	r.GET("/dashboard/:view", ok)
	r.GET("/about", ok)

	good := []*http.Cookie{{Name: handler.SessionCookie, Value: "good"}}
	forged := []*http.Cookie{{Name: handler.SessionCookie, Value: "forged"}}

	tests := []struct {
		name     string
		path     string
		cookies  []*http.Cookie
		wantCode int
		wantLoc  string
	}{
		{name: "anonymous dashboard", path: "/dashboard", wantCode: http.StatusFound, wantLoc: "/login"},
		{name: "anonymous nested dashboard", path: "/dashboard/important", wantCode: http.StatusFound, wantLoc: "/login"},
		{name: "forged cookie", path: "/dashboard", cookies: forged, wantCode: http.StatusFound, wantLoc: "/login"},
		{name: "signed in dashboard", path: "/dashboard", cookies: good, wantCode: http.StatusOK},
		{name: "signed in login", path: "/login", cookies: good, wantCode: http.StatusFound, wantLoc: "/dashboard"},
		{name: "anonymous login", path: "/login", wantCode: http.StatusOK},
		{name: "forged login", path: "/login", cookies: forged, wantCode: http.StatusOK},
		{name: "open page", path: "/about", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, tt.path, "", tt.cookies)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if loc := w.Header().Get("Location"); loc != tt.wantLoc {
				t.Errorf("Location = %q, want %q", loc, tt.wantLoc)
			}
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	r := newTestRouter(t, nil)
	if w := serve(r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", w.Code)
	}
	if w := serve(r, http.MethodHead, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("HEAD /healthz status = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Errorf("/readyz status = %d", w.Code)
	}

	down := newTestRouter(t, fakePinger{err: errors.New("db down")})
	if w := serve(down, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz with failing store status = %d, want 503", w.Code)
	}
}

func TestTraceHeader(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Trace-ID"); got != "abc123" {
		t.Errorf("echoed trace id = %q, want abc123", got)
	}

	w = serve(r, http.MethodGet, "/healthz", "", nil)
	if got := w.Header().Get("X-Trace-ID"); got == "" {
		t.Error("no trace id generated")
	}
}

func TestEndToEndTaskFlow(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, http.MethodPost, "/auth/signup", `{"name":"Ann","email":"ann@example.com","password":"secret1"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) < 2 {
		t.Fatalf("signup set %d cookies, want 2", len(cookies))
	}

	if w := serve(r, http.MethodGet, "/dashboard", "", cookies); w.Code != http.StatusOK {
		t.Errorf("dashboard with session status = %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/tasks", `{"title":"Buy milk","status":"completed"}`, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	serve(r, http.MethodPost, "/tasks", `{"title":"Write report"}`, cookies)

	w = serve(r, http.MethodGet, "/tasks/stats", "", cookies)
	var resp struct {
		Stats struct {
			Total          int `json:"total"`
			Completed      int `json:"completed"`
			CompletionRate int `json:"completionRate"`
		} `json:"stats"`
		Series []json.RawMessage `json:"series"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("stats body: %v", err)
	}
	if resp.Stats.Total != 2 || resp.Stats.Completed != 1 || resp.Stats.CompletionRate != 50 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if len(resp.Series) != 6 {
		t.Errorf("series has %d buckets, want 6", len(resp.Series))
	}

	// a second account sees none of Ann's tasks
	w = serve(r, http.MethodPost, "/auth/signup", `{"name":"Bob","email":"bob@example.com","password":"secret2"}`, nil)
	bob := w.Result().Cookies()
	w = serve(r, http.MethodGet, "/tasks", "", bob)
	var list struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Tasks) != 0 {
		t.Errorf("Bob sees %d tasks, want 0", len(list.Tasks))
	}

	w = serve(r, http.MethodPost, "/auth/logout", "", cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}
	// the old token is revoked server-side
	if w := serve(r, http.MethodGet, "/tasks", "", cookies); w.Code != http.StatusUnauthorized {
		t.Errorf("tasks after logout status = %d, want 401", w.Code)
	}
	if w := serve(r, http.MethodGet, "/dashboard", "", cookies); w.Code != http.StatusFound {
		t.Errorf("dashboard after logout status = %d, want 302", w.Code)
	}
}

func TestSignupOverlongPasswordIsBadRequest(t *testing.T) {
	r := newTestRouter(t, nil)

	body := `{"name":"Ann","email":"long@example.com","password":"` + strings.Repeat("a", 80) + `"}`
	w := serve(r, http.MethodPost, "/auth/signup", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["success"] != false || !strings.Contains(resp["message"].(string), "at most 72 bytes") {
		t.Errorf("response = %v", resp)
	}
}
