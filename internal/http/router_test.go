package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/adventure"
	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
	"github.com/taskventure/taskventure-backend/internal/clients/xp"
	"github.com/taskventure/taskventure-backend/internal/db"
	httpH "github.com/taskventure/taskventure-backend/internal/http/handlers"
	httpMW "github.com/taskventure/taskventure-backend/internal/http/middleware"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
	"github.com/taskventure/taskventure-backend/internal/repos"
	"github.com/taskventure/taskventure-backend/internal/services"
)

type stubTaskSource struct {
	snap tasks.Snapshot
}

func (s *stubTaskSource) Snapshot(ctx context.Context, userID uuid.UUID) (tasks.Snapshot, error) {
	return s.snap, nil
}

type stubXPService struct{}

func (s *stubXPService) Credit(ctx context.Context, userID uuid.UUID, amount int, reason string, idempotencyKey uuid.UUID) (*xp.Result, error) {
	return &xp.Result{Level: 1, Rank: "novice", TotalXP: amount}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubTaskSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logger.NewNop()
	userRepo := repos.NewUserRepo(gdb, log)
	tokenRepo := repos.NewUserTokenRepo(gdb, log)

	authService := services.NewAuthService(gdb, log, userRepo, tokenRepo, "test-secret", time.Hour, 24*time.Hour)
	userService := services.NewUserService(gdb, log, userRepo)

	source := &stubTaskSource{snap: tasks.Snapshot{FetchedAt: time.Now()}}
	engine := adventure.NewEngine(
		gdb,
		log,
		adventure.NewCatalog(),
		userRepo,
		repos.NewGeneratedPathRepo(gdb, log),
		repos.NewProgressRepo(gdb, log),
		repos.NewNodeCompletionRepo(gdb, log),
		repos.NewXPCreditRepo(gdb, log),
		repos.NewBossEventRepo(gdb, log),
		source,
		&stubXPService{},
		nil,
	)

	router := NewRouter(RouterConfig{
		Log:              log,
		AuthMiddleware:   httpMW.NewAuthMiddleware(log, authService),
		AuthHandler:      httpH.NewAuthHandler(log, authService),
		UserHandler:      httpH.NewUserHandler(log, userService),
		AdventureHandler: httpH.NewAdventureHandler(log, engine),
	})
	return router, source
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v (body=%s)", method, path, err, rec.Body.String())
	}
	return rec, env
}

func registerAndLogin(t *testing.T, router *gin.Engine) string {
	t.Helper()

	rec, env := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{
		"email":    "hero@example.com",
		"password": "supersecret",
		"username": "hero",
		"timezone": "UTC",
	})
	if rec.Code != http.StatusCreated || env.Status != "success" {
		t.Fatalf("register failed: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{
		"email":    "hero@example.com",
		"password": "supersecret",
	})
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("login failed: code=%d body=%s", rec.Code, rec.Body.String())
	}

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Fatalf("login returned no access token")
	}
	return tokens.AccessToken
}

func TestHealthcheck(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/healthcheck", "", nil)
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("unexpected healthcheck response: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerAndLogin(t, router)

	rec, env := doJSON(t, router, http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me failed: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var me struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "hero@example.com" {
		t.Fatalf("unexpected email: %q", me.Email)
	}
	if me.Password != "" {
		t.Fatalf("password hash must never serialize")
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusUnauthorized || env.Code != "unauthenticated" {
		t.Fatalf("revoked token must be rejected: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerAndLogin(t, router)

	rec, env := doJSON(t, router, http.MethodPost, "/api/refresh", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh failed: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens.AccessToken == "" || tokens.AccessToken == token {
		t.Fatalf("refresh must issue a new access token")
	}

	// The old access token was revoked by the rotation.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old token must be rejected after refresh: code=%d", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/api/me", tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("new token must work: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/me", "/api/worlds", "/api/progress", "/api/map"} {
		rec, env := doJSON(t, router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: code=%d want=401", path, rec.Code)
		}
		if env.Status != "error" || env.Code != "unauthenticated" {
			t.Fatalf("%s unexpected envelope: %s", path, rec.Body.String())
		}
	}
}

func TestWorldEndpoints(t *testing.T) {
	router, source := newTestRouter(t)
	token := registerAndLogin(t, router)

	rec, env := doJSON(t, router, http.MethodGet, "/api/worlds", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list worlds: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var worlds struct {
		Worlds []struct {
			Number int    `json:"number"`
			Status string `json:"status"`
		} `json:"worlds"`
	}
	if err := json.Unmarshal(env.Data, &worlds); err != nil {
		t.Fatalf("decode worlds: %v", err)
	}
	if len(worlds.Worlds) != 8 {
		t.Fatalf("unexpected world count: got=%d want=8", len(worlds.Worlds))
	}
	if worlds.Worlds[0].Status != "unlocked" || worlds.Worlds[1].Status != "locked" {
		t.Fatalf("unexpected initial statuses: %+v", worlds.Worlds[:2])
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/worlds/2/path", token, nil)
	if rec.Code != http.StatusForbidden || env.Code != "not_accessible" {
		t.Fatalf("locked world path: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/worlds/1/path", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("world 1 path: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var path struct {
		StartKey string `json:"start_key"`
		Nodes    []struct {
			PositionKey string `json:"position_key"`
			Status      string `json:"status"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(env.Data, &path); err != nil {
		t.Fatalf("decode path: %v", err)
	}
	if len(path.Nodes) == 0 || path.Nodes[0].Status != "unlocked" {
		t.Fatalf("unexpected path shape: %s", env.Data)
	}

	// Unmet objectives surface as an objective_unmet error carrying the
	// per-objective progress, not a bare failure.
	rec, env = doJSON(t, router, http.MethodPost, "/api/worlds/1/levels/"+path.StartKey+"/complete", token, nil)
	if rec.Code != http.StatusBadRequest || env.Code != "objective_unmet" {
		t.Fatalf("unmet completion: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(env.Data) == 0 {
		t.Fatalf("objective_unmet must carry progress detail")
	}

	// Completing a task upstream flips the check to success.
	done := time.Now()
	source.snap = tasks.Snapshot{
		FetchedAt: done,
		Tasks: []tasks.Task{{
			ID: "t1", Title: "Water the plants", List: "home",
			Completed: true, CompletedAt: &done,
		}},
	}
	rec, env = doJSON(t, router, http.MethodPost, "/api/worlds/1/levels/"+path.StartKey+"/complete", token, nil)
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("met completion: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/worlds/1/boss", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("boss challenge: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var boss struct {
		Accessible bool `json:"accessible"`
		Boss       struct {
			Name string `json:"name"`
		} `json:"boss"`
	}
	if err := json.Unmarshal(env.Data, &boss); err != nil {
		t.Fatalf("decode boss: %v", err)
	}
	if boss.Accessible {
		t.Fatalf("boss should still be gated")
	}
	if boss.Boss.Name == "" {
		t.Fatalf("boss definition missing")
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/worlds/99/path", token, nil)
	if rec.Code != http.StatusNotFound || env.Code != "not_found" {
		t.Fatalf("unknown world: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/progress", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var progress struct {
		CurrentWorld    int `json:"current_world"`
		LevelsCompleted int `json:"levels_completed"`
	}
	if err := json.Unmarshal(env.Data, &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.CurrentWorld != 1 || progress.LevelsCompleted != 1 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}
