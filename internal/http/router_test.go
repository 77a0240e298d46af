package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"habits/internal/auth"
	"habits/internal/config"
	"habits/internal/habit"
	httpx "habits/internal/http"
	"habits/internal/logger"
	"habits/internal/metrics"
	"habits/internal/notify"
	"habits/internal/testutil"

	"gorm.io/gorm"
)

type env struct {
	t   *testing.T
	db  *gorm.DB
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := testutil.DB(t)
	log := logger.Nop()
	h := httpx.NewRouter(httpx.Deps{
		Config:  config.Config{PageSize: 5},
		DB:      gdb,
		JWT:     auth.NewJWT("test-secret", time.Hour),
		Log:     log,
		Metrics: metrics.New(),
		Linker:  &notify.Linker{DB: gdb, Client: notify.NewClient("http://127.0.0.1:1", ""), Log: log},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &env{t: t, db: gdb, srv: srv}
}

func (e *env) do(method, path, token string, body any, out any) int {
	e.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			e.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	if out != nil && resp.StatusCode == http.StatusBadRequest {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (e *env) register(email string) string {
	e.t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	code := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": "secret123"}, &out)
	if code != http.StatusCreated || out.Token == "" {
		e.t.Fatalf("register %s: status %d", email, code)
	}
	return out.Token
}

type habitResp struct {
	ID          uint64  `json:"id"`
	UserID      uint64  `json:"user_id"`
	Time        string  `json:"time"`
	Action      string  `json:"action"`
	IsPleasant  bool    `json:"is_pleasant"`
	LinkedHabit *uint64 `json:"linked_habit"`
	IsPublic    bool    `json:"is_public"`
}

type pageResp struct {
	Count   int64       `json:"count"`
	Page    int         `json:"page"`
	Results []habitResp `json:"results"`
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	if code := e.do(http.MethodGet, "/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)
	token := e.register("Alice@Example.com")

	if code := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "alice@example.com", "password": "secret123"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", code)
	}
	if code := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "b@example.com", "password": "short"}, nil); code != http.StatusBadRequest {
		t.Fatalf("short password: %d", code)
	}
	if code := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "b@example.com", "password": "secret123", "password2": "secret124"}, nil); code != http.StatusBadRequest {
		t.Fatalf("password mismatch: %d", code)
	}

	var me struct {
		Email string `json:"email"`
	}
	if code := e.do(http.MethodGet, "/me", token, nil, &me); code != http.StatusOK || me.Email != "alice@example.com" {
		t.Fatalf("me: %d %+v", code, me)
	}
	if code := e.do(http.MethodGet, "/me", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous me: %d", code)
	}

	change := map[string]string{"old_password": "secret123", "new_password": "better-secret"}
	if code := e.do(http.MethodPost, "/me/password", token, change, nil); code != http.StatusNoContent {
		t.Fatalf("change password: %d", code)
	}
	if code := e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret123"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("login with old password: %d", code)
	}
	if code := e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "better-secret"}, nil); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
}

func TestTemplateOwnerCannotLogin(t *testing.T) {
	e := newEnv(t)
	svc := &habit.Service{DB: e.db}
	owner, err := svc.EnsureTemplateOwner(context.Background())
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	hash, _ := auth.HashPassword("secret123")
	e.db.Model(owner).Update("password_hash", hash)

	body := map[string]string{"email": habit.TemplateOwnerEmail, "password": "secret123"}
	if code := e.do(http.MethodPost, "/auth/login", "", body, nil); code != http.StatusUnauthorized {
		t.Fatalf("system login: %d", code)
	}
}

func TestHabitCRUD(t *testing.T) {
	e := newEnv(t)
	alice := e.register("alice@example.com")
	bob := e.register("bob@example.com")

	var verr struct {
		Violations []struct {
			Rule string `json:"rule"`
		} `json:"violations"`
	}
	bad := map[string]any{"place": "Desk", "time": "09:00", "action": "Read", "is_pleasant": true, "reward": "cake"}
	if code := e.do(http.MethodPost, "/habits", alice, bad, &verr); code != http.StatusBadRequest {
		t.Fatalf("invalid create: %d", code)
	}
	if len(verr.Violations) != 1 || verr.Violations[0].Rule != string(habit.RulePleasantWithReward) {
		t.Fatalf("unexpected violations: %+v", verr)
	}

	var created habitResp
	good := map[string]any{"place": "Desk", "time": "09:00", "action": "Read", "is_public": true}
	if code := e.do(http.MethodPost, "/habits", alice, good, &created); code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}
	if created.Time != "09:00:00" || created.IsPublic {
		t.Fatalf("unexpected habit: %+v", created)
	}

	path := "/habits/" + itoa(created.ID)
	var updated habitResp
	if code := e.do(http.MethodPatch, path, alice, map[string]any{"action": "Read more"}, &updated); code != http.StatusOK || updated.Action != "Read more" {
		t.Fatalf("patch: %d %+v", code, updated)
	}
	if code := e.do(http.MethodGet, path, bob, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign get: %d", code)
	}
	if code := e.do(http.MethodDelete, path, bob, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign delete: %d", code)
	}

	var page pageResp
	if code := e.do(http.MethodGet, "/habits", alice, nil, &page); code != http.StatusOK || page.Count != 1 || page.Page != 1 {
		t.Fatalf("list: %d %+v", code, page)
	}

	if code := e.do(http.MethodDelete, path, alice, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if code := e.do(http.MethodGet, path, alice, nil, nil); code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", code)
	}
}

func TestPublicTemplates(t *testing.T) {
	e := newEnv(t)
	svc := &habit.Service{DB: e.db}
	if _, err := svc.EnsureTemplates(context.Background(), habit.Catalog); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := e.register("alice@example.com")

	var page pageResp
	if code := e.do(http.MethodGet, "/habits/public?q=shortcuts", "", nil, &page); code != http.StatusOK {
		t.Fatalf("public list: %d", code)
	}
	if page.Count != 1 || page.Results[0].LinkedHabit == nil {
		t.Fatalf("unexpected search result: %+v", page)
	}
	tpl := page.Results[0]

	if code := e.do(http.MethodPost, "/habits/public/"+itoa(tpl.ID)+"/adopt", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous adopt: %d", code)
	}
	var adopted habitResp
	if code := e.do(http.MethodPost, "/habits/public/"+itoa(tpl.ID)+"/adopt", token, nil, &adopted); code != http.StatusCreated {
		t.Fatalf("adopt: %d", code)
	}
	if adopted.IsPublic || adopted.LinkedHabit == nil || adopted.ID == tpl.ID {
		t.Fatalf("unexpected adopted habit: %+v", adopted)
	}

	var mine pageResp
	e.do(http.MethodGet, "/habits", token, nil, &mine)
	if mine.Count != 2 {
		t.Fatalf("expected 2 private habits after adopt, got %d", mine.Count)
	}

	if code := e.do(http.MethodDelete, "/habits/"+itoa(tpl.ID), token, nil, nil); code != http.StatusForbidden {
		t.Fatalf("delete template: %d", code)
	}
	if code := e.do(http.MethodPut, "/habits/"+itoa(tpl.ID), token, map[string]any{"place": "x"}, nil); code != http.StatusForbidden {
		t.Fatalf("update template: %d", code)
	}
	if code := e.do(http.MethodPost, "/habits/public/"+itoa(adopted.ID)+"/adopt", token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("adopt private habit: %d", code)
	}
}

func TestTelegramLink(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com")

	var link struct {
		Code    string  `json:"code"`
		TmeLink *string `json:"tme_link"`
	}
	if code := e.do(http.MethodPost, "/telegram/link?bot=habits_bot", token, nil, &link); code != http.StatusOK {
		t.Fatalf("link: %d", code)
	}
	if link.TmeLink == nil || *link.TmeLink != "https://t.me/habits_bot?start="+link.Code {
		t.Fatalf("unexpected link: %+v", link)
	}

	var status struct {
		Linked bool `json:"linked"`
	}
	if code := e.do(http.MethodGet, "/me/telegram", token, nil, &status); code != http.StatusOK || status.Linked {
		t.Fatalf("telegram status: %d %+v", code, status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	resp, err := e.srv.Client().Get(e.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response: %d", resp.StatusCode)
	}
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func TestRegisterStoreFailureIsServerError(t *testing.T) {
	e := newEnv(t)
	sqlDB, err := e.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	_ = sqlDB.Close()

	body := map[string]string{"email": "alice@example.com", "password": "secret123"}
	if code := e.do(http.MethodPost, "/auth/register", "", body, nil); code != http.StatusInternalServerError {
		t.Fatalf("register on closed store: %d", code)
	}
}
