package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fixyhq/fixy/internal/config"
	"github.com/fixyhq/fixy/internal/entitlement"
	"github.com/fixyhq/fixy/internal/ledger"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/ratelimit"
	"github.com/fixyhq/fixy/internal/realtime"
	"github.com/fixyhq/fixy/internal/vault"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type testServer struct {
	engine *gin.Engine
	conn   *gorm.DB
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	errMigrate := conn.AutoMigrate(
		&models.User{}, &models.CreditAccount{}, &models.CreditTransaction{},
		&models.BYOKCredential{}, &models.Chatroom{}, &models.ChatroomParticipant{},
		&models.Agent{}, &models.Message{},
	)
	if errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)

	v, errVault := vault.New(conn, testHexKey, nil)
	if errVault != nil {
		t.Fatalf("new vault: %v", errVault)
	}

	engine := gin.New()
	RegisterRoutes(engine, Deps{
		DB:        conn,
		JWT:       config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		Ledger:    ledger.New(conn, nil),
		Vault:     v,
		Evaluator: entitlement.NewEvaluator(conn, v),
		Publisher: realtime.NopPublisher{},
		Limiter:   ratelimit.NewManager(nil, nil),
		RateLimit: rateLimit,
	})
	return &testServer{engine: engine, conn: conn}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	return recorder
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     strings.Split(email, "@")[0],
		"password": "long enough password",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	return gjson.Get(resp.Body.String(), "token").String()
}

func (s *testServer) setPlan(t *testing.T, email string, plan models.Plan) {
	t.Helper()
	if errUpdate := s.conn.Model(&models.User{}).Where("email = ?", email).Update("plan", plan).Error; errUpdate != nil {
		t.Fatalf("set plan: %v", errUpdate)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.register(t, "alice@example.com")

	me := s.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", me.Code)
	}
	if got := gjson.Get(me.Body.String(), "user.plan").String(); got != "Trial" {
		t.Fatalf("expected new user on Trial, got %q", got)
	}
	if gjson.Get(me.Body.String(), "user.password").Exists() {
		t.Fatalf("password leaked in response")
	}

	duplicate := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "long enough password",
	})
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", duplicate.Code)
	}

	badLogin := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if badLogin.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d", badLogin.Code)
	}

	login := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "long enough password",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d", login.Code)
	}

	if unauthorized := s.do(t, http.MethodGet, "/v1/auth/me", "", nil); unauthorized.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", unauthorized.Code)
	}
}

func TestRegister_SeedsTrialCredits(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.register(t, "bob@example.com")

	credits := s.do(t, http.MethodGet, "/v1/credits", token, nil)
	if credits.Code != http.StatusOK {
		t.Fatalf("credits: expected 200, got %d", credits.Code)
	}
	body := credits.Body.String()
	if got := gjson.Get(body, "credits.limit").Float(); got != 50 {
		t.Fatalf("expected trial limit 50, got %v", got)
	}
	if got := gjson.Get(body, "credits.used").Float(); got != 0 {
		t.Fatalf("expected used 0, got %v", got)
	}
}

func TestChatrooms_GroupRequiresTeams(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.register(t, "carol@example.com")

	denied := s.do(t, http.MethodPost, "/v1/chatrooms", token, map[string]string{"title": "squad", "type": "group"})
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for group room on trial, got %d", denied.Code)
	}
	if !gjson.Get(denied.Body.String(), "upgrade_required").Bool() {
		t.Fatalf("expected upgrade_required flag, got %s", denied.Body.String())
	}

	allowedPrivate := s.do(t, http.MethodPost, "/v1/chatrooms", token, map[string]string{"title": "mine"})
	if allowedPrivate.Code != http.StatusCreated {
		t.Fatalf("expected 201 for private room, got %d", allowedPrivate.Code)
	}

	s.setPlan(t, "carol@example.com", models.PlanTeams)
	allowedGroup := s.do(t, http.MethodPost, "/v1/chatrooms", token, map[string]string{"title": "squad", "type": "group"})
	if allowedGroup.Code != http.StatusCreated {
		t.Fatalf("expected 201 for group room on teams, got %d", allowedGroup.Code)
	}

	list := s.do(t, http.MethodGet, "/v1/chatrooms", token, nil)
	if got := gjson.Get(list.Body.String(), "chatrooms.#").Int(); got != 2 {
		t.Fatalf("expected 2 rooms, got %d", got)
	}
}

func TestChatrooms_GetAndDelete(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice@example.com")
	mallory := s.register(t, "mallory@example.com")

	created := s.do(t, http.MethodPost, "/v1/chatrooms", alice, map[string]string{"title": "mine"})
	roomID := gjson.Get(created.Body.String(), "chatroom.id").Int()
	path := fmt.Sprintf("/v1/chatrooms/%d", roomID)

	if got := s.do(t, http.MethodGet, path, alice, nil); got.Code != http.StatusOK {
		t.Fatalf("expected 200 for member, got %d", got.Code)
	}
	if outsider := s.do(t, http.MethodGet, path, mallory, nil); outsider.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-member, got %d", outsider.Code)
	}
	if denied := s.do(t, http.MethodDelete, path, mallory, nil); denied.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting another user's room, got %d", denied.Code)
	}
	if removed := s.do(t, http.MethodDelete, path, alice, nil); removed.Code != http.StatusOK {
		t.Fatalf("expected 200 on owner delete, got %d", removed.Code)
	}
	if gone := s.do(t, http.MethodGet, path, alice, nil); gone.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", gone.Code)
	}
}

func TestChatrooms_Participants(t *testing.T) {
	s := newTestServer(t, 0)
	owner := s.register(t, "owner@example.com")
	guest := s.register(t, "guest@example.com")
	s.setPlan(t, "owner@example.com", models.PlanTeams)

	created := s.do(t, http.MethodPost, "/v1/chatrooms", owner, map[string]string{"title": "squad", "type": "group"})
	roomID := gjson.Get(created.Body.String(), "chatroom.id").Int()

	var guestUser models.User
	if errFind := s.conn.Where("email = ?", "guest@example.com").First(&guestUser).Error; errFind != nil {
		t.Fatalf("find guest: %v", errFind)
	}

	addPath := fmt.Sprintf("/v1/chatrooms/%d/participants", roomID)
	if denied := s.do(t, http.MethodPost, addPath, guest, map[string]uint64{"user_id": guestUser.ID}); denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner add, got %d", denied.Code)
	}
	if added := s.do(t, http.MethodPost, addPath, owner, map[string]uint64{"user_id": guestUser.ID}); added.Code != http.StatusCreated {
		t.Fatalf("expected 201 on add, got %d: %s", added.Code, added.Body.String())
	}
	if again := s.do(t, http.MethodPost, addPath, owner, map[string]uint64{"user_id": guestUser.ID}); again.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat add, got %d", again.Code)
	}

	if got := s.do(t, http.MethodGet, fmt.Sprintf("/v1/chatrooms/%d", roomID), guest, nil); got.Code != http.StatusOK {
		t.Fatalf("expected member access after add, got %d", got.Code)
	}

	leavePath := fmt.Sprintf("/v1/chatrooms/%d/participants/%d", roomID, guestUser.ID)
	if left := s.do(t, http.MethodDelete, leavePath, guest, nil); left.Code != http.StatusOK {
		t.Fatalf("expected 200 on leave, got %d", left.Code)
	}
	if got := s.do(t, http.MethodGet, fmt.Sprintf("/v1/chatrooms/%d", roomID), guest, nil); got.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after leaving, got %d", got.Code)
	}
}

func TestBYOK_PlanGateAndKeySecrecy(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.register(t, "dave@example.com")

	denied := s.do(t, http.MethodPost, "/v1/byok", token, map[string]string{"provider": "anthropic", "api_key": "sk-ant-secret"})
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on trial, got %d", denied.Code)
	}
	if !gjson.Get(denied.Body.String(), "upgrade_required").Bool() {
		t.Fatalf("expected upgrade_required flag")
	}

	s.setPlan(t, "dave@example.com", models.PlanElite)
	stored := s.do(t, http.MethodPost, "/v1/byok", token, map[string]string{"provider": "anthropic", "api_key": "sk-ant-secret"})
	if stored.Code != http.StatusOK {
		t.Fatalf("expected 200 on elite, got %d: %s", stored.Code, stored.Body.String())
	}
	if strings.Contains(stored.Body.String(), "sk-ant-secret") {
		t.Fatalf("api key leaked in response")
	}

	var row models.BYOKCredential
	if errFind := s.conn.Where("provider = ?", "anthropic").First(&row).Error; errFind != nil {
		t.Fatalf("find credential: %v", errFind)
	}
	if strings.Contains(row.APIKeyEncrypted, "sk-ant-secret") {
		t.Fatalf("api key stored in plaintext")
	}

	// Re-adding replaces the key instead of growing a second row.
	again := s.do(t, http.MethodPost, "/v1/byok", token, map[string]string{"provider": "anthropic", "api_key": "sk-ant-other"})
	if again.Code != http.StatusOK {
		t.Fatalf("expected 200 on upsert, got %d", again.Code)
	}
	var count int64
	s.conn.Model(&models.BYOKCredential{}).Where("provider = ?", "anthropic").Count(&count)
	if count != 1 {
		t.Fatalf("expected single row per provider, got %d", count)
	}

	list := s.do(t, http.MethodGet, "/v1/byok", token, nil)
	if strings.Contains(list.Body.String(), "sk-ant") {
		t.Fatalf("api key leaked in list response")
	}

	removed := s.do(t, http.MethodDelete, "/v1/byok/anthropic", token, nil)
	if removed.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", removed.Code)
	}
	emptied := s.do(t, http.MethodGet, "/v1/byok", token, nil)
	if got := gjson.Get(emptied.Body.String(), "credentials.#").Int(); got != 0 {
		t.Fatalf("expected no active credentials, got %d", got)
	}
}

func TestMessages_MembershipAndSend(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice@example.com")
	mallory := s.register(t, "mallory@example.com")

	created := s.do(t, http.MethodPost, "/v1/chatrooms", alice, map[string]string{"title": "mine"})
	roomID := gjson.Get(created.Body.String(), "chatroom.id").Int()

	outsider := s.do(t, http.MethodGet, fmt.Sprintf("/v1/chatrooms/%d/messages", roomID), mallory, nil)
	if outsider.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-member, got %d", outsider.Code)
	}

	stale := time.Now().UTC().Add(-time.Hour)
	if errBackdate := s.conn.Model(&models.Chatroom{}).
		Where("id = ?", roomID).
		UpdateColumn("updated_at", stale).Error; errBackdate != nil {
		t.Fatalf("backdate room: %v", errBackdate)
	}

	sent := s.do(t, http.MethodPost, fmt.Sprintf("/v1/chatrooms/%d/messages", roomID), alice, map[string]string{"content": "hello"})
	if sent.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", sent.Code, sent.Body.String())
	}

	// Sending refreshes the room's activity so List keeps it sorted correctly.
	var room models.Chatroom
	if errFind := s.conn.First(&room, roomID).Error; errFind != nil {
		t.Fatalf("reload room: %v", errFind)
	}
	if !room.UpdatedAt.After(stale) {
		t.Fatalf("expected chatroom activity bumped past %v, got %v", stale, room.UpdatedAt)
	}

	empty := s.do(t, http.MethodPost, fmt.Sprintf("/v1/chatrooms/%d/messages", roomID), alice, map[string]string{"content": "   "})
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank content, got %d", empty.Code)
	}

	list := s.do(t, http.MethodGet, fmt.Sprintf("/v1/chatrooms/%d/messages", roomID), alice, nil)
	if got := gjson.Get(list.Body.String(), "messages.#").Int(); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}
	if got := gjson.Get(list.Body.String(), "messages.0.content").String(); got != "hello" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestMessages_RateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	alice := s.register(t, "alice@example.com")
	created := s.do(t, http.MethodPost, "/v1/chatrooms", alice, map[string]string{"title": "mine"})
	roomID := gjson.Get(created.Body.String(), "chatroom.id").Int()

	path := fmt.Sprintf("/v1/chatrooms/%d/messages", roomID)
	for i := 0; i < 2; i++ {
		if resp := s.do(t, http.MethodPost, path, alice, map[string]string{"content": "hi"}); resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 for message %d, got %d", i+1, resp.Code)
		}
	}
	limited := s.do(t, http.MethodPost, path, alice, map[string]string{"content": "hi"})
	if limited.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", limited.Code)
	}
	if limited.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestAgents_CreateRequiresKnownModel(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice@example.com")
	created := s.do(t, http.MethodPost, "/v1/chatrooms", alice, map[string]string{"title": "mine"})
	roomID := gjson.Get(created.Body.String(), "chatroom.id").Int()

	bad := s.do(t, http.MethodPost, fmt.Sprintf("/v1/chatrooms/%d/agents", roomID), alice, map[string]any{
		"name": "Helper", "model_id": "gpt-2",
	})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown model, got %d", bad.Code)
	}

	good := s.do(t, http.MethodPost, fmt.Sprintf("/v1/chatrooms/%d/agents", roomID), alice, map[string]any{
		"name": "Helper", "model_id": "gpt-4o",
		"config": map[string]any{"system_prompt": "Be brief."},
	})
	if good.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", good.Code, good.Body.String())
	}
	agentID := gjson.Get(good.Body.String(), "agent.id").Int()

	removed := s.do(t, http.MethodDelete, fmt.Sprintf("/v1/chatrooms/%d/agents/%d", roomID, agentID), alice, nil)
	if removed.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", removed.Code)
	}
	list := s.do(t, http.MethodGet, fmt.Sprintf("/v1/chatrooms/%d/agents", roomID), alice, nil)
	if got := gjson.Get(list.Body.String(), "agents.#").Int(); got != 0 {
		t.Fatalf("expected no active agents, got %d", got)
	}
}

func TestModels_Availability(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.register(t, "alice@example.com")

	resp := s.do(t, http.MethodGet, "/v1/models", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if got := gjson.Get(body, `models.#(id=="gpt-4o").available`).Bool(); !got {
		t.Fatalf("expected gpt-4o available on trial")
	}
	entry := gjson.Get(body, `models.#(id=="claude-3-opus")`)
	if entry.Get("available").Bool() {
		t.Fatalf("expected claude-3-opus unavailable on trial")
	}
	if got := entry.Get("reason").String(); got != "requires_elite_plan" {
		t.Fatalf("expected requires_elite_plan, got %q", got)
	}
}
