package httpapi

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

	"github.com/organizer-live/organizer/internal/app/form"
	"github.com/organizer-live/organizer/internal/app/identity"
	"github.com/organizer-live/organizer/internal/contracts"
	"github.com/organizer-live/organizer/internal/store"
)

type fakeIdentityRepo struct {
	users         map[string]identity.User
	refreshByHash map[string]identity.RefreshToken
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		users:         map[string]identity.User{},
		refreshByHash: map[string]identity.RefreshToken{},
	}
}

func (f *fakeIdentityRepo) EnsureSchema(ctx context.Context) error { return nil }
func (f *fakeIdentityRepo) CreateUser(ctx context.Context, user identity.User) error {
	for _, u := range f.users {
		if u.Username == user.Username {
			return errors.New("duplicate")
		}
	}
	f.users[user.ID] = user
	return nil
}
func (f *fakeIdentityRepo) FindUserByUsername(ctx context.Context, username string) (identity.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return identity.User{}, identity.ErrNotFound
}
func (f *fakeIdentityRepo) FindUserByID(ctx context.Context, userID string) (identity.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}
func (f *fakeIdentityRepo) CreateRefreshToken(ctx context.Context, token identity.RefreshToken) error {
	f.refreshByHash[token.TokenHash] = token
	return nil
}
func (f *fakeIdentityRepo) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (identity.RefreshToken, error) {
	rt, ok := f.refreshByHash[tokenHash]
	if !ok || rt.RevokedAt != nil {
		return identity.RefreshToken{}, identity.ErrNotFound
	}
	return rt, nil
}
func (f *fakeIdentityRepo) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	now := time.Now().UTC()
	for hash, rt := range f.refreshByHash {
		if rt.TokenID == tokenID {
			rt.RevokedAt = &now
			f.refreshByHash[hash] = rt
		}
	}
	return nil
}

func newHandlerForTests(t *testing.T) (*Handler, *store.MemoryStore, string) {
	t.Helper()

	repo := newFakeIdentityRepo()
	identitySvc := identity.NewService(repo, identity.NewTokenManager("secret"))
	if _, err := identitySvc.Register(context.Background(), "alice", "password123", "Alice"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	memory := store.NewMemoryStore()
	handler := NewHandler(memory, identitySvc, "http://localhost:8081")

	login, err := identitySvc.Login(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("seed login: %v", err)
	}
	return handler, memory, login.AccessToken
}

func doJSON(handler *Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)
	return rr
}

func validEvent() eventRequest {
	return eventRequest{
		Title:       "Team offsite",
		Description: "Bring laptops",
		Date:        "2024-03-10",
		Icon:        "pi pi-calendar",
		Colour:      "607D8B",
	}
}

func TestEvents_RequireAuth(t *testing.T) {
	handler, _, _ := newHandlerForTests(t)

	rr := doJSON(handler, http.MethodGet, "/api/v1/events", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = doJSON(handler, http.MethodPost, "/api/v1/events", "garbage-token", validEvent())
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rr.Code)
	}
}

func TestCreateListReplaceDelete(t *testing.T) {
	handler, _, token := newHandlerForTests(t)

	rr := doJSON(handler, http.MethodPost, "/api/v1/events", token, validEvent())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil || created["id"] == "" {
		t.Fatalf("create response missing id: %s", rr.Body.String())
	}
	id := created["id"]

	rr = doJSON(handler, http.MethodGet, "/api/v1/events", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var listed listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("list JSON: %v", err)
	}
	if len(listed.Records) != 1 || listed.Records[0].ID != id || listed.Records[0].Title != "Team offsite" {
		t.Fatalf("unexpected list: %+v", listed.Records)
	}

	update := validEvent()
	update.Title = "Team offsite (moved)"
	update.Date = "2024-03-11"
	rr = doJSON(handler, http.MethodPut, "/api/v1/events/"+id, token, update)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("replace: expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(handler, http.MethodDelete, "/api/v1/events/"+id, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}

	rr = doJSON(handler, http.MethodGet, "/api/v1/events", token, nil)
	listed = listResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("list JSON: %v", err)
	}
	if len(listed.Records) != 0 {
		t.Fatalf("collection should be empty, got %+v", listed.Records)
	}
}

func TestCreateEvent_ValidationErrors(t *testing.T) {
	handler, memory, token := newHandlerForTests(t)

	bad := validEvent()
	bad.Title = ""
	bad.Colour = "not-a-colour"
	rr := doJSON(handler, http.MethodPost, "/api/v1/events", token, bad)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Error  string           `json:"error"`
		Fields form.FieldErrors `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error JSON: %v", err)
	}
	if resp.Fields.Title == "" || resp.Fields.Colour == "" {
		t.Fatalf("expected title and colour errors, got %+v", resp.Fields)
	}
	if resp.Fields.Description != "" {
		t.Fatalf("description was valid, got %+v", resp.Fields)
	}

	if snapshot, _ := memory.List(context.Background()); len(snapshot) != 0 {
		t.Fatalf("invalid payload must not reach the store, got %+v", snapshot)
	}
}

func TestCreateEvent_BadDateFormat(t *testing.T) {
	handler, _, token := newHandlerForTests(t)

	bad := validEvent()
	bad.Date = "10/03/2024"
	rr := doJSON(handler, http.MethodPost, "/api/v1/events", token, bad)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Date") {
		t.Fatalf("expected a date field error, got %s", rr.Body.String())
	}
}

func TestReplaceAndDelete_UnknownRecord(t *testing.T) {
	handler, _, token := newHandlerForTests(t)

	rr := doJSON(handler, http.MethodPut, "/api/v1/events/missing", token, validEvent())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("replace: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(handler, http.MethodDelete, "/api/v1/events/missing", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete: expected 404, got %d", rr.Code)
	}
}

func TestCreateEvent_StoreOutage(t *testing.T) {
	handler, memory, token := newHandlerForTests(t)
	memory.FailNext("create", errors.New("connection refused"))

	rr := doJSON(handler, http.MethodPost, "/api/v1/events", token, validEvent())
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "could not write the record") {
		t.Fatalf("expected the store detail, got %s", rr.Body.String())
	}
}

func TestExportICS(t *testing.T) {
	handler, memory, token := newHandlerForTests(t)
	memory.SeedRecord("rec-1", contracts.EventFields{
		Title:       "Release day",
		Description: "Ship it",
		Date:        time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Icon:        "pi pi-calendar",
		Colour:      "607D8B",
	})

	rr := doJSON(handler, http.MethodGet, "/api/v1/events.ics", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "UID:rec-1") || !strings.Contains(body, "SUMMARY:Release day") {
		t.Fatalf("unexpected calendar:\n%s", body)
	}
}

func TestMe(t *testing.T) {
	handler, _, token := newHandlerForTests(t)

	rr := doJSON(handler, http.MethodGet, "/api/v1/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var me map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("me JSON: %v", err)
	}
	if me["username"] != "alice" || me["display_name"] != "Alice" {
		t.Fatalf("unexpected me payload: %v", me)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	handler, _, _ := newHandlerForTests(t)

	rr := doJSON(handler, http.MethodPost, "/api/v1/auth/register", "",
		registerRequest{Username: "bob", Password: "password123", DisplayName: "Bob"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var reg identity.AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &reg); err != nil {
		t.Fatalf("register JSON: %v", err)
	}

	rr = doJSON(handler, http.MethodPost, "/api/v1/auth/refresh", "",
		refreshRequest{RefreshToken: reg.RefreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var refreshed identity.AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("refresh JSON: %v", err)
	}

	rr = doJSON(handler, http.MethodPost, "/api/v1/auth/logout", "",
		refreshRequest{RefreshToken: refreshed.RefreshToken})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rr.Code)
	}

	rr = doJSON(handler, http.MethodPost, "/api/v1/auth/refresh", "",
		refreshRequest{RefreshToken: refreshed.RefreshToken})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh: expected 401, got %d", rr.Code)
	}

	rr = doJSON(handler, http.MethodPost, "/api/v1/auth/register", "",
		registerRequest{Username: "bob", Password: "password123"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rr.Code)
	}
}
