package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/store"
)

func newUserRouter(users store.UserStore) http.Handler {
	h := NewUserHandler(users)
	r := chi.NewRouter()
	r.Post("/users/", h.Create)
	r.Get("/users/", h.List)
	r.Post("/users/query", h.Query)
	r.Get("/users/search", h.SearchByName)
	r.Get("/users/stats/overview", h.Stats)
	r.Get("/users/email/{email}", h.GetByEmail)
	r.Get("/users/discord/{userID}/{guildID}", h.GetByDiscordID)
	r.Get("/users/tags/{tag}", h.GetByTag)
	r.Get("/users/{id}", h.GetByID)
	r.Put("/users/{id}", h.Update)
	r.Delete("/users/{id}", h.Delete)
	r.Post("/users/{id}/tags/{tag}", h.AddTag)
	r.Delete("/users/{id}/tags/{tag}", h.RemoveTag)
	r.Post("/users/{id}/activate", h.Activate)
	r.Post("/users/{id}/deactivate", h.Deactivate)
	r.Post("/users/{id}/login", h.RecordLogin)
	return r
}

func do(t *testing.T, router http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
	}
	return body
}

func TestCreateUser(t *testing.T) {
	users := store.NewMockUserStore()
	router := newUserRouter(users)

	payload := map[string]interface{}{
		"user_id":   123456789,
		"guild_id":  987654321,
		"real_name": "Wang Xiaoming",
		"email":     "wang@example.com",
		"source":    "discord",
	}
	w := do(t, router, http.MethodPost, "/users/", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	body := decodeEnvelope(t, w)
	if body["success"] != true {
		t.Errorf(`body["success"] = %v, want true`, body["success"])
	}

	// Creating the same discord identity again conflicts.
	w = do(t, router, http.MethodPost, "/users/", payload)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", w.Code)
	}
}

func TestCreateUserValidation(t *testing.T) {
	router := newUserRouter(store.NewMockUserStore())

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"missing email", map[string]interface{}{"user_id": 1, "guild_id": 2, "real_name": "X"}},
		{"missing real_name", map[string]interface{}{"user_id": 1, "guild_id": 2, "email": "x@y.z"}},
		{"missing ids", map[string]interface{}{"real_name": "X", "email": "x@y.z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, router, http.MethodPost, "/users/", tt.payload); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", w.Code)
	}
}

func TestGetUserByID(t *testing.T) {
	users := store.NewMockUserStore()
	u := users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "Alice", Email: "alice@example.com"})
	router := newUserRouter(users)

	w := do(t, router, http.MethodGet, "/users/"+u.ID.Hex(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/users/aaaaaaaaaaaaaaaaaaaaaaaa", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d, want 404", w.Code)
	}
}

func TestGetUserByEmailAndDiscordID(t *testing.T) {
	users := store.NewMockUserStore()
	users.Seed(&entity.User{UserID: 42, GuildID: 7, RealName: "Bob", Email: "bob@example.com"})
	router := newUserRouter(users)

	w := do(t, router, http.MethodGet, "/users/email/bob@example.com", nil)
	if w.Code != http.StatusOK {
		t.Errorf("by email status = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/users/discord/42/7", nil)
	if w.Code != http.StatusOK {
		t.Errorf("by discord id status = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/users/discord/42/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("wrong guild status = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, "/users/discord/notanumber/7", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad user id status = %d, want 400", w.Code)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	users := store.NewMockUserStore()
	u := users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "Carol", Email: "carol@example.com", Source: "discord"})
	router := newUserRouter(users)

	w := do(t, router, http.MethodPut, "/users/"+u.ID.Hex(), map[string]interface{}{
		"real_name": "Caroline",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	body := decodeEnvelope(t, w)
	data, _ := body["data"].(map[string]interface{})
	if data["real_name"] != "Caroline" {
		t.Errorf("real_name = %v, want Caroline", data["real_name"])
	}
	// Unset fields survive a partial update.
	if data["email"] != "carol@example.com" || data["source"] != "discord" {
		t.Errorf("partial update clobbered fields: %v", data)
	}

	w = do(t, router, http.MethodPut, "/users/"+u.ID.Hex(), map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty update status = %d, want 400", w.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	users := store.NewMockUserStore()
	u := users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "Dan", Email: "dan@example.com"})
	router := newUserRouter(users)

	if w := do(t, router, http.MethodDelete, "/users/"+u.ID.Hex(), nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/users/"+u.ID.Hex(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestQueryAndList(t *testing.T) {
	users := store.NewMockUserStore()
	for i := 0; i < 15; i++ {
		users.Seed(&entity.User{
			UserID:   int64(1000 + i),
			GuildID:  7,
			RealName: fmt.Sprintf("User %02d", i),
			Email:    fmt.Sprintf("user%02d@example.com", i),
		})
	}
	router := newUserRouter(users)

	w := do(t, router, http.MethodPost, "/users/query", map[string]interface{}{"guild_id": 7, "limit": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d, want 200", w.Code)
	}
	body := decodeEnvelope(t, w)
	data, _ := body["data"].(map[string]interface{})
	if data["count"] != float64(5) {
		t.Errorf("query count = %v, want 5", data["count"])
	}

	w = do(t, router, http.MethodGet, "/users/?limit=100", nil)
	body = decodeEnvelope(t, w)
	data, _ = body["data"].(map[string]interface{})
	if data["total"] != float64(15) {
		t.Errorf("list total = %v, want 15", data["total"])
	}
	if data["count"] != float64(15) {
		t.Errorf("list count = %v, want 15", data["count"])
	}

	// The default page size applies when no limit is given.
	w = do(t, router, http.MethodGet, "/users/", nil)
	body = decodeEnvelope(t, w)
	data, _ = body["data"].(map[string]interface{})
	if data["count"] != float64(10) {
		t.Errorf("default page count = %v, want 10", data["count"])
	}
}

func TestTags(t *testing.T) {
	users := store.NewMockUserStore()
	u := users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "Eve", Email: "eve@example.com"})
	router := newUserRouter(users)

	if w := do(t, router, http.MethodPost, "/users/"+u.ID.Hex()+"/tags/staff", nil); w.Code != http.StatusOK {
		t.Fatalf("add tag status = %d, want 200", w.Code)
	}

	w := do(t, router, http.MethodGet, "/users/tags/staff", nil)
	body := decodeEnvelope(t, w)
	data, _ := body["data"].(map[string]interface{})
	if data["count"] != float64(1) {
		t.Errorf("tagged count = %v, want 1", data["count"])
	}

	if w := do(t, router, http.MethodDelete, "/users/"+u.ID.Hex()+"/tags/staff", nil); w.Code != http.StatusOK {
		t.Fatalf("remove tag status = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/users/tags/staff", nil)
	body = decodeEnvelope(t, w)
	data, _ = body["data"].(map[string]interface{})
	if data["count"] != float64(0) {
		t.Errorf("tagged count after removal = %v, want 0", data["count"])
	}
}

func TestSearchByName(t *testing.T) {
	users := store.NewMockUserStore()
	users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "Frank Liu", Email: "frank@example.com"})
	users.Seed(&entity.User{UserID: 2, GuildID: 2, RealName: "Grace Chen", Email: "grace@example.com"})
	router := newUserRouter(users)

	w := do(t, router, http.MethodGet, "/users/search?name=frank", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeEnvelope(t, w)
	data, _ := body["data"].(map[string]interface{})
	if data["count"] != float64(1) {
		t.Errorf("search count = %v, want 1 (case-insensitive match)", data["count"])
	}

	if w := do(t, router, http.MethodGet, "/users/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", w.Code)
	}
}

func TestActivateDeactivateLogin(t *testing.T) {
	users := store.NewMockUserStore()
	u := users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "Henry", Email: "henry@example.com", IsActive: true})
	router := newUserRouter(users)

	if w := do(t, router, http.MethodPost, "/users/"+u.ID.Hex()+"/deactivate", nil); w.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, want 200", w.Code)
	}
	if u.IsActive {
		t.Error("user still active after deactivate")
	}

	if w := do(t, router, http.MethodPost, "/users/"+u.ID.Hex()+"/activate", nil); w.Code != http.StatusOK {
		t.Fatalf("activate status = %d, want 200", w.Code)
	}
	if !u.IsActive {
		t.Error("user not active after activate")
	}

	if w := do(t, router, http.MethodPost, "/users/"+u.ID.Hex()+"/login", nil); w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}
	if u.LoginCount != 1 || u.LastLogin == nil {
		t.Errorf("login not recorded: count=%d lastLogin=%v", u.LoginCount, u.LastLogin)
	}
}

func TestStatsOverview(t *testing.T) {
	users := store.NewMockUserStore()
	users.Seed(&entity.User{UserID: 1, GuildID: 2, RealName: "A", Email: "a@x.y", IsActive: true, EmailVerified: true})
	users.Seed(&entity.User{UserID: 2, GuildID: 2, RealName: "B", Email: "b@x.y", IsActive: true})
	router := newUserRouter(users)

	w := do(t, router, http.MethodGet, "/users/stats/overview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeEnvelope(t, w)
	data, _ := body["data"].(map[string]interface{})
	if data["total_users"] != float64(2) {
		t.Errorf("total_users = %v, want 2", data["total_users"])
	}
	if data["verified_users"] != float64(1) {
		t.Errorf("verified_users = %v, want 1", data["verified_users"])
	}
	if data["verification_rate"] != float64(50) {
		t.Errorf("verification_rate = %v, want 50", data["verification_rate"])
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	users := store.NewMockUserStore()
	users.FailWith = fmt.Errorf("connection reset")
	router := newUserRouter(users)

	w := do(t, router, http.MethodGet, "/users/stats/overview", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
