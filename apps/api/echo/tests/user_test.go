package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/auth"
	testutil "github.com/trezcool/darasa/tests"
)

func TestHome(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d; want 200", rec.Code)
	}
	if rec.Body.String() != "Welcome to Darasa API!" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := setup(t)

	tt := httpTest{
		name:     "health is public",
		method:   http.MethodGet,
		path:     "/api/v1/health",
		wantCode: http.StatusOK,
		wantData: []byte(`{"status":"ok","database":"ok","environment":"TEST"}`),
	}
	req, rec := newRequest(tt.method, tt.path)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func TestUserLogin(t *testing.T) {
	env := setup(t)
	env.student(t, "Jane Doe", "jane")
	testutil.CreateUser(t, env.usrRepo, "Gone Gil", "gil", "gil@test.darasa", "PassW0rd!", auth.RoleStudent, false)

	tests := []httpTest{
		{
			name:     "empty body fails validation",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: "PassW0rd!"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Username: "jane", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, LoginRequest{Username: "gil", Password: "PassW0rd!"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("successful login returns a token", func(t *testing.T) {
		body := marchallObj(t, LoginRequest{Username: "jane", Password: "PassW0rd!"})
		req, rec := newRequest(http.MethodPost, "/api/v1/users/login", body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
		var res LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.Token == "" {
			t.Error("token is empty")
		}
	})

	t.Run("login is case-insensitive on username", func(t *testing.T) {
		body := marchallObj(t, LoginRequest{Username: "JANE", Password: "PassW0rd!"})
		req, rec := newRequest(http.MethodPost, "/api/v1/users/login", body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestUserEndpointsAuthorization(t *testing.T) {
	env := setup(t)
	jane, janeToken := env.student(t, "Jane Doe", "jane")
	bob, bobToken := env.student(t, "Bob Roe", "bob")
	_, adminToken := env.admin(t, "Root", "root")

	tests := []httpTest{
		{
			name:     "listing requires a token",
			method:   http.MethodGet,
			path:     "/api/v1/users",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "listing is admin only",
			method:   http.MethodGet,
			path:     "/api/v1/users",
			token:    janeToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "register is admin only",
			method:   http.MethodPost,
			path:     "/api/v1/users/register",
			body:     []byte(`{"name":"X","username":"x","email":"x@test.darasa","password":"PassW0rd!","role":"student"}`),
			token:    bobToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "other users' details read as absent",
			method:   http.MethodGet,
			path:     "/api/v1/users/" + jane.ID,
			token:    bobToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "self delete is refused",
			method:   http.MethodDelete,
			path:     "/api/v1/users/" + bob.ID,
			token:    bobToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("self retrieve works", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/users/"+jane.ID, janeToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("admin lists users with pagination envelope", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/users?page_size=2", adminToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
		var page struct {
			Count       int         `json:"count"`
			TotalPages  int         `json:"total_pages"`
			CurrentPage int         `json:"current_page"`
			Next        *string     `json:"next"`
			Results     interface{} `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if page.Count != 3 || page.TotalPages != 2 || page.CurrentPage != 1 || page.Next == nil {
			t.Errorf("page = %+v; want count 3, 2 pages, next set", page)
		}
	})

	t.Run("non-admin cannot change own role", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/v1/users/"+bob.ID, bobToken, []byte(`{"role":"admin"}`))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d; want 403: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestTokenRefresh(t *testing.T) {
	env := setup(t)
	_, token := env.student(t, "Jane Doe", "jane")

	req, rec := newAuthRequest(http.MethodPost, "/api/v1/users/token-refresh", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var res LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Token == "" {
		t.Error("refreshed token is empty")
	}
}
