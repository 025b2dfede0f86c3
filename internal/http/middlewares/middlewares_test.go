package middlewares_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/travelhub/internal/actorctx"
	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims map[string]*auth.Claims
}

func (f fakeVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if c, ok := f.claims[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidToken
}

type usersByID map[string]user.User

func (u usersByID) Get(_ context.Context, id string) (user.User, error) {
	if got, ok := u[id]; ok {
		return got, nil
	}
	return user.User{}, user.ErrNotFound
}

type placesByID map[string]place.Place

func (p placesByID) Get(_ context.Context, id string) (place.Place, error) {
	if got, ok := p[id]; ok {
		return got, nil
	}
	return place.Place{}, place.ErrNotFound
}

type brokenPlaces struct{}

func (brokenPlaces) Get(context.Context, string) (place.Place, error) {
	return place.Place{}, errors.New("connection refused")
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.Use(middlewares.ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return r
}

func serve(r http.Handler, method, path string, header map[string]string, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	verifier := fakeVerifier{claims: map[string]*auth.Claims{
		"good": {ID: "u1", Name: "Ana"},
	}}
	mw := middlewares.NewAuthMiddleware(verifier)

	r := newEngine()
	r.GET("/private", mw.RequireAuth(), func(c *gin.Context) {
		id, ok := actorctx.UserIDFrom(c.Request.Context())
		claims, ok2 := middlewares.ClaimsFromContext(c)
		if !ok || !ok2 || claims.ID != id {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, id)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "missing", header: "", wantStatus: http.StatusForbidden},
		{name: "no_scheme", header: "good", wantStatus: http.StatusForbidden},
		{name: "lowercase_scheme", header: "bearer good", wantStatus: http.StatusForbidden},
		{name: "invalid", header: "Bearer bad", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := map[string]string{}
			if tt.header != "" {
				h["Authorization"] = tt.header
			}

			w := serve(r, http.MethodGet, "/private", h, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != "u1" {
				t.Fatalf("handler saw subject %q", w.Body.String())
			}
		})
	}
}

func TestRequireSelf(t *testing.T) {
	verifier := fakeVerifier{claims: map[string]*auth.Claims{
		"ana":   {ID: "u1"},
		"ghost": {ID: "u404"},
	}}
	mw := middlewares.NewAuthMiddleware(verifier)
	users := usersByID{"u1": {ID: "u1", Name: "Ana"}}

	called := false
	r := newEngine()
	r.POST("/self", mw.RequireAuth(), middlewares.RequireSelf(users), func(c *gin.Context) {
		called = true
		actor, ok := actorctx.ActorFrom(c.Request.Context())
		if !ok || actor.Name != "Ana" {
			c.Status(http.StatusTeapot)
			return
		}
		c.Status(http.StatusOK)
	})

	if w := serve(r, http.MethodPost, "/self", map[string]string{"Authorization": "Bearer ana"}, ""); w.Code != http.StatusOK {
		t.Fatalf("known user: got status %d", w.Code)
	}

	called = false
	if w := serve(r, http.MethodPost, "/self", map[string]string{"Authorization": "Bearer ghost"}, ""); w.Code != http.StatusForbidden {
		t.Fatalf("unknown user: got status %d, want 403", w.Code)
	}
	if called {
		t.Fatalf("handler ran after ownership rejection")
	}
}

func TestRequirePlaceOwner(t *testing.T) {
	verifier := fakeVerifier{claims: map[string]*auth.Claims{
		"owner":    {ID: "u1"},
		"stranger": {ID: "u2"},
	}}
	mw := middlewares.NewAuthMiddleware(verifier)
	places := placesByID{
		"p1": {ID: "p1", Owner: "u1"},
		"p2": {ID: "p2"},
	}

	r := newEngine()
	r.DELETE("/places/:id", mw.RequireAuth(), middlewares.RequirePlaceOwner(places), func(c *gin.Context) {
		p, ok := actorctx.PlaceFrom(c.Request.Context())
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, p.ID)
	})

	tests := []struct {
		name       string
		token      string
		path       string
		wantStatus int
	}{
		{name: "owner", token: "owner", path: "/places/p1", wantStatus: http.StatusOK},
		{name: "stranger", token: "stranger", path: "/places/p1", wantStatus: http.StatusForbidden},
		{name: "ownerless_place", token: "owner", path: "/places/p2", wantStatus: http.StatusForbidden},
		{name: "missing_place", token: "owner", path: "/places/p9", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodDelete, tt.path, map[string]string{"Authorization": "Bearer " + tt.token}, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestErrorHandler_Envelope(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "not_found",
			err:         place.ErrNotFound,
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "service_unavailable",
			wantMessage: "place not found",
		},
		{
			name:        "forbidden",
			err:         middlewares.ErrForbidden,
			wantStatus:  http.StatusForbidden,
			wantCode:    "forbidden",
			wantMessage: "Incorrect user or password",
		},
		{
			name:        "validation_error",
			err:         apperr.New(apperr.KindValidationError, "Validation Error"),
			wantStatus:  http.StatusNotAcceptable,
			wantCode:    "validation_error",
			wantMessage: "Validation Error",
		},
		{
			name:        "internal_hides_cause",
			err:         errors.New("pq: connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := newEngine()
			r.GET("/boom", func(c *gin.Context) {
				_ = c.Error(tt.err)
				c.Abort()
			})

			w := serve(r, http.MethodGet, "/boom", map[string]string{"X-Request-Id": "rid-1"}, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}

			var env struct {
				Error struct {
					Code      string `json:"code"`
					Message   string `json:"message"`
					RequestID string `json:"requestId"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v body=%s", err, w.Body.String())
			}

			if env.Error.Code != tt.wantCode || env.Error.Message != tt.wantMessage || env.Error.RequestID != "rid-1" {
				t.Fatalf("unexpected envelope: %+v", env.Error)
			}
			if w.Header().Get("X-Request-Id") != "rid-1" {
				t.Fatalf("request id header not echoed")
			}
		})
	}
}

func TestErrorHandler_LeavesWrittenResponsesAlone(t *testing.T) {
	r := newEngine()
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "fine")
		_ = c.Error(errors.New("late error"))
	})

	w := serve(r, http.MethodGet, "/ok", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestRequireJSON(t *testing.T) {
	r := newEngine()
	r.Use(middlewares.RequireJSON())
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "json", method: http.MethodPost, contentType: "application/json; charset=utf-8", body: `{}`, wantStatus: http.StatusNoContent},
		{name: "form", method: http.MethodPost, contentType: "text/plain", body: "hi", wantStatus: http.StatusServiceUnavailable},
		{name: "no_body", method: http.MethodPost, wantStatus: http.StatusNoContent},
		{name: "get", method: http.MethodGet, contentType: "text/plain", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := map[string]string{}
			if tt.contentType != "" {
				h["Content-Type"] = tt.contentType
			}

			if w := serve(r, tt.method, "/echo", h, tt.body); w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("wildcard_preflight", func(t *testing.T) {
		r := gin.New()
		r.Use(middlewares.CORSMiddleware([]string{"*"}))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "https://a.example"}, "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("preflight status %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("allow-origin = %q", got)
		}
	})

	t.Run("allow_list", func(t *testing.T) {
		r := gin.New()
		r.Use(middlewares.CORSMiddleware([]string{"https://a.example"}))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://a.example"}, "")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
			t.Fatalf("allow-origin = %q", got)
		}

		w = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.example"}, "")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("unlisted origin echoed: %q", got)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.SecurityHeaders())
	r.GET("/docs", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/travels", func(c *gin.Context) { c.Status(http.StatusOK) })

	docs := serve(r, http.MethodGet, "/docs", nil, "")
	api := serve(r, http.MethodGet, "/travels", nil, "")

	if api.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff")
	}
	if docs.Header().Get("Content-Security-Policy") == api.Header().Get("Content-Security-Policy") {
		t.Fatalf("docs should get a relaxed CSP")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	r := newEngine()
	r.Use(middlewares.MaxBodyBytes(8))
	r.POST("/read", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	if w := serve(r, http.MethodPost, "/read", nil, "short"); w.Code != http.StatusOK {
		t.Fatalf("small body: %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/read", nil, "this body is too long"); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: %d", w.Code)
	}
}

func TestRequirePlaceOwner_StoreFailureIsUnavailable(t *testing.T) {
	mw := middlewares.NewAuthMiddleware(fakeVerifier{claims: map[string]*auth.Claims{"owner": {ID: "u1"}}})

	called := false
	r := newEngine()
	r.DELETE("/places/:id", mw.RequireAuth(), middlewares.RequirePlaceOwner(brokenPlaces{}), func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodDelete, "/places/p1", map[string]string{"Authorization": "Bearer owner"}, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503, body=%s", w.Code, w.Body.String())
	}
	if called {
		t.Fatalf("handler ran after a failed ownership lookup")
	}
}
