package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/travelhub/internal/actorctx"
	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/http/middlewares"
	"github.com/geocoder89/travelhub/internal/jobs"
	"github.com/gin-gonic/gin"
)

// keep gin quiet during tests
func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Fake repositories built from function fields; a nil field returns zero values.

type fakeUsersRepo struct {
	getProfileFn func(ctx context.Context, id string) (user.Profile, error)
	createFn     func(ctx context.Context, params user.CreateParams) (user.User, error)
	findFn       func(ctx context.Context, criteria user.Criteria) (user.User, error)
	addRefFn     func(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
	removeRefFn  func(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
}

func (f *fakeUsersRepo) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	if f.getProfileFn != nil {
		return f.getProfileFn(ctx, id)
	}
	return user.Profile{ID: id}, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, params user.CreateParams) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, params)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) Find(ctx context.Context, criteria user.Criteria) (user.User, error) {
	if f.findFn != nil {
		return f.findFn(ctx, criteria)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	if f.addRefFn != nil {
		return f.addRefFn(ctx, id, list, placeID)
	}
	return user.User{ID: id}, true, nil
}

func (f *fakeUsersRepo) RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	if f.removeRefFn != nil {
		return f.removeRefFn(ctx, id, list, placeID)
	}
	return user.User{ID: id}, true, nil
}

type fakePlacesRepo struct {
	getFn    func(ctx context.Context, id string) (place.Place, error)
	createFn func(ctx context.Context, params place.CreateParams) (place.Place, error)
	updateFn func(ctx context.Context, id string, patch place.Patch) (place.Place, error)
	listFn   func(ctx context.Context) ([]place.Place, error)
	queryFn  func(ctx context.Context, field, value string) ([]place.Place, error)
	deleteFn func(ctx context.Context, id string) (string, error)
}

func (f *fakePlacesRepo) Get(ctx context.Context, id string) (place.Place, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return place.Place{ID: id}, nil
}

func (f *fakePlacesRepo) Create(ctx context.Context, params place.CreateParams) (place.Place, error) {
	if f.createFn != nil {
		return f.createFn(ctx, params)
	}
	return place.Place{}, nil
}

func (f *fakePlacesRepo) Update(ctx context.Context, id string, patch place.Patch) (place.Place, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, patch)
	}
	return place.Place{ID: id}, nil
}

func (f *fakePlacesRepo) List(ctx context.Context) ([]place.Place, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []place.Place{}, nil
}

func (f *fakePlacesRepo) Query(ctx context.Context, field, value string) ([]place.Place, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, field, value)
	}
	return []place.Place{}, nil
}

func (f *fakePlacesRepo) Delete(ctx context.Context, id string) (string, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return id, nil
}

type fakeTokens struct {
	issueFn func(c auth.Claim) (string, error)
}

func (f *fakeTokens) IssueToken(c auth.Claim) (string, error) {
	if f.issueFn != nil {
		return f.issueFn(c)
	}
	return "token-" + c.ID, nil
}

type fakeQueue struct {
	err    error
	jobs   []jobs.Job
	ctxErr error
}

func (f *fakeQueue) Enqueue(ctx context.Context, j jobs.Job) error {
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, j)
	return nil
}

// newEngine mounts the error stage the way the real router does, then lets
// the test add its routes.
func newEngine(mount func(r *gin.Engine)) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.Use(middlewares.ErrorHandler(discardLogger()))
	mount(r)
	return r
}

// asActor stands in for RequireAuth + RequireSelf.
func asActor(u user.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := actorctx.WithClaims(c.Request.Context(), &auth.Claims{ID: u.ID, Name: u.Name})
		c.Request = c.Request.WithContext(actorctx.WithActor(ctx, u))
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"requestId"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v body=%s", err, w.Body.String())
	}
	return env
}
