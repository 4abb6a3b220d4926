package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUser(t *testing.T) *domain.User {
	t.Helper()
	user, err := domain.NewUser("+15551234567")
	require.NoError(t, err)
	user.Name = "Ada"
	return user
}

// do serves a request through a router built by mount. A non-nil user is
// placed in the request context as the auth middleware would.
func do(
	t *testing.T,
	mount func(chi.Router),
	method, target, body string,
	user *domain.User,
) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	mount(r)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != nil {
		req = req.WithContext(shared.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// fakeUserService implements service.UserService with function fields.
type fakeUserService struct {
	RegisterFn      func(ctx context.Context, params service.RegisterParams) (*domain.User, error)
	LoginFn         func(ctx context.Context, phone, password string) (*domain.User, error)
	GetProfileFn    func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfileFn func(ctx context.Context, userID uuid.UUID, update service.ProfileUpdate) (*domain.User, error)
}

func (f *fakeUserService) Register(ctx context.Context, params service.RegisterParams) (*domain.User, error) {
	return f.RegisterFn(ctx, params)
}

func (f *fakeUserService) Login(ctx context.Context, phone, password string) (*domain.User, error) {
	return f.LoginFn(ctx, phone, password)
}

func (f *fakeUserService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return f.GetProfileFn(ctx, userID)
}

func (f *fakeUserService) UpdateProfile(
	ctx context.Context,
	userID uuid.UUID,
	update service.ProfileUpdate,
) (*domain.User, error) {
	return f.UpdateProfileFn(ctx, userID, update)
}

func (f *fakeUserService) GetOrCreateByPhone(ctx context.Context, phone string) (*domain.User, error) {
	panic("not used by handlers")
}

// fakeSessionService implements service.SessionService with function fields.
type fakeSessionService struct {
	ListFn    func(ctx context.Context, userID uuid.UUID, filter store.SessionFilter) ([]*service.SessionWithMessages, int, error)
	GetFn     func(ctx context.Context, userID, sessionID uuid.UUID) (*service.SessionDetail, error)
	CreateFn  func(ctx context.Context, userID uuid.UUID, params service.CreateSessionParams) (*domain.Session, error)
	UpdateFn  func(ctx context.Context, userID, sessionID uuid.UUID, update service.SessionUpdate) (*domain.Session, error)
	ArchiveFn func(ctx context.Context, userID, sessionID uuid.UUID) error
	StatsFn   func(ctx context.Context, userID, sessionID uuid.UUID) (*service.SessionStats, error)
}

func (f *fakeSessionService) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.SessionFilter,
) ([]*service.SessionWithMessages, int, error) {
	return f.ListFn(ctx, userID, filter)
}

func (f *fakeSessionService) Get(ctx context.Context, userID, sessionID uuid.UUID) (*service.SessionDetail, error) {
	return f.GetFn(ctx, userID, sessionID)
}

func (f *fakeSessionService) Create(
	ctx context.Context,
	userID uuid.UUID,
	params service.CreateSessionParams,
) (*domain.Session, error) {
	return f.CreateFn(ctx, userID, params)
}

func (f *fakeSessionService) Update(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	update service.SessionUpdate,
) (*domain.Session, error) {
	return f.UpdateFn(ctx, userID, sessionID, update)
}

func (f *fakeSessionService) Archive(ctx context.Context, userID, sessionID uuid.UUID) error {
	return f.ArchiveFn(ctx, userID, sessionID)
}

func (f *fakeSessionService) Stats(ctx context.Context, userID, sessionID uuid.UUID) (*service.SessionStats, error) {
	return f.StatsFn(ctx, userID, sessionID)
}

func (f *fakeSessionService) GetOrCreateDaily(ctx context.Context, userID uuid.UUID) (*domain.Session, error) {
	panic("not used by handlers")
}

type buildFunc func(ctx context.Context, userID, sessionID uuid.UUID, spec service.ProjectSpec) (uuid.UUID, error)

func (f buildFunc) RequestBuild(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	spec service.ProjectSpec,
) (uuid.UUID, error) {
	return f(ctx, userID, sessionID, spec)
}

type summaryFunc func(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error)

func (f summaryFunc) RequestSummary(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error) {
	return f(ctx, userID, sessionID)
}

type sendFunc func(ctx context.Context, userID uuid.UUID, to, text string) (*domain.Message, error)

func (f sendFunc) Send(ctx context.Context, userID uuid.UUID, to, text string) (*domain.Message, error) {
	return f(ctx, userID, to, text)
}
