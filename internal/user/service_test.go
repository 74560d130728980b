package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/filestorage"
	"texplicit_backend/internal/mail"
	"texplicit_backend/internal/platform/crypto"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MockRepository is a mock implementation of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SetPermissions(ctx context.Context, userID string, perms shared.Permissions) error {
	return m.Called(ctx, userID, perms).Error(0)
}
func (m *MockRepository) IncrementChatUsage(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *MockRepository) IncrementReportUsage(ctx context.Context, userID string, t domain.ReportType, weight float64) error {
	return m.Called(ctx, userID, t, weight).Error(0)
}
func (m *MockRepository) IncrementDocumentUsage(ctx context.Context, userID string, bytes int64) error {
	return m.Called(ctx, userID, bytes).Error(0)
}
func (m *MockRepository) ApplyPurchase(ctx context.Context, userID string, p subscription.Purchase, extendBy time.Duration) error {
	return m.Called(ctx, userID, p, extendBy).Error(0)
}
func (m *MockRepository) Create(ctx context.Context, u *shared.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil && u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	return args.Error(0)
}
func (m *MockRepository) FindByID(ctx context.Context, id string) (*shared.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}
func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*shared.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}
func (m *MockRepository) FindAll(ctx context.Context) ([]*shared.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*shared.User), args.Error(1)
}
func (m *MockRepository) FindBaseUsers(ctx context.Context) ([]*shared.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*shared.User), args.Error(1)
}
func (m *MockRepository) Update(ctx context.Context, id string, fields bson.M) error {
	return m.Called(ctx, id, fields).Error(0)
}
func (m *MockRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}
func (m *MockRepository) SetImage(ctx context.Context, id, image string) error {
	return m.Called(ctx, id, image).Error(0)
}
func (m *MockRepository) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}
func (m *MockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockRepository) FindChildren(ctx context.Context, parentID string, skip, limit int64) ([]*shared.User, int64, error) {
	args := m.Called(ctx, parentID, skip, limit)
	return args.Get(0).([]*shared.User), args.Get(1).(int64), args.Error(2)
}
func (m *MockRepository) FindChild(ctx context.Context, parentID, childID string) (*shared.User, error) {
	args := m.Called(ctx, parentID, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}
func (m *MockRepository) FindExpired(ctx context.Context, now time.Time) ([]*shared.User, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]*shared.User), args.Error(1)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type recordingPublisher struct {
	events []realtime.Event
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, e realtime.Event) {
	r.events = append(r.events, e)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *MockRepository
	mailer    *recordingMailer
	events    *recordingPublisher
	store     *filestorage.LocalStore
	tokens    shared.TokenService
	blocklist auth.TokenBlocklistService
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		JWTSecretKey:            "test-secret-key-for-user-service",
		JWTExpiryDays:           7,
		ResetTokenExpiryDays:    1,
		DefaultSubscriptionDays: 180,
	}
	store, err := filestorage.NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	f := &fixture{
		repo:      new(MockRepository),
		mailer:    &recordingMailer{},
		events:    &recordingPublisher{},
		store:     store,
		tokens:    auth.NewJWTService(cfg, zap.NewNop()),
		blocklist: auth.DefaultBlocklist(),
	}
	f.service = NewService(f.repo, f.tokens, f.blocklist, f.mailer, store, f.events, cfg, zap.NewNop())
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func newUser(t *testing.T, password string) *shared.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	return &shared.User{
		ID:           primitive.NewObjectID(),
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: hash,
		Role:         domain.RolePersonal,
		IsActive:     true,
		Permissions:  subscription.DefaultPermissions(nil, fixedNow, 30),
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials issue a token", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(t, "secret1")
		f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)

		token, err := f.service.Login(ctx, u.Email, "secret1")
		require.NoError(t, err)
		claims, err := f.tokens.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, u.HexID(), claims.UserID)
		assert.Equal(t, shared.TokenAccess, claims.Purpose)
		assert.Empty(t, f.events.events)
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(t, "secret1")
		f.repo.On("FindByEmail", ctx, "nobody@example.com").Return(nil, ErrUserNotFound)
		f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)

		_, err := f.service.Login(ctx, "nobody@example.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidLogin)
		_, err = f.service.Login(ctx, u.Email, "wrong")
		assert.ErrorIs(t, err, ErrInvalidLogin)
	})

	t.Run("inactive user is rejected", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(t, "secret1")
		u.IsActive = false
		f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)

		_, err := f.service.Login(ctx, u.Email, "secret1")
		assert.ErrorIs(t, err, ErrInactiveUser)
	})

	t.Run("lapsed subscription still logs in but emits an event", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(t, "secret1")
		u.Permissions.SubscriptionDuration.EndDate = fixedNow.Add(-time.Hour)
		f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)

		_, err := f.service.Login(ctx, u.Email, "secret1")
		require.NoError(t, err)
		require.Len(t, f.events.events, 1)
		assert.Equal(t, realtime.SubscriptionInvalidEvent(u.HexID()), f.events.events[0].Name)
		assert.False(t, f.events.events[0].Success)
	})
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newUser(t, "secret1")
	f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)

	_, err := f.service.AdminLogin(ctx, u.Email, "secret1")
	assert.ErrorIs(t, err, ErrUnauthorizedAdmin)

	u.Role = domain.RoleAdmin
	token, err := f.service.AdminLogin(ctx, u.Email, "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newUser(t, "secret1")
	f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)
	f.repo.On("FindByEmail", ctx, "ghost@example.com").Return(nil, ErrUserNotFound)
	f.repo.On("FindByID", ctx, u.HexID()).Return(u, nil)
	f.repo.On("SetPassword", ctx, u.HexID(), mock.AnythingOfType("string")).Return(nil)

	_, err := f.service.SendResetToken(ctx, "ghost@example.com", "https://app.example.com")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	token, err := f.service.SendResetToken(ctx, u.Email, "https://app.example.com/")
	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, mail.SubjectPasswordReset, f.mailer.sent[0].Subject)
	assert.Contains(t, f.mailer.sent[0].HTML, "https://app.example.com/reset-password/"+token)

	require.NoError(t, f.service.VerifyResetToken(ctx, token))
	assert.ErrorIs(t, f.service.VerifyResetToken(ctx, "garbage"), ErrInvalidToken)

	assert.ErrorIs(t, f.service.ResetPassword(ctx, token, "secret1"), ErrInvalidNewPassword)
	require.NoError(t, f.service.ResetPassword(ctx, token, "brand-new"))
	f.repo.AssertCalled(t, "SetPassword", ctx, u.HexID(), mock.AnythingOfType("string"))

	assert.ErrorIs(t, f.service.VerifyResetToken(ctx, token), ErrInvalidToken)
	assert.ErrorIs(t, f.service.ResetPassword(ctx, token, "another-one"), ErrInvalidToken)
	f.repo.AssertNumberOfCalls(t, "SetPassword", 1)
}

func TestResetRejectsSessionToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newUser(t, "secret1")
	f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)
	f.repo.On("FindByID", ctx, u.HexID()).Return(u, nil)

	session, err := f.service.Login(ctx, u.Email, "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.VerifyResetToken(ctx, session), ErrInvalidToken)
	assert.ErrorIs(t, f.service.ResetPassword(ctx, session, "brand-new"), ErrInvalidToken)
	f.repo.AssertNotCalled(t, "SetPassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendResetToken_MailDisabledStillReturnsToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mailer.err = mail.ErrMailDisabled
	u := newUser(t, "secret1")
	f.repo.On("FindByEmail", ctx, u.Email).Return(u, nil)

	token, err := f.service.SendResetToken(ctx, u.Email, "https://app.example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate email", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByEmail", ctx, "ada@example.com").Return(newUser(t, "x"), nil)

		_, err := f.service.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("admin role is downgraded and defaults applied", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByEmail", ctx, "new@example.com").Return(nil, ErrUserNotFound)
		var created *shared.User
		f.repo.On("Create", ctx, mock.AnythingOfType("*shared.User")).Run(func(args mock.Arguments) {
			created = args.Get(1).(*shared.User)
		}).Return(nil)

		id, err := f.service.Signup(ctx, SignupRequest{Name: " New ", Email: "new@example.com", Password: "secret1", Role: int(domain.RoleAdmin)})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, created.HexID(), id)
		assert.Equal(t, "New", created.Name)
		assert.Equal(t, domain.RolePersonal, created.Role)
		assert.True(t, created.IsActive)
		assert.True(t, crypto.CheckPasswordHash("secret1", created.PasswordHash))
		assert.Equal(t, fixedNow.AddDate(0, 0, 180), created.Permissions.SubscriptionDuration.EndDate)
		assert.EqualValues(t, subscription.DefaultChatCount, created.Permissions.Chat.Allowed.ChatCount)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.service.UpdateProfile(ctx, "u1", UpdateProfileRequest{}), common.ErrMissingParameters)

	name := "  Grace "
	f.repo.On("Update", ctx, "u1", bson.M{"name": "Grace"}).Return(nil)
	require.NoError(t, f.service.UpdateProfile(ctx, "u1", UpdateProfileRequest{Name: &name}))
}

func TestOpenImage_RejectsPaths(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.OpenImage(context.Background(), "../secret")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.service.OpenImage(context.Background(), "missing.png")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestToggleStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newUser(t, "x")
	f.repo.On("FindByID", ctx, u.HexID()).Return(u, nil)
	f.repo.On("SetActive", ctx, u.HexID(), false).Return(nil)

	active, err := f.service.ToggleStatus(ctx, u.HexID())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestAddOrUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a user id or an email", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.service.AddOrUpdate(ctx, AdminUserRequest{}, "")
		assert.ErrorIs(t, err, common.ErrMissingParameters)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.service.AddOrUpdate(ctx, AdminUserRequest{UserID: "u1", StartDate: "01/02/2024"}, "")
		assert.ErrorIs(t, err, common.ErrBadRequest)
	})

	t.Run("creates and invites a new user", func(t *testing.T) {
		f := newFixture(t)
		email := "invitee@example.com"
		chats := int64(200)
		f.repo.On("FindByEmail", ctx, email).Return(nil, ErrUserNotFound)
		var created *shared.User
		f.repo.On("Create", ctx, mock.AnythingOfType("*shared.User")).Run(func(args mock.Arguments) {
			created = args.Get(1).(*shared.User)
		}).Return(nil)

		id, isNew, err := f.service.AddOrUpdate(ctx, AdminUserRequest{
			Email:     &email,
			ChatCount: &chats,
			EndDate:   "2025-01-31",
		}, "https://app.example.com")
		require.NoError(t, err)
		assert.True(t, isNew)
		require.NotNil(t, created)
		assert.Equal(t, created.HexID(), id)
		assert.EqualValues(t, 200, created.Permissions.Chat.Allowed.ChatCount)
		assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), created.Permissions.SubscriptionDuration.EndDate)
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, mail.SubjectNewAccount, f.mailer.sent[0].Subject)
	})

	t.Run("updates an existing user", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(t, "x")
		f.repo.On("FindByID", ctx, u.HexID()).Return(u, nil)
		f.repo.On("Update", ctx, u.HexID(), mock.AnythingOfType("primitive.M")).Return(nil)

		id, isNew, err := f.service.AddOrUpdate(ctx, AdminUserRequest{UserID: u.HexID()}, "")
		require.NoError(t, err)
		assert.False(t, isNew)
		assert.Equal(t, u.HexID(), id)
	})
}

func TestChildUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	parent := newUser(t, "x")
	parent.CompanyName = "Acme"

	f.repo.On("FindByEmail", ctx, "kid@example.com").Return(nil, ErrUserNotFound)
	var child *shared.User
	f.repo.On("Create", ctx, mock.AnythingOfType("*shared.User")).Run(func(args mock.Arguments) {
		child = args.Get(1).(*shared.User)
	}).Return(nil)

	id, sent, err := f.service.AddChild(ctx, parent, ChildUserRequest{Name: "Kid", Email: "kid@example.com", Menu: []int{3}}, "https://app.example.com")
	require.NoError(t, err)
	assert.True(t, sent)
	require.NotNil(t, child)
	assert.Equal(t, child.HexID(), id)
	assert.Equal(t, domain.RoleChild, child.Role)
	assert.Equal(t, parent.ID, *child.ParentUserID)
	assert.Equal(t, "Acme", child.CompanyName)
	assert.Equal(t, []int{3}, child.Permissions.Menu)

	f.repo.On("FindChildren", ctx, parent.HexID(), int64(10), int64(10)).Return([]*shared.User{child}, int64(11), nil)
	page, err := f.service.ListChildren(ctx, parent.HexID(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 11, page.TotalRecs)
	assert.EqualValues(t, 2, page.TotalPageSize)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "Kid", page.Users[0].Name)

	f.repo.On("FindChild", ctx, parent.HexID(), id).Return(child, nil)
	f.repo.On("Delete", ctx, id).Return(nil)
	require.NoError(t, f.service.DeleteChild(ctx, parent.HexID(), id))
	f.repo.AssertCalled(t, "Delete", ctx, id)
}

func TestAddChild_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repo.On("FindByEmail", ctx, "kid@example.com").Return(newUser(t, "x"), nil)

	_, _, err := f.service.AddChild(ctx, newUser(t, "x"), ChildUserRequest{Name: "Kid", Email: "kid@example.com"}, "")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestSignupHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	router := gin.New()
	NewHandler(f.service, zap.NewNop()).RegisterRoutes(router.Group(""), func(c *gin.Context) { c.Next() })

	t.Run("binding failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/account/signup", strings.NewReader(`{"email":"a@b.com"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("created", func(t *testing.T) {
		f.repo.On("FindByEmail", mock.Anything, "b@c.com").Return(nil, ErrUserNotFound)
		f.repo.On("Create", mock.Anything, mock.AnythingOfType("*shared.User")).Return(nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/account/signup", strings.NewReader(`{"name":"B","email":"b@c.com","password":"secret1"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), common.MsgOKUserCreated)
	})
}

func TestNotifyExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	recent := newUser(t, "secret1")
	recent.Permissions.SubscriptionDuration.EndDate = fixedNow.Add(-2 * time.Hour)
	old := newUser(t, "secret1")
	old.Email = "old@example.com"
	old.Permissions.SubscriptionDuration.EndDate = fixedNow.AddDate(0, -1, 0)
	f.repo.On("FindExpired", ctx, fixedNow.UTC()).Return([]*shared.User{recent, old}, nil)

	n, err := f.service.NotifyExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.events.events, 2)
	assert.Equal(t, realtime.SubscriptionInvalidEvent(recent.HexID()), f.events.events[0].Name)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, recent.Email, f.mailer.sent[0].To[0].Email)
}
