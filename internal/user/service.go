// File: internal/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
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

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ImagePrefix is the storage folder holding account images.
const ImagePrefix = "images"

var allowedImageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Service implements account operations and is the auth.AccountService and shared.UserLookup
// of the application.
type Service struct {
	repo      Repository
	tokens    shared.TokenService
	blocklist auth.TokenBlocklistService
	mailer    mail.Mailer
	store     filestorage.Store
	events    realtime.Publisher
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

var (
	_ auth.AccountService = (*Service)(nil)
	_ shared.UserLookup   = (*Service)(nil)
)

// NewService creates a new user service.
func NewService(
	repo Repository,
	tokens shared.TokenService,
	blocklist auth.TokenBlocklistService,
	mailer mail.Mailer,
	store filestorage.Store,
	events realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		blocklist: blocklist,
		mailer:    mailer,
		store:     store,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) loginTTL() time.Duration {
	return time.Duration(s.cfg.JWTExpiryDays) * 24 * time.Hour
}

func (s *Service) resetTTL() time.Duration {
	return time.Duration(s.cfg.ResetTokenExpiryDays) * 24 * time.Hour
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*shared.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("Login attempt for unknown email", zap.String("email", email))
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	if !crypto.CheckPasswordHash(password, u.PasswordHash) {
		s.logger.Warn("Invalid password attempt", zap.String("userID", u.HexID()))
		return nil, ErrInvalidLogin
	}
	return u, nil
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	if !u.IsActive {
		return "", ErrInactiveUser
	}

	token, _, err := s.tokens.GenerateToken(u.HexID(), shared.TokenAccess, s.loginTTL())
	if err != nil {
		return "", err
	}

	if u.Permissions.SubscriptionDuration != nil && !subscription.DurationActive(u, s.now()) {
		s.events.Publish(ctx, u.HexID(), realtime.Failed(realtime.SubscriptionInvalidEvent(u.HexID()), common.MsgSubscriptionExpired, 400))
	}
	s.logger.Info("User logged in successfully", zap.String("userID", u.HexID()))
	return token, nil
}

// AdminLogin is Login restricted to active administrators.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (string, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	if !u.IsAdmin() || !u.IsActive {
		s.logger.Warn("Non-admin attempted admin login", zap.String("userID", u.HexID()))
		return "", ErrUnauthorizedAdmin
	}
	token, _, err := s.tokens.GenerateToken(u.HexID(), shared.TokenAccess, s.loginTTL())
	if err != nil {
		return "", err
	}
	s.logger.Info("Admin logged in successfully", zap.String("userID", u.HexID()))
	return token, nil
}

// resetLink issues a reset token for u and returns it with the frontend link.
func (s *Service) resetLink(u *shared.User, origin string) (string, string, error) {
	token, _, err := s.tokens.GenerateToken(u.HexID(), shared.TokenReset, s.resetTTL())
	if err != nil {
		return "", "", err
	}
	return token, strings.TrimRight(origin, "/") + "/reset-password/" + token, nil
}

// SendResetToken mails a reset link to a registered address and returns the token.
func (s *Service) SendResetToken(ctx context.Context, email, origin string) (string, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", ErrInvalidEmail
		}
		return "", err
	}
	token, link, err := s.resetLink(u, origin)
	if err != nil {
		return "", err
	}
	msg, err := mail.PasswordReset(mail.Recipient{Name: u.Name, Email: u.Email}, link)
	if err != nil {
		return "", err
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrMailDisabled) {
		s.logger.Error("Failed to send password reset mail", zap.String("userID", u.HexID()), zap.Error(err))
		return "", common.ErrInternalServer.WithMessage(common.MsgErrorPasswordResetEmail)
	}
	return token, nil
}

// userFromResetToken validates an unused reset token and loads its user.
func (s *Service) userFromResetToken(ctx context.Context, token string) (*shared.User, *shared.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, nil, ErrTokenExpired
		}
		return nil, nil, ErrInvalidToken
	}
	if claims.Purpose != shared.TokenReset {
		s.logger.Warn("Non-reset token presented for password reset", zap.String("userID", claims.UserID), zap.String("purpose", claims.Purpose))
		return nil, nil, ErrInvalidToken
	}
	used, err := s.blocklist.IsBlocklisted(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if used {
		return nil, nil, ErrInvalidToken
	}
	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, claims, nil
}

// VerifyResetToken reports whether a reset token can still be used.
func (s *Service) VerifyResetToken(ctx context.Context, token string) error {
	_, _, err := s.userFromResetToken(ctx, token)
	return err
}

// ResetPassword sets a new password using a reset token. The new password must differ from the old one.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	u, claims, err := s.userFromResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return ErrInvalidToken
		}
		return err
	}
	if crypto.CheckPasswordHash(newPassword, u.PasswordHash) {
		return ErrInvalidNewPassword
	}
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, u.HexID(), hash); err != nil {
		s.logger.Error("Failed to update password", zap.String("userID", u.HexID()), zap.Error(err))
		return common.ErrInternalServer.WithMessage(common.MsgErrorPasswordUpdate)
	}
	// A reset link works once.
	if claims.ExpiresAt != nil {
		if err := s.blocklist.AddToBlocklist(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			s.logger.Error("Failed to revoke used reset token", zap.String("userID", u.HexID()), zap.Error(err))
		}
	}
	s.logger.Info("Password reset", zap.String("userID", u.HexID()))
	return nil
}

// GetUserByID loads a user by hex id.
func (s *Service) GetUserByID(ctx context.Context, id string) (*shared.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("Error finding user by ID", zap.String("userID", id), zap.Error(err))
		}
		return nil, err
	}
	return u, nil
}

// ListAll returns every user.
func (s *Service) ListAll(ctx context.Context) ([]*shared.User, error) {
	return s.repo.FindAll(ctx)
}

func (s *Service) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// create stores a new user and provisions its storage folder.
func (s *Service) create(ctx context.Context, u *shared.User) error {
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	if err := s.store.EnsureFolder(ctx, u.HexID()); err != nil {
		s.logger.Warn("Failed to create user folder", zap.String("userID", u.HexID()), zap.Error(err))
	}
	return nil
}

// Signup registers a Personal or Professional account and returns its id.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (string, error) {
	taken, err := s.emailTaken(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrDuplicateEmail
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	role := domain.Role(req.Role)
	if !role.IsBaseUser() {
		role = domain.RolePersonal
	}
	menu := req.Menu
	if len(menu) == 0 {
		menu = nil
	}

	now := s.now().UTC()
	u := &shared.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		MobileNumber: req.MobileNumber,
		CompanyName:  req.CompanyName,
		Website:      req.Website,
		Subscription: req.Subscription,
		IsActive:     true,
		CreatedOn:    now,
		Permissions:  subscription.DefaultPermissions(menu, now, s.cfg.DefaultSubscriptionDays),
	}
	if err := s.create(ctx, u); err != nil {
		return "", err
	}
	s.logger.Info("User registered successfully", zap.String("userID", u.HexID()))
	return u.HexID(), nil
}

// UpdateProfile changes the editable profile fields of the user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) error {
	if req.Empty() {
		return common.ErrMissingParameters
	}
	fields := bson.M{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.MobileNumber != nil {
		fields["mobileNumber"] = *req.MobileNumber
	}
	if req.CompanyName != nil {
		fields["companyName"] = *req.CompanyName
	}
	if req.Website != nil {
		fields["website"] = *req.Website
	}
	if err := s.repo.Update(ctx, userID, fields); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		s.logger.Error("Failed to update user", zap.String("userID", userID), zap.Error(err))
		return common.ErrInternalServer.WithMessage(common.MsgErrorUserUpdate)
	}
	return nil
}

// UpdateImage stores an uploaded jpg/png image and links it to the user. It returns the image name.
func (s *Service) UpdateImage(ctx context.Context, userID string, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", common.ErrMissingParameters
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExtensions[ext] {
		return "", ErrInvalidImageType
	}
	key, _, err := filestorage.SaveUploadedFile(ctx, s.store, fh, ImagePrefix)
	if err != nil {
		s.logger.Error("Failed to store user image", zap.String("userID", userID), zap.Error(err))
		return "", common.ErrInternalServer.WithMessage(common.MsgErrorUserImage)
	}
	name := path.Base(key)
	if err := s.repo.SetImage(ctx, userID, name); err != nil {
		_ = s.store.Delete(ctx, key)
		return "", err
	}
	return name, nil
}

// OpenImage returns the stored account image with the given name.
func (s *Service) OpenImage(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, common.ErrNotFound
	}
	rc, err := s.store.Open(ctx, path.Join(ImagePrefix, name))
	if err != nil {
		if errors.Is(err, filestorage.ErrNotExist) || errors.Is(err, filestorage.ErrInvalidKey) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return rc, nil
}

// sendAccountInvite mails a new-account link. Failures are logged and reported as false.
func (s *Service) sendAccountInvite(ctx context.Context, u *shared.User, origin string) bool {
	_, link, err := s.resetLink(u, origin)
	if err != nil {
		s.logger.Error("Failed to issue account token", zap.String("userID", u.HexID()), zap.Error(err))
		return false
	}
	msg, err := mail.NewAccount(mail.Recipient{Name: u.Name, Email: u.Email}, link)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("Failed to send account mail", zap.String("userID", u.HexID()), zap.Error(err))
		return false
	}
	return true
}

// NotifyExpired tells every user whose subscription has lapsed. Users whose plan ended
// within the last window are also sent the subscription-ended mail.
func (s *Service) NotifyExpired(ctx context.Context, window time.Duration) (int, error) {
	now := s.now().UTC()
	users, err := s.repo.FindExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		s.events.Publish(ctx, u.HexID(), realtime.Failed(realtime.SubscriptionInvalidEvent(u.HexID()), common.MsgSubscriptionExpired, 400))

		d := u.Permissions.SubscriptionDuration
		if window <= 0 || d == nil || !d.EndDate.After(now.Add(-window)) {
			continue
		}
		msg, err := mail.SubscriptionEnded(mail.Recipient{Name: u.Name, Email: u.Email}, d.EndDate.Format("January 02, 2006"))
		if err == nil {
			err = s.mailer.Send(ctx, msg)
		}
		if err != nil {
			s.logger.Warn("Failed to send subscription ended mail", zap.String("userID", u.HexID()), zap.Error(err))
		}
	}
	return len(users), nil
}
