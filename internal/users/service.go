package users

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendtrack/internal/apperr"
	"attendtrack/internal/auth"
	"attendtrack/internal/cloudinary"
)

// Store is the persistence contract of the service. *Repository implements it.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, uid string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, role auth.Role) ([]User, error)
	SetRole(ctx context.Context, uid string, role auth.Role) (bool, error)
	SetActive(ctx context.Context, uid string, active bool) (bool, error)
	SetPhoto(ctx context.Context, uid, url string) (bool, error)
	UpdateProfile(ctx context.Context, uid string, p ProfileUpdate) (bool, error)
	Delete(ctx context.Context, uid string) (bool, error)
	SaveRefreshToken(ctx context.Context, tokenID, uid string, expiresAt time.Time) error
	RefreshTokenActive(ctx context.Context, tokenID string) (bool, error)
	RevokeRefreshToken(ctx context.Context, tokenID string) error
}

// Uploader stores profile photos. *cloudinary.Client implements it.
type Uploader interface {
	UploadBytes(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// Service implements sign-in flows and user administration.
type Service struct {
	store    Store
	signer   *auth.Signer
	google   auth.IdentityVerifier
	uploader Uploader
	logger   *log.Logger
}

// NewService wires a service. google and uploader may be nil when the integration is off.
func NewService(store Store, signer *auth.Signer, google auth.IdentityVerifier, uploader Uploader, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, signer: signer, google: google, uploader: uploader, logger: logger}
}

// RegisterInput is the email sign-up payload.
type RegisterInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an email account with the user role and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return Session{}, apperr.Invalid("full_name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Session{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return Session{}, apperr.Invalid(err.Error())
		}
		return Session{}, err
	}
	u, err := s.store.Create(ctx, User{
		UID:          uuid.NewString(),
		FullName:     name,
		Email:        email,
		Role:         auth.RoleUser,
		Active:       true,
		Provider:     ProviderEmail,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Session{}, apperr.Conflict("email already registered")
		}
		return Session{}, err
	}
	s.logger.Printf("user registered uid=%s", u.UID)
	return s.startSession(ctx, u)
}

// Login signs in an email account.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return Session{}, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return Session{}, apperr.Unauthenticated("invalid email or password")
	}
	if !u.Active {
		return Session{}, apperr.Forbidden("account disabled")
	}
	return s.startSession(ctx, *u)
}

// LoginGoogle signs in with a Google ID token, creating the account on first use.
// The Google subject becomes the uid.
func (s *Service) LoginGoogle(ctx context.Context, idToken string) (Session, error) {
	if s.google == nil {
		return Session{}, apperr.Unavailable("google sign-in not configured")
	}
	id, err := s.google.Verify(idToken)
	if err != nil {
		if errors.Is(err, auth.ErrGoogleDisabled) {
			return Session{}, apperr.Unavailable(err.Error())
		}
		return Session{}, apperr.Unauthenticated("invalid google token")
	}
	u, err := s.store.Get(ctx, id.Subject)
	if err != nil {
		return Session{}, err
	}
	if u == nil {
		name := strings.TrimSpace(id.Name)
		if name == "" {
			name = id.Email
		}
		created, err := s.store.Create(ctx, User{
			UID:      id.Subject,
			FullName: name,
			Email:    strings.ToLower(id.Email),
			Role:     auth.RoleUser,
			Active:   true,
			Provider: ProviderGoogle,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicate) {
				return Session{}, apperr.Conflict("email already registered with another provider")
			}
			return Session{}, err
		}
		s.logger.Printf("google user registered uid=%s", created.UID)
		u = &created
	}
	if !u.Active {
		return Session{}, apperr.Forbidden("account disabled")
	}
	return s.startSession(ctx, *u)
}

// Refresh rotates a refresh token. The presented token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.signer.Parse(refreshToken, auth.KindRefresh)
	if err != nil {
		return Session{}, apperr.Unauthenticated("invalid refresh token")
	}
	active, err := s.store.RefreshTokenActive(ctx, claims.TokenID)
	if err != nil {
		return Session{}, err
	}
	if !active {
		return Session{}, apperr.Unauthenticated("refresh token revoked")
	}
	u, err := s.store.Get(ctx, claims.UserID)
	if err != nil {
		return Session{}, err
	}
	if u == nil {
		return Session{}, apperr.Unauthenticated("user no longer exists")
	}
	if !u.Active {
		return Session{}, apperr.Forbidden("account disabled")
	}
	if err := s.store.RevokeRefreshToken(ctx, claims.TokenID); err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, *u)
}

// Logout revokes a refresh token. Unknown or malformed tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.signer.Parse(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, claims.TokenID)
}

func (s *Service) startSession(ctx context.Context, u User) (Session, error) {
	pair, err := s.signer.Issue(u.Session())
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.SaveRefreshToken(ctx, pair.RefreshID, u.UID, pair.RefreshExp); err != nil {
		return Session{}, fmt.Errorf("save refresh token: %w", err)
	}
	return Session{User: u, Tokens: pair}, nil
}

// Me returns the stored profile of the session user.
func (s *Service) Me(ctx context.Context, ac auth.AuthContext) (User, error) {
	return s.get(ctx, ac.UserID)
}

func (s *Service) get(ctx context.Context, uid string) (User, error) {
	u, err := s.store.Get(ctx, uid)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, apperr.NotFound("user not found")
	}
	return *u, nil
}

// Get returns one user for administrators.
func (s *Service) Get(ctx context.Context, uid string) (User, error) {
	return s.get(ctx, uid)
}

// UpdateMe changes the session user's full name. Email and role are managed elsewhere.
func (s *Service) UpdateMe(ctx context.Context, ac auth.AuthContext, p ProfileUpdate) (User, error) {
	if p.FullName == nil {
		return User{}, apperr.Invalid("full_name is required")
	}
	return s.updateProfile(ctx, ac.UserID, ProfileUpdate{FullName: p.FullName})
}

// UpdateUser changes another user's full name or email.
func (s *Service) UpdateUser(ctx context.Context, ac auth.AuthContext, uid string, p ProfileUpdate) (User, error) {
	if p.FullName == nil && p.Email == nil {
		return User{}, apperr.Invalid("nothing to update")
	}
	u, err := s.updateProfile(ctx, uid, p)
	if err == nil {
		s.logger.Printf("profile updated uid=%s by=%s", uid, ac.UserID)
	}
	return u, err
}

func (s *Service) updateProfile(ctx context.Context, uid string, p ProfileUpdate) (User, error) {
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if name == "" {
			return User{}, apperr.Invalid("full_name must not be empty")
		}
		p.FullName = &name
	}
	if p.Email != nil {
		email, err := normalizeEmail(*p.Email)
		if err != nil {
			return User{}, err
		}
		p.Email = &email
	}
	ok, err := s.store.UpdateProfile(ctx, uid, p)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return User{}, apperr.Conflict("email already registered")
		}
		return User{}, err
	}
	if !ok {
		return User{}, apperr.NotFound("user not found")
	}
	return s.get(ctx, uid)
}

// UpdatePhoto uploads a new profile photo and stores its URL.
func (s *Service) UpdatePhoto(ctx context.Context, ac auth.AuthContext, data []byte, filename string) (User, error) {
	if s.uploader == nil {
		return User{}, apperr.Unavailable("image storage not configured")
	}
	if len(data) == 0 {
		return User{}, apperr.Invalid("file is empty")
	}
	res, err := s.uploader.UploadBytes(ctx, data, filename)
	if err != nil {
		s.logger.Printf("photo upload uid=%s failed: %v", ac.UserID, err)
		return User{}, apperr.Unavailable("image upload failed")
	}
	ok, err := s.store.SetPhoto(ctx, ac.UserID, res.SecureURL)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, apperr.NotFound("user not found")
	}
	return s.get(ctx, ac.UserID)
}

// List returns every user, or only those with role when it is set.
func (s *Service) List(ctx context.Context, role string) ([]User, error) {
	r := auth.Role(strings.ToLower(strings.TrimSpace(role)))
	if r != "" && r != auth.RoleAdmin && r != auth.RoleUser {
		return nil, apperr.Invalid("role must be admin or user")
	}
	out, err := s.store.List(ctx, r)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []User{}
	}
	return out, nil
}

// ChangeRole sets another user's role.
func (s *Service) ChangeRole(ctx context.Context, ac auth.AuthContext, uid, role string) (User, error) {
	r := auth.Role(strings.ToLower(strings.TrimSpace(role)))
	if r != auth.RoleAdmin && r != auth.RoleUser {
		return User{}, apperr.Invalid("role must be admin or user")
	}
	if uid == ac.UserID {
		return User{}, apperr.Forbidden("cannot change your own role")
	}
	ok, err := s.store.SetRole(ctx, uid, r)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, apperr.NotFound("user not found")
	}
	s.logger.Printf("role changed uid=%s role=%s by=%s", uid, r, ac.UserID)
	return s.get(ctx, uid)
}

// SetActive enables or disables another user's account.
func (s *Service) SetActive(ctx context.Context, ac auth.AuthContext, uid string, active bool) (User, error) {
	if uid == ac.UserID {
		return User{}, apperr.Forbidden("cannot change your own account state")
	}
	ok, err := s.store.SetActive(ctx, uid, active)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, apperr.NotFound("user not found")
	}
	return s.get(ctx, uid)
}

// Delete removes another user's account.
func (s *Service) Delete(ctx context.Context, ac auth.AuthContext, uid string) error {
	if uid == ac.UserID {
		return apperr.Forbidden("cannot delete your own account")
	}
	ok, err := s.store.Delete(ctx, uid)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user not found")
	}
	s.logger.Printf("user deleted uid=%s by=%s", uid, ac.UserID)
	return nil
}

// DisplayName returns the name copied onto attendance records.
func (s *Service) DisplayName(ctx context.Context, uid string) (string, error) {
	u, err := s.store.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperr.NotFound("user not found")
	}
	return u.FullName, nil
}

// FetchUsers returns every user. It is the user source of the statistics module.
func (s *Service) FetchUsers(ctx context.Context) ([]User, error) {
	return s.store.List(ctx, "")
}

func normalizeEmail(v string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(v))
	if err != nil || addr.Address != strings.TrimSpace(v) {
		return "", apperr.Invalid("email is invalid")
	}
	return strings.ToLower(addr.Address), nil
}
