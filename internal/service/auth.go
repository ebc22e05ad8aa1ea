// Package service contains the application services: authentication, jobs,
// the application lifecycle, certificates and AI assistance.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/placement/internal/crypto"
	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/limiter"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// MaxSkills bounds a student's stored skill list.
const MaxSkills = 100

// AuthService defines account and authentication operations.
type AuthService interface {
	// Register creates a user. A nil actor is public self-registration and
	// may only create students; an admin actor may create any role.
	Register(ctx context.Context, actor *model.Actor, in RegisterInput) (*model.User, error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.Tokens, user model.User, err error)
	// ParseToken validates an access token and returns its actor.
	ParseToken(token string) (model.Actor, error)
	// UpdateSkills replaces the calling student's skills.
	UpdateSkills(ctx context.Context, actor model.Actor, skills []string) ([]string, error)
}

// RegisterInput carries new account fields.
type RegisterInput struct {
	Username string
	Password string
	FullName string
	Role     model.Role
}

// Claims is the access token payload.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Lockout
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Lockout, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, log: log, now: time.Now}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, actor *model.Actor, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" {
		return nil, errs.Invalid("username", "required")
	}
	if in.FullName == "" {
		return nil, errs.Invalid("fullName", "required")
	}
	if in.Role == "" {
		in.Role = model.RoleStudent
	}
	if !in.Role.Valid() {
		return nil, errs.Invalid("role", "unknown role %q", in.Role)
	}
	if in.Role != model.RoleStudent && (actor == nil || actor.Role != model.RoleAdmin) {
		return nil, errs.ErrForbidden
	}

	hash, salt, err := pkgcrypto.NewPasswordHash(in.Password)
	if errors.Is(err, pkgcrypto.ErrWeakPassword) {
		return nil, errs.Invalid("password", "at least %d characters", pkgcrypto.MinPasswordLen)
	}
	if err != nil {
		return nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:        uid,
		Username:  in.Username,
		FullName:  in.FullName,
		Role:      in.Role,
		PwdHash:   hash,
		SaltAuth:  salt,
		Skills:    []string{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, username, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.String("username", username), zap.Error(err))
	}

	access, exp, err := s.issueAccessToken(u.ID, u.Role)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject and role.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID, role model.Role) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// ParseToken verifies signature and expiry and extracts the actor.
func (s *AuthServiceImpl) ParseToken(token string) (model.Actor, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	id, err := uuid.FromString(c.Subject)
	if err != nil || id == uuid.Nil || !c.Role.Valid() {
		return model.Actor{}, errs.ErrUnauthorized
	}
	return model.Actor{ID: id, Role: c.Role}, nil
}

// UpdateSkills stores a normalized copy of skills: trimmed, lower-cased,
// deduplicated and sorted.
func (s *AuthServiceImpl) UpdateSkills(ctx context.Context, actor model.Actor, skills []string) ([]string, error) {
	if actor.Role != model.RoleStudent {
		return nil, errs.ErrForbidden
	}
	norm := NormalizeSkills(skills)
	if len(norm) > MaxSkills {
		return nil, errs.Invalid("skills", "at most %d", MaxSkills)
	}
	if err := s.users.SetSkills(ctx, actor.ID, norm); err != nil {
		return nil, err
	}
	return norm, nil
}

// NormalizeSkills lower-cases, trims and deduplicates skill names.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, sk := range skills {
		sk = strings.ToLower(strings.TrimSpace(sk))
		if sk == "" {
			continue
		}
		if _, ok := seen[sk]; ok {
			continue
		}
		seen[sk] = struct{}{}
		out = append(out, sk)
	}
	sort.Strings(out)
	return out
}
