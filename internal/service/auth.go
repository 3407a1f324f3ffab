package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/ports"
)

// defaultWarmupTimeout bounds the membership prefetch during login.
// When it elapses the session is established anyway with least
// privilege; the directory fills in lazily afterwards.
const defaultWarmupTimeout = 10 * time.Second

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider       ports.AuthProvider
	Sessions       ports.SessionStore
	Roles          ports.PlatformRoleMapper
	Directory      *DirectoryService
	Impersonations ports.ImpersonationStore
	Logger         *slog.Logger
	// WarmupTimeout overrides the default membership prefetch bound.
	WarmupTimeout time.Duration
}

// AuthService orchestrates authentication flows by coordinating provider,
// platform role mapping, and session persistence.
type AuthService struct {
	provider       ports.AuthProvider
	sessions       ports.SessionStore
	roles          ports.PlatformRoleMapper
	directory      *DirectoryService
	impersonations ports.ImpersonationStore
	logger         *slog.Logger
	warmupTimeout  time.Duration

	subMu       sync.Mutex
	subscribers []func(ctx context.Context, userID string)
}

var errSessionExpired = errors.New("session expired")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	timeout := opts.WarmupTimeout
	if timeout <= 0 {
		timeout = defaultWarmupTimeout
	}
	return &AuthService{
		provider:       opts.Provider,
		sessions:       opts.Sessions,
		roles:          opts.Roles,
		directory:      opts.Directory,
		impersonations: opts.Impersonations,
		logger:         opts.Logger,
		warmupTimeout:  timeout,
	}
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	input := ports.BeginInput{RedirectURL: redirectURL}
	authURL, state, nonce, err := s.provider.Begin(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLoginResult contains the result of completing a login flow.
type CompleteLoginResult struct {
	Session domainauth.Session
}

// CompleteLogin completes an authentication flow by exchanging the code
// for an identity, mapping the platform role, persisting a session, and
// warming the user's membership directory. The warm-up is bounded: if
// the directory is slow or down, login still succeeds and the user
// starts with the least privilege their session alone implies.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*CompleteLoginResult, error) {
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	exchangeInput := ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	}
	identity, err := s.provider.Exchange(ctx, exchangeInput)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	role := s.roles.Map(identity.Groups)

	session := domainauth.Session{
		ID:           generateSessionID(),
		UserID:       identity.UserID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		PlatformRole: role,
		ExpiresAt:    identity.ExpiresAt,
	}

	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}

	s.warmDirectory(ctx, session.UserID)

	return &CompleteLoginResult{
		Session: session,
	}, nil
}

// warmDirectory prefetches the user's membership list so the first
// community page does not pay the store round trip. Failures and
// timeouts are logged, never surfaced: login must not hinge on the
// directory being up.
func (s *AuthService) warmDirectory(ctx context.Context, userID string) {
	if s.directory == nil {
		return
	}
	warmCtx, cancel := context.WithTimeout(ctx, s.warmupTimeout)
	defer cancel()
	if _, err := s.directory.ListMemberships(warmCtx, userID); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "membership warm-up failed, continuing with least privilege",
				"user_id", userID, "error", err)
		}
	}
}

// GetSession retrieves a session by ID. Expired sessions are removed on
// read.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(errSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, errSessionExpired
	}

	return &session, nil
}

// SignOut removes a session and everything derived from it: the
// impersonation overlay, the cached membership directory, and any
// subscriber state. Subscribers are notified only after the stores are
// updated, so a listener that re-reads sees the signed-out state.
// Signing out an unknown session is a no-op.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		// Unknown or already-removed session; nothing to clean up.
		return nil
	}

	if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
		return fmt.Errorf("delete session: %w", deleteErr)
	}

	if s.impersonations != nil {
		if impErr := s.impersonations.Delete(ctx, sessionID); impErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "clear impersonation on sign-out failed",
				"session_id", sessionID, "error", impErr)
		}
	}

	if s.directory != nil {
		if invErr := s.directory.Invalidate(ctx, session.UserID); invErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "directory invalidation on sign-out failed",
				"user_id", session.UserID, "error", invErr)
		}
	}

	s.notifyIdentityChange(ctx, session.UserID)
	return nil
}

// OnIdentityChange registers a callback invoked after a user's identity
// state changes (sign-out, impersonation changes). Callbacks run after
// stores are updated.
func (s *AuthService) OnIdentityChange(fn func(ctx context.Context, userID string)) {
	if fn == nil {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *AuthService) notifyIdentityChange(ctx context.Context, userID string) {
	s.subMu.Lock()
	subs := make([]func(context.Context, string), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(ctx, userID)
	}
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	// Use UUID for session ID - it's URL-safe and has good entropy
	id := uuid.New()
	return id.String()
}
