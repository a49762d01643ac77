package auth

import (
	"context"
	"errors"

	authsvc "paper-ledger/internal/application/auth"
	ledgersvc "paper-ledger/internal/application/ledger"
	"paper-ledger/internal/domain"
	"paper-ledger/internal/middleware"
	"paper-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userSessionsPrefix = "user_sessions:"

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, in authsvc.Credentials) (*domain.User, error)
}

// Snapshotter returns the ledger shown right after login.
type Snapshotter interface {
	Snapshot(ctx context.Context, username string) (*ledgersvc.Snapshot, error)
}

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Registrar  Registrar
	UserFinder authsvc.UserFinder
	Ledger     Snapshotter
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

// Register POST /api/v1/auth/register: create the user and their empty ledger.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req authsvc.Credentials
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, authsvc.ErrCredentialsRequired.Error())
	}
	user, err := h.Registrar.Register(c.UserContext(), req)
	if err != nil {
		return authError(c, err)
	}
	log.Info().Str("username", user.Username).Msg("auth: user registered")
	return response.SuccessCreated(c, "User registered successfully", fiber.Map{"username": user.Username}, nil)
}

// Login POST /api/v1/auth/login: authenticate, create session, set cookie,
// return the user's portfolio and balance.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req authsvc.Credentials
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, authsvc.ErrCredentialsRequired.Error())
	}

	ctx := c.UserContext()
	user, err := h.UserFinder.FindByCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return authError(c, err)
	}
	snap, err := h.Ledger.Snapshot(ctx, user.Username)
	if err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("auth: snapshot after login failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{Username: user.Username})
	if err := h.Rdb.SAdd(ctx, userSessionsPrefix+user.Username, sessionID).Err(); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = middleware.SignSessionID(h.Config.Secret, sessionID)
	c.Cookie(&cookie)

	return response.Success(c, "Login successful", fiber.Map{
		"username":     user.Username,
		"portfolio":    snap.Log,
		"totalBalance": snap.Balance,
	}, nil)
}

// Me GET /api/v1/auth/me: return current session user in standard success format.
func (h *Handlers) Me(c *fiber.Ctx) error {
	username, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		log.Debug().Str("path", "/auth/me").Bool("session_id_present", middleware.GetSessionID(c) != "").
			Msg("auth/me: not authenticated")
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"username": username}, nil)
}

// Logout DELETE /api/v1/auth/logout: drop the session from Redis and clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := context.Background()

	if sessionID != "" {
		if username, err := authsvc.VerifyUser(middleware.GetUser(c)); err == nil {
			_ = h.Rdb.SRem(ctx, userSessionsPrefix+username, sessionID).Err()
		}
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}

func authError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, authsvc.ErrCredentialsRequired),
		errors.Is(err, authsvc.ErrUsernameTooShort),
		errors.Is(err, authsvc.ErrUsernameInvalid),
		errors.Is(err, authsvc.ErrPasswordTooShort):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, authsvc.ErrUsernameTaken):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("auth: request failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}
