package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionConfig for the Redis-backed session.
type SessionConfig struct {
	Secret            string
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "paper.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour
)

// SessionUser is the shape stored in session under "user".
type SessionUser struct {
	Username string `json:"username"`
}

// Session parses RedisURL and returns the session middleware together with
// the client, which the caller shares with health and auth handlers.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	return SessionStore(rdb, cfg.Secret), rdb, nil
}

// SessionStore loads the session named by the cookie from Redis before the
// handler runs and saves it afterwards when a session id is set. With a
// non-empty secret only cookies signed by SignSessionID are accepted.
func SessionStore(rdb *redis.Client, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := sessionIDFromCookie(c.Cookies(SessionCookieName), secret)
		data := loadSession(c.UserContext(), rdb, sid)

		c.Locals("session_data", data)
		c.Locals("user", data["user"])
		c.Locals("session_id", sid)

		if err := c.Next(); err != nil {
			return err
		}
		saveSession(rdb, GetSessionID(c), c.Locals("session_data"))
		return nil
	}
}

// SignSessionID returns the cookie value for sid in the form "s:id.signature",
// where signature is the unpadded URL-safe base64 of HMAC-SHA256(secret, id).
// An empty secret leaves the id unsigned.
func SignSessionID(secret, sid string) string {
	if secret == "" {
		return "s:" + sid
	}
	return "s:" + sid + "." + sessionSignature(secret, sid)
}

func sessionSignature(secret, sid string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// sessionIDFromCookie returns the session id carried by v, or "" when the
// signature does not match the secret.
func sessionIDFromCookie(v, secret string) string {
	if secret == "" {
		if !strings.HasPrefix(v, "s:") {
			return v
		}
		id, _, _ := strings.Cut(v[2:], ".")
		return id
	}
	if !strings.HasPrefix(v, "s:") {
		return ""
	}
	id, sig, ok := strings.Cut(v[2:], ".")
	if !ok || id == "" {
		return ""
	}
	if !hmac.Equal([]byte(sig), []byte(sessionSignature(secret, id))) {
		return ""
	}
	return id
}

func loadSession(ctx context.Context, rdb *redis.Client, sid string) map[string]interface{} {
	data := map[string]interface{}{}
	if sid == "" {
		return data
	}
	b, err := rdb.Get(ctx, SessionRedisPrefix+sid).Bytes()
	if err != nil {
		return data
	}
	if json.Unmarshal(b, &data) != nil || data == nil {
		return map[string]interface{}{}
	}
	return data
}

func saveSession(rdb *redis.Client, sid string, v interface{}) {
	data, ok := v.(map[string]interface{})
	if sid == "" || !ok {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	rdb.Set(context.Background(), SessionRedisPrefix+sid, b, sessionMaxAge)
}

// GetSessionID returns the current session ID from context (for login/logout).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("session_id").(string)
	return sid
}

// SetSessionUser stores the user in the session; it is saved after the handler returns.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data["user"] = map[string]interface{}{
		"username": user.Username,
	}
	c.Locals("session_data", data)
	c.Locals("user", data["user"])
}

// RegenerateSessionID creates a new session ID and sets it in Locals.
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.New().String()
	c.Locals("session_id", newID)
	return newID
}

// DestroySession clears user and session data from Locals; caller must clear cookie and Redis.
func DestroySession(c *fiber.Ctx) {
	c.Locals("session_data", make(map[string]interface{}))
	c.Locals("user", nil)
	c.Locals("session_id", "")
}

// SessionCookieConfig returns the cookie options for SetCookie/ClearCookie.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	secure := cfg.IsProduction && cfg.AllowCrossSiteDev
	return fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}
