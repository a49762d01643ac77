package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"paper-ledger/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping() error { return s.err }

func setupHealth(t *testing.T, db stubPinger) (*fiber.App, *miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	h := &Handlers{Rdb: rdb, DB: db, HealthAdminKey: "admin"}
	app := fiber.New()
	app.Get("/health/json", h.JSON)
	app.Get("/health/errors", h.Errors)
	app.Get("/health/reset", h.Reset)
	return app, mr, rdb
}

func TestJSON_Healthy(t *testing.T) {
	app, _, _ := setupHealth(t, stubPinger{})
	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "paper-ledger", out["service"])
	assert.Equal(t, "ok", out["status"])
}

func TestJSON_DatabaseDown(t *testing.T) {
	app, _, _ := setupHealth(t, stubPinger{err: errors.New("refused")})
	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrors_NewestFirst(t *testing.T) {
	app, _, rdb := setupHealth(t, stubPinger{})
	ctx := context.Background()
	require.NoError(t, rdb.LPush(ctx, middleware.KeyErrorLog, `{"path":"/a"}`).Err())
	require.NoError(t, rdb.LPush(ctx, middleware.KeyErrorLog, `{"path":"/b"}`).Err())

	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors?limit=1", nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "/b", out[0]["path"])
}

func TestReset(t *testing.T) {
	app, mr, _ := setupHealth(t, stubPinger{})
	mr.Set(middleware.KeyReqTotal, "7")

	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset?key=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.True(t, mr.Exists(middleware.KeyReqTotal))

	resp, err = app.Test(httptest.NewRequest("GET", "/health/reset?key=admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, mr.Exists(middleware.KeyReqTotal))
	assert.True(t, mr.Exists(middleware.KeyStartTime))
}
