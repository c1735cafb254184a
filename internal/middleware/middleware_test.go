package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/config"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func authApp(t *testing.T) *fiber.App {
	t.Helper()
	v, err := NewVerifier(config.JWTConf{Algorithm: "HS256", HSSecret: testSecret})
	require.NoError(t, err)

	app := fiber.New()
	app.Use(JWTAuth(v, "jwt"))
	app.Get("/me", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })
	return app
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestJWTAuth(t *testing.T) {
	app := authApp(t)
	valid := signHS256(t, jwt.MapClaims{"userId": "u1", "exp": time.Now().Add(time.Hour).Unix()})

	t.Run("should accept a bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "u1", readBody(t, resp))
	})

	t.Run("should accept the session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: valid})
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("should accept sub and user_id claims", func(t *testing.T) {
		for _, claims := range []jwt.MapClaims{{"sub": "u2"}, {"user_id": "u2"}} {
			req := httptest.NewRequest(http.MethodGet, "/me?token="+signHS256(t, claims), nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, "u2", readBody(t, resp))
		}
	})

	t.Run("should reject missing, expired and foreign tokens", func(t *testing.T) {
		expired := signHS256(t, jwt.MapClaims{"userId": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "u1"}).SignedString([]byte("other"))
		require.NoError(t, err)
		noUser := signHS256(t, jwt.MapClaims{"role": "admin"})

		for name, hdr := range map[string]string{"missing": "", "expired": "Bearer " + expired, "foreign": "Bearer " + foreign, "no user": "Bearer " + noUser, "basic": "Basic abc"} {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if hdr != "" {
				req.Header.Set("Authorization", hdr)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
		}
	})
}

func TestNewVerifier(t *testing.T) {
	_, err := NewVerifier(config.JWTConf{Algorithm: "HS256"})
	require.Error(t, err)
	_, err = NewVerifier(config.JWTConf{Algorithm: "ES512", HSSecret: "x"})
	require.ErrorContains(t, err, "ES512")
	_, err = NewVerifier(config.JWTConf{Algorithm: "RS256", PublicKeyPath: "/does/not/exist.pem"})
	require.Error(t, err)
}

func limitedApp(h fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop()))
	app.Use(h)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	return app
}

func hit(t *testing.T, app *fiber.App) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(1, 2, zap.NewNop())
	t.Cleanup(l.Close)
	app := limitedApp(l.Handler(ByUserOrIP))

	require.Equal(t, http.StatusNoContent, hit(t, app))
	require.Equal(t, http.StatusNoContent, hit(t, app))
	require.Equal(t, http.StatusTooManyRequests, hit(t, app))
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisRateLimiter(client, "test", 2, time.Minute, zap.NewNop())
	now := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }
	app := limitedApp(l.Handler(ByUserOrIP))

	require.Equal(t, http.StatusNoContent, hit(t, app))
	require.Equal(t, http.StatusNoContent, hit(t, app))
	require.Equal(t, http.StatusTooManyRequests, hit(t, app))

	t.Run("should set a ttl on every window key", func(t *testing.T) {
		keys := mr.Keys()
		require.NotEmpty(t, keys)
		for _, k := range keys {
			require.Greater(t, mr.TTL(k), time.Duration(0), k)
		}
	})

	t.Run("should start counting again in the next window", func(t *testing.T) {
		// the exhausted counter is still in redis; the next window must not see it
		now = now.Add(time.Minute)
		require.Equal(t, http.StatusNoContent, hit(t, app))
	})

	t.Run("should fail open without redis", func(t *testing.T) {
		mr.Close()
		require.Equal(t, http.StatusNoContent, hit(t, app))
	})
}
