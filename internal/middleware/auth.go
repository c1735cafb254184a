package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fathima-sithara/dm-service/internal/config"
)

const localUserID = "user_id"

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates session tokens issued by the auth service.
type Verifier struct {
	method string
	secret []byte
	pub    *rsa.PublicKey
}

func NewVerifier(cfg config.JWTConf) (*Verifier, error) {
	switch strings.ToUpper(cfg.Algorithm) {
	case "RS256":
		b, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read jwt public key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		return &Verifier{method: "RS256", pub: pub}, nil
	case "HS256", "":
		if cfg.HSSecret == "" {
			return nil, errors.New("jwt secret missing")
		}
		return &Verifier{method: "HS256", secret: []byte(cfg.HSSecret)}, nil
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.Algorithm)
	}
}

// Validate returns the user id carried by token.
func (v *Verifier) Validate(tokenStr string) (string, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if v.pub != nil {
			return v.pub, nil
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", ErrInvalidToken
	}
	for _, key := range []string{"userId", "user_id", "sub"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
}

// TokenFromRequest looks at the Authorization header, then the session
// cookie, then the "token" query parameter.
func TokenFromRequest(c *fiber.Ctx, cookieName string) string {
	if hdr := c.Get(fiber.HeaderAuthorization); hdr != "" {
		const pref = "Bearer "
		if len(hdr) > len(pref) && strings.EqualFold(hdr[:len(pref)], pref) {
			return strings.TrimSpace(hdr[len(pref):])
		}
		return ""
	}
	if cookieName != "" {
		if tok := c.Cookies(cookieName); tok != "" {
			return tok
		}
	}
	return c.Query("token")
}

// JWTAuth rejects requests without a valid token and stores the caller's id
// for UserID.
func JWTAuth(v *Verifier, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := TokenFromRequest(c, cookieName)
		if tok == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized - No Token Provided"})
		}
		uid, err := v.Validate(tok)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized - Invalid Token"})
		}
		c.Locals(localUserID, uid)
		return c.Next()
	}
}

// UserID returns the authenticated caller set by JWTAuth.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(localUserID).(string)
	return uid
}
