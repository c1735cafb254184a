package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  env: development
  port: 6001
mongo:
  uri: mongodb://mongo:27017
  database: chat_db
jwt:
  algorithm: HS256
  secret: s3cret
translate:
  provider: libre
  url: http://translate:5000
  timeout_ms: 1500
kafka:
  brokers: ["k1:9092", "k2:9092"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	req := require.New(t)

	cfg, err := Load(writeConfig(t, sampleYAML))

	req.NoError(err)
	req.Equal(6001, cfg.App.Port)
	req.True(cfg.App.IsDevelopment())
	req.Equal("chat_db", cfg.Mongo.Database)
	req.Equal("messages", cfg.Mongo.MessagesCollection)
	req.Equal("users", cfg.Mongo.UsersCollection)
	req.Equal([]string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	req.Equal(1500*time.Millisecond, cfg.TranslateTimeout)
	req.Equal("en", cfg.Translate.DefaultLanguage)
	req.Equal(15*time.Second, cfg.UploadTimeout)
	req.Equal(25*time.Second, cfg.PingInterval)
	req.Equal(5000, cfg.Message.MaxTextLength)
	req.EqualValues(40_000_000, cfg.Media.MaxThumbnailPixels)
}

func TestLoad_EnvOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("MONGO_URI", "mongodb://override:27017")
	t.Setenv("SERVICE_PORT", "7001")
	t.Setenv("TRANSLATE_DEFAULT_LANGUAGE", "es")

	cfg, err := Load(writeConfig(t, sampleYAML))

	req.NoError(err)
	req.Equal("mongodb://override:27017", cfg.Mongo.URI)
	req.Equal(7001, cfg.App.Port)
	req.Equal("es", cfg.Translate.DefaultLanguage)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("should fail without mongo uri", func(t *testing.T) {
		_, err := Load(writeConfig(t, "mongo:\n  database: x\njwt:\n  secret: s\n"))
		require.ErrorContains(t, err, "mongo.uri")
	})

	t.Run("should require a secret for HS256", func(t *testing.T) {
		_, err := Load(writeConfig(t, "mongo:\n  uri: mongodb://m\n  database: x\n"))
		require.ErrorContains(t, err, "jwt.secret")
	})

	t.Run("should require a url for the libre provider", func(t *testing.T) {
		body := "mongo:\n  uri: mongodb://m\n  database: x\njwt:\n  secret: s\ntranslate:\n  provider: libre\n"
		_, err := Load(writeConfig(t, body))
		require.ErrorContains(t, err, "translate.url")
	})

	t.Run("should reject unknown providers", func(t *testing.T) {
		body := "mongo:\n  uri: mongodb://m\n  database: x\njwt:\n  secret: s\ntranslate:\n  provider: babelfish\n"
		_, err := Load(writeConfig(t, body))
		require.ErrorContains(t, err, "babelfish")
	})
}
