// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env expansion, duration parsing, and validation failures

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
server:
  http_addr: ":8080"
database:
  path: "/tmp/botforge.db"
auth:
  jwt_secret: "secret"
  token_ttl: "12h"
llm:
  api_key: "key"
  default_model: "gemini-2.0-flash"
logging:
  level: "debug"
  format: "json"
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/botforge.db", cfg.Database.Path)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.DefaultModel)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestTokenTTLDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/db"
auth:
  jwt_secret: "secret"
llm:
  default_model: "gemini-2.0-flash"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("BOTFORGE_TEST_SECRET", "from-env")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/db"
auth:
  jwt_secret: "${BOTFORGE_TEST_SECRET}"
llm:
  default_model: "gemini-2.0-flash"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing http addr",
			yaml: "database:\n  path: /tmp/db\nauth:\n  jwt_secret: s\nllm:\n  default_model: m\n",
			want: "http_addr",
		},
		{
			name: "missing database path",
			yaml: "server:\n  http_addr: :8080\nauth:\n  jwt_secret: s\nllm:\n  default_model: m\n",
			want: "database.path",
		},
		{
			name: "missing jwt secret",
			yaml: "server:\n  http_addr: :8080\ndatabase:\n  path: /tmp/db\nllm:\n  default_model: m\n",
			want: "jwt_secret",
		},
		{
			name: "missing default model",
			yaml: "server:\n  http_addr: :8080\ndatabase:\n  path: /tmp/db\nauth:\n  jwt_secret: s\n",
			want: "default_model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/db"
auth:
  jwt_secret: "s"
  token_ttl: "not-a-duration"
llm:
  default_model: "m"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_ttl")
}

func TestMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
