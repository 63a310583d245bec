package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromYAML(t *testing.T, body string) *viper.Viper {
	t.Helper()

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(body)))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(fromYAML(t, "auth:\n  jwt-secret: s3cret\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "memory", cfg.Auth.Revocation.Backend)
	assert.Equal(t, 72*time.Hour, cfg.Interviews.InviteTTL)
	assert.Equal(t, 0.5, cfg.AI.Screening.MinimumFitScore)
	assert.Equal(t, "@every 1h", cfg.Maintenance.SessionPurge)
	assert.Empty(t, cfg.AI.Chat.Provider)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HIRELOOP_SERVER_ADDR", ":9090")
	t.Setenv("HIRELOOP_AI_CHAT_PROVIDER", "Groq")
	t.Setenv("HIRELOOP_AI_GROQ_API_KEY", "gsk-test")
	t.Setenv("HIRELOOP_AUTH_REVOCATION_BACKEND", "redis")
	t.Setenv("HIRELOOP_AUTH_REVOCATION_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(fromYAML(t, "server:\n  addr: \":8081\"\nauth:\n  jwt-secret: s3cret\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "groq", cfg.AI.Chat.Provider)
	assert.Equal(t, "gsk-test", cfg.ChatProvider().APIKey)
	assert.Equal(t, "localhost:6379", cfg.Auth.Revocation.RedisAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing jwt secret",
			yaml: "server:\n  addr: \":1\"\n",
			want: "auth.jwt-secret",
		},
		{
			name: "unknown driver",
			yaml: "auth:\n  jwt-secret: x\ndatabase:\n  driver: mysql\n",
			want: "unsupported driver",
		},
		{
			name: "redis without address",
			yaml: "auth:\n  jwt-secret: x\n  revocation:\n    backend: redis\n",
			want: "redis-addr",
		},
		{
			name: "unknown chat provider",
			yaml: "auth:\n  jwt-secret: x\nai:\n  chat:\n    provider: mistral\n",
			want: "unsupported provider \"mistral\"",
		},
		{
			name: "chat provider without key",
			yaml: "auth:\n  jwt-secret: x\nai:\n  chat:\n    provider: anthropic\n",
			want: "ai.anthropic.api-key",
		},
		{
			name: "elevenlabs without voice",
			yaml: "auth:\n  jwt-secret: x\nai:\n  tts:\n    provider: elevenlabs\n  elevenlabs:\n    api-key: k\n",
			want: "ai.tts.voice",
		},
		{
			name: "fit score out of range",
			yaml: "auth:\n  jwt-secret: x\nai:\n  screening:\n    minimum-fit-score: 1.5\n",
			want: "minimum-fit-score",
		},
		{
			name: "remote issuer without secret",
			yaml: "auth:\n  jwt-secret: x\n  remote:\n    issuer: https://auth.example.test\n",
			want: "auth.remote.secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(fromYAML(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSecretsPreferFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	cfg, err := Load(fromYAML(t, "auth:\n  jwt-secret: inline\n  jwt-secret-file: "+path+"\n"))
	require.NoError(t, err)

	secret, err := cfg.JWTSecret()
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)

	_, err = cfg.AI.Avatar.Key()
	assert.ErrorContains(t, err, "simli api key is not configured")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HIRELOOP_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HIRELOOP_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("HIRELOOP_TEST_DOTENV"))
}
