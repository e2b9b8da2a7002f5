package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func env(m map[string]string) Lookup {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()
	c, err := Parse(env(nil))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api", c.APIURL)
	require.Equal(t, 15*time.Second, c.Timeout)
	require.Equal(t, CacheMemory, c.Cache)
	require.Equal(t, 30*time.Second, c.CacheTTL)
	require.Equal(t, 256, c.CacheSize)
	require.Equal(t, SessionFile, c.SessionStore)
	require.Equal(t, "default", c.SessionProfile)
	require.Equal(t, "warn", c.LogLevel)
	require.False(t, c.LogDev)
}

func TestParse_Overrides(t *testing.T) {
	t.Parallel()
	c, err := Parse(env(map[string]string{
		"BOOKLY_API_URL":       "https://api.example.com/api",
		"BOOKLY_TIMEOUT":       "3s",
		"BOOKLY_CACHE":         "Redis",
		"BOOKLY_REDIS_ADDR":    "localhost:6379",
		"BOOKLY_SESSION_STORE": "postgres",
		"BOOKLY_SESSION_DSN":   "postgres://u:p@localhost/bookly",
		"BOOKLY_LOG_DEV":       "true",
	}))
	require.NoError(t, err)
	require.Equal(t, CacheRedis, c.Cache)
	require.Equal(t, 3*time.Second, c.Timeout)
	require.Equal(t, SessionPostgres, c.SessionStore)
	require.True(t, c.LogDev)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	_, err := Parse(env(map[string]string{
		"BOOKLY_TIMEOUT":       "soon",
		"BOOKLY_CACHE":         "redis",
		"BOOKLY_CACHE_SIZE":    "-1",
		"BOOKLY_SESSION_STORE": "postgres",
		"BOOKLY_LOG_LEVEL":     "loud",
	}))
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	require.ElementsMatch(t, []string{"BOOKLY_REDIS_ADDR", "BOOKLY_SESSION_DSN"}, cerr.Missing)
	require.ElementsMatch(t, []string{"BOOKLY_TIMEOUT", "BOOKLY_CACHE_SIZE", "BOOKLY_LOG_LEVEL"}, cerr.Invalid)
	require.Contains(t, err.Error(), "missing BOOKLY_REDIS_ADDR")
}

func TestParseMock(t *testing.T) {
	t.Parallel()
	m, err := ParseMock(env(map[string]string{"MOCKAPI_ACCESS_TTL": "1m", "MOCKAPI_JWT_KEY": "k"}))
	require.NoError(t, err)
	require.Equal(t, ":8080", m.Addr)
	require.Equal(t, time.Minute, m.AccessTTL)
	require.Equal(t, "k", m.JWTKey)

	_, err = ParseMock(env(map[string]string{"MOCKAPI_REFRESH_TTL": "week"}))
	require.Error(t, err)
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BOOKLY_CACHE_TTL=90s\nBOOKLY_TIMEOUT=9s\n"), 0o600))

	t.Setenv("BOOKLY_TIMEOUT", "2s")
	t.Setenv("BOOKLY_CACHE_TTL", "")
	require.NoError(t, os.Unsetenv("BOOKLY_CACHE_TTL"))

	c, err := Load(path, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, c.Timeout)
	require.Equal(t, 90*time.Second, c.CacheTTL)
}
