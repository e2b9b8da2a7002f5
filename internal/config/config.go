// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CacheBackend selects the resource cache implementation.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheOff    CacheBackend = "off"
)

// SessionBackend selects where session keys are persisted.
type SessionBackend string

const (
	SessionFile     SessionBackend = "file"
	SessionSQLite   SessionBackend = "sqlite"
	SessionPostgres SessionBackend = "postgres"
	SessionMemory   SessionBackend = "memory"
)

// Config is the client configuration.
type Config struct {
	APIURL  string
	Timeout time.Duration

	Cache         CacheBackend
	CacheTTL      time.Duration
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionStore      SessionBackend
	SessionDSN        string // file path, sqlite path or postgres DSN
	SessionProfile    string
	SessionPassphrase string

	LogLevel string
	LogDev   bool
}

// Mock is the mock backend configuration.
type Mock struct {
	Addr       string
	JWTKey     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	LogLevel   string
	LogDev     bool
}

// Error lists every missing or invalid variable found by one load.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

// Lookup reads one variable; os.LookupEnv is the default.
type Lookup func(key string) (string, bool)

// Load reads the .env files (default ".env", absent files are fine) into the process
// environment without overriding it, then parses the client configuration.
func Load(envFiles ...string) (Config, error) {
	if err := loadDotenv(envFiles...); err != nil {
		return Config{}, err
	}
	return Parse(os.LookupEnv)
}

// LoadMock is Load for the mock backend.
func LoadMock(envFiles ...string) (Mock, error) {
	if err := loadDotenv(envFiles...); err != nil {
		return Mock{}, err
	}
	return ParseMock(os.LookupEnv)
}

func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Parse builds a Config from lookup, applying defaults.
func Parse(lookup Lookup) (Config, error) {
	r := reader{lookup: lookup, err: &Error{}}
	c := Config{
		APIURL:            r.str("BOOKLY_API_URL", "http://localhost:8080/api"),
		Timeout:           r.duration("BOOKLY_TIMEOUT", 15*time.Second),
		Cache:             CacheBackend(r.oneOf("BOOKLY_CACHE", string(CacheMemory), string(CacheMemory), string(CacheRedis), string(CacheOff))),
		CacheTTL:          r.duration("BOOKLY_CACHE_TTL", 30*time.Second),
		CacheSize:         r.integer("BOOKLY_CACHE_SIZE", 256),
		RedisAddr:         r.str("BOOKLY_REDIS_ADDR", ""),
		RedisPassword:     r.str("BOOKLY_REDIS_PASSWORD", ""),
		RedisDB:           r.integer("BOOKLY_REDIS_DB", 0),
		SessionStore:      SessionBackend(r.oneOf("BOOKLY_SESSION_STORE", string(SessionFile), string(SessionFile), string(SessionSQLite), string(SessionPostgres), string(SessionMemory))),
		SessionDSN:        r.str("BOOKLY_SESSION_DSN", ""),
		SessionProfile:    r.str("BOOKLY_SESSION_PROFILE", "default"),
		SessionPassphrase: r.str("BOOKLY_SESSION_PASSPHRASE", ""),
		LogLevel:          r.oneOf("BOOKLY_LOG_LEVEL", "warn", "debug", "info", "warn", "error"),
		LogDev:            r.boolean("BOOKLY_LOG_DEV", false),
	}
	if c.Cache == CacheRedis && c.RedisAddr == "" {
		r.err.Missing = append(r.err.Missing, "BOOKLY_REDIS_ADDR")
	}
	if c.SessionStore == SessionPostgres && c.SessionDSN == "" {
		r.err.Missing = append(r.err.Missing, "BOOKLY_SESSION_DSN")
	}
	if c.Timeout <= 0 {
		r.invalid("BOOKLY_TIMEOUT")
	}
	if c.CacheSize <= 0 {
		r.invalid("BOOKLY_CACHE_SIZE")
	}
	return c, r.result()
}

// ParseMock builds a Mock from lookup, applying defaults. The signing key may come from a
// flag later, so it is not required here.
func ParseMock(lookup Lookup) (Mock, error) {
	r := reader{lookup: lookup, err: &Error{}}
	m := Mock{
		Addr:       r.str("MOCKAPI_ADDR", ":8080"),
		JWTKey:     r.str("MOCKAPI_JWT_KEY", ""),
		AccessTTL:  r.duration("MOCKAPI_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: r.duration("MOCKAPI_REFRESH_TTL", 7*24*time.Hour),
		LogLevel:   r.oneOf("MOCKAPI_LOG_LEVEL", "info", "debug", "info", "warn", "error"),
		LogDev:     r.boolean("MOCKAPI_LOG_DEV", false),
	}
	return m, r.result()
}

type reader struct {
	lookup Lookup
	err    *Error
}

func (r reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r reader) invalid(key string) {
	r.err.Invalid = append(r.err.Invalid, key)
}

func (r reader) str(key, def string) string {
	if v, ok := r.get(key); ok {
		return v
	}
	return def
}

func (r reader) oneOf(key, def string, allowed ...string) string {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.invalid(key)
	return def
}

func (r reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.invalid(key)
		return def
	}
	return d
}

func (r reader) integer(key string, def int) int {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalid(key)
		return def
	}
	return n
}

func (r reader) boolean(key string, def bool) bool {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.invalid(key)
		return def
	}
	return b
}

func (r reader) result() error {
	if len(r.err.Missing) == 0 && len(r.err.Invalid) == 0 {
		return nil
	}
	return r.err
}
