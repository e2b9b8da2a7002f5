// Package app wires the client stack from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/apiclient"
	"github.com/and161185/bookly/internal/cache"
	"github.com/and161185/bookly/internal/config"
	"github.com/and161185/bookly/internal/migrate"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/resource"
	"github.com/and161185/bookly/internal/session"
	"github.com/and161185/bookly/internal/storage"
	"github.com/and161185/bookly/internal/storage/file"
	"github.com/and161185/bookly/internal/storage/postgres"
	"github.com/and161185/bookly/internal/storage/sqlite"
	"github.com/and161185/bookly/internal/wizard"
)

// App is the assembled client.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	Session  *session.Store
	Client   *apiclient.Client
	Items    *resource.Items
	Calendar *resource.Calendar
	Cache    cache.Cache // unscoped backing store

	expired atomic.Bool
	closers []func() error
}

// New builds the KV, session store, HTTP client, cache and resource services, then
// restores any persisted session. Close releases what New opened, also on error.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	kv, err := a.openKV(ctx)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	a.Cache, err = a.openCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	conn := apiclient.NewConn(cfg.APIURL, apiclient.WithTimeout(cfg.Timeout), apiclient.WithLogger(log))
	auth := apiclient.NewAuthAPI(conn)
	a.Session = session.NewStore(kv, auth, log)
	a.Client = apiclient.New(conn, a.Session, auth,
		apiclient.WithClientLogger(log),
		apiclient.OnSessionExpired(func() { a.expired.Store(true) }),
	)

	// entries are partitioned per signed-in user; a shared backend never crosses accounts
	scoped := cache.NewScoped(a.Cache, a.currentUserID)
	a.Items = resource.NewItems(a.Client, scoped, log)
	a.Calendar = resource.NewCalendar(a.Client, scoped, log)

	// logout drops every cached view of the previous account
	var (
		mu   sync.Mutex
		last string
	)
	a.Session.OnChange(func(u *model.User) {
		mu.Lock()
		defer mu.Unlock()
		if u != nil {
			last = u.ID.String()
			return
		}
		if last == "" {
			return
		}
		view := scoped.Within(last)
		for _, root := range resource.Roots() {
			if err := view.Invalidate(context.WithoutCancel(ctx), root); err != nil {
				log.Warn("cache purge on logout", zap.String("key", root.String()), zap.Error(err))
			}
		}
		last = ""
	})

	if err := a.Session.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

func (a *App) currentUserID() string {
	if u := a.Session.User(); u != nil {
		return u.ID.String()
	}
	return ""
}

// SessionExpired reports whether a refresh failure ended the session since startup.
func (a *App) SessionExpired() bool { return a.expired.Load() }

// NewWizard starts a booking wizard over the calendar resource.
func (a *App) NewWizard(opts ...wizard.Option) *wizard.Wizard {
	return wizard.New(a.Calendar, append([]wizard.Option{wizard.WithLogger(a.Log)}, opts...)...)
}

// Close releases storage and cache connections.
func (a *App) Close() error {
	var all []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		all = append(all, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(all...)
}

func (a *App) openKV(ctx context.Context) (storage.KV, error) {
	cfg := a.Config
	switch cfg.SessionStore {
	case config.SessionMemory:
		return storage.NewMemory(), nil
	case config.SessionSQLite:
		path := cfg.SessionDSN
		if path == "" {
			path = filepath.Join(file.ConfigDir(), "session.db")
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return nil, err
			}
		}
		st, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case config.SessionPostgres:
		if err := migrate.Up(ctx, cfg.SessionDSN); err != nil {
			return nil, err
		}
		db, err := postgres.New(ctx, cfg.SessionDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		return postgres.NewStore(db, cfg.SessionProfile), nil
	default:
		path := cfg.SessionDSN
		if path == "" {
			path = file.DefaultPath()
		}
		return file.New(path, file.WithPassphrase(cfg.SessionPassphrase)), nil
	}
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	cfg := a.Config
	switch cfg.Cache {
	case config.CacheOff:
		return cache.Nop{}, nil
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		return cache.NewRedis(rdb, "bookly:"+cfg.SessionProfile, cfg.CacheTTL), nil
	default:
		return cache.NewLRU(cfg.CacheSize, cfg.CacheTTL), nil
	}
}
