// Package config provides a configuration manager that loads and watches a JSON
// configuration file holding the runtime-tunable settings of the web service:
// allowed CORS origins and the per-route authentication rate limits.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ubuntu/decorate"
)

// Provider is an interface that defines methods to access configuration values.
type Provider interface {
	AllowedOrigins() []string
	OriginAllowed(origin string) bool
	AuthLimit(route string) RateLimit
}

// RateLimit describes an allowance of requests per time window.
type RateLimit struct {
	Requests   int `json:"requests"`
	PerSeconds int `json:"perSeconds"`
}

// Conf represents the configuration structure.
type Conf struct {
	Origins    []string             `json:"allowedOrigins"`
	AuthLimits map[string]RateLimit `json:"authRateLimits"`
}

// Default rate limits, matching the service defaults when the file does not
// override them.
var defaultAuthLimits = map[string]RateLimit{
	"register":       {Requests: 5, PerSeconds: 3600},
	"login":          {Requests: 10, PerSeconds: 900},
	"logout":         {Requests: 20, PerSeconds: 60},
	"validate-token": {Requests: 30, PerSeconds: 60},
}

// Manager is a struct that manages the configuration.
type Manager struct {
	config     Conf
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New creates a new configuration manager with the specified path.
//
// An empty path means no runtime config file: defaults are used and Watch is a
// no-op.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the configuration from the specified file and updates the internal state.
func (cm *Manager) Load() (err error) {
	defer decorate.OnError(&err, "could not load configuration")

	if cm.configPath == "" {
		cm.lock.Lock()
		cm.config = Conf{Origins: []string{"*"}}
		cm.lock.Unlock()
		cm.log.Info("No runtime configuration file, using defaults")
		return nil
	}

	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding config JSON: %w", err)
	}

	cm.lock.Lock()
	cm.config = newConfig
	cm.lock.Unlock()

	cm.log.Info("Configuration loaded", "config", cm.config)
	return nil
}

// AllowedOrigins returns the configured CORS origins. Defaults to any origin.
func (cm *Manager) AllowedOrigins() []string {
	cm.lock.RLock()
	defer cm.lock.RUnlock()

	if len(cm.config.Origins) == 0 {
		return []string{"*"}
	}
	return slices.Clone(cm.config.Origins)
}

// OriginAllowed reports whether the given origin may make cross-origin requests.
func (cm *Manager) OriginAllowed(origin string) bool {
	for _, o := range cm.AllowedOrigins() {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// AuthLimit returns the rate limit for the given auth route.
func (cm *Manager) AuthLimit(route string) RateLimit {
	cm.lock.RLock()
	limit, ok := cm.config.AuthLimits[route]
	cm.lock.RUnlock()

	if ok && limit.Requests > 0 && limit.PerSeconds > 0 {
		return limit
	}
	if def, ok := defaultAuthLimits[route]; ok {
		return def
	}
	return RateLimit{Requests: 100, PerSeconds: 60}
}

// Watch starts watching the configuration file for changes.
//
// It returns two channels: one for configuration changes which result in a successful load and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	if cm.configPath == "" {
		go func() {
			<-ctx.Done()
			close(changesCh)
			close(errorsCh)
		}()
		return changesCh, errorsCh, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching configuration directory", "dir", configDir)

	// Initial load of the configuration
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial config", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Configuration watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if event.Name != cm.configPath {
					continue
				}

				cm.log.Debug("Configuration file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading config", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}
