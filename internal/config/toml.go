package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// FileOverrides is the subset of Config that a development TOML file
// may override on top of environment-derived defaults. Overrides are
// per section: a section present in the file replaces that whole
// section of the Config.
type FileOverrides struct {
	Server  *ServerConfig  `toml:"server"`
	Collab  *CollabConfig  `toml:"collab"`
	Logging *LogConfig     `toml:"logging"`
}

// LoadTOML reads path and, for each of the server, collab and logging
// sections present in it, replaces that section of cfg. Keys a present
// section omits become zero values; they are not kept from cfg.
func LoadTOML(path string, cfg *Config) error {
	var overrides FileOverrides
	if _, err := toml.DecodeFile(path, &overrides); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyOverrides(cfg, &overrides)
	return nil
}

func applyOverrides(cfg *Config, o *FileOverrides) {
	if o.Server != nil {
		cfg.Server = *o.Server
	}
	if o.Collab != nil {
		cfg.Collab = *o.Collab
	}
	if o.Logging != nil {
		cfg.Logging = *o.Logging
	}
}

// Watcher hot-reloads a development TOML config file on write, calling
// onChange with the freshly reloaded Config. Intended for local dev
// only; production deploys should rely on env vars and a restart.
type Watcher struct {
	path    string
	base    Config
	mu      sync.Mutex
	current *Config
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching path for changes, applying overrides on
// top of base. If path does not exist yet, the watcher still starts
// (a later create event will pick it up).
func NewWatcher(path string, base Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	cfg := base
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(path, &cfg); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		path:    path,
		base:    base,
		current: &cfg,
		fsw:     fsw,
		done:    make(chan struct{}),
	}

	if err := fsw.Add(path); err != nil {
		if err := fsw.Add(dirOf(path)); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("config: watch %s: %w", path, err)
		}
	}

	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.current
}

// Run blocks, reloading on every write/create event for w.path, until
// Close is called. A file that fails to parse is skipped: the last good
// config stays current and onChange is not called.
func (w *Watcher) Run(onChange func(Config)) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path || (ev.Op&(fsnotify.Write|fsnotify.Create) == 0) {
				continue
			}
			cfg := w.base
			if err := LoadTOML(w.path, &cfg); err != nil {
				continue
			}
			w.mu.Lock()
			w.current = &cfg
			w.mu.Unlock()
			if onChange != nil {
				onChange(cfg)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
