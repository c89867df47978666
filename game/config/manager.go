package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/game/service"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = service.ErrInvalidConfig
)

// DefaultConfigID is the config used when a session names none
const DefaultConfigID = "default"

// extensions are tried in this order when resolving a config name
var extensions = []string{".json", ".yaml", ".yml"}

// Manager handles world configuration loading and caching
type Manager struct {
	configDir     string
	defaultID     string
	defaultConfig *engine.WorldConfig
	configs       map[string]*engine.WorldConfig
	log           logrus.FieldLogger
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string, log logrus.FieldLogger) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.WorldConfig),
		log:       log.WithField("component", "config"),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// configID strips a known extension from name
func configID(name string) string {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// LoadConfig loads a configuration by name, with or without extension
func (m *Manager) LoadConfig(name string) (*engine.WorldConfig, error) {
	id := configID(name)

	m.mu.RLock()
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	config, err := m.readConfig(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it meanwhile
	if cached, exists := m.configs[id]; exists {
		return cached, nil
	}
	m.configs[id] = config
	return config, nil
}

// readConfig reads and validates a config file without touching the cache
func (m *Manager) readConfig(id string) (*engine.WorldConfig, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, ErrConfigNotFound
	}

	for _, ext := range extensions {
		path := filepath.Join(m.configDir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config, err := engine.DecodeWorldConfig(path, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := engine.ValidateWorldConfig(config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return config, nil
	}
	return nil, ErrConfigNotFound
}

// ListConfigs returns information about all valid configurations, sorted by ID
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := configID(entry.Name())
		if id == entry.Name() || seen[id] {
			continue
		}

		config, err := m.LoadConfig(id)
		if err != nil {
			m.log.WithError(err).WithField("file", entry.Name()).Warn("skipping invalid config")
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:     entry.Name(),
			ConfigID:     id,
			Name:         config.Name,
			Description:  config.Description,
			Unit:         config.Unit,
			WorldWidth:   config.WorldWidth,
			FuelCapacity: config.FuelCapacity,
			Gravity:      config.Gravity,
			Generated:    config.Generator != nil,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.WorldConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// DefaultID returns the ID of the default configuration
func (m *Manager) DefaultID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = configID(name)
	m.defaultConfig = config
	return nil
}

// RefreshCache drops every cached configuration and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.WorldConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig picks default.*, then the first valid config, then the
// built-in world
func (m *Manager) loadDefaultConfig() error {
	id := DefaultConfigID
	config, err := m.LoadConfig(id)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			config = engine.DefaultWorldConfig()
			m.mu.Lock()
			m.configs[DefaultConfigID] = config
			m.mu.Unlock()
		} else {
			id = configs[0].ConfigID
			if config, err = m.LoadConfig(id); err != nil {
				return err
			}
		}
	}

	m.mu.Lock()
	m.defaultID = id
	m.defaultConfig = config
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"config": id, "dir": m.configDir}).Debug("default config loaded")
	return nil
}

// SaveConfig validates and writes a configuration to disk. Names ending in
// .yaml or .yml are written as YAML, anything else as JSON.
func (m *Manager) SaveConfig(name string, config *engine.WorldConfig) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	config.ApplyDefaults()
	if err := engine.ValidateWorldConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}

	ext := filepath.Ext(name)
	var (
		data []byte
		err  error
	)
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		ext = ".json"
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Drop other encodings of the same ID so LoadConfig sees this one
	for _, other := range extensions {
		if other != ext {
			_ = os.Remove(filepath.Join(m.configDir, id+other))
		}
	}

	configPath := filepath.Join(m.configDir, id+ext)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"config": id, "file": configPath}).Info("config saved")
	return nil
}
