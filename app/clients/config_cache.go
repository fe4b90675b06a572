package clients

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultTimezone = "America/New_York"

type ConfigCache struct {
	clientsDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(clientsDir string) *ConfigCache {
	return &ConfigCache{
		clientsDir: clientsDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.clientsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.clientsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive client id from filename (remove .yml extension)
		fileName := filepath.Base(file)
		clientID := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(clientID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Client registration loaded", "client", clientID, "snap_id", config.SnapID, "timezone", config.Timezone, "enabled", config.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(clientID string) (*Config, error) {
	configFile := cc.getConfigFilePath(clientID)
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	// Set client id from parameter
	config.ClientID = clientID

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.ClientID] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(clientID string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[clientID]
	if !ok {
		return nil, fmt.Errorf("client config with id '%s' not found", clientID)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}
	if config.PublishAs == "" {
		config.PublishAs = "STORY"
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	if config.SnapID == "" {
		return fmt.Errorf("snap_id is required")
	}

	validPublishAs := map[string]bool{
		"STORY":     true,
		"SPOTLIGHT": true,
		"SAVED":     true,
	}
	if !validPublishAs[config.PublishAs] {
		return fmt.Errorf("invalid publish_as value: %s", config.PublishAs)
	}

	// Unknown zones fall back to the default offset at scheduling time,
	// but a name that no Go runtime knows is almost always a typo.
	if _, err := time.LoadLocation(config.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(clientID string) string {
	return filepath.Join(cc.clientsDir, clientID+".yml")
}
