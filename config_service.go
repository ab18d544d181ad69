package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vizchat/config"
)

// ConfigService owns loading and saving the JSON configuration file under the
// storage directory.
type ConfigService struct {
	storageDir string
	logger     func(string)
	mu         sync.RWMutex
}

// NewConfigService creates the service. logger may be nil.
func NewConfigService(logger func(string)) *ConfigService {
	return &ConfigService{logger: logger}
}

func (cs *ConfigService) log(msg string) {
	if cs.logger != nil {
		cs.logger(msg)
	}
}

// Initialize ensures the storage directory exists.
func (cs *ConfigService) Initialize() error {
	dir, err := cs.GetStorageDir()
	if err != nil {
		return WrapError("config", "Initialize", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return WrapError("config", "Initialize", fmt.Errorf("failed to create storage dir: %w", err))
	}
	cs.log(fmt.Sprintf("ConfigService initialized, storage dir: %s", dir))
	return nil
}

// GetStorageDir returns the storage directory path (~/.vizchat by default).
func (cs *ConfigService) GetStorageDir() (string, error) {
	cs.mu.RLock()
	sd := cs.storageDir
	cs.mu.RUnlock()

	if sd != "" {
		return sd, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError("config", "GetStorageDir", err)
	}
	return filepath.Join(home, ".vizchat"), nil
}

// SetStorageDir overrides the storage directory (used by tests).
func (cs *ConfigService) SetStorageDir(dir string) {
	cs.mu.Lock()
	cs.storageDir = dir
	cs.mu.Unlock()
}

func (cs *ConfigService) configPath() (string, error) {
	dir, err := cs.GetStorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfig loads the configuration, falling back to defaults when no file
// has been saved yet.
func (cs *ConfigService) GetConfig() (config.Config, error) {
	path, err := cs.configPath()
	if err != nil {
		return config.Default(), err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config.Default(), nil
	}
	if err != nil {
		return config.Default(), WrapError("config", "GetConfig", err)
	}

	cfg := config.Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.Default(), WrapError("config", "GetConfig", err)
	}
	return cfg, nil
}

// SaveConfig persists the configuration as indented JSON.
func (cs *ConfigService) SaveConfig(cfg config.Config) error {
	path, err := cs.configPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return WrapError("config", "SaveConfig", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return WrapError("config", "SaveConfig", err)
	}
	cs.log("Configuration saved")
	return nil
}
