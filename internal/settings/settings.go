package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UserSettings holds persistable user preferences.
type UserSettings struct {
	FrameRate int    `json:"frameRate"`
	Server    string `json:"server,omitempty"`
}

// Manager handles loading and saving user settings.
type Manager struct {
	path     string
	settings UserSettings
}

// NewManager creates a settings manager with the default config path.
func NewManager() (*Manager, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return &Manager{path: path}, nil
}

// configPath returns the config file path, honoring XDG_CONFIG_HOME.
func configPath() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "bunker-sharescreen")
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, "bunker-sharescreen")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Defaults returns the default settings.
func Defaults() UserSettings {
	return UserSettings{FrameRate: 60}
}

// Load reads settings from the config file. Returns defaults if the
// file doesn't exist or is invalid.
func (m *Manager) Load() (UserSettings, error) {
	m.settings = Defaults()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return m.settings, nil
		}
		return m.settings, err
	}

	if err := json.Unmarshal(data, &m.settings); err != nil {
		m.settings = Defaults()
		return m.settings, nil
	}

	if m.settings.FrameRate <= 0 {
		m.settings.FrameRate = Defaults().FrameRate
	}

	return m.settings, nil
}

// Save writes settings to the config file.
func (m *Manager) Save(settings UserSettings) error {
	m.settings = settings

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.path, data, 0644)
}
