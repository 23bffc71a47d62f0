// Package config loads mediagate's static process configuration: listen
// address, database path, scan root, external tool paths and API token.
// Mutable operator settings (audio thresholds, concurrency, keyword
// toggles) live in the store.Config table instead, resolved per task at
// runtime — see internal/store.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Static is the process-level configuration loaded once at startup.
type Static struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	DBPath          string `mapstructure:"db_path"`
	ScanRoot        string `mapstructure:"scan_root"`
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	FFprobePath     string `mapstructure:"ffprobe_path"`
	RclonePath      string `mapstructure:"rclone_path"`
	APIToken        string `mapstructure:"api_token"`
	DockerContainer string `mapstructure:"docker_container"`
}

func getConfigPath() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, "mediagate")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Load reads the static configuration from customPath, or the default XDG
// location when customPath is empty, writing it with defaults on first run.
func Load(customPath string) (Static, error) {
	if customPath != "" {
		viper.SetConfigFile(customPath)
	} else {
		configPath, err := getConfigPath()
		if err != nil {
			return Static{}, err
		}
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("listen_addr", "127.0.0.1:8733")
	viper.SetDefault("db_path", defaultDBPath())
	viper.SetDefault("scan_root", "")
	viper.SetDefault("ffmpeg_path", "ffmpeg")
	viper.SetDefault("ffprobe_path", "ffprobe")
	viper.SetDefault("rclone_path", "rclone")
	viper.SetDefault("api_token", "")
	viper.SetDefault("docker_container", "mediagate-stt")

	// Create config if it doesn't exist
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Save default config
			if err := viper.SafeWriteConfig(); err != nil {
				return Static{}, fmt.Errorf("write default config: %w", err)
			}
		} else {
			return Static{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Static
	if err := viper.Unmarshal(&s); err != nil {
		return Static{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return s, nil
}

func defaultDBPath() string {
	return filepath.Join(xdg.DataHome, "mediagate", "mediagate.db")
}
