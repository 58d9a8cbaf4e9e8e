package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Source       string `mapstructure:"source"`
	TargetWidth  int    `mapstructure:"target_width"`
	TargetHeight int    `mapstructure:"target_height"`
	MaxFPS       int    `mapstructure:"max_fps"`

	// MinFPS is the floor the load governor may throttle down to; 0
	// disables governing.
	MinFPS int `mapstructure:"min_fps"`

	// ListenAddr serves the preview WebSocket endpoint; empty disables it.
	ListenAddr string `mapstructure:"listen_addr"`

	AsyncDispatch bool `mapstructure:"async_dispatch"`
	QueueSize     int  `mapstructure:"queue_size"`
}

func Default() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Source:       "screen",
		TargetWidth:  1920,
		TargetHeight: 1080,
		MaxFPS:       30,
		MinFPS:       5,
		ListenAddr:   "127.0.0.1:8077",
		QueueSize:    1,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("framecast")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FRAMECAST")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("source", cfg.Source)
	viper.Set("target_width", cfg.TargetWidth)
	viper.Set("target_height", cfg.TargetHeight)
	viper.Set("max_fps", cfg.MaxFPS)
	viper.Set("min_fps", cfg.MinFPS)
	viper.Set("listen_addr", cfg.ListenAddr)
	viper.Set("async_dispatch", cfg.AsyncDispatch)
	viper.Set("queue_size", cfg.QueueSize)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "framecast.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	return viper.WriteConfigAs(cfgPath)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Framecast")
	case "darwin":
		return "/Library/Application Support/Framecast"
	default:
		return "/etc/framecast"
	}
}
