package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ParseConfig attempts to read and parse configuration from the given file
// path. An error is returned if reading or parsing the config fails.
func ParseConfig(configPath string) (Config, error) {
	if configPath == "" {
		return Config{}, ErrEmptyConfigPath
	}

	var cfg Config

	v := viper.New()
	v.AutomaticEnv()
	// Allow nested env vars to be read with underscore separators.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.setDefaults()
	cfg.Oracle.APIKey = os.Getenv("CHAINLINK_API_KEY")
	cfg.Oracle.APISecret = os.Getenv("CHAINLINK_API_SECRET")

	return cfg, cfg.Validate()
}
