package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key to form its environment variable, with
// dashes turned into underscores: log-level becomes COMPUTEGRID_LOG_LEVEL.
const EnvPrefix = "COMPUTEGRID"

// Load builds the layered settings. file may be empty; any format viper
// understands is accepted, chosen by extension.
func Load(file string, defaults, overrides map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	for k, o := range overrides {
		v.Set(k, o)
	}
	return v, nil
}
