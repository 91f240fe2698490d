package config

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"
)

// Config holds the runtime configuration of the portal.
type Config struct {
	Listen          string
	EEPROMPath      string
	ServiceInterval time.Duration
	QueueDepth      int
	SaveRate        float64 // saves per second, 0 disables the limit
	SaveBurst       int
	LogLevel        string
	// Defaults overrides build-time factory defaults, keyed by label.
	Defaults map[string]string
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Listen:          ":8080",
		EEPROMPath:      "data/eeprom.bin",
		ServiceInterval: 15 * time.Second,
		QueueDepth:      32,
		SaveRate:        0, // unlimited
		SaveBurst:       5,
		LogLevel:        "info",
		Defaults:        map[string]string{},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("eeprom_path", d.EEPROMPath)
	v.SetDefault("service_interval", d.ServiceInterval)
	v.SetDefault("queue_depth", d.QueueDepth)
	v.SetDefault("save_rate", d.SaveRate)
	v.SetDefault("save_burst", d.SaveBurst)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("defaults", d.Defaults)
}

// Load reads configuration with priority: defaults < config file < SETTINGS_*
// environment variables. An empty cfgFile looks for config.yaml in the working
// directory and is not an error when absent.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SETTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, oops.Wrapf(err, "read config")
		}
	}

	cfg := Config{
		Listen:          v.GetString("listen"),
		EEPROMPath:      v.GetString("eeprom_path"),
		ServiceInterval: v.GetDuration("service_interval"),
		QueueDepth:      v.GetInt("queue_depth"),
		SaveRate:        v.GetFloat64("save_rate"),
		SaveBurst:       v.GetInt("save_burst"),
		LogLevel:        v.GetString("log_level"),
		Defaults:        map[string]string{},
	}
	// viper lowercases map keys; labels are upper case.
	for k, val := range v.GetStringMapString("defaults") {
		cfg.Defaults[strings.ToUpper(k)] = val
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the portal cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return oops.Errorf("listen address must not be empty")
	}
	if c.EEPROMPath == "" {
		return oops.Errorf("eeprom_path must not be empty")
	}
	if c.ServiceInterval <= 0 {
		return oops.Errorf("service_interval must be positive, got %s", c.ServiceInterval)
	}
	if c.QueueDepth <= 0 {
		return oops.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	if c.SaveRate < 0 || c.SaveBurst < 0 {
		return oops.Errorf("save_rate and save_burst must not be negative")
	}
	return nil
}
