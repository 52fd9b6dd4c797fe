package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the bus settings for the console.
type Config struct {
	Port     string        `mapstructure:"port"`      // Serial port device, e.g. "/dev/ttyUSB0"
	BaudRate int           `mapstructure:"baud_rate"` // Bus speed
	Timeout  time.Duration `mapstructure:"timeout"`   // Reply wait per transaction
}

// LoadConfig loads settings from command line flags and an optional config
// file.
func LoadConfig() (*Config, error) {
	viper.SetDefault("port", "/dev/ttyUSB0")
	viper.SetDefault("baud_rate", 1000000)
	viper.SetDefault("timeout", time.Second)

	pflag.StringP("config", "c", "", "Configuration file path.")
	pflag.StringP("port", "p", viper.GetString("port"), "Serial port device name.")
	pflag.IntP("baud_rate", "b", viper.GetInt("baud_rate"), "Serial port speed.")
	pflag.DurationP("timeout", "W", viper.GetDuration("timeout"), "Reply wait time per transaction.")

	// Pull in the flags glog registers on the standard flag package.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind pflags: %w", err)
	}

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("scsctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.config/scsctl")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
