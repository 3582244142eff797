/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package vconfig loads persistent CLI defaults from a vmdktool.yaml
// config file, falling back to built-in defaults when none is found.
package vconfig

import (
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const configFileName = "vmdktool"

// Config holds the settings a vmdktool invocation can take from a config
// file, in addition to its explicit command-line flags.
type Config struct {
	DeflateStrength int  `mapstructure:"deflate_strength"`
	DisableColors   bool `mapstructure:"disable_colors"`
	Verbose         bool `mapstructure:"verbose"`
	Debug           bool `mapstructure:"debug"`
}

// Load reads cfgFile, or (if empty) searches the user's home directory
// for vmdktool.yaml, merging over built-in defaults. A missing config
// file is not an error — Load falls back to defaults silently.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("deflate_strength", 6)
	v.SetDefault("disable_colors", false)
	v.SetDefault("verbose", false)
	v.SetDefault("debug", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		logrus.Debugf("vconfig: no config file loaded: %v", err)
	} else {
		logrus.Debugf("vconfig: using config file %s", v.ConfigFileUsed())
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
