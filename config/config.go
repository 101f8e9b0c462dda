// Copyright (C) 2018 Rob Caelers <rob.caelers@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package config reads the blecentral configuration file.
package config

import (
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "~/.blecentral.yaml"

type Config struct {
	Address  string        `yaml:"address"`
	Name     string        `yaml:"name"`
	Timeout  time.Duration `yaml:"timeout"`
	LogLevel string        `yaml:"log_level"` // debug, info, warn, error or quiet

	// Characteristics maps aliases to characteristic UUIDs.
	Characteristics map[string]string `yaml:"characteristics"`
}

func Default() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		LogLevel:        "info",
		Characteristics: map[string]string{},
	}
}

// Load reads the configuration file at path. A missing file at the
// default location yields the default configuration.
func Load(path string) (*Config, error) {
	filename, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand config path '%s'", path)
	}

	data, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) && path == DefaultPath {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return Parse(data)
}

// Parse decodes YAML configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if cfg.Characteristics == nil {
		cfg.Characteristics = map[string]string{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "quiet":
	default:
		return errors.Errorf("invalid log_level '%s'", c.LogLevel)
	}

	if c.Timeout <= 0 {
		return errors.Errorf("invalid timeout %v", c.Timeout)
	}

	for alias, uuid := range c.Characteristics {
		if _, err := ble.ParseUUID(uuid); err != nil {
			return errors.Wrapf(err, "invalid UUID for characteristic '%s'", alias)
		}
	}
	return nil
}

// ResolveUUID accepts either a characteristic alias or a UUID.
func (c *Config) ResolveUUID(s string) (ble.UUID, error) {
	if uuid, ok := c.Characteristics[s]; ok {
		s = uuid
	}
	return ble.ParseUUID(s)
}
