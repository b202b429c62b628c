// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package console

import (
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultPort is the telnet listener's default port, per spec §6.
const DefaultPort = 2223

// Config holds the telnet server's capability and listener settings,
// per spec §6's command-line options (--no-ctl, --no-rgb, --port).
// File values load from an optional remconsd.toml; CLI flags (wired in
// cmd/remconsd) override them.
type Config struct {
	Port    int  `toml:"port"`
	NoCtl   bool `toml:"no_ctl"`
	NoRGB   bool `toml:"no_rgb"`
}

// DefaultConfig returns the server's built-in defaults before any file
// or flag overrides are applied.
func DefaultConfig() Config {
	return Config{Port: DefaultPort}
}

// LoadConfigFile merges values from a TOML file at path into cfg,
// leaving cfg untouched for any key absent from the file. A missing
// file is not an error — it just means "use defaults".
func LoadConfigFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// Ctl and RGB translate the file's "no_*" negative flags into the
// positive capability booleans NewSession expects.
func (c Config) Ctl() bool { return !c.NoCtl }
func (c Config) RGB() bool { return !c.NoRGB }
