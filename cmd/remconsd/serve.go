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

package main

import (
	"context"
	"flag"
	"fmt"
	"net"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/novakernel/sys/internal/console"
)

// serveCommand is the `remconsd serve` subcommand: it listens on a TCP
// port and spawns one console.Session per accepted connection.
type serveCommand struct {
	port       int
	noCtl      bool
	noRGB      bool
	configPath string
}

func (*serveCommand) Name() string     { return "serve" }
func (*serveCommand) Synopsis() string { return "run the telnet remote-console server" }
func (*serveCommand) Usage() string {
	return "serve [--port N] [--no-ctl] [--no-rgb] [--config path]\n"
}

func (c *serveCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.port, "port", console.DefaultPort, "telnet listen port")
	f.BoolVar(&c.noCtl, "no-ctl", false, "disable all control sequences (dumb 100x1 terminal)")
	f.BoolVar(&c.noRGB, "no-rgb", false, "advertise only indexed colors")
	f.StringVar(&c.configPath, "config", "remconsd.toml", "path to an optional TOML config file")
}

func (c *serveCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg := console.DefaultConfig()
	if err := console.LoadConfigFile(&cfg, c.configPath); err != nil {
		logrus.WithError(err).Error("failed to load config file")
		return subcommands.ExitFailure
	}
	if c.port != console.DefaultPort {
		cfg.Port = c.port
	}
	cfg.NoCtl = cfg.NoCtl || c.noCtl
	cfg.NoRGB = cfg.NoRGB || c.noRGB

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logrus.WithError(err).Error("listen failed")
		return subcommands.ExitFailure
	}
	defer ln.Close()
	logrus.WithField("port", cfg.Port).Info("remconsd listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			logrus.WithError(err).Error("accept failed")
			return subcommands.ExitFailure
		}
		go serveConn(ctx, conn, cfg)
	}
}

func serveConn(ctx context.Context, conn net.Conn, cfg console.Config) {
	defer conn.Close()
	sess := console.NewSession(conn, noopRegistry{}, noopSpawner{}, cfg.Ctl(), cfg.RGB())
	if err := sess.Start(ctx); err != nil {
		logrus.WithError(err).Error("session startup failed")
		return
	}
	if err := sess.Run(ctx); err != nil {
		logrus.WithError(err).WithField("session_id", sess.ID()).Warn("session ended")
	}
}

// noopRegistry and noopSpawner satisfy console.ServiceRegistry and
// console.TaskSpawner without a real location directory or task
// manager, both explicitly out of scope (spec §1): only the narrow
// contract a session holds with them is in scope, per SPEC_FULL §3.6.
type noopRegistry struct{}

func (noopRegistry) Register(name string) (any, error) { return name, nil }
func (noopRegistry) Unregister(any)                     {}

type noopSpawner struct{}

func (noopSpawner) Spawn(serviceName string) (<-chan console.TaskResult, error) {
	ch := make(chan console.TaskResult, 1)
	ch <- console.TaskResult{Normal: true}
	return ch, nil
}
