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

// remconsd is the telnet remote-console server entrypoint.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func registerCommands() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(serveCommand), "")
}

func main() {
	registerCommands()
	flag.Parse()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch subcommands.Execute(context.Background()) {
	case subcommands.ExitSuccess:
		os.Exit(0)
	default:
		os.Exit(128)
	}
}
