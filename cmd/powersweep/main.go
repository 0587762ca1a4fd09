// MIT License
//
// Copyright (c) 2025 vHive team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command powersweep measures the power a workload draws across CPU
// frequencies and thread counts.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const usage = `Usage: powersweep <command> [flags]

Commands:
  run      sweep fixed frequencies and thread counts
  dvfs     sweep thread counts under a frequency governor
  cpu      inspect or change the cpu configuration
  report   plot and summarize a saved result

Run 'powersweep <command> --help' for the flags of a command.
`

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	setupLogging(0)

	if err := execute(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func execute(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("no command given")
	}

	switch args[0] {
	case "run":
		return runCmd(args[1:], out, false)
	case "dvfs":
		return runCmd(args[1:], out, true)
	case "cpu":
		return cpuCmd(args[1:], out)
	case "report":
		return reportCmd(args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return errors.Errorf("unknown command %q", args[0])
	}
}

// logLevel maps a verbosity count to a log level
func logLevel(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.WarnLevel
	case verbosity == 1:
		return log.InfoLevel
	case verbosity == 2:
		return log.DebugLevel
	default:
		return log.TraceLevel
	}
}

func setupLogging(verbosity int) {
	log.SetLevel(logLevel(verbosity))
	log.Debugf("Log level set to %s", log.GetLevel())
}

func warnIfNotRoot() {
	if unix.Geteuid() != 0 {
		log.Warn("Not running as root, cpu configuration changes will likely fail")
	}
}
