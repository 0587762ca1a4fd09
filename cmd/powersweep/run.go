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

package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/vhive-serverless/powersweep/config"
	"github.com/vhive-serverless/powersweep/cpufreq"
	"github.com/vhive-serverless/powersweep/metrics"
	"github.com/vhive-serverless/powersweep/monitor"
	"github.com/vhive-serverless/powersweep/report"
	"github.com/vhive-serverless/powersweep/sensor"
	"github.com/vhive-serverless/powersweep/storage"
)

func runCmd(args []string, out io.Writer, dvfs bool) error {
	name := "run"
	if dvfs {
		name = "dvfs"
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	cfgPath := fs.StringP("config", "c", "", "Experiment file (JSON, JSONC or YAML)")
	verbose := fs.CountP("verbose", "v", "Increase log verbosity, repeat for more")
	output := fs.StringP("output", "o", "", "Override the result file of the experiment")
	sensorKind := fs.String("sensor", "", "Override the sensor kind (rapl, redfish, util, constant)")
	governor := fs.String("governor", "", "Override the governor of a dvfs sweep")
	root := fs.String("sysfs", cpufreq.BaseDir, "Root of the cpu control hierarchy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *verbose > cfg.Verbose {
		cfg.Verbose = *verbose
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *sensorKind != "" {
		cfg.Sensor.Kind = *sensorKind
	}
	if *governor != "" {
		cfg.Governor = *governor
	}
	setupLogging(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		return err
	}
	warnIfNotRoot()

	ctrl, err := cpufreq.New(cpufreq.WithRoot(*root))
	if err != nil {
		return err
	}
	sn, err := sensor.New(cfg.Sensor)
	if err != nil {
		return errors.Wrap(err, "failed to create sensor")
	}
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "failed to create result store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	m := monitor.NewMonitor(ctrl, sn, store, cfg)

	var res *monitor.Result
	if dvfs {
		res, err = m.RunDVFS(ctx)
	} else {
		res, err = m.Run(ctx)
	}

	if res != nil && res.Runs() > 0 {
		if perr := metrics.PrintSummaries(out, report.Rows(res)...); perr != nil {
			log.WithError(perr).Warn("Failed to print summaries")
		}
	}

	return err
}
