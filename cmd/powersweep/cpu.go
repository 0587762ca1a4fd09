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
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/vhive-serverless/powersweep/cpufreq"
)

const cpuUsage = `Usage: powersweep cpu <action> [args] [flags]

Actions:
  status                      show per-cpu state and available settings
  reset [cpus]                bring cpus online and restore hardware frequency bounds
  enable <cpus>               bring cpus online
  disable <cpus>              take cpus offline
  disable-ht                  keep one hardware thread per core online
  set-governor <name> [cpus]  set the scaling governor
  set-freq <kHz> [cpus]       pin the frequency (setspeed, min and max)

cpus use the kernel list format, e.g. 0-3,8. Empty means all.
`

func cpuCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("cpu", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, cpuUsage)
		fs.PrintDefaults()
	}
	root := fs.String("sysfs", cpufreq.BaseDir, "Root of the cpu control hierarchy")
	verbose := fs.CountP("verbose", "v", "Increase log verbosity, repeat for more")
	maxOnly := fs.Bool("max-only", false, "set-freq: only write the upper bound")
	minOnly := fs.Bool("min-only", false, "set-freq: only write the lower bound")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(*verbose)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no cpu action given")
	}

	ctrl, err := cpufreq.New(cpufreq.WithRoot(*root))
	if err != nil {
		return err
	}

	action, params := rest[0], rest[1:]
	if action != "status" {
		warnIfNotRoot()
	}

	switch action {
	case "status":
		return printStatus(ctrl, out)
	case "reset":
		cpus, err := cpuArg(params, 0)
		if err != nil {
			return err
		}
		return ctrl.Reset(cpus)
	case "enable", "disable":
		if len(params) == 0 {
			return errors.Errorf("%s needs a cpu list", action)
		}
		cpus, err := cpufreq.Decode(params[0])
		if err != nil {
			return err
		}
		if action == "enable" {
			return ctrl.Enable(cpus)
		}
		return ctrl.Disable(cpus)
	case "disable-ht":
		return ctrl.DisableHyperthreads()
	case "set-governor":
		if len(params) == 0 {
			return errors.New("set-governor needs a governor name")
		}
		cpus, err := cpuArg(params, 1)
		if err != nil {
			return err
		}
		return ctrl.SetGovernors(params[0], cpus)
	case "set-freq":
		if len(params) == 0 {
			return errors.New("set-freq needs a frequency in kHz")
		}
		freq, err := strconv.Atoi(params[0])
		if err != nil || freq <= 0 {
			return errors.Errorf("invalid frequency %q", params[0])
		}
		cpus, err := cpuArg(params, 1)
		if err != nil {
			return err
		}
		return ctrl.SetFrequencies(freq, cpus, frequencyOptions(*maxOnly, *minOnly))
	default:
		fs.Usage()
		return errors.Errorf("unknown cpu action %q", action)
	}
}

// cpuArg decodes the optional cpu list at params[i]
func cpuArg(params []string, i int) (cpufreq.CPUSet, error) {
	if len(params) <= i {
		return cpufreq.NewCPUSet(), nil
	}
	return cpufreq.Decode(params[i])
}

func frequencyOptions(maxOnly, minOnly bool) cpufreq.FrequencyOptions {
	switch {
	case maxOnly:
		return cpufreq.FrequencyOptions{SetMax: true}
	case minOnly:
		return cpufreq.FrequencyOptions{SetMin: true}
	default:
		return cpufreq.DefaultFrequencyOptions
	}
}

func printStatus(ctrl *cpufreq.Controller, out io.Writer) error {
	states, err := ctrl.Snapshot()
	if err != nil {
		return err
	}
	driver, err := ctrl.Driver()
	if err != nil {
		return err
	}
	governors, err := ctrl.AvailableGovernors()
	if err != nil {
		return err
	}
	freqs, err := ctrl.AvailableFrequencies()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "driver: %s\ngovernors: %v\nfrequencies: %v\n\n", driver, governors, freqs)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CPU\tONLINE\tGOVERNOR\tCUR(kHz)\tMIN(kHz)\tMAX(kHz)")
	for _, st := range states {
		if !st.Online {
			fmt.Fprintf(w, "%d\tno\t-\t-\t-\t-\n", st.ID)
			continue
		}
		fmt.Fprintf(w, "%d\tyes\t%s\t%d\t%d\t%d\n", st.ID, st.Governor, st.CurrentFrequency, st.MinFrequency, st.MaxFrequency)
	}

	return w.Flush()
}
