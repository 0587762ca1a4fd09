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

package monitor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vhive-serverless/powersweep/metrics"
	"github.com/vhive-serverless/powersweep/sensor"
)

// DefaultInterval is the sampling period used when none is configured
const DefaultInterval = time.Second

// Probe returns per-CPU frequencies in kHz, merged into every reading
type Probe func() (map[int]int, error)

// Supervisor launches a workload and samples a sensor until it exits
type Supervisor struct {
	// Interval between two readings. Zero samples as fast as the sensor allows.
	Interval time.Duration
	Stdout   io.Writer
	Stderr   io.Writer
	Probe    Probe
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithProbe records the result of p alongside every reading
func WithProbe(p Probe) SupervisorOption {
	return func(s *Supervisor) {
		s.Probe = p
	}
}

// WithOutput redirects the workload's standard streams
func WithOutput(stdout, stderr io.Writer) SupervisorOption {
	return func(s *Supervisor) {
		s.Stdout = stdout
		s.Stderr = stderr
	}
}

// NewSupervisor returns a supervisor sampling every interval. The workload
// inherits the standard streams of the current process unless WithOutput is given.
func NewSupervisor(interval time.Duration, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		Interval: interval,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts executable with args in the executable's directory and samples
// sn until the process exits. The first reading is taken right after launch.
// A non-zero exit code is recorded in the trace and is not an error.
// Cancelling ctx does not kill the workload.
func (s *Supervisor) Run(ctx context.Context, executable string, args []string, sn sensor.Sensor) (RunTrace, error) {
	logger := log.WithFields(log.Fields{"executable": executable, "args": args})

	trace := RunTrace{Args: args}

	path, err := resolve(executable)
	if err != nil {
		return trace, &WorkloadError{Executable: executable, Err: err}
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = filepath.Dir(path)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	logger.Debug("Starting workload")

	if st, ok := sn.(sensor.Starter); ok {
		if err := st.Start(ctx); err != nil {
			logger.WithError(err).Warn("Failed to start sensor window")
		}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return trace, &WorkloadError{Executable: executable, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	for running := true; running; {
		tick := time.Now()
		if reading, ok := s.sample(ctx, sn, start); ok {
			trace.Samples = append(trace.Samples, reading)
		}

		remaining := s.Interval - time.Since(tick)
		if remaining < 0 {
			remaining = 0
		}

		timer := time.NewTimer(remaining)
		select {
		case waitErr = <-done:
			running = false
		case <-timer.C:
		}
		timer.Stop()
	}

	trace.TotalTime = time.Since(start).Seconds()

	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return trace, &WorkloadError{Executable: executable, Err: waitErr}
		}
	}
	trace.ExitCode = cmd.ProcessState.ExitCode()
	trace.Summary = metrics.Summarize(trace.Samples, sensor.PowerKey)

	logger = logger.WithFields(log.Fields{
		"exitCode": trace.ExitCode,
		"duration": trace.TotalTime,
		"samples":  len(trace.Samples),
	})
	if trace.ExitCode != 0 {
		logger.Warn("Workload exited with non-zero code")
	} else {
		logger.Debug("Workload finished")
	}

	return trace, nil
}

func (s *Supervisor) sample(ctx context.Context, sn sensor.Sensor, start time.Time) (sensor.Reading, bool) {
	reading, err := sn.Sample(ctx)
	if err != nil {
		log.WithError(err).WithField("sensor", sn.Name()).Warn("Failed to sample sensor, skipping reading")
		return reading, false
	}

	reading.Time = time.Since(start).Seconds()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	if s.Probe != nil {
		freqs, err := s.Probe()
		if err != nil {
			log.WithError(err).Warn("Failed to read cpu frequencies")
		} else {
			reading.Frequencies = freqs
		}
	}

	if d, ok := sn.(sensor.Dumper); ok && log.IsLevelEnabled(log.TraceLevel) {
		log.Trace(d.Dump())
	}

	return reading, true
}

// resolve returns an absolute path so the workload can be started from its
// own directory
func resolve(executable string) (string, error) {
	if !strings.ContainsRune(executable, os.PathSeparator) {
		found, err := exec.LookPath(executable)
		if err != nil {
			return "", err
		}
		executable = found
	}
	return filepath.Abs(executable)
}
