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
	"sort"
	"time"

	"github.com/go-multierror/multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/vhive-serverless/powersweep/config"
	"github.com/vhive-serverless/powersweep/cpufreq"
	"github.com/vhive-serverless/powersweep/sensor"
	"github.com/vhive-serverless/powersweep/storage"
)

// CPUController is the part of cpufreq.Controller a sweep drives
type CPUController interface {
	OnlineCPUs() (cpufreq.CPUSet, error)
	Enable(cpus cpufreq.CPUSet) error
	Disable(cpus cpufreq.CPUSet) error
	DisableHyperthreads() error
	Reset(cpus cpufreq.CPUSet) error
	SetGovernors(governor string, cpus cpufreq.CPUSet) error
	SetFrequencies(freq int, cpus cpufreq.CPUSet, opts cpufreq.FrequencyOptions) error
	AvailableFrequencies() ([]int, error)
	Governors() (map[int]string, error)
	Frequencies() (map[int]int, error)
}

// Monitor sweeps a workload over CPU configurations and persists the result
type Monitor struct {
	cpu        CPUController
	sensor     sensor.Sensor
	store      storage.ResultStore
	cfg        *config.Experiment
	supervisor *Supervisor

	sleep func(ctx context.Context, d time.Duration) error
}

// NewMonitor returns a monitor for the experiment cfg
func NewMonitor(cpu CPUController, sn sensor.Sensor, store storage.ResultStore, cfg *config.Experiment) *Monitor {
	return &Monitor{
		cpu:        cpu,
		sensor:     sn,
		store:      store,
		cfg:        cfg,
		supervisor: NewSupervisor(cfg.SampleDuration()),
		sleep:      sleepCtx,
	}
}

// Supervisor returns the supervisor used to run the workload
func (m *Monitor) Supervisor() *Supervisor {
	return m.supervisor
}

// Run pins every online CPU to each configured frequency, or to each
// available frequency when none is configured, and runs the workload for
// every thread count and argument list. The host is restored and the result
// persisted on every exit path. The returned result holds every completed
// run even when an error is returned.
func (m *Monitor) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{Mode: ModeFixed}
	if err := m.cfg.Validate(); err != nil {
		return res, err
	}

	restore := m.restoreGovernor()
	defer func() {
		err = m.finish(ctx, res, restore, recover(), err)
	}()

	if err := m.cpu.Reset(cpufreq.NewCPUSet()); err != nil {
		return res, err
	}
	if err := m.cpu.DisableHyperthreads(); err != nil {
		return res, err
	}
	if err := m.cpu.SetGovernors(cpufreq.Userspace, cpufreq.NewCPUSet()); err != nil {
		return res, err
	}

	freqs := m.cfg.Frequencies
	if len(freqs) == 0 {
		if freqs, err = m.cpu.AvailableFrequencies(); err != nil {
			return res, err
		}
	}

	base, err := m.cpu.OnlineCPUs()
	if err != nil {
		return res, err
	}

	log.WithFields(log.Fields{
		"frequencies": freqs,
		"threads":     m.cfg.Threads,
		"cpus":        cpufreq.Encode(base),
	}).Info("Starting fixed-frequency sweep")

	for _, freq := range freqs {
		if err := m.cpu.SetGovernors(cpufreq.Userspace, cpufreq.NewCPUSet()); err != nil {
			return res, err
		}

		res.Frequencies = append(res.Frequencies, FrequencyPoint{Frequency: freq})
		fp := &res.Frequencies[len(res.Frequencies)-1]

		for _, threads := range m.cfg.Threads {
			if err := m.pin(base, threads, freq); err != nil {
				return res, err
			}

			fp.Threads = append(fp.Threads, ThreadPoint{Threads: threads})
			tp := &fp.Threads[len(fp.Threads)-1]

			log.WithFields(log.Fields{"frequency": freq, "threads": threads}).Info("Running workload")
			if err := m.sweepArgs(ctx, m.supervisor, tp); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

// RunDVFS lets the configured governor choose frequencies and runs the
// workload for every thread count and argument list, recording the
// frequency of every online CPU with each reading.
func (m *Monitor) RunDVFS(ctx context.Context) (res *Result, err error) {
	res = &Result{Mode: ModeDVFS}
	if err := m.cfg.Validate(); err != nil {
		return res, err
	}

	restore := m.restoreGovernor()
	defer func() {
		err = m.finish(ctx, res, restore, recover(), err)
	}()

	governor := m.cfg.GovernorOrDefault()
	if err := m.prepareDVFS(ctx, governor); err != nil {
		return res, err
	}

	base, err := m.cpu.OnlineCPUs()
	if err != nil {
		return res, err
	}

	log.WithFields(log.Fields{
		"governor": governor,
		"threads":  m.cfg.Threads,
		"cpus":     cpufreq.Encode(base),
	}).Info("Starting governor-driven sweep")

	sup := *m.supervisor
	sup.Probe = m.cpu.Frequencies

	for _, threads := range m.cfg.Threads {
		if err := m.prepareDVFS(ctx, governor); err != nil {
			return res, err
		}
		if err := m.limitThreads(base, threads); err != nil {
			return res, err
		}

		res.Threads = append(res.Threads, ThreadPoint{Threads: threads})
		tp := &res.Threads[len(res.Threads)-1]

		log.WithFields(log.Fields{"governor": governor, "threads": threads}).Info("Running workload")
		if err := m.sweepArgs(ctx, &sup, tp); err != nil {
			return res, err
		}
	}

	return res, nil
}

// pin restores the base CPUs to their hardware bounds, keeps the lowest
// threads of them online and locks them to freq. Scaling bounds left by the
// previous point are cleared first so a min write never exceeds the max.
func (m *Monitor) pin(base cpufreq.CPUSet, threads, freq int) error {
	if err := m.cpu.Reset(base); err != nil {
		return err
	}
	if err := m.cpu.SetGovernors(cpufreq.Userspace, cpufreq.NewCPUSet()); err != nil {
		return err
	}
	if err := m.limitThreads(base, threads); err != nil {
		return err
	}
	return m.cpu.SetFrequencies(freq, cpufreq.NewCPUSet(), cpufreq.DefaultFrequencyOptions)
}

func (m *Monitor) prepareDVFS(ctx context.Context, governor string) error {
	if err := m.cpu.Reset(cpufreq.NewCPUSet()); err != nil {
		return err
	}
	if err := m.settle(ctx); err != nil {
		return err
	}
	if err := m.cpu.DisableHyperthreads(); err != nil {
		return err
	}
	return m.cpu.SetGovernors(governor, cpufreq.NewCPUSet())
}

// limitThreads takes the highest-indexed base CPUs offline so that threads
// of them stay online
func (m *Monitor) limitThreads(base cpufreq.CPUSet, threads int) error {
	if threads > base.Size() {
		log.WithFields(log.Fields{
			"threads": threads,
			"cpus":    base.Size(),
		}).Warn("Thread count exceeds available CPUs, keeping all online")
		return nil
	}
	return m.cpu.Disable(cpufreq.Beyond(base, threads))
}

func (m *Monitor) sweepArgs(ctx context.Context, sup *Supervisor, tp *ThreadPoint) error {
	for _, args := range m.cfg.Args {
		if err := ctx.Err(); err != nil {
			return err
		}

		trace, err := sup.Run(ctx, m.cfg.Executable, SubstituteThreads(args, tp.Threads), m.sensor)
		if err != nil {
			return err
		}
		tp.Runs = append(tp.Runs, trace)

		log.WithFields(log.Fields{
			"threads":  tp.Threads,
			"args":     trace.Args,
			"duration": trace.TotalTime,
			"power":    trace.Summary.MeanPowerW,
			"energy":   trace.Summary.EnergyJ,
		}).Info("Run finished")

		if err := m.settle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// restoreGovernor returns the governor to leave the CPUs in once the sweep
// ends: the configured one, else the one of the lowest online CPU now
func (m *Monitor) restoreGovernor() string {
	if m.cfg.RestoreGovernor != "" {
		return m.cfg.RestoreGovernor
	}

	governors, err := m.cpu.Governors()
	if err != nil || len(governors) == 0 {
		log.WithError(err).Warn("Failed to read current governor, it will not be restored")
		return ""
	}

	cpus := make([]int, 0, len(governors))
	for cpu := range governors {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)

	return governors[cpus[0]]
}

// finish restores the host and persists res. It returns the sweep error
// combined with any restore error.
func (m *Monitor) finish(ctx context.Context, res *Result, governor string, recovered interface{}, sweepErr error) error {
	var errs []error

	if recovered != nil {
		sweepErr = errors.Errorf("sweep panicked: %v", recovered)
	}
	if sweepErr != nil {
		log.WithError(sweepErr).Error("Sweep failed, restoring host")
		errs = append(errs, sweepErr)
	}

	if err := m.cpu.Reset(cpufreq.NewCPUSet()); err != nil {
		log.WithError(err).Error("Failed to reset cpus")
		errs = append(errs, err)
	}
	if governor != "" {
		if err := m.cpu.SetGovernors(governor, cpufreq.NewCPUSet()); err != nil {
			log.WithError(err).WithField("governor", governor).Error("Failed to restore governor")
			errs = append(errs, err)
		}
	}

	// the result must reach the store even if the sweep was cancelled
	persistCtx := context.WithoutCancel(ctx)

	header := NewHeader(persistCtx, m.sensor.Name(), res.Mode, m.cfg.Executable)
	if !res.AttachHeader(header) {
		log.Warn("Result holds no data point, saving it without a header")
	}

	if err := m.store.Save(persistCtx, m.cfg.Output, res); err != nil {
		log.WithError(err).WithField("output", m.cfg.Output).Error("Failed to save result")
	} else {
		log.WithFields(log.Fields{
			"output": m.cfg.Output,
			"runs":   res.Runs(),
		}).Info("Result saved")
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return multierror.Of(errs...)
	}
}

func (m *Monitor) settle(ctx context.Context) error {
	d := m.cfg.IdleDuration()
	if d <= 0 {
		return nil
	}
	log.WithField("idle", d).Debug("Letting the host settle")
	return m.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
