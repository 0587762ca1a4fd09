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

// Package cpufreq controls the online state, governor and frequency bounds
// of logical CPUs through the Linux sysfs cpu hierarchy. The controller keeps
// no state of its own: every query re-reads the host, since the kernel and
// thermal daemons change these files behind our back.
package cpufreq

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	// BaseDir is the root of the Linux cpu control hierarchy
	BaseDir = "/sys/devices/system/cpu"

	// Online names the range file listing online CPUs
	Online = "online"
	// Offline names the range file listing offline CPUs
	Offline = "offline"
	// Present names the range file listing present CPUs
	Present = "present"

	// Userspace governor lets scaling_setspeed pin the frequency
	Userspace = "userspace"
	// Ondemand governor picks the frequency from load
	Ondemand = "ondemand"

	scalingGovernorFile      = "scaling_governor"
	scalingSetspeedFile      = "scaling_setspeed"
	scalingMinFile           = "scaling_min_freq"
	scalingMaxFile           = "scaling_max_freq"
	scalingCurFile           = "scaling_cur_freq"
	scalingDriverFile        = "scaling_driver"
	availableFrequenciesFile = "scaling_available_frequencies"
	availableGovernorsFile   = "scaling_available_governors"
	cpuinfoMinFile           = "cpuinfo_min_freq"
	cpuinfoMaxFile           = "cpuinfo_max_freq"
	siblingsFile             = "thread_siblings_list"
)

// Controller reads and writes the per-CPU control files under one root
type Controller struct {
	root string
}

// Option configures a Controller
type Option func(*Controller)

// WithRoot points the controller at a different hierarchy root
func WithRoot(root string) Option {
	return func(c *Controller) {
		c.root = root
	}
}

// FrequencyOptions selects which frequency controls SetFrequencies writes
type FrequencyOptions struct {
	SetMax   bool
	SetMin   bool
	SetSpeed bool
}

// DefaultFrequencyOptions pins the frequency through all three controls
var DefaultFrequencyOptions = FrequencyOptions{SetMax: true, SetMin: true, SetSpeed: true}

// CPUState is a point-in-time view of one logical CPU
type CPUState struct {
	ID               int    `json:"id"`
	Online           bool   `json:"online"`
	Governor         string `json:"governor,omitempty"`
	CurrentFrequency int    `json:"current_khz,omitempty"`
	MinFrequency     int    `json:"min_khz,omitempty"`
	MaxFrequency     int    `json:"max_khz,omitempty"`
}

// New returns a controller after checking that the host runs Linux, exposes
// the cpu hierarchy and has a frequency scaling driver bound to cpu0.
func New(opts ...Option) (*Controller, error) {
	c := &Controller{root: BaseDir}
	for _, opt := range opts {
		opt(c)
	}

	if runtime.GOOS != "linux" {
		return nil, &InitError{Reason: "cpu control is only supported on Linux systems"}
	}

	if fi, err := os.Stat(c.root); err != nil || !fi.IsDir() {
		return nil, &InitError{Reason: "no cpu hierarchy at " + c.root}
	}

	driver := filepath.Join(c.root, cpuDir(0), "cpufreq", scalingDriverFile)
	if _, err := os.Stat(driver); err != nil {
		return nil, &InitError{Reason: "no scaling driver active, " + driver + " is missing"}
	}

	log.WithField("root", c.root).Debug("CPU controller initialized")

	return c, nil
}

// Root returns the hierarchy root the controller operates on
func (c *Controller) Root() string {
	return c.root
}

// Ranges reads one of the online, offline or present range files
func (c *Controller) Ranges(kind string) (CPUSet, error) {
	data, err := c.read(kind)
	if err != nil {
		return NewCPUSet(), err
	}

	return Decode(data)
}

// OnlineCPUs returns the CPUs currently online
func (c *Controller) OnlineCPUs() (CPUSet, error) {
	return c.Ranges(Online)
}

// EnableAll brings every offline CPU online
func (c *Controller) EnableAll() error {
	offline, err := c.Ranges(Offline)
	if err != nil {
		return err
	}

	return c.setOnline(offline, true)
}

// Enable brings the given CPUs online. CPUs that are already online are skipped.
func (c *Controller) Enable(cpus CPUSet) error {
	offline, err := c.Ranges(Offline)
	if err != nil {
		return err
	}

	return c.setOnline(cpus.Intersection(offline), true)
}

// Disable takes the given CPUs offline. CPUs that are already offline are skipped.
func (c *Controller) Disable(cpus CPUSet) error {
	online, err := c.OnlineCPUs()
	if err != nil {
		return err
	}

	return c.setOnline(cpus.Intersection(online), false)
}

// Siblings returns the hardware threads sharing a physical core with cpu
func (c *Controller) Siblings(cpu int) (CPUSet, error) {
	data, err := c.read(filepath.Join(cpuDir(cpu), "topology", siblingsFile))
	if err != nil {
		return NewCPUSet(), err
	}

	// CPUSet.List returns ids sorted, so the print order of the kernel
	// does not matter to callers picking the lowest sibling.
	return Decode(data)
}

// DisableHyperthreads keeps one thread per physical core online.
// The thread kept online is the lowest id of each sibling list.
func (c *Controller) DisableHyperthreads() error {
	online, err := c.OnlineCPUs()
	if err != nil {
		return err
	}

	secondary := NewCPUSet()
	for _, cpu := range online.List() {
		siblings, err := c.Siblings(cpu)
		if err != nil {
			return err
		}

		threads := siblings.List()
		if len(threads) > 1 {
			secondary = secondary.Union(NewCPUSet(threads[1:]...))
		}
	}

	log.WithField("cpus", Encode(secondary)).Debug("Disabling hyperthread siblings")

	return c.setOnline(secondary.Intersection(online), false)
}

// Reset brings the CPUs online and restores their scaling bounds to the
// hardware limits. An empty set resets every present CPU.
func (c *Controller) Reset(cpus CPUSet) error {
	if cpus.IsEmpty() {
		present, err := c.Ranges(Present)
		if err != nil {
			return err
		}
		cpus = present
	}

	if err := c.Enable(cpus); err != nil {
		return err
	}

	for _, cpu := range cpus.List() {
		maxFreq, err := c.read(freqFile(cpu, cpuinfoMaxFile))
		if err != nil {
			return err
		}
		minFreq, err := c.read(freqFile(cpu, cpuinfoMinFile))
		if err != nil {
			return err
		}

		if err := c.write(freqFile(cpu, scalingMaxFile), maxFreq); err != nil {
			return err
		}
		if err := c.write(freqFile(cpu, scalingMinFile), minFreq); err != nil {
			return err
		}
	}

	log.WithField("cpus", Encode(cpus)).Debug("CPUs reset to hardware frequency bounds")

	return nil
}

// SetFrequencies writes freq (kHz) to the controls selected by opts on every
// online CPU of cpus. An empty set selects all online CPUs.
// scaling_setspeed only takes effect under the userspace governor.
func (c *Controller) SetFrequencies(freq int, cpus CPUSet, opts FrequencyOptions) error {
	targets, err := c.selectOnline(cpus)
	if err != nil {
		return err
	}

	value := strconv.Itoa(freq)
	for _, cpu := range targets.List() {
		if opts.SetSpeed {
			if err := c.write(freqFile(cpu, scalingSetspeedFile), value); err != nil {
				return err
			}
		}
		if opts.SetMin {
			if err := c.write(freqFile(cpu, scalingMinFile), value); err != nil {
				return err
			}
		}
		if opts.SetMax {
			if err := c.write(freqFile(cpu, scalingMaxFile), value); err != nil {
				return err
			}
		}
	}

	log.WithFields(log.Fields{"freq": freq, "cpus": Encode(targets)}).Debug("Frequency set")

	return nil
}

// SetGovernors writes the governor name to every online CPU of cpus.
// An empty set selects all online CPUs.
func (c *Controller) SetGovernors(governor string, cpus CPUSet) error {
	targets, err := c.selectOnline(cpus)
	if err != nil {
		return err
	}

	for _, cpu := range targets.List() {
		if err := c.write(freqFile(cpu, scalingGovernorFile), governor); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{"governor": governor, "cpus": Encode(targets)}).Debug("Governor set")

	return nil
}

// AvailableFrequencies lists the frequencies (kHz) the driver accepts
func (c *Controller) AvailableFrequencies() ([]int, error) {
	fields, err := c.readFields(freqFile(0, availableFrequenciesFile))
	if err != nil {
		return nil, err
	}

	freqs := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, &FormatError{Text: f, Err: err}
		}
		freqs = append(freqs, v)
	}

	return freqs, nil
}

// AvailableGovernors lists the governors the driver offers
func (c *Controller) AvailableGovernors() ([]string, error) {
	return c.readFields(freqFile(0, availableGovernorsFile))
}

// Driver returns the active scaling driver name
func (c *Controller) Driver() (string, error) {
	data, err := c.read(freqFile(0, scalingDriverFile))
	return strings.TrimSpace(data), err
}

// MaxFreq returns the hardware maximum frequency (kHz)
func (c *Controller) MaxFreq() (int, error) {
	return c.readInt(freqFile(0, cpuinfoMaxFile))
}

// MinFreq returns the hardware minimum frequency (kHz)
func (c *Controller) MinFreq() (int, error) {
	return c.readInt(freqFile(0, cpuinfoMinFile))
}

// Governors returns the current governor of each online CPU
func (c *Controller) Governors() (map[int]string, error) {
	online, err := c.OnlineCPUs()
	if err != nil {
		return nil, err
	}

	result := make(map[int]string, online.Size())
	for _, cpu := range online.List() {
		data, err := c.read(freqFile(cpu, scalingGovernorFile))
		if err != nil {
			return nil, err
		}
		result[cpu] = strings.TrimSpace(data)
	}

	return result, nil
}

// Frequencies returns the current frequency (kHz) of each online CPU
func (c *Controller) Frequencies() (map[int]int, error) {
	online, err := c.OnlineCPUs()
	if err != nil {
		return nil, err
	}

	result := make(map[int]int, online.Size())
	for _, cpu := range online.List() {
		freq, err := c.readInt(freqFile(cpu, scalingCurFile))
		if err != nil {
			return nil, err
		}
		result[cpu] = freq
	}

	return result, nil
}

// State returns the current state of one CPU. Frequency details are only
// read for online CPUs.
func (c *Controller) State(cpu int) (CPUState, error) {
	online, err := c.OnlineCPUs()
	if err != nil {
		return CPUState{}, err
	}

	return c.state(cpu, online.Contains(cpu))
}

// Snapshot returns the state of every present CPU
func (c *Controller) Snapshot() ([]CPUState, error) {
	present, err := c.Ranges(Present)
	if err != nil {
		return nil, err
	}
	online, err := c.OnlineCPUs()
	if err != nil {
		return nil, err
	}

	states := make([]CPUState, 0, present.Size())
	for _, cpu := range present.List() {
		st, err := c.state(cpu, online.Contains(cpu))
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}

	return states, nil
}

func (c *Controller) state(cpu int, online bool) (CPUState, error) {
	st := CPUState{ID: cpu, Online: online}
	if !online {
		return st, nil
	}

	governor, err := c.read(freqFile(cpu, scalingGovernorFile))
	if err != nil {
		return st, err
	}
	st.Governor = strings.TrimSpace(governor)

	if st.CurrentFrequency, err = c.readInt(freqFile(cpu, scalingCurFile)); err != nil {
		return st, err
	}
	if st.MinFrequency, err = c.readInt(freqFile(cpu, scalingMinFile)); err != nil {
		return st, err
	}
	if st.MaxFrequency, err = c.readInt(freqFile(cpu, scalingMaxFile)); err != nil {
		return st, err
	}

	return st, nil
}

// selectOnline narrows cpus to the online set; an empty set means all online CPUs
func (c *Controller) selectOnline(cpus CPUSet) (CPUSet, error) {
	online, err := c.OnlineCPUs()
	if err != nil {
		return NewCPUSet(), err
	}
	if cpus.IsEmpty() {
		return online, nil
	}

	return cpus.Intersection(online), nil
}

func (c *Controller) setOnline(cpus CPUSet, online bool) error {
	value := "0"
	if online {
		value = "1"
	}

	for _, cpu := range cpus.List() {
		if err := c.write(filepath.Join(cpuDir(cpu), Online), value); err != nil {
			return err
		}
	}

	if !cpus.IsEmpty() {
		log.WithFields(log.Fields{"cpus": Encode(cpus), "online": online}).Debug("CPU online state changed")
	}

	return nil
}

func (c *Controller) read(name string) (string, error) {
	path := filepath.Join(c.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &IOError{Op: "read", Path: path, Err: err}
	}

	return string(data), nil
}

func (c *Controller) readFields(name string) ([]string, error) {
	data, err := c.read(name)
	if err != nil {
		return nil, err
	}

	return strings.Fields(data), nil
}

func (c *Controller) readInt(name string) (int, error) {
	data, err := c.read(name)
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(data)
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, &FormatError{Text: text, Err: err}
	}

	return v, nil
}

func (c *Controller) write(name, value string) error {
	path := filepath.Join(c.root, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(value)), 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	return nil
}

func cpuDir(cpu int) string {
	return "cpu" + strconv.Itoa(cpu)
}

func freqFile(cpu int, name string) string {
	return filepath.Join(cpuDir(cpu), "cpufreq", name)
}
