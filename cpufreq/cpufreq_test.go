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

package cpufreq

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	hwMinFreq = "800000"
	hwMaxFreq = "3000000"
)

type fakeCPU struct {
	siblings string
	offline  bool
}

// newFakeSysfs lays out a cpu hierarchy the way the kernel exposes it
func newFakeSysfs(t *testing.T, cpus ...fakeCPU) string {
	t.Helper()

	root := t.TempDir()
	for id, cpu := range cpus {
		online := "1"
		if cpu.offline {
			online = "0"
		}
		writeFile(t, root, filepath.Join(cpuDir(id), Online), online)
		writeFile(t, root, filepath.Join(cpuDir(id), "topology", siblingsFile), cpu.siblings)

		files := map[string]string{
			cpuinfoMinFile:           hwMinFreq,
			cpuinfoMaxFile:           hwMaxFreq,
			scalingMinFile:           hwMinFreq,
			scalingMaxFile:           hwMaxFreq,
			scalingCurFile:           "1200000",
			scalingSetspeedFile:      "<unsupported>",
			scalingGovernorFile:      "ondemand",
			scalingDriverFile:        "acpi-cpufreq",
			availableFrequenciesFile: "3000000 2400000 1800000 1200000 800000",
			availableGovernorsFile:   "conservative ondemand userspace powersave performance schedutil",
		}
		for name, value := range files {
			writeFile(t, root, freqFile(id, name), value)
		}
	}
	writeFile(t, root, Present, "0-"+strconv.Itoa(len(cpus)-1))
	syncRanges(t, root)

	return root
}

// syncRanges rebuilds the online and offline range files from the per-CPU
// online files, which the kernel does on every hotplug event
func syncRanges(t *testing.T, root string) {
	t.Helper()

	present, err := Decode(readFile(t, root, Present))
	require.NoError(t, err)

	var on, off []int
	for _, cpu := range present.List() {
		if readFile(t, root, filepath.Join(cpuDir(cpu), Online)) == "1" {
			on = append(on, cpu)
		} else {
			off = append(off, cpu)
		}
	}
	writeFile(t, root, Online, Encode(NewCPUSet(on...)))
	writeFile(t, root, Offline, Encode(NewCPUSet(off...)))
}

func writeFile(t *testing.T, root, name, value string) {
	t.Helper()

	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(value+"\n"), 0644))
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

// twoCoresFourThreads has cores {0,2} and {1,3}
func twoCoresFourThreads() []fakeCPU {
	return []fakeCPU{
		{siblings: "0,2"},
		{siblings: "1,3"},
		{siblings: "0,2"},
		{siblings: "1,3"},
	}
}

func newTestController(t *testing.T, cpus ...fakeCPU) (*Controller, string) {
	t.Helper()

	root := newFakeSysfs(t, cpus...)
	c, err := New(WithRoot(root))
	require.NoError(t, err, "Failed to create controller")

	return c, root
}

func TestNewRequiresHierarchy(t *testing.T) {
	_, err := New(WithRoot(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInit), "Expected an init error, got %v", err)
}

func TestNewRequiresScalingDriver(t *testing.T) {
	root := newFakeSysfs(t, fakeCPU{siblings: "0"})
	require.NoError(t, os.Remove(filepath.Join(root, freqFile(0, scalingDriverFile))))

	c, err := New(WithRoot(root))
	require.Nil(t, c)
	require.True(t, errors.Is(err, ErrInit), "Expected an init error, got %v", err)
}

func TestRanges(t *testing.T) {
	c, _ := newTestController(t,
		fakeCPU{siblings: "0"},
		fakeCPU{siblings: "1", offline: true},
		fakeCPU{siblings: "2"},
		fakeCPU{siblings: "3"},
	)

	online, err := c.Ranges(Online)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 3}, online.List())

	offline, err := c.Ranges(Offline)
	require.NoError(t, err)
	require.Equal(t, []int{1}, offline.List())

	present, err := c.Ranges(Present)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, present.List())
}

func TestEnableAlreadyOnline(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	require.NoError(t, c.Enable(NewCPUSet(0, 1, 2, 3)))
	syncRanges(t, root)

	online, err := c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, online.List())
}

func TestDisableAlreadyOffline(t *testing.T) {
	c, root := newTestController(t,
		fakeCPU{siblings: "0"},
		fakeCPU{siblings: "1", offline: true},
	)
	// a write to an offline CPU would recreate this file
	require.NoError(t, os.Remove(filepath.Join(root, cpuDir(1), Online)))

	require.NoError(t, c.Disable(NewCPUSet(1)))
	_, err := os.Stat(filepath.Join(root, cpuDir(1), Online))
	require.True(t, os.IsNotExist(err), "Offline CPU must not be written")
}

func TestEnableDisable(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	require.NoError(t, c.Disable(NewCPUSet(2, 3)))
	syncRanges(t, root)
	online, err := c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, online.List())

	require.NoError(t, c.Enable(NewCPUSet(3)))
	syncRanges(t, root)
	online, err = c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 3}, online.List())

	require.NoError(t, c.EnableAll())
	syncRanges(t, root)
	online, err = c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, online.List())
}

func TestDisableHyperthreadsKeepsPrimary(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	require.NoError(t, c.DisableHyperthreads())
	syncRanges(t, root)

	online, err := c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, online.List(), "Only primary threads should stay online")
}

func TestDisableHyperthreadsWideCores(t *testing.T) {
	c, root := newTestController(t,
		fakeCPU{siblings: "0-3"},
		fakeCPU{siblings: "0-3"},
		fakeCPU{siblings: "0-3"},
		fakeCPU{siblings: "0-3"},
		fakeCPU{siblings: "4"},
	)

	require.NoError(t, c.DisableHyperthreads())
	syncRanges(t, root)

	online, err := c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 4}, online.List())
}

func TestDisableHyperthreadsUnorderedSiblings(t *testing.T) {
	c, root := newTestController(t,
		fakeCPU{siblings: "2,0"},
		fakeCPU{siblings: "3,1"},
		fakeCPU{siblings: "2,0"},
		fakeCPU{siblings: "3,1"},
	)

	require.NoError(t, c.DisableHyperthreads())
	syncRanges(t, root)

	online, err := c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, online.List(), "Lowest sibling should stay online")
}

func TestResetRestoresBounds(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	require.NoError(t, c.SetFrequencies(1800000, NewCPUSet(), DefaultFrequencyOptions))
	require.NoError(t, c.Disable(NewCPUSet(3)))
	syncRanges(t, root)

	require.NoError(t, c.Reset(NewCPUSet()))
	syncRanges(t, root)

	online, err := c.OnlineCPUs()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, online.List())

	for cpu := 0; cpu < 4; cpu++ {
		require.Equal(t, readFile(t, root, freqFile(cpu, cpuinfoMinFile)), readFile(t, root, freqFile(cpu, scalingMinFile)))
		require.Equal(t, readFile(t, root, freqFile(cpu, cpuinfoMaxFile)), readFile(t, root, freqFile(cpu, scalingMaxFile)))
	}
}

func TestResetSingleCPU(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	require.NoError(t, c.SetFrequencies(1800000, NewCPUSet(), DefaultFrequencyOptions))
	require.NoError(t, c.Reset(NewCPUSet(1)))

	require.Equal(t, hwMaxFreq, readFile(t, root, freqFile(1, scalingMaxFile)))
	require.Equal(t, hwMinFreq, readFile(t, root, freqFile(1, scalingMinFile)))
	require.Equal(t, "1800000", readFile(t, root, freqFile(0, scalingMaxFile)), "Other CPUs must keep their bounds")
}

func TestSetFrequenciesMaxOnly(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	opts := FrequencyOptions{SetMax: true}
	require.NoError(t, c.SetFrequencies(2400000, NewCPUSet(0, 1), opts))

	for _, cpu := range []int{0, 1} {
		require.Equal(t, "2400000", readFile(t, root, freqFile(cpu, scalingMaxFile)))
		require.Equal(t, hwMinFreq, readFile(t, root, freqFile(cpu, scalingMinFile)))
		require.Equal(t, "<unsupported>", readFile(t, root, freqFile(cpu, scalingSetspeedFile)))
	}
	require.Equal(t, hwMaxFreq, readFile(t, root, freqFile(2, scalingMaxFile)), "Unselected CPU changed")
}

func TestSetFrequenciesSkipsOffline(t *testing.T) {
	c, root := newTestController(t,
		fakeCPU{siblings: "0"},
		fakeCPU{siblings: "1", offline: true},
	)

	require.NoError(t, c.SetFrequencies(1200000, NewCPUSet(0, 1), DefaultFrequencyOptions))

	require.Equal(t, "1200000", readFile(t, root, freqFile(0, scalingSetspeedFile)))
	require.Equal(t, "1200000", readFile(t, root, freqFile(0, scalingMinFile)))
	require.Equal(t, "1200000", readFile(t, root, freqFile(0, scalingMaxFile)))
	require.Equal(t, hwMaxFreq, readFile(t, root, freqFile(1, scalingMaxFile)))
}

func TestGovernors(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)

	require.NoError(t, c.Disable(NewCPUSet(3)))
	syncRanges(t, root)
	require.NoError(t, c.SetGovernors(Userspace, NewCPUSet()))

	governors, err := c.Governors()
	require.NoError(t, err)
	require.Equal(t, map[int]string{0: Userspace, 1: Userspace, 2: Userspace}, governors)
	require.Equal(t, "ondemand", readFile(t, root, freqFile(3, scalingGovernorFile)))
}

func TestFrequencies(t *testing.T) {
	c, root := newTestController(t, twoCoresFourThreads()...)
	writeFile(t, root, freqFile(2, scalingCurFile), "2400000")

	freqs, err := c.Frequencies()
	require.NoError(t, err)
	require.Equal(t, map[int]int{0: 1200000, 1: 1200000, 2: 2400000, 3: 1200000}, freqs)
}

func TestHostInformation(t *testing.T) {
	c, _ := newTestController(t, fakeCPU{siblings: "0"})

	freqs, err := c.AvailableFrequencies()
	require.NoError(t, err)
	require.Equal(t, []int{3000000, 2400000, 1800000, 1200000, 800000}, freqs)

	governors, err := c.AvailableGovernors()
	require.NoError(t, err)
	require.Contains(t, governors, Userspace)

	driver, err := c.Driver()
	require.NoError(t, err)
	require.Equal(t, "acpi-cpufreq", driver)

	maxFreq, err := c.MaxFreq()
	require.NoError(t, err)
	require.Equal(t, 3000000, maxFreq)

	minFreq, err := c.MinFreq()
	require.NoError(t, err)
	require.Equal(t, 800000, minFreq)
}

func TestSnapshot(t *testing.T) {
	c, _ := newTestController(t,
		fakeCPU{siblings: "0"},
		fakeCPU{siblings: "1", offline: true},
	)

	states, err := c.Snapshot()
	require.NoError(t, err)
	require.Len(t, states, 2)
	require.Equal(t, CPUState{ID: 0, Online: true, Governor: "ondemand", CurrentFrequency: 1200000, MinFrequency: 800000, MaxFrequency: 3000000}, states[0])
	require.Equal(t, CPUState{ID: 1}, states[1])
}

func TestIOError(t *testing.T) {
	c, root := newTestController(t, fakeCPU{siblings: "0"})
	require.NoError(t, os.Remove(filepath.Join(root, freqFile(0, cpuinfoMaxFile))))

	err := c.Reset(NewCPUSet())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrIO), "Expected an IO error, got %v", err)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	require.True(t, os.IsNotExist(ioErr.Err))
}

func TestMalformedRangeFile(t *testing.T) {
	c, root := newTestController(t, fakeCPU{siblings: "0"})
	writeFile(t, root, Online, "0-x")

	_, err := c.OnlineCPUs()
	require.True(t, errors.Is(err, ErrFormat), "Expected a format error, got %v", err)
}
