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

// Package monitor runs workloads under controlled CPU configurations and
// records the power they draw.
package monitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/vhive-serverless/powersweep/metrics"
	"github.com/vhive-serverless/powersweep/sensor"
)

// ThreadsPlaceholder is replaced by the active thread count in workload arguments
const ThreadsPlaceholder = "__nt__"

// Mode names the kind of sweep that produced a result
type Mode string

const (
	// ModeFixed pins every online CPU to each frequency in turn
	ModeFixed Mode = "fixed"
	// ModeDVFS leaves frequency selection to a kernel governor
	ModeDVFS Mode = "dvfs"
)

// Header identifies the host and run a result was captured on
type Header struct {
	RunID      string    `json:"run_id"`
	Date       time.Time `json:"date"`
	Hostname   string    `json:"hostname"`
	Platform   string    `json:"platform"`
	Kernel     string    `json:"kernel"`
	CPUModel   string    `json:"cpu_model"`
	Sensor     string    `json:"sensor"`
	Mode       Mode      `json:"mode"`
	Executable string    `json:"executable"`
}

// RunTrace is one supervised execution of the workload
type RunTrace struct {
	Args      []string         `json:"args"`
	TotalTime float64          `json:"total_time"`
	ExitCode  int              `json:"exit_code"`
	Samples   []sensor.Reading `json:"samples"`
	Summary   metrics.Summary  `json:"summary"`
}

// ThreadPoint holds the runs made with a given number of online CPUs
type ThreadPoint struct {
	Header  *Header    `json:"header,omitempty"`
	Threads int        `json:"threads"`
	Runs    []RunTrace `json:"runs"`
}

// FrequencyPoint holds the thread sweep made at one pinned frequency
type FrequencyPoint struct {
	Header    *Header       `json:"header,omitempty"`
	Frequency int           `json:"frequency"`
	Threads   []ThreadPoint `json:"threads"`
}

// Result is the outcome of a sweep. Fixed-frequency sweeps fill Frequencies,
// governor-driven sweeps fill Threads.
type Result struct {
	Mode        Mode             `json:"mode"`
	Frequencies []FrequencyPoint `json:"frequencies,omitempty"`
	Threads     []ThreadPoint    `json:"threads,omitempty"`
}

// AttachHeader stores h on the first point of the result. It returns false
// when the result has no point to carry it.
func (r *Result) AttachHeader(h *Header) bool {
	switch {
	case len(r.Frequencies) > 0:
		r.Frequencies[0].Header = h
	case len(r.Threads) > 0:
		r.Threads[0].Header = h
	default:
		return false
	}
	return true
}

// Header returns the header attached to the result, if any
func (r *Result) Header() *Header {
	switch {
	case len(r.Frequencies) > 0:
		return r.Frequencies[0].Header
	case len(r.Threads) > 0:
		return r.Threads[0].Header
	}
	return nil
}

// ThreadPoints returns every thread point of the result along with the
// frequency it was measured at, 0 for governor-driven sweeps
func (r *Result) ThreadPoints() ([]int, []ThreadPoint) {
	var (
		freqs  []int
		points []ThreadPoint
	)
	for _, fp := range r.Frequencies {
		for _, tp := range fp.Threads {
			freqs = append(freqs, fp.Frequency)
			points = append(points, tp)
		}
	}
	for _, tp := range r.Threads {
		freqs = append(freqs, 0)
		points = append(points, tp)
	}
	return freqs, points
}

// Runs counts the traces recorded in the result
func (r *Result) Runs() int {
	n := 0
	_, points := r.ThreadPoints()
	for _, tp := range points {
		n += len(tp.Runs)
	}
	return n
}

// SubstituteThreads returns a copy of args with every occurrence of
// ThreadsPlaceholder replaced by threads
func SubstituteThreads(args []string, threads int) []string {
	out := make([]string, len(args))
	nt := strconv.Itoa(threads)
	for i, arg := range args {
		out[i] = strings.ReplaceAll(arg, ThreadsPlaceholder, nt)
	}
	return out
}
