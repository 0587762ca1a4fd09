// MIT License
//
// Copyright (c) 2020 Plamen Petrov
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

package metrics

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/vhive-serverless/powersweep/sensor"
)

// Summary aggregates the samples of one workload run
type Summary struct {
	Samples    int     `json:"samples"`
	Duration   float64 `json:"duration_s"`
	MeanPowerW float64 `json:"mean_power_w"`
	StdPowerW  float64 `json:"std_power_w"`
	P95PowerW  float64 `json:"p95_power_w"`
	EnergyJ    float64 `json:"energy_j"`
}

// Row is a labelled summary, one line of a summary table
type Row struct {
	Label string
	Summary
}

// Summarize computes power statistics of the value stored under key.
// Energy comes from the sensor's cumulative counter when it has one,
// otherwise the power curve is integrated over time.
func Summarize(samples []sensor.Reading, key string) Summary {
	var (
		times  = make([]float64, 0, len(samples))
		values = make([]float64, 0, len(samples))
		energy []float64
	)
	for _, s := range samples {
		if v, ok := s.Values[key]; ok {
			times = append(times, s.Time)
			values = append(values, v)
		}
		if e, ok := s.Values[sensor.EnergyKey]; ok {
			energy = append(energy, e)
		}
	}

	sum := Summary{Samples: len(values)}
	if len(values) == 0 {
		return sum
	}

	sum.Duration = times[len(times)-1] - times[0]
	if len(values) > 1 {
		sum.MeanPowerW, sum.StdPowerW = stat.MeanStdDev(values, nil)
	} else {
		sum.MeanPowerW = values[0]
	}

	if p, err := stats.Percentile(values, 95); err == nil {
		sum.P95PowerW = p
	}

	switch {
	case len(energy) > 1:
		sum.EnergyJ = energy[len(energy)-1] - energy[0]
	case len(values) > 1 && sort.Float64sAreSorted(times):
		sum.EnergyJ = integrate.Trapezoidal(times, values)
	}

	return sum
}

// PrintSummaries writes a table of summaries to w
func PrintSummaries(w io.Writer, rows ...Row) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Run    \tSamples\tMean(W)    \tStdDev(W)    \tP95(W)    \tEnergy(J)\n")
	for _, r := range rows {
		fmt.Fprintf(bw, "%s    \t%7d\t%10.1f    \t%10.1f    \t%10.1f    \t%12.1f\n",
			r.Label, r.Samples, r.MeanPowerW, r.StdPowerW, r.P95PowerW, r.EnergyJ)
	}

	return bw.Flush()
}
