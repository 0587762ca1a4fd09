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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/powersweep/sensor"
)

func reading(t float64, values map[string]float64) sensor.Reading {
	return sensor.Reading{Time: t, Values: values}
}

func TestSummarizeIntegratesPower(t *testing.T) {
	samples := []sensor.Reading{
		reading(0, map[string]float64{sensor.PowerKey: 100}),
		reading(1, map[string]float64{sensor.PowerKey: 100}),
		reading(2, map[string]float64{sensor.PowerKey: 200}),
	}

	s := Summarize(samples, sensor.PowerKey)
	require.Equal(t, 3, s.Samples)
	require.Equal(t, 2.0, s.Duration)
	require.InDelta(t, 133.33, s.MeanPowerW, 0.01)
	require.InDelta(t, 57.73, s.StdPowerW, 0.01)
	require.Equal(t, 150.0, s.P95PowerW)
	require.InDelta(t, 250.0, s.EnergyJ, 1e-9, "100 J for the first second, 150 J for the second")
}

func TestSummarizePrefersEnergyCounter(t *testing.T) {
	samples := []sensor.Reading{
		reading(0, map[string]float64{sensor.PowerKey: 10, sensor.EnergyKey: 5}),
		reading(1, map[string]float64{sensor.PowerKey: 10, sensor.EnergyKey: 17}),
	}

	s := Summarize(samples, sensor.PowerKey)
	require.Equal(t, 12.0, s.EnergyJ)
}

func TestSummarizeSparse(t *testing.T) {
	require.Equal(t, Summary{}, Summarize(nil, sensor.PowerKey))

	s := Summarize([]sensor.Reading{
		reading(0.5, map[string]float64{sensor.PowerKey: 80}),
		reading(1.5, map[string]float64{"cpu_util_pct": 3}),
	}, sensor.PowerKey)
	require.Equal(t, 1, s.Samples)
	require.Equal(t, 80.0, s.MeanPowerW)
	require.Equal(t, 0.0, s.StdPowerW)
	require.Equal(t, 0.0, s.EnergyJ)
}

func TestPrintSummaries(t *testing.T) {
	var buf bytes.Buffer
	err := PrintSummaries(&buf,
		Row{Label: "1800000/1/--iters 1", Summary: Summary{Samples: 3, MeanPowerW: 120, EnergyJ: 240}},
		Row{Label: "1800000/2/--iters 2", Summary: Summary{Samples: 2, MeanPowerW: 150, EnergyJ: 150}},
	)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "1800000/2/--iters 2")
	require.Contains(t, buf.String(), "Energy(J)")
}
