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

package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/vhive-serverless/powersweep/monitor"
)

// SummaryCSV is the file name the report command writes per-run summaries to
const SummaryCSV = "summary.csv"

var csvHeader = []string{
	"frequency", "threads", "args", "exit_code", "total_time",
	"samples", "mean_power_w", "std_power_w", "p95_power_w", "energy_j",
}

// WriteCSV writes one line per run of the result
func WriteCSV(res *monitor.Result, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return errors.Wrap(err, "failed writing csv header")
	}

	freqs, points := res.ThreadPoints()
	for i, tp := range points {
		for _, trace := range tp.Runs {
			s := trace.Summary
			record := []string{
				strconv.Itoa(freqs[i]),
				strconv.Itoa(tp.Threads),
				strings.Join(trace.Args, " "),
				strconv.Itoa(trace.ExitCode),
				formatFloat(trace.TotalTime),
				strconv.Itoa(s.Samples),
				formatFloat(s.MeanPowerW),
				formatFloat(s.StdPowerW),
				formatFloat(s.P95PowerW),
				formatFloat(s.EnergyJ),
			}
			if err := writer.Write(record); err != nil {
				return errors.Wrap(err, "failed writing csv record")
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
