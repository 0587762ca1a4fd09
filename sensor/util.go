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

package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/cpu"
)

// Utilization reports host CPU utilization. It carries no power reading and
// is meant for dry runs on hosts without a power meter.
type Utilization struct {
	last Reading
}

// NewUtilization returns a CPU utilization sensor
func NewUtilization() *Utilization {
	return new(Utilization)
}

// Name returns the sensor name
func (u *Utilization) Name() string {
	return "util"
}

// Sample returns the utilization since the previous call, overall and per CPU
func (u *Utilization) Sample(ctx context.Context) (Reading, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Reading{}, errors.Wrap(err, "failed to read cpu utilization")
	}
	perCPU, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return Reading{}, errors.Wrap(err, "failed to read per-cpu utilization")
	}

	values := make(map[string]float64, len(perCPU)+1)
	if len(total) > 0 {
		values["cpu_util_pct"] = total[0]
	}
	for i, v := range perCPU {
		values[fmt.Sprintf("cpu%d_util_pct", i)] = v
	}

	u.last = Reading{Timestamp: time.Now(), Values: values}
	return u.last, nil
}

// Dump prints the last reading
func (u *Utilization) Dump() string {
	return spew.Sdump(u.last)
}
