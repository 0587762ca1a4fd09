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
	"time"

	"github.com/davecgh/go-spew/spew"
)

// Constant reports the same values on every sample
type Constant struct {
	values map[string]float64
	last   Reading
}

// NewConstant returns a sensor that always reports values
func NewConstant(values map[string]float64) *Constant {
	return &Constant{values: copyValues(values)}
}

// Name returns the sensor name
func (c *Constant) Name() string {
	return "constant"
}

// Sample returns a copy of the configured values
func (c *Constant) Sample(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	c.last = Reading{Timestamp: time.Now(), Values: copyValues(c.values)}
	return c.last, nil
}

// Dump prints the last reading
func (c *Constant) Dump() string {
	return spew.Sdump(c.last)
}
