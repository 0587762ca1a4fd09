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
	"fmt"

	"github.com/pkg/errors"
)

// ErrWorkload is matched by errors returned when the workload cannot be run
var ErrWorkload = errors.New("workload failed")

// WorkloadError The workload could not be started or reaped
type WorkloadError struct {
	Executable string
	Err        error
}

func (e *WorkloadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrWorkload, e.Executable, e.Err)
}

// Unwrap returns the process error
func (e *WorkloadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrWorkload
func (e *WorkloadError) Is(target error) bool {
	return target == ErrWorkload
}
