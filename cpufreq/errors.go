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
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInit is matched by errors returned from New when the host cannot be controlled
	ErrInit = errors.New("cpu frequency control unavailable")
	// ErrFormat is matched by errors returned for malformed range text
	ErrFormat = errors.New("malformed cpu range")
	// ErrIO is matched by errors returned for failed control file accesses
	ErrIO = errors.New("cpu control file access failed")
)

// InitError Host does not expose the cpu hierarchy or a scaling driver
type InitError struct {
	Reason string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInit, e.Reason)
}

// Is reports whether target is ErrInit
func (e *InitError) Is(target error) bool {
	return target == ErrInit
}

// FormatError Range text could not be decoded
type FormatError struct {
	Text string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrFormat, e.Text, e.Err)
}

// Unwrap returns the parser error
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFormat
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// IOError A read or write of a control file failed
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
