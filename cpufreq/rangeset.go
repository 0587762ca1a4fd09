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
	"strings"

	"k8s.io/utils/cpuset"
)

// CPUSet An ordered set of logical CPU ids
type CPUSet = cpuset.CPUSet

// NewCPUSet returns a set holding the given ids. A single id gives a singleton set.
func NewCPUSet(cpus ...int) CPUSet {
	return cpuset.New(cpus...)
}

// Decode parses the kernel's compact list format, e.g. "0-3,8".
// Empty text decodes to the empty set.
func Decode(text string) (CPUSet, error) {
	text = strings.TrimSpace(text)
	set, err := cpuset.Parse(text)
	if err != nil {
		return NewCPUSet(), &FormatError{Text: text, Err: err}
	}
	return set, nil
}

// Encode formats the set in the kernel's compact list format.
func Encode(set CPUSet) string {
	return set.String()
}

// Beyond returns the ids of cpus that follow its n lowest ids, i.e. the
// highest-indexed CPUs that must go offline to keep n of them online.
func Beyond(cpus CPUSet, n int) CPUSet {
	list := cpus.List()
	if n >= len(list) {
		return NewCPUSet()
	}
	if n < 0 {
		n = 0
	}
	return NewCPUSet(list[n:]...)
}
