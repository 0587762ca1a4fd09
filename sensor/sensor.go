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

// Package sensor defines the sampling interface power meters implement and
// the meters used by powersweep experiments.
package sensor

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// PowerKey holds the instantaneous power in watts
	PowerKey = "power_w"
	// EnergyKey holds the energy in joules accumulated since the sensor started
	EnergyKey = "energy_j"
)

// Reading is one timestamped sample of a sensor
type Reading struct {
	// Time is the elapsed time in seconds since the workload was launched
	Time        float64            `json:"time"`
	Timestamp   time.Time          `json:"timestamp"`
	Values      map[string]float64 `json:"values"`
	Frequencies map[int]int        `json:"freqs,omitempty"`
}

// Power returns the instantaneous power of the reading, if the sensor reports it
func (r Reading) Power() (float64, bool) {
	v, ok := r.Values[PowerKey]
	return v, ok
}

// Sensor is implemented by every power meter backend
type Sensor interface {
	Name() string
	Sample(ctx context.Context) (Reading, error)
}

// Starter is implemented by sensors that derive values from the previous
// sample. Start marks the beginning of a measurement window so the first
// reading after it only covers the window.
type Starter interface {
	Start(ctx context.Context) error
}

// Dumper is implemented by sensors that can print their last reading in detail
type Dumper interface {
	Dump() string
}

// Config selects and configures a sensor backend
type Config struct {
	Kind     string   `json:"kind" default:"rapl"`
	URL      string   `json:"url"`
	Chassis  string   `json:"chassis" default:"1"`
	User     string   `json:"user"`
	Password string   `json:"password"`
	Zones    []string `json:"zones"`
	Root     string   `json:"root"`
}

// New returns the sensor backend named by cfg.Kind
func New(cfg Config) (Sensor, error) {
	switch strings.ToLower(cfg.Kind) {
	case "rapl":
		root := cfg.Root
		if root == "" {
			root = DefaultPowercapDir
		}
		return NewRAPL(root, cfg.Zones...)
	case "redfish", "ipmi":
		if cfg.URL == "" {
			return nil, errors.New("redfish sensor needs a BMC url")
		}
		return NewRedfish(cfg.URL, cfg.Chassis, cfg.User, cfg.Password), nil
	case "util":
		return NewUtilization(), nil
	case "constant":
		return NewConstant(map[string]float64{PowerKey: 0}), nil
	default:
		return nil, errors.Errorf("unknown sensor kind %q", cfg.Kind)
	}
}

func copyValues(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
