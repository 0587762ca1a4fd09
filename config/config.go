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

// Package config loads powersweep experiment descriptions.
package config

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"

	"github.com/vhive-serverless/powersweep/sensor"
	"github.com/vhive-serverless/powersweep/storage"
)

const (
	defaultConfigPath = "/etc/powersweep/experiment.yaml"
	defaultGovernor   = "ondemand"
)

// ErrInvalid is matched by errors returned from Validate
var ErrInvalid = errors.New("invalid experiment")

// Experiment represents one sweep over frequencies, thread counts and arguments
type Experiment struct {
	Executable      string         `json:"executable"`
	Threads         []int          `json:"threads"`
	Args            [][]string     `json:"args"`
	Frequencies     []int          `json:"frequencies"`
	IdleTime        float64        `json:"idle_time"`
	SampleInterval  float64        `json:"sample_interval" default:"1"`
	Governor        string         `json:"governor" default:"ondemand"`
	RestoreGovernor string         `json:"restore_governor"`
	Output          string         `json:"output" default:"result.json"`
	Verbose         int            `json:"verbose"`
	Sensor          sensor.Config  `json:"sensor"`
	Storage         storage.Config `json:"storage"`
}

// New returns an experiment populated with defaults
func New() *Experiment {
	cfg := &Experiment{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	cfg.Args = [][]string{{}}

	return cfg
}

// LoadConfig loads an experiment from the JSON, JSONC or YAML file at 'path'
func LoadConfig(path string) (*Experiment, error) {
	if path == "" {
		path = defaultConfigPath
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config from %q", path)
	}

	return Parse(path, data)
}

// Parse decodes an experiment, choosing the syntax from the extension of name
func Parse(name string, data []byte) (*Experiment, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to convert YAML config %q", name)
		}
		data = converted
	default:
		data = jsonc.ToJSON(data)
	}

	cfg := &Experiment{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set config defaults")
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %q", name)
	}

	if len(cfg.Args) == 0 {
		cfg.Args = [][]string{{}}
	}

	return cfg, nil
}

// Validate reports the first problem that would stop the sweep from running
func (e *Experiment) Validate() error {
	if e.Executable == "" {
		return errors.Wrap(ErrInvalid, "executable is not set")
	}
	if len(e.Threads) == 0 {
		return errors.Wrap(ErrInvalid, "no thread counts given")
	}
	for _, t := range e.Threads {
		if t <= 0 {
			return errors.Wrapf(ErrInvalid, "thread count %d is not positive", t)
		}
	}
	if len(e.Args) == 0 {
		return errors.Wrap(ErrInvalid, "no argument lists given")
	}
	for _, f := range e.Frequencies {
		if f <= 0 {
			return errors.Wrapf(ErrInvalid, "frequency %d is not positive", f)
		}
	}
	if e.IdleTime < 0 {
		return errors.Wrapf(ErrInvalid, "idle time %v is negative", e.IdleTime)
	}
	if e.SampleInterval < 0 {
		return errors.Wrapf(ErrInvalid, "sample interval %v is negative", e.SampleInterval)
	}

	return nil
}

// IdleDuration is the settle time between runs
func (e *Experiment) IdleDuration() time.Duration {
	return seconds(e.IdleTime)
}

// SampleDuration is the period between two sensor readings
func (e *Experiment) SampleDuration() time.Duration {
	return seconds(e.SampleInterval)
}

// GovernorOrDefault returns the governor used for governor-driven sweeps
func (e *Experiment) GovernorOrDefault() string {
	if e.Governor == "" {
		return defaultGovernor
	}
	return e.Governor
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
