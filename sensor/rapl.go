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
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPowercapDir is where the kernel exposes RAPL energy counters
const DefaultPowercapDir = "/sys/class/powercap"

// top-level zones only, subzones look like intel-rapl:0:1
var zoneRe = regexp.MustCompile(`^intel-rapl:\d+$`)

type raplZone struct {
	name     string
	path     string
	maxRange uint64
	last     uint64
	total    float64 // joules
}

// RAPL reads the package energy counters of Intel RAPL through powercap
type RAPL struct {
	zones    []*raplZone
	lastTime time.Time
	last     Reading
}

// NewRAPL discovers the RAPL package zones under root. When names are given
// only zones with a matching name (e.g. package-0) are sampled.
func NewRAPL(root string, names ...string) (*RAPL, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list powercap zones in %s", root)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	r := new(RAPL)
	for _, e := range entries {
		if !zoneRe.MatchString(e.Name()) {
			continue
		}
		path := filepath.Join(root, e.Name())

		name, err := readString(filepath.Join(path, "name"))
		if err != nil {
			return nil, err
		}
		if len(wanted) > 0 && !wanted[name] {
			continue
		}

		maxRange, err := readUint(filepath.Join(path, "max_energy_range_uj"))
		if err != nil {
			return nil, err
		}
		energy, err := readUint(filepath.Join(path, "energy_uj"))
		if err != nil {
			return nil, err
		}

		r.zones = append(r.zones, &raplZone{name: name, path: path, maxRange: maxRange, last: energy})
	}

	if len(r.zones) == 0 {
		return nil, errors.Errorf("no RAPL zones found in %s", root)
	}
	sort.Slice(r.zones, func(i, j int) bool { return r.zones[i].name < r.zones[j].name })
	r.lastTime = time.Now()

	log.WithField("zones", len(r.zones)).Debug("RAPL sensor initialized")

	return r, nil
}

// Name returns the sensor name
func (r *RAPL) Name() string {
	return "rapl"
}

// Start folds the energy used since the previous sample into the totals and
// restarts the power window, so idle time before a run does not skew the
// first power reading.
func (r *RAPL) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := r.advance(); err != nil {
		return err
	}
	r.lastTime = time.Now()

	return nil
}

// Sample reads every zone counter and derives the power drawn since the
// previous sample. Counter wraparound is corrected with max_energy_range_uj.
func (r *RAPL) Sample(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	now := time.Now()
	delta, err := r.advance()
	if err != nil {
		return Reading{}, err
	}

	values := make(map[string]float64, len(r.zones)+2)
	var total float64
	for _, z := range r.zones {
		total += z.total
		values[z.name+"_"+EnergyKey] = z.total
	}

	values[EnergyKey] = total
	if dt := now.Sub(r.lastTime).Seconds(); dt > 0 {
		values[PowerKey] = delta / dt
	}
	r.lastTime = now

	r.last = Reading{Timestamp: now, Values: values}
	return r.last, nil
}

// advance reads every zone counter, adds the energy used since the last
// read to the zone totals and returns that energy in joules
func (r *RAPL) advance() (float64, error) {
	var delta float64
	for _, z := range r.zones {
		energy, err := readUint(filepath.Join(z.path, "energy_uj"))
		if err != nil {
			return 0, err
		}

		d := float64(counterDelta(z.last, energy, z.maxRange)) / 1e6
		z.last = energy
		z.total += d
		delta += d
	}
	return delta, nil
}

// Dump prints the last reading of every zone
func (r *RAPL) Dump() string {
	var b strings.Builder
	for _, z := range r.zones {
		fmt.Fprintf(&b, "%s:\t%.3f J\n", z.name, z.total)
	}
	b.WriteString(spew.Sdump(r.last.Values))
	return b.String()
}

func counterDelta(prev, cur, maxRange uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return maxRange - prev + cur
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return strings.TrimSpace(string(data)), nil
}

func readUint(path string) (uint64, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s", path)
	}
	return v, nil
}
