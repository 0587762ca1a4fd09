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
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

const redfishTimeout = 5 * time.Second

// Redfish reads node power from a BMC through the Redfish Power resource
type Redfish struct {
	client   *http.Client
	url      string
	user     string
	password string
	last     Reading
}

type redfishPower struct {
	PowerControl []struct {
		PowerConsumedWatts float64 `json:"PowerConsumedWatts"`
		PowerMetrics       struct {
			AverageConsumedWatts float64 `json:"AverageConsumedWatts"`
			MinConsumedWatts     float64 `json:"MinConsumedWatts"`
			MaxConsumedWatts     float64 `json:"MaxConsumedWatts"`
		} `json:"PowerMetrics"`
	} `json:"PowerControl"`
}

// NewRedfish returns a sensor polling the Power resource of one chassis
func NewRedfish(endpoint, chassis, user, password string) *Redfish {
	return &Redfish{
		client:   &http.Client{Timeout: redfishTimeout},
		url:      strings.TrimRight(endpoint, "/") + "/redfish/v1/Chassis/" + chassis + "/Power",
		user:     user,
		password: password,
	}
}

// Name returns the sensor name
func (r *Redfish) Name() string {
	return "redfish"
}

// Sample queries the BMC for the current power draw
func (r *Redfish) Sample(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Reading{}, errors.Wrap(err, "failed to build redfish request")
	}
	req.Header.Set("Accept", "application/json")
	if r.user != "" {
		req.SetBasicAuth(r.user, r.password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Reading{}, errors.Wrapf(err, "failed to query %s", r.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, errors.Errorf("redfish %s returned %s", r.url, resp.Status)
	}

	var power redfishPower
	if err := json.NewDecoder(resp.Body).Decode(&power); err != nil {
		return Reading{}, errors.Wrap(err, "failed to decode redfish power")
	}
	if len(power.PowerControl) == 0 {
		return Reading{}, errors.Errorf("redfish %s reports no PowerControl", r.url)
	}

	pc := power.PowerControl[0]
	r.last = Reading{
		Timestamp: time.Now(),
		Values: map[string]float64{
			PowerKey:      pc.PowerConsumedWatts,
			"avg_power_w": pc.PowerMetrics.AverageConsumedWatts,
			"min_power_w": pc.PowerMetrics.MinConsumedWatts,
			"max_power_w": pc.PowerMetrics.MaxConsumedWatts,
		},
	}

	return r.last, nil
}

// Dump prints the last reading
func (r *Redfish) Dump() string {
	return spew.Sdump(r.last)
}
