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
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	log "github.com/sirupsen/logrus"
)

// NewHeader describes the current host. Fields that cannot be read are left
// empty.
func NewHeader(ctx context.Context, sensorName string, mode Mode, executable string) *Header {
	h := &Header{
		RunID:      uuid.New().String(),
		Date:       time.Now().UTC(),
		Sensor:     sensorName,
		Mode:       mode,
		Executable: executable,
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		log.WithError(err).Warn("Failed to read host info")
		h.Hostname, _ = os.Hostname()
	} else {
		h.Hostname = info.Hostname
		h.Platform = info.Platform + " " + info.PlatformVersion
		h.Kernel = info.KernelVersion
	}

	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		log.WithError(err).Warn("Failed to read cpu info")
	} else if len(infos) > 0 {
		h.CPUModel = infos[0].ModelName
	}

	return h
}
