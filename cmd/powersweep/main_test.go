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

package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/powersweep/monitor"
	"github.com/vhive-serverless/powersweep/report"
	"github.com/vhive-serverless/powersweep/sensor"
	"github.com/vhive-serverless/powersweep/storage"
)

// fakeSysfs builds a two cpu hierarchy with cpu1 offline
func fakeSysfs(t *testing.T) string {
	root := t.TempDir()
	files := map[string]string{
		"online":                                     "0",
		"offline":                                    "1",
		"present":                                    "0-1",
		"cpu1/online":                                "0",
		"cpu0/cpufreq/scaling_driver":                "acpi-cpufreq",
		"cpu0/cpufreq/scaling_governor":              "ondemand",
		"cpu0/cpufreq/scaling_setspeed":              "<unsupported>",
		"cpu0/cpufreq/scaling_cur_freq":              "2400000",
		"cpu0/cpufreq/scaling_min_freq":              "1200000",
		"cpu0/cpufreq/scaling_max_freq":              "2400000",
		"cpu0/cpufreq/cpuinfo_min_freq":              "1200000",
		"cpu0/cpufreq/cpuinfo_max_freq":              "2400000",
		"cpu0/cpufreq/scaling_available_governors":   "userspace ondemand performance",
		"cpu0/cpufreq/scaling_available_frequencies": "2400000 1800000 1200000",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, ioutil.WriteFile(path, []byte(content+"\n"), 0644))
	}
	return root
}

func readSysfs(t *testing.T, root, name string) string {
	data, err := ioutil.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestLogLevel(t *testing.T) {
	require.Equal(t, log.WarnLevel, logLevel(0))
	require.Equal(t, log.WarnLevel, logLevel(-1))
	require.Equal(t, log.InfoLevel, logLevel(1))
	require.Equal(t, log.DebugLevel, logLevel(2))
	require.Equal(t, log.TraceLevel, logLevel(3))
	require.Equal(t, log.TraceLevel, logLevel(7))
}

func TestExecuteUnknown(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, execute(nil, &out))
	require.Error(t, execute([]string{"frobnicate"}, &out))
	require.Contains(t, out.String(), "Usage: powersweep")

	out.Reset()
	require.NoError(t, execute([]string{"help"}, &out))
}

func TestCPUStatus(t *testing.T) {
	root := fakeSysfs(t)

	var out bytes.Buffer
	require.NoError(t, execute([]string{"cpu", "status", "--sysfs", root}, &out))

	text := out.String()
	require.Contains(t, text, "driver: acpi-cpufreq")
	require.Contains(t, text, "[2400000 1800000 1200000]")
	require.Regexp(t, `0\s+yes\s+ondemand\s+2400000\s+1200000\s+2400000`, text)
	require.Regexp(t, `1\s+no`, text)
}

func TestCPUSetFreq(t *testing.T) {
	root := fakeSysfs(t)

	var out bytes.Buffer
	require.NoError(t, execute([]string{"cpu", "set-freq", "1800000", "--max-only", "--sysfs", root}, &out))
	require.Equal(t, "1800000", readSysfs(t, root, "cpu0/cpufreq/scaling_max_freq"))
	require.Equal(t, "1200000", readSysfs(t, root, "cpu0/cpufreq/scaling_min_freq"))

	require.NoError(t, execute([]string{"cpu", "set-governor", "userspace", "0", "--sysfs", root}, &out))
	require.Equal(t, "userspace", readSysfs(t, root, "cpu0/cpufreq/scaling_governor"))

	require.Error(t, execute([]string{"cpu", "set-freq", "fast", "--sysfs", root}, &out))
	require.Error(t, execute([]string{"cpu", "set-governor", "userspace", "3-1", "--sysfs", root}, &out))
	require.Error(t, execute([]string{"cpu", "warp", "--sysfs", root}, &out))
}

func TestCPUNoHierarchy(t *testing.T) {
	var out bytes.Buffer
	err := execute([]string{"cpu", "status", "--sysfs", filepath.Join(t.TempDir(), "none")}, &out)
	require.Error(t, err)
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("threads: [1]\n"), 0644))

	var out bytes.Buffer
	require.Error(t, execute([]string{"run", "-c", path}, &out))
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "result.cbor.zst")

	trace := monitor.RunTrace{Args: []string{"--iters", "2"}}
	for i, p := range []float64{30, 45, 40} {
		trace.Samples = append(trace.Samples, sensor.Reading{
			Time:   float64(i),
			Values: map[string]float64{sensor.PowerKey: p},
		})
	}
	res := &monitor.Result{
		Mode: monitor.ModeFixed,
		Frequencies: []monitor.FrequencyPoint{
			{Frequency: 1800000, Threads: []monitor.ThreadPoint{{Threads: 2, Runs: []monitor.RunTrace{trace}}}},
		},
	}
	res.AttachHeader(&monitor.Header{RunID: "abc", Hostname: "node-1", Sensor: "rapl"})
	require.NoError(t, storage.NewFileStorage().Save(context.Background(), input, res))

	outDir := filepath.Join(dir, "charts")
	var out bytes.Buffer
	require.NoError(t, execute([]string{"report", "-i", input, "-o", outDir, "--traces"}, &out))

	require.Contains(t, out.String(), "run abc on node-1")
	require.Contains(t, out.String(), "1.80GHz t=2 --iters 2")
	for _, name := range []string{report.EnergyChart, report.PowerChart, report.SummaryCSV, "trace_f1800000_t2_r0.png"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, "Chart %s was not written", name)
	}

	require.Error(t, execute([]string{"report"}, &out))
}

func TestReportWritesCSVBeforeCharts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "result.json")

	res := &monitor.Result{
		Mode:        monitor.ModeFixed,
		Frequencies: []monitor.FrequencyPoint{{Frequency: 1800000, Threads: []monitor.ThreadPoint{{Threads: 1}}}},
	}
	require.NoError(t, storage.NewFileStorage().Save(context.Background(), input, res))

	outDir := filepath.Join(dir, "charts")
	var out bytes.Buffer
	require.Error(t, execute([]string{"report", "-i", input, "-o", outDir}, &out), "A result without runs cannot be charted")

	data, err := ioutil.ReadFile(filepath.Join(outDir, report.SummaryCSV))
	require.NoError(t, err, "Summary must be written even when charting fails")
	require.True(t, strings.HasPrefix(string(data), "frequency,threads"))
}

func TestReportListNeedsBucket(t *testing.T) {
	var out bytes.Buffer
	err := execute([]string{"report", "--list"}, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "--bucket")
}

func TestReportFromBucket(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT is not set")
	}

	scfg := storage.Config{Endpoint: endpoint, Bucket: "test-bucket", AccessKey: "minio", SecretKey: "minio123"}
	store, err := storage.New(scfg)
	require.NoError(t, err)

	res := &monitor.Result{
		Mode:    monitor.ModeDVFS,
		Threads: []monitor.ThreadPoint{{Threads: 1, Runs: []monitor.RunTrace{{Args: []string{"x"}}}}},
	}
	require.NoError(t, store.Save(context.Background(), "cli/result.json", res))

	flags := []string{"--endpoint", endpoint, "--bucket", scfg.Bucket, "--access-key", scfg.AccessKey, "--secret-key", scfg.SecretKey}

	var out bytes.Buffer
	require.NoError(t, execute(append([]string{"report", "--list", "--prefix", "cli/"}, flags...), &out))
	require.Contains(t, out.String(), "cli/result.json")

	require.Error(t, execute(append([]string{"report", "-i", "cli/missing.json"}, flags...), &out))
	require.NoError(t, execute(append([]string{"report", "-i", "cli/result.json", "-o", t.TempDir()}, flags...), &out))
}
