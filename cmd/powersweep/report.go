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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/vhive-serverless/powersweep/metrics"
	"github.com/vhive-serverless/powersweep/monitor"
	"github.com/vhive-serverless/powersweep/report"
	"github.com/vhive-serverless/powersweep/sensor"
	"github.com/vhive-serverless/powersweep/storage"
)

// objectStore is implemented by result stores backed by a bucket
type objectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

func reportCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	fs.SetOutput(out)
	input := fs.StringP("input", "i", "", "Result file, or object key when --bucket is set")
	outDir := fs.StringP("output", "o", "report", "Directory the charts are written to")
	key := fs.StringP("key", "k", sensor.PowerKey, "Reading value plotted by the trace charts")
	traces := fs.Bool("traces", false, "Plot the trace of every run")
	list := fs.Bool("list", false, "List the results stored in the bucket instead of reporting")
	prefix := fs.String("prefix", "", "Object key prefix for --list")
	verbose := fs.CountP("verbose", "v", "Increase log verbosity, repeat for more")

	var scfg storage.Config
	fs.StringVar(&scfg.Endpoint, "endpoint", "", "Object store endpoint")
	fs.StringVar(&scfg.Bucket, "bucket", "", "Object store bucket")
	fs.StringVar(&scfg.AccessKey, "access-key", "", "Object store access key")
	fs.StringVar(&scfg.SecretKey, "secret-key", "", "Object store secret key")
	fs.BoolVar(&scfg.Secure, "secure", false, "Use TLS for the object store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(*verbose)

	store, err := storage.New(scfg)
	if err != nil {
		return errors.Wrap(err, "failed to create result store")
	}

	ctx := context.Background()
	objects, remote := store.(objectStore)

	if *list {
		if !remote {
			return errors.New("listing results needs an object store (--bucket)")
		}
		keys, err := objects.ListObjects(ctx, *prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil
	}

	if *input == "" {
		return errors.New("report needs an input result (-i)")
	}

	if remote {
		exists, err := objects.Exists(ctx, *input)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Errorf("result %q not found in bucket %q", *input, scfg.Bucket)
		}
	}

	var res monitor.Result
	if err := store.Load(ctx, *input, &res); err != nil {
		return err
	}

	if h := res.Header(); h != nil {
		fmt.Fprintf(out, "run %s on %s (%s, %s), sensor %s, %s\n\n",
			h.RunID, h.Hostname, h.CPUModel, h.Kernel, h.Sensor, h.Date.Format("2006-01-02 15:04:05"))
	}

	if err := metrics.PrintSummaries(out, report.Rows(&res)...); err != nil {
		return err
	}

	if err := writeSummaryCSV(&res, *outDir); err != nil {
		return err
	}

	if err := report.PlotSweep(&res, *outDir); err != nil {
		return err
	}

	if *traces {
		if _, err := report.PlotTraces(&res, *key, *outDir); err != nil {
			return err
		}
	}

	return nil
}

func writeSummaryCSV(res *monitor.Result, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed creating %q", dir)
	}

	csvFile, err := os.Create(filepath.Join(dir, report.SummaryCSV))
	if err != nil {
		return errors.Wrap(err, "failed creating summary csv")
	}
	defer csvFile.Close()

	return report.WriteCSV(res, csvFile)
}
