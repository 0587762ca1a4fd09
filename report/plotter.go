// MIT License
//
// Copyright (c) 2021 Yuchen Niu and EASE lab
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

// Package report renders sweep results as charts and tables.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart"
	"github.com/wcharczuk/go-chart/drawing"

	"github.com/vhive-serverless/powersweep/metrics"
	"github.com/vhive-serverless/powersweep/monitor"
)

const (
	// EnergyChart is the file PlotSweep writes energy per run to
	EnergyChart = "energy.png"
	// PowerChart is the file PlotSweep writes mean power per run to
	PowerChart = "power.png"
)

// PlotTrace plots the value stored under key against time for one run
func PlotTrace(trace monitor.RunTrace, key, fileName string) error {
	pts := make(plotter.XYs, 0, len(trace.Samples))
	for _, s := range trace.Samples {
		if v, ok := s.Values[key]; ok {
			pts = append(pts, plotter.XY{X: s.Time, Y: v})
		}
	}
	if len(pts) == 0 {
		return errors.Errorf("trace holds no %q samples", key)
	}

	p := plot.New()
	p.Title.Text = strings.Join(trace.Args, " ")
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = key
	p.Y.Min = 0

	if err := plotutil.AddLinePoints(p, pts); err != nil {
		return errors.Wrap(err, "failed plotting trace")
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, fileName); err != nil {
		return errors.Wrapf(err, "failed saving plot %q", fileName)
	}
	return nil
}

// PlotTraces plots every run of the result into dir, one file per run
func PlotTraces(res *monitor.Result, key, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed creating %q", dir)
	}

	var files []string
	freqs, points := res.ThreadPoints()
	for i, tp := range points {
		for r, trace := range tp.Runs {
			name := filepath.Join(dir, fmt.Sprintf("trace_f%d_t%d_r%d.png", freqs[i], tp.Threads, r))
			if err := PlotTrace(trace, key, name); err != nil {
				log.WithError(err).WithField("file", name).Warn("Skipping trace plot")
				continue
			}
			files = append(files, name)
		}
	}

	return files, nil
}

// PlotSweep writes EnergyChart and PowerChart to dir. Each chart holds one
// line per frequency, thread count on the x-axis and the mean over the
// argument lists on the y-axis.
func PlotSweep(res *monitor.Result, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed creating %q", dir)
	}

	energy := func(s metrics.Summary) float64 { return s.EnergyJ }
	if err := plotSweep(res, energy, "energy (J)", filepath.Join(dir, EnergyChart)); err != nil {
		return err
	}

	power := func(s metrics.Summary) float64 { return s.MeanPowerW }
	return plotSweep(res, power, "mean power (W)", filepath.Join(dir, PowerChart))
}

func plotSweep(res *monitor.Result, value func(metrics.Summary) float64, yLabel, fileName string) error {
	type line struct {
		threads []float64
		values  []float64
	}

	var (
		freqs, points = res.ThreadPoints()
		lines         = make(map[int]*line)
		xValues       []float64
		yMax          float64
	)
	if len(points) == 0 {
		return errors.New("result holds no data point")
	}

	for i, tp := range points {
		if len(tp.Runs) == 0 {
			continue
		}
		samples := make([]float64, len(tp.Runs))
		for r, trace := range tp.Runs {
			samples[r] = value(trace.Summary)
		}
		mean, err := stats.Mean(samples)
		if err != nil {
			return errors.Wrap(err, "failed averaging runs")
		}

		l, ok := lines[freqs[i]]
		if !ok {
			l = &line{}
			lines[freqs[i]] = l
		}
		l.threads = append(l.threads, float64(tp.Threads))
		l.values = append(l.values, mean)
		xValues = append(xValues, float64(tp.Threads))
		yMax = math.Max(yMax, mean)
	}
	if len(lines) == 0 {
		return errors.New("result holds no run")
	}

	keys := make([]int, 0, len(lines))
	singles := true
	for f, l := range lines {
		keys = append(keys, f)
		singles = singles && len(l.threads) < 2
	}
	sort.Ints(keys)

	if yMax <= 0 {
		yMax = 1
	}

	var (
		graph  renderer
		colors = getStrokeColors()
	)
	ticks, xMin, xMax := ticks(xValues)
	if singles || len(ticks) < 2 {
		// a line needs two x values, draw one bar per point instead
		var bars []chart.Value
		for i, f := range keys {
			for p, threads := range lines[f].threads {
				bars = append(bars, barValue(fmt.Sprintf("%s t=%.0f", seriesName(f), threads), colors[i%len(colors)], lines[f].values[p]))
			}
		}
		graph = barGraph(yLabel, yMax*1.1, bars)
	} else {
		series := make([]chart.Series, 0, len(keys))
		for i, f := range keys {
			series = append(series, continuousSeries(seriesName(f), colors[i%len(colors)], lines[f].threads, lines[f].values))
		}
		graph = lineGraph("threads", yLabel, xMin, xMax, 0, yMax*1.1, series, ticks)
	}

	pngFile, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "failed creating %q", fileName)
	}
	defer pngFile.Close()

	if err := graph.Render(chart.PNG, pngFile); err != nil {
		return errors.Wrapf(err, "failed rendering %q", fileName)
	}

	log.WithField("file", fileName).Info("Plot finished")
	return nil
}

// Rows returns one summary row per run, labelled with its configuration
func Rows(res *monitor.Result) []metrics.Row {
	var rows []metrics.Row

	freqs, points := res.ThreadPoints()
	for i, tp := range points {
		for _, trace := range tp.Runs {
			label := fmt.Sprintf("%s t=%d %s", seriesName(freqs[i]), tp.Threads, strings.Join(trace.Args, " "))
			rows = append(rows, metrics.Row{Label: strings.TrimSpace(label), Summary: trace.Summary})
		}
	}

	return rows
}

func seriesName(freq int) string {
	if freq == 0 {
		return "dvfs"
	}
	return fmt.Sprintf("%.2fGHz", float64(freq)/1e6)
}

// ticks returns one tick per distinct thread count and the x-axis bounds
func ticks(xValues []float64) ([]chart.Tick, float64, float64) {
	seen := make(map[float64]bool)
	var distinct []float64
	for _, x := range xValues {
		if !seen[x] {
			seen[x] = true
			distinct = append(distinct, x)
		}
	}
	sort.Float64s(distinct)

	ticks := make([]chart.Tick, 0, len(distinct))
	for _, x := range distinct {
		ticks = append(ticks, chart.Tick{Value: x, Label: fmt.Sprintf("%.0f", x)})
	}

	return ticks, distinct[0], distinct[len(distinct)-1]
}

// renderer is satisfied by chart.Chart and chart.BarChart
type renderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// barValue returns a bar of the given color
func barValue(label string, color drawing.Color, value float64) chart.Value {
	return chart.Value{
		Label: label,
		Value: value,
		Style: chart.Style{
			Show:        true,
			StrokeWidth: 1,
			StrokeColor: color,
			FillColor:   color,
		},
	}
}

// barGraph returns a instance of chart.BarChart
func barGraph(yLabel string, yMax float64, bars []chart.Value) chart.BarChart {
	const barWidth, barSpacing = 60, 40

	width := chart.DefaultChartWidth
	if w := len(bars)*(barWidth+barSpacing) + 200; w > width {
		width = w
	}

	return chart.BarChart{
		Background: chart.Style{
			Padding: chart.Box{
				Top: 30,
			},
		},
		Width:      width,
		Height:     chart.DefaultChartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.StyleShow(),
		YAxis: chart.YAxis{
			Name:      yLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: yMax,
			},
		},
		Bars: bars,
	}
}

// continuousSeries returns a instance of chart.ContinuousSeries
func continuousSeries(name string, strokeColor drawing.Color, xValues, yValues []float64) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name: name,
		Style: chart.Style{
			Show:        true,
			StrokeWidth: 3,
			StrokeColor: strokeColor,
			DotWidth:    4,
			DotColor:    strokeColor,
		},
		XValues: xValues,
		YValues: yValues,
	}
}

// lineGraph returns a instance of chart.Chart
func lineGraph(xLabel, yLabel string, xMin, xMax, yMin, yMax float64, series []chart.Series, ticks []chart.Tick) chart.Chart {
	graph := chart.Chart{
		Background: chart.Style{
			Padding: chart.Box{
				Top: 30,
			},
		},
		XAxis: chart.XAxis{
			Name:      xLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range: &chart.ContinuousRange{
				Min: xMin,
				Max: xMax,
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:      yLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range: &chart.ContinuousRange{
				Min: yMin,
				Max: yMax,
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendThin(&graph),
	}
	return graph
}

func getStrokeColors() []drawing.Color {
	return []drawing.Color{
		{R: 2, G: 10, B: 55, A: 255},
		{R: 116, G: 62, B: 16, A: 255},
		{R: 0, G: 129, B: 65, A: 255},
		{R: 51, G: 139, B: 253, A: 255},
		{R: 94, G: 223, B: 251, A: 255},
		{R: 239, G: 255, B: 77, A: 255},
	}
}
