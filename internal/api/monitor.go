package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/antoszy/eeg/internal/dsp"
)

// handleMonitor renders a band-power bar chart (HTML) from the last
// delivered frame using go-echarts. This is a debugging view reading the
// scheduler's cache; it never touches the tick path.
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	frame := s.scheduler.LastFrame()
	if frame == nil {
		s.writeJSONError(w, http.StatusNotFound, "no frame delivered yet; connect a websocket client first")
		return
	}

	// Sort channel names for a stable legend.
	names := make([]string, 0, len(frame.Channels))
	for name := range frame.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	bands := dsp.BandNames()
	axis := make([]string, len(bands))
	copy(axis, bands)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "EEG Band Powers", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "EEG Band Powers",
			Subtitle: fmt.Sprintf("frame ts=%.3f channels=%d", frame.Timestamp, len(names)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(axis)

	for _, name := range names {
		ch := frame.Channels[name]
		data := make([]opts.BarData, len(bands))
		for i, band := range bands {
			data[i] = opts.BarData{Value: ch.BandPowers[band]}
		}
		bar.AddSeries(name, data)
	}

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
