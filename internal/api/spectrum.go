package api

import (
	"fmt"
	"image/color"
	"net/http"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var spectrumPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
}

// handleSpectrumPNG renders the latest per-channel power spectrum as a PNG
// from the scheduler's last-frame cache.
func (s *Server) handleSpectrumPNG(w http.ResponseWriter, r *http.Request) {
	frame := s.scheduler.LastFrame()
	if frame == nil || len(frame.Freqs) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no spectrum available yet")
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Power Spectral Density (ts=%.3f)", frame.Timestamp)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Power"
	p.Legend.Top = true

	names := make([]string, 0, len(frame.Channels))
	for name := range frame.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		ch := frame.Channels[name]
		if len(ch.PSD) != len(frame.Freqs) {
			continue
		}
		pts := make(plotter.XYs, len(ch.PSD))
		for i := range ch.PSD {
			pts[i] = plotter.XY{X: frame.Freqs[i], Y: ch.PSD[i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build line: %v", err))
			return
		}
		line.Width = vg.Points(1)
		line.Color = spectrumPalette[i%len(spectrumPalette)]
		p.Add(line)
		p.Legend.Add(name, line)
	}

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		s.logger.Printf("failed to write spectrum PNG: %v", err)
	}
}
