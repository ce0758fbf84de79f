// Package dsp provides stateless spectral analysis for EEG channel data:
// Welch power spectral density estimation, physiological band powers, and a
// heuristic signal quality score. All functions operate on a single channel's
// sample vector and never mutate their input.
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// MinWindow is the minimum number of samples required for spectral
// estimation. Below this the transform has no statistical support and all
// spectral outputs are defined as empty or zero.
const MinWindow = 64

// Band is a named closed-open frequency interval [Low, High) in Hz.
type Band struct {
	Name string
	Low  float64
	High float64
}

// Bands is the fixed catalogue of EEG frequency bands. It is shared,
// ordered, and must not be mutated.
var Bands = []Band{
	{Name: "delta", Low: 0.5, High: 4.0},
	{Name: "theta", Low: 4.0, High: 8.0},
	{Name: "alpha", Low: 8.0, High: 13.0},
	{Name: "beta", Low: 13.0, High: 30.0},
	{Name: "gamma", Low: 30.0, High: 50.0},
}

// BandNames returns the catalogue band names in catalogue order.
func BandNames() []string {
	names := make([]string, len(Bands))
	for i, b := range Bands {
		names[i] = b.Name
	}
	return names
}

// Config holds analyzer tuning. Zero values are replaced by defaults in
// NewAnalyzer, so Config{} is a valid starting point.
type Config struct {
	// MaxFreqHz truncates returned PSD vectors to frequencies at or below
	// this value. Default 60 Hz.
	MaxFreqHz float64

	// RMSMin and RMSMax bound the healthy RMS amplitude envelope in the
	// signal's native unit (µV for EEG). Defaults 0.5 and 200.
	RMSMin float64
	RMSMax float64

	// FlatlineStd is the standard deviation below which a channel is
	// treated as flatlined. Default 0.1.
	FlatlineStd float64

	// LineNoiseRatioMax is the maximum tolerated fraction of total spectral
	// power in the mains-frequency bands (48-52 and 58-62 Hz) before the
	// quality score is penalised. Default 0.4.
	LineNoiseRatioMax float64
}

// DefaultConfig returns the shipped analyzer defaults.
func DefaultConfig() Config {
	return Config{
		MaxFreqHz:         60.0,
		RMSMin:            0.5,
		RMSMax:            200.0,
		FlatlineStd:       0.1,
		LineNoiseRatioMax: 0.4,
	}
}

// Analyzer computes spectra, band powers and quality scores for single
// channels. It is stateless apart from configuration and safe for
// concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer, filling unset Config fields with the
// defaults from DefaultConfig.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.MaxFreqHz <= 0 {
		cfg.MaxFreqHz = def.MaxFreqHz
	}
	if cfg.RMSMin <= 0 {
		cfg.RMSMin = def.RMSMin
	}
	if cfg.RMSMax <= 0 {
		cfg.RMSMax = def.RMSMax
	}
	if cfg.FlatlineStd <= 0 {
		cfg.FlatlineStd = def.FlatlineStd
	}
	if cfg.LineNoiseRatioMax <= 0 {
		cfg.LineNoiseRatioMax = def.LineNoiseRatioMax
	}
	return &Analyzer{cfg: cfg}
}

// Config returns the analyzer's effective configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// PSD estimates the power spectral density of samples using Welch's method
// (segments of the largest power-of-two length that fits, 50% overlap,
// Hamming window) and truncates the result to MaxFreqHz.
//
// The returned vectors always have equal length and freqs is monotonically
// non-decreasing. Fewer than MinWindow samples yield empty (non-nil) slices.
func (a *Analyzer) PSD(samples []float64, rate int) (freqs, amps []float64) {
	freqs, amps = welch(samples, rate)
	return truncate(freqs, amps, a.cfg.MaxFreqHz)
}

// BandPowers computes the PSD once and integrates it over every catalogue
// band. A band that cannot be computed contributes 0.0; one band's failure
// never affects the others. The returned map always has an entry for every
// catalogue band.
func (a *Analyzer) BandPowers(samples []float64, rate int) map[string]float64 {
	powers := make(map[string]float64, len(Bands))
	freqs, amps := welch(samples, rate)
	for _, b := range Bands {
		p, err := bandPower(freqs, amps, b.Low, b.High)
		if err != nil {
			p = 0.0
		}
		powers[b.Name] = p
	}
	return powers
}

// BandPower integrates PSD amplitude over [low, high). It never fails:
// an empty PSD or a band outside the computed frequency range yields 0.0.
func BandPower(freqs, amps []float64, low, high float64) float64 {
	p, err := bandPower(freqs, amps, low, high)
	if err != nil {
		return 0.0
	}
	return p
}

// bandPower is the fallible integration primitive. The error return lets
// aggregators fold individual band failures to a zero default without
// inspecting slice shapes themselves.
func bandPower(freqs, amps []float64, low, high float64) (float64, error) {
	if len(freqs) == 0 || len(freqs) != len(amps) {
		return 0, errEmptySpectrum
	}
	var sum float64
	n := 0
	for i, f := range freqs {
		if f >= low && f < high {
			sum += amps[i]
			n++
		}
	}
	if n == 0 {
		return 0, errBandOutOfRange
	}
	// Rectangular integration: bins are evenly spaced at rate/nfft.
	df := 0.0
	if len(freqs) > 1 {
		df = freqs[1] - freqs[0]
	}
	if df <= 0 {
		return sum, nil
	}
	return sum * df, nil
}

// QualityScore returns a heuristic signal quality in [0, 1]. The score
// starts at 1.0 and is multiplicatively penalised for an RMS amplitude
// outside the healthy envelope, a near-zero standard deviation (flatline),
// and mains-frequency contamination. Fewer than MinWindow samples scores 0.
func (a *Analyzer) QualityScore(samples []float64, rate int) float64 {
	if len(samples) < MinWindow {
		return 0.0
	}

	score := 1.0

	rms := math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
	switch {
	case rms < a.cfg.RMSMin:
		score *= 0.2 // likely flatline
	case rms > a.cfg.RMSMax:
		score *= 0.3 // likely artifact or saturation
	}

	if stddev(samples) < a.cfg.FlatlineStd {
		score *= 0.1
	}

	// Line-noise contamination: combined power around the two mains
	// frequencies as a fraction of total spectral power. Skipped entirely
	// when the spectrum is empty or carries no power.
	freqs, amps := welch(samples, rate)
	if total := floats.Sum(amps); total > 0 {
		noise := BandPower(freqs, amps, 48.0, 52.0) + BandPower(freqs, amps, 58.0, 62.0)
		df := 0.0
		if len(freqs) > 1 {
			df = freqs[1] - freqs[0]
		}
		totalPower := total
		if df > 0 {
			totalPower = total * df
		}
		if totalPower > 0 && noise/totalPower > a.cfg.LineNoiseRatioMax {
			score *= 0.5
		}
	}

	return math.Max(0.0, math.Min(1.0, score))
}

// welch computes the full-range one-sided Welch PSD estimate. Both returned
// slices are empty (non-nil) when fewer than MinWindow samples are supplied.
func welch(samples []float64, rate int) (freqs, amps []float64) {
	nfft := largestPow2(len(samples))
	if nfft < MinWindow || rate <= 0 {
		return []float64{}, []float64{}
	}

	fft := fourier.NewFFT(nfft)
	nbins := nfft/2 + 1
	acc := make([]float64, nbins)
	coeffs := make([]complex128, nbins)
	seg := make([]float64, nfft)

	// Window power normalisation term for the Hamming window.
	u := windowPower(nfft)

	step := nfft / 2 // 50% overlap
	segments := 0
	for start := 0; start+nfft <= len(samples); start += step {
		copy(seg, samples[start:start+nfft])
		window.Hamming(seg)
		fft.Coefficients(coeffs, seg)
		for k := 0; k < nbins; k++ {
			p := real(coeffs[k])*real(coeffs[k]) + imag(coeffs[k])*imag(coeffs[k])
			p /= float64(rate) * u
			// One-sided spectrum: interior bins carry the power of both
			// the positive and negative frequency.
			if k != 0 && k != nbins-1 {
				p *= 2
			}
			acc[k] += p
		}
		segments++
	}
	if segments == 0 {
		return []float64{}, []float64{}
	}

	freqs = make([]float64, nbins)
	amps = make([]float64, nbins)
	for k := 0; k < nbins; k++ {
		freqs[k] = fft.Freq(k) * float64(rate)
		amps[k] = acc[k] / float64(segments)
	}
	return freqs, amps
}

// truncate drops entries with frequency above maxFreq, keeping freqs and
// amps aligned index-for-index.
func truncate(freqs, amps []float64, maxFreq float64) ([]float64, []float64) {
	cut := len(freqs)
	for i, f := range freqs {
		if f > maxFreq {
			cut = i
			break
		}
	}
	return freqs[:cut], amps[:cut]
}

// windowPower returns sum(w[i]^2) for a Hamming window of length n.
func windowPower(n int) float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0
	}
	window.Hamming(w)
	return floats.Dot(w, w)
}

// stddev is the population standard deviation of x.
func stddev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := floats.Sum(x) / float64(len(x))
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)))
}

// largestPow2 returns the largest power of two less than or equal to n,
// or 0 for non-positive n.
func largestPow2(n int) int {
	if n <= 0 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p <<= 1
	}
	return p
}
