package dsp

import "errors"

var (
	errEmptySpectrum  = errors.New("dsp: empty or mismatched spectrum")
	errBandOutOfRange = errors.New("dsp: band outside computed frequency range")
)
