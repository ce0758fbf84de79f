// Package acquisition defines the data-source contract the streaming
// pipeline consumes, plus a synthetic in-process source for development and
// tests. Real hardware drivers live behind the same interface and own their
// own session lifecycle; the pipeline never manages devices.
package acquisition

// Source provides non-destructive access to the most recent samples of a
// multichannel acquisition ring buffer, plus static channel metadata.
type Source interface {
	// ReadLatest returns up to numSamples of the most recent samples for
	// every physical channel, row-major by channel index. It may return
	// fewer columns than requested while the buffer is filling and never
	// fails for "not enough data".
	ReadLatest(numSamples int) [][]float64

	// SampleRate returns the acquisition rate in Hz.
	SampleRate() int

	// ChannelIndices returns the physical row indices of the biosignal
	// channels, paired by position with ChannelNames.
	ChannelIndices() []int

	// ChannelNames returns the human-readable biosignal channel names.
	ChannelNames() []string
}
