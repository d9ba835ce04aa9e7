// Package graph defines the signal-graph abstraction the synthesis core renders
// through. A backend provides nodes, automatable parameters and edge operations;
// the core only decides what to connect and which curves to schedule.
package graph

// Input is anything a node output can be connected to: another node or a Param.
type Input interface {
	Label() string
}

// Node produces a signal.
type Node interface {
	Input
}

// Param is an automatable scalar. Connected node outputs are summed onto its
// scheduled value.
type Param interface {
	Input
	Value() float64
	SetValue(v float64)
	SetValueAtTime(v float64, t float64)
	LinearRampToValueAtTime(v float64, t float64)
	SetTargetAtTime(target float64, start float64, timeConstant float64)
	CancelScheduledValues(t float64)
}

// Waveform selects an oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
	WavePWM
)

var waveformNames = [...]string{"sine", "square", "sawtooth", "triangle", "pwm"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return "unknown"
	}
	return waveformNames[w]
}

// FilterType selects a filter response. FilterOff passes the signal through.
type FilterType int

const (
	FilterOff FilterType = iota
	FilterLowpass
	FilterHighpass
	FilterBandpass
)

var filterNames = [...]string{"off", "lowpass", "highpass", "bandpass"}

func (f FilterType) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return "unknown"
	}
	return filterNames[f]
}

// Gain multiplies the sum of its inputs by Gain().
type Gain interface {
	Node
	Gain() Param
}

// Constant outputs Offset() plus nothing else; envelopes drive its offset.
type Constant interface {
	Node
	Offset() Param
}

// Oscillator is a free-running periodic source.
type Oscillator interface {
	Node
	Frequency() Param
	// Width is the pulse width used by WavePWM, in [-1,1] around a square.
	Width() Param
	SetWaveform(w Waveform)
	Waveform() Waveform
}

// Panner places its (mono-summed) input in the stereo field.
type Panner interface {
	Node
	Pan() Param
}

// Filter is a two-pole filter.
type Filter interface {
	Node
	SetType(t FilterType)
	Type() FilterType
	Frequency() Param
	Q() Param
}

// BufferSource plays a Buffer once or in a loop.
type BufferSource interface {
	Node
	PlaybackRate() Param
	// SetLoop enables looping between start and end (seconds).
	SetLoop(enabled bool, start float64, end float64)
	Start(when float64, offset float64)
	Stop(when float64)
}

// Buffer holds decoded, de-interleaved sample data.
type Buffer struct {
	SampleRate float64
	Channels   [][]float32
	// SourceRate is the rate of the file the data was decoded from, before
	// any resampling. Zero means SampleRate.
	SourceRate float64
}

// SourceSeconds converts a frame position in the original file to seconds.
func (b *Buffer) SourceSeconds(frame float64) float64 {
	rate := b.SourceRate
	if rate <= 0 {
		rate = b.SampleRate
	}
	if rate <= 0 {
		return 0
	}
	return frame / rate
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / b.SampleRate
}

// Graph creates nodes and edits edges. Implementations need not be safe for
// concurrent use; the core serializes all calls.
type Graph interface {
	SampleRate() float64
	// Now is the current render clock in seconds.
	Now() float64
	NewGain(gain float64) Gain
	NewConstant(offset float64) Constant
	NewOscillator(w Waveform, frequency float64) Oscillator
	NewPanner(pan float64) Panner
	NewFilter(t FilterType, frequency float64, q float64) Filter
	NewBufferSource(b *Buffer) BufferSource
	// NewNoteToFrequency converts a signal in MIDI note units to Hz.
	NewNoteToFrequency() Node
	Connect(src Node, dst Input)
	Disconnect(src Node, dst Input)
	// Release disconnects n entirely and frees it.
	Release(n Node)
}
