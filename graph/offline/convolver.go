package offline

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

const convolverPartSize = 128

// Convolver convolves the mono sum of its inputs with a stereo impulse
// response. Output lags the input by one partition.
type Convolver struct {
	nodeBase
	leftOLA  *dspconv.StreamingOverlapAddT[float32, complex64]
	rightOLA *dspconv.StreamingOverlapAddT[float32, complex64]

	in       []float32
	leftOut  []float32
	rightOut []float32
	pos      int
}

func newConvolver(leftIR, rightIR []float32) (*Convolver, error) {
	if len(leftIR) == 0 {
		leftIR = []float32{1.0}
	}
	if len(rightIR) == 0 {
		rightIR = leftIR
	}
	leftOLA, err := dspconv.NewStreamingOverlapAdd32(leftIR, convolverPartSize)
	if err != nil {
		return nil, fmt.Errorf("left impulse response: %w", err)
	}
	rightOLA, err := dspconv.NewStreamingOverlapAdd32(rightIR, convolverPartSize)
	if err != nil {
		return nil, fmt.Errorf("right impulse response: %w", err)
	}
	return &Convolver{
		leftOLA:  leftOLA,
		rightOLA: rightOLA,
		in:       make([]float32, convolverPartSize),
		leftOut:  make([]float32, convolverPartSize),
		rightOut: make([]float32, convolverPartSize),
	}, nil
}

// Reset clears convolver history and the pending partition.
func (c *Convolver) Reset() {
	c.leftOLA.Reset()
	c.rightOLA.Reset()
	for i := range c.in {
		c.in[i] = 0
		c.leftOut[i] = 0
		c.rightOut[i] = 0
	}
	c.pos = 0
}

func (c *Convolver) process() (float64, float64) {
	l, r := c.sumInputs()
	c.in[c.pos] = float32(0.5 * (l + r))
	outL := float64(c.leftOut[c.pos])
	outR := float64(c.rightOut[c.pos])
	c.pos++
	if c.pos == convolverPartSize {
		c.pos = 0
		errL := c.leftOLA.ProcessBlockTo(c.leftOut, c.in)
		errR := c.rightOLA.ProcessBlockTo(c.rightOut, c.in)
		if errL != nil || errR != nil {
			// Pass the dry block through rather than dropping it.
			copy(c.leftOut, c.in)
			copy(c.rightOut, c.in)
		}
	}
	return dspcore.FlushDenormals(outL), dspcore.FlushDenormals(outR)
}
