package main

import (
	"math"

	"github.com/cwbudde/algo-polysynth/graph/offline"
	"github.com/cwbudde/algo-polysynth/synth"
)

const blockSize = 128

// stopRule ends a render early once the output stays below threshold for
// hold consecutive blocks after minFrames. A zero threshold disables it.
type stopRule struct {
	threshold float64
	hold      int
	minFrames int
}

// render plays events into inst and renders until maxFrames or the stop rule
// fires. Events land on their exact frame; blocks are split around them.
func render(ctx *offline.Context, inst synth.Instrument, events []event, maxFrames int, stop stopRule) []float32 {
	samples := make([]float32, 0, maxFrames*2)
	sr := ctx.SampleRate()
	next := 0
	below := 0
	frame := 0
	for frame < maxFrames {
		for next < len(events) && int(math.Round(events[next].at*sr)) <= frame {
			events[next].apply(inst)
			next++
		}
		n := min(blockSize, maxFrames-frame)
		if next < len(events) {
			n = min(n, int(math.Round(events[next].at*sr))-frame)
		}
		block := ctx.Render(n)
		samples = append(samples, block...)
		frame += n

		if stop.threshold <= 0 || next < len(events) || frame < stop.minFrames || n < blockSize {
			continue
		}
		if stereoRMS(block) < stop.threshold {
			below++
			if below >= max(stop.hold, 1) {
				break
			}
		} else {
			below = 0
		}
	}
	return samples
}

func stereoRMS(interleaved []float32) float64 {
	if len(interleaved) == 0 {
		return 0
	}
	var sum float64
	for _, s := range interleaved {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(interleaved)))
}
