package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/cwbudde/algo-polysynth/analysis"
	"github.com/cwbudde/algo-polysynth/graph/offline"
	"github.com/cwbudde/algo-polysynth/internal/wavio"
	"github.com/cwbudde/algo-polysynth/preset"
	"github.com/cwbudde/algo-polysynth/synth"
)

func main() {
	instrument := flag.String("instrument", "", "Instrument override: fm, sampler or drumkit")
	patchPath := flag.String("patch", "", "Patch JSON file path (optional)")
	regionsPath := flag.String("regions", "", "Region list path or URL override")
	polyphony := flag.Int("polyphony", 0, "Voice count override (0 = patch)")
	note := flag.Int("note", 69, "MIDI note number (69 = A4 = 440 Hz)")
	velocity := flag.Int("velocity", 100, "MIDI velocity (1-127)")
	duration := flag.Float64("duration", 2.0, "Duration in seconds for single-note renders")
	releaseAfter := flag.Float64("release-after", 1.0, "Send NoteOff after this many seconds (negative holds the note)")
	midiPath := flag.String("midi", "", "Standard MIDI File to render instead of a single note")
	channel := flag.Int("channel", -1, "MIDI channel filter (0-15, -1 = all)")
	tail := flag.Float64("tail", 2.0, "Seconds rendered after the last MIDI event")
	decayDBFS := flag.Float64("decay-dbfs", math.Inf(1), "Auto-stop when stereo block RMS falls below this dBFS (e.g. -90). Disabled by default")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required to stop in auto-decay mode")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum render duration in seconds when using -decay-dbfs")
	maxDuration := flag.Float64("max-duration", 20.0, "Maximum seconds after the last event when using -decay-dbfs")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	verb := flag.Float64("verb", -1, "Verb send level 0-1 (negative = patch)")
	irPath := flag.String("ir", "", "Verb IR WAV path override (default: synthetic room)")
	irSeed := flag.Int64("ir-seed", 1, "Seed for the synthetic room IR")
	output := flag.String("output", "output.wav", "Output WAV file path")
	normalize := flag.Float64("normalize", 0, "Peak-normalize the output to this level (0 = off)")
	report := flag.String("report", "", "Write a JSON analysis report to this path (- for stdout)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	patch := preset.NewDefaultPatch()
	if *patchPath != "" {
		var err error
		if patch, err = preset.LoadJSON(*patchPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading patch %q: %v\n", *patchPath, err)
			os.Exit(1)
		}
	}
	if *instrument != "" {
		k, ok := synth.ParseKind(strings.TrimSpace(*instrument))
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown instrument %q (expected fm, sampler or drumkit)\n", *instrument)
			os.Exit(1)
		}
		patch.Kind = k
	}
	if *regionsPath != "" {
		patch.RegionsPath = *regionsPath
	}
	if *polyphony > 0 {
		patch.Polyphony = *polyphony
	}
	if *irPath != "" {
		patch.IRWavPath = *irPath
	}
	if patch.Kind != synth.KindFM && patch.RegionsPath == "" {
		fmt.Fprintf(os.Stderr, "A %s instrument needs -regions or a patch with regions\n", patch.Kind)
		os.Exit(1)
	}

	ctx := offline.NewContext(float64(*sampleRate))
	inst, err := buildInstrument(context.Background(), ctx, patch, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building %s instrument: %v\n", patch.Kind, err)
		os.Exit(1)
	}
	if *verb >= 0 {
		inst.SetParamValues(map[string]float64{synth.ParamVerb: *verb})
	}

	if send := inst.Params().Value(synth.ParamVerb); send > 0 {
		left, right, err := verbImpulse(patch.IRWavPath, *sampleRate, *irSeed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading verb IR: %v\n", err)
			os.Exit(1)
		}
		conv, err := ctx.NewConvolver(left, right)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating convolver: %v\n", err)
			os.Exit(1)
		}
		ctx.Connect(conv, ctx.Destination())
		inst.Connect(ctx.Destination(), conv)
		irName := patch.IRWavPath
		if irName == "" {
			irName = "synthetic room"
		}
		fmt.Printf("Verb send %.2f through %s (%d frames)\n", send, irName, len(left))
	} else {
		inst.Connect(ctx.Destination(), nil)
	}

	var events []event
	end := *duration
	if *midiPath != "" {
		if events, err = readMIDI(*midiPath, *channel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		end = lastEventTime(events) + *tail
		fmt.Printf("Rendering %d MIDI events from %s on %s for %.2f seconds at %d Hz...\n", len(events), *midiPath, patch.Kind, end, *sampleRate)
	} else {
		events = singleNote(*note, *velocity, *releaseAfter)
		fmt.Printf("Rendering note %d, velocity %d on %s for %.2f seconds at %d Hz...\n", *note, *velocity, patch.Kind, end, *sampleRate)
	}

	var stop stopRule
	if !math.IsInf(*decayDBFS, 1) {
		stop = stopRule{
			threshold: math.Pow(10.0, *decayDBFS/20.0),
			hold:      *decayHoldBlocks,
			minFrames: int(float64(*sampleRate) * (*minDuration)),
		}
		end = lastEventTime(events) + *maxDuration
	}
	maxFrames := max(int(float64(*sampleRate)*end), 1)

	samples := render(ctx, inst, events, maxFrames, stop)
	frames := len(samples) / 2
	if stop.threshold > 0 {
		fmt.Printf("Auto-stop at %d frames (%.3fs), threshold %.1f dBFS\n", frames, float64(frames)/float64(*sampleRate), *decayDBFS)
	}

	if *normalize > 0 {
		wavio.Normalize(samples, *normalize)
	}
	if err := wavio.WriteStereoInterleaved(*output, samples, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, frames)

	if *report != "" {
		if err := writeReport(*report, analysis.Summarize(samples, *sampleRate)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
	}
}

func writeReport(path string, s analysis.Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
