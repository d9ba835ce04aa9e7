package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-polysynth/analysis"
	"github.com/cwbudde/algo-polysynth/internal/wavio"
)

func main() {
	sampleRate := flag.Int("sample-rate", 0, "Resample to this rate before analysis (0 = file rate)")
	jsonOut := flag.Bool("json", false, "Print summaries as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: synth-analyze [flags] file.wav...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	results := make(map[string]analysis.Summary, flag.NArg())
	for _, path := range flag.Args() {
		s, err := summarizeFile(path, *sampleRate)
		if err != nil {
			die("%s: %v", path, err)
		}
		results[path] = s
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("%-32s %9s %9s %9s %11s %10s\n", "File", "Seconds", "Peak dB", "RMS", "Decay dB/s", "Pitch Hz")
	for _, path := range flag.Args() {
		s := results[path]
		fmt.Printf("%-32s %9.3f %9.1f %9.4f %11.1f %10.2f\n", path, s.Duration, s.PeakDB, s.RMS, s.DecayDBPerS, s.DominantHz)
	}
}

// summarizeFile reads a WAV file as stereo, duplicating mono and dropping
// channels past the second.
func summarizeFile(path string, sampleRate int) (analysis.Summary, error) {
	channels, rate, err := wavio.ReadFile(path)
	if err != nil {
		return analysis.Summary{}, err
	}
	if sampleRate > 0 && sampleRate != rate {
		for i, ch := range channels {
			if channels[i], err = wavio.Resample(ch, rate, sampleRate); err != nil {
				return analysis.Summary{}, err
			}
		}
		rate = sampleRate
	}
	left := channels[0]
	right := left
	if len(channels) > 1 {
		right = channels[1]
	}
	n := min(len(left), len(right))
	data := make([]float32, n*2)
	for i := range n {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return analysis.Summarize(data, rate), nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
