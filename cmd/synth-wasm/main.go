//go:build js && wasm

package main

import (
	"bytes"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-polysynth/graph/offline"
	"github.com/cwbudde/algo-polysynth/internal/wavio"
	"github.com/cwbudde/algo-polysynth/irsynth"
	"github.com/cwbudde/algo-polysynth/synth"
)

const blockFrames = 128

var (
	ctx          *offline.Context
	inst         *synth.FMSynth
	verb         *offline.Convolver
	outputBuffer []float32
)

func main() {
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmSetSustain", js.FuncOf(wasmSetSustain))
	js.Global().Set("wasmSetParam", js.FuncOf(wasmSetParam))
	js.Global().Set("wasmPanic", js.FuncOf(wasmPanic))
	js.Global().Set("wasmLoadIR", js.FuncOf(wasmLoadIR))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM synth module loaded")
	<-c
}

// wasmInit(sampleRate, [polyphony])
func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate := args[0].Int()
	cfg := synth.DefaultFMConfig()
	if len(args) > 1 && args[1].Int() > 0 {
		cfg.MaxPolyphony = args[1].Int()
	}

	ctx = offline.NewContext(float64(sampleRate))
	s, err := synth.NewFMSynth(ctx, cfg)
	if err != nil {
		println("Synth init failed:", err.Error())
		return nil
	}
	inst = s

	room := irsynth.DefaultRoomConfig()
	room.SampleRate = sampleRate
	left, right, err := irsynth.GenerateRoom(room)
	if err != nil {
		println("Room IR failed:", err.Error())
		return nil
	}
	setImpulse(left, right)

	outputBuffer = make([]float32, blockFrames*2)
	println("Synth initialized at", sampleRate, "Hz with", cfg.MaxPolyphony, "voices")
	return nil
}

func setImpulse(left, right []float32) {
	conv, err := ctx.NewConvolver(left, right)
	if err != nil {
		println("Convolver failed:", err.Error())
		return
	}
	inst.Disconnect()
	if verb != nil {
		ctx.Release(verb)
	}
	verb = conv
	ctx.Connect(verb, ctx.Destination())
	inst.Connect(ctx.Destination(), verb)
}

func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || inst == nil {
		return nil
	}
	inst.NoteOn(args[0].Int(), args[1].Int())
	return nil
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || inst == nil {
		return nil
	}
	inst.NoteOff(args[0].Int())
	return nil
}

func wasmSetSustain(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || inst == nil {
		return nil
	}
	if args[0].Bool() {
		inst.PedalDown()
	} else {
		inst.PedalUp()
	}
	return nil
}

// wasmSetParam(id, value) takes a number or an enum choice name.
func wasmSetParam(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || inst == nil {
		return false
	}
	id := args[0].String()
	var v float64
	switch args[1].Type() {
	case js.TypeString:
		idx, ok := inst.Params().EnumIndex(id, args[1].String())
		if !ok {
			println("Unknown choice", args[1].String(), "for", id)
			return false
		}
		v = float64(idx)
	case js.TypeNumber:
		v = args[1].Float()
	default:
		return false
	}
	inst.SetParamValues(map[string]float64{id: v})
	return true
}

func wasmPanic(this js.Value, args []js.Value) interface{} {
	if inst != nil {
		inst.Panic()
	}
	return nil
}

// wasmLoadIR(arrayBuffer) replaces the verb impulse with a WAV file.
func wasmLoadIR(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || inst == nil {
		return nil
	}
	data := js.Global().Get("Uint8Array").New(args[0])
	length := data.Get("byteLength").Int()
	if length == 0 {
		println("IR data is empty")
		return nil
	}
	irData := make([]byte, length)
	js.CopyBytesToGo(irData, data)

	channels, rate, err := wavio.Decode(bytes.NewReader(irData))
	if err != nil {
		println("Failed to decode IR:", err.Error())
		return nil
	}
	for i, ch := range channels {
		if channels[i], err = wavio.Resample(ch, rate, int(ctx.SampleRate())); err != nil {
			println("Failed to resample IR:", err.Error())
			return nil
		}
	}
	right := channels[0]
	if len(channels) > 1 {
		right = channels[1]
	}
	setImpulse(channels[0], right)
	println("IR loaded successfully:", length, "bytes")
	return nil
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || inst == nil {
		return 0
	}
	numFrames := min(args[0].Int(), blockFrames)

	output := ctx.Render(numFrames)
	copy(outputBuffer, output)

	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
