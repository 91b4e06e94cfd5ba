package notation

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	ticksPerBeat = 480
	// 500000 microseconds per beat = 120 BPM.
	tempoMicroseconds = 500000
	ticksPerSecond    = ticksPerBeat * 2
)

// RenderSMF serializes a note sequence as a format-0 Standard MIDI File with
// a fixed 120 BPM tempo and a program change for the given instrument. An
// empty sequence renders the placeholder note so the file is always playable.
func RenderSMF(instrument string, notes []NoteEvent) []byte {
	prepared := prepare(notes)
	program := InstrumentProgram(instrument)

	var track bytes.Buffer
	writeVarint(&track, 0)
	track.Write([]byte{0xFF, 0x51, 0x03})
	track.Write([]byte{
		byte(tempoMicroseconds >> 16 & 0xFF),
		byte(tempoMicroseconds >> 8 & 0xFF),
		byte(tempoMicroseconds & 0xFF),
	})

	writeVarint(&track, 0)
	track.Write([]byte{0xC0, byte(program)})

	// Notes are laid out sequentially; an onset earlier than the running
	// position collapses to delta zero, same as overlapping input.
	current := 0
	for _, n := range prepared {
		startTicks := int(math.Round(n.Onset * ticksPerSecond))
		delta := startTicks - current
		if delta < 0 {
			delta = 0
			startTicks = current
		}
		durationTicks := int(math.Round(n.Duration * ticksPerSecond))
		if durationTicks < 1 {
			durationTicks = 1
		}

		writeVarint(&track, delta)
		track.Write([]byte{0x90, byte(n.Pitch), byte(n.Velocity)})
		writeVarint(&track, durationTicks)
		track.Write([]byte{0x80, byte(n.Pitch), 0x00})

		current = startTicks + durationTicks
	}

	writeVarint(&track, 0)
	track.Write([]byte{0xFF, 0x2F, 0x00})

	var out bytes.Buffer
	out.WriteString("MThd")
	binary.Write(&out, binary.BigEndian, uint32(6))
	binary.Write(&out, binary.BigEndian, uint16(0)) // format 0
	binary.Write(&out, binary.BigEndian, uint16(1)) // single track
	binary.Write(&out, binary.BigEndian, uint16(ticksPerBeat))

	out.WriteString("MTrk")
	binary.Write(&out, binary.BigEndian, uint32(track.Len()))
	out.Write(track.Bytes())

	return out.Bytes()
}

// writeVarint emits a MIDI variable-length quantity.
func writeVarint(buf *bytes.Buffer, value int) {
	if value < 0 {
		value = 0
	}
	encoded := []byte{byte(value & 0x7F)}
	value >>= 7
	for value > 0 {
		encoded = append(encoded, byte(value&0x7F)|0x80)
		value >>= 7
	}
	for i := len(encoded) - 1; i >= 0; i-- {
		buf.WriteByte(encoded[i])
	}
}
