package wire

import (
	"bytes"
	"strings"
)

// MaxFrameSize is the largest frame body between markers: packet id, length,
// a maximal CBOR body and the checksum.
const MaxFrameSize = 1 + 2 + 65535 + 4

// LineFunc receives firmware debug lines.
type LineFunc func(line string)

// Frame is a complete raw packet cut out of the byte stream, markers removed.
type Frame struct {
	Kind Kind
	Raw  []byte
}

// Framer splits the serial byte stream into debug text and binary frames.
//
// Two scans run over the same bytes: a line scanner that forwards lines
// starting with DebugPrefix, and a marker scanner that cuts frames between
// start and end markers. The protocol has no escaping, so a payload that
// happens to contain a marker desynchronizes the current frame; the checksum
// then rejects it and the firmware resends.
type Framer struct {
	onDebug LineFunc

	buf       []byte
	packet    []byte
	receiving [2]bool // indexed by Kind
	line      []byte

	discarded uint64
}

// NewFramer creates a Framer. onDebug may be nil.
func NewFramer(onDebug LineFunc) *Framer {
	return &Framer{onDebug: onDebug}
}

// Discarded returns how many bytes were dropped outside frames or with an
// abandoned frame.
func (f *Framer) Discarded() uint64 {
	return f.discarded
}

// Feed consumes data and returns any frames completed by it. Bytes of an
// incomplete marker are held back until the next call.
func (f *Framer) Feed(data []byte) []Frame {
	for _, b := range data {
		f.scanLine(b)
	}

	f.buf = append(f.buf, data...)

	var frames []Frame
	i := 0
	for len(f.buf)-i >= len(Marker{}) {
		window := f.buf[i : i+4]
		switch {
		case bytes.Equal(window, HeaderStart[:]):
			f.open(KindHeader)
			i += 4
		case bytes.Equal(window, HeaderEnd[:]):
			if fr, ok := f.close(KindHeader); ok {
				frames = append(frames, fr)
			}
			i += 4
		case bytes.Equal(window, ChunkStart[:]):
			f.open(KindChunk)
			i += 4
		case bytes.Equal(window, ChunkEnd[:]):
			if fr, ok := f.close(KindChunk); ok {
				frames = append(frames, fr)
			}
			i += 4
		case f.receiving[KindHeader] || f.receiving[KindChunk]:
			f.packet = append(f.packet, f.buf[i])
			i++
			if len(f.packet) > MaxFrameSize {
				f.drop()
			}
		default:
			f.discarded++
			i++
		}
	}
	f.buf = append(f.buf[:0], f.buf[i:]...)

	return frames
}

func (f *Framer) open(kind Kind) {
	f.discarded += uint64(len(f.packet))
	f.receiving = [2]bool{}
	f.receiving[kind] = true
	f.packet = f.packet[:0]
}

// drop abandons the open frame and counts its bytes as discarded.
func (f *Framer) drop() {
	f.discarded += uint64(len(f.packet))
	f.receiving = [2]bool{}
	f.packet = f.packet[:0]
}

// close ends the frame of the given kind. An end marker that does not match
// the open frame drops whatever was accumulated.
func (f *Framer) close(kind Kind) (Frame, bool) {
	open := f.receiving[kind]
	f.receiving = [2]bool{}
	defer func() { f.packet = f.packet[:0] }()

	if !open {
		f.discarded += uint64(len(f.packet))
		return Frame{}, false
	}
	if len(f.packet) == 0 {
		return Frame{}, false
	}
	return Frame{Kind: kind, Raw: append([]byte(nil), f.packet...)}, true
}

func (f *Framer) scanLine(b byte) {
	f.line = append(f.line, b)

	if b == '\n' {
		text := strings.TrimSpace(strings.ToValidUTF8(string(f.line), "�"))
		if f.onDebug != nil && strings.HasPrefix(text, DebugPrefix) {
			f.onDebug(text)
		}
		f.line = f.line[:0]
		return
	}

	if len(f.line) > MaxDebugLineLen {
		f.line = f.line[:0]
	}
}
