package networking

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"file_dump/constants"
)

var (
	// ErrStringTooLong means an encoded string does not fit its 16 bit length prefix
	ErrStringTooLong = errors.New("encoded string longer than 65535 bytes")
	// ErrInvalidFrameLength means a frame would be empty or longer than allowed
	ErrInvalidFrameLength = errors.New("invalid frame length")
)

// EncodeUTF encodes s as a 2 byte big endian length followed by modified UTF-8,
// the string form the ingestion service reads back.
// NUL becomes 0xC0 0x80 and characters outside the BMP become surrogate pairs.
func EncodeUTF(s string) ([]byte, error) {
	out := make([]byte, 2, len(s)+2)
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = appendThreeByte(out, r)
		default:
			r -= 0x10000
			out = appendThreeByte(out, 0xD800+(r>>10))
			out = appendThreeByte(out, 0xDC00+(r&0x3FF))
		}
	}
	length := len(out) - 2
	if length > constants.MAX_UTF_LENGTH {
		return nil, fmt.Errorf("%w: %d", ErrStringTooLong, length)
	}
	binary.BigEndian.PutUint16(out[:2], uint16(length))
	return out, nil
}

func appendThreeByte(out []byte, r rune) []byte {
	return append(out, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
}

// WriteUTF writes a length prefixed string
func WriteUTF(w io.Writer, s string) error {
	encoded, err := EncodeUTF(s)
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// WriteInt64 writes v as 8 bytes big endian
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// WriteFrameHeader writes a 4 byte big endian signed length
func WriteFrameHeader(w io.Writer, length int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(length))
	_, err := w.Write(buf[:])
	return err
}

// WriteEOF writes the end of file marker, a frame header of -1 with no payload
func WriteEOF(w io.Writer) error {
	return WriteFrameHeader(w, constants.EOF_MARKER)
}

// ReadBool reads a single byte, any non-zero value is true
func ReadBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// FrameWriter splits chunks into length prefixed frames and flushes each frame
type FrameWriter struct {
	writer    *bufio.Writer
	blockSize int
	frames    int64
	written   int64
}

// NewFrameWriter wraps w. blockSize is the largest payload a frame may carry.
func NewFrameWriter(w io.Writer, blockSize int) *FrameWriter {
	if blockSize <= 0 {
		panic("block size must be positive")
	}
	return &FrameWriter{
		writer:    bufio.NewWriterSize(w, blockSize+4),
		blockSize: blockSize,
	}
}

// WriteFrame writes a single frame of 1..blockSize bytes and flushes it
func (f *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) == 0 || len(payload) > f.blockSize {
		return fmt.Errorf("%w: %d", ErrInvalidFrameLength, len(payload))
	}
	if err := WriteFrameHeader(f.writer, int32(len(payload))); err != nil {
		return err
	}
	if _, err := f.writer.Write(payload); err != nil {
		return err
	}
	if err := f.writer.Flush(); err != nil {
		return err
	}
	f.frames++
	f.written += int64(len(payload))
	return nil
}

// WriteChunk fragments chunk into frames of at most blockSize bytes
func (f *FrameWriter) WriteChunk(chunk []byte) error {
	for ptr := 0; ptr < len(chunk); ptr += f.blockSize {
		end := min(ptr+f.blockSize, len(chunk))
		if err := f.WriteFrame(chunk[ptr:end]); err != nil {
			return err
		}
	}
	return nil
}

// WriteEOF writes and flushes the end of file marker
func (f *FrameWriter) WriteEOF() error {
	if err := WriteEOF(f.writer); err != nil {
		return err
	}
	return f.writer.Flush()
}

// Frames returns the number of data frames written
func (f *FrameWriter) Frames() int64 {
	return f.frames
}

// Written returns the payload bytes written
func (f *FrameWriter) Written() int64 {
	return f.written
}
