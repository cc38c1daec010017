package network

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// FrameHeaderSize is the length prefix in front of every framed payload
const FrameHeaderSize = 4

// DefaultMaxFrameSize bounds a single framed payload
const DefaultMaxFrameSize = 16 * 1024 * 1024

// Codec cuts a byte stream into the chunks delivered as Received and turns
// Write payloads back into bytes on the wire.
type Codec interface {
	// ReadFrame returns the next chunk from r
	ReadFrame(r *bufio.Reader) ([]byte, error)

	// WriteFrame writes data to w
	WriteFrame(w io.Writer, data []byte) error
}

// LengthPrefixCodec frames each payload with a 4-byte big-endian length
type LengthPrefixCodec struct {
	MaxFrameSize int
}

// NewLengthPrefixCodec creates a framing codec. max <= 0 uses DefaultMaxFrameSize.
func NewLengthPrefixCodec(max int) *LengthPrefixCodec {
	if max <= 0 {
		max = DefaultMaxFrameSize
	}
	return &LengthPrefixCodec{MaxFrameSize: max}
}

// ReadFrame reads one length-prefixed payload
func (c *LengthPrefixCodec) ReadFrame(r *bufio.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if int64(size) > int64(c.MaxFrameSize) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, size, c.MaxFrameSize)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}

// WriteFrame writes the length prefix and the payload in one call
func (c *LengthPrefixCodec) WriteFrame(w io.Writer, data []byte) error {
	if len(data) > c.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(data), c.MaxFrameSize)
	}

	buf := make([]byte, FrameHeaderSize+len(data))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(data)))
	copy(buf[FrameHeaderSize:], data)

	_, err := w.Write(buf)
	return err
}

// RawCodec passes bytes through as they arrive, in chunks of at most
// BufferSize bytes
type RawCodec struct {
	BufferSize int
}

// NewRawCodec creates a pass-through codec
func NewRawCodec(bufferSize int) *RawCodec {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RawCodec{BufferSize: bufferSize}
}

// ReadFrame returns whatever the next read produced
func (c *RawCodec) ReadFrame(r *bufio.Reader) ([]byte, error) {
	buf := make([]byte, c.BufferSize)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// WriteFrame writes data unchanged
func (c *RawCodec) WriteFrame(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}
