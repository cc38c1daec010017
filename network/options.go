package network

import "time"

// Defaults for Options
const (
	DefaultBufferSize   = 4096
	DefaultWriteTimeout = 10 * time.Second
	DefaultDialTimeout  = 30 * time.Second
	DefaultKeepAlive    = 30 * time.Second
)

// Options tune the sockets a manager opens
type Options struct {
	// Read buffer size
	BufferSize int

	// Frame payloads with a 4-byte big-endian length prefix
	Framed bool

	// Largest accepted frame when Framed is set
	MaxFrameSize int

	// Per-read deadline, 0 disables it
	ReadTimeout time.Duration

	// Per-write deadline, 0 disables it
	WriteTimeout time.Duration

	// TCP keep-alive period, negative disables it
	KeepAlive time.Duration

	// Execution context for listener and connection actors
	Executor string
}

// DefaultOptions returns framed sockets with a 4KB read buffer
func DefaultOptions() Options {
	return Options{
		BufferSize:   DefaultBufferSize,
		Framed:       true,
		MaxFrameSize: DefaultMaxFrameSize,
		WriteTimeout: DefaultWriteTimeout,
		KeepAlive:    DefaultKeepAlive,
	}
}

func (o Options) codec() Codec {
	if o.Framed {
		return NewLengthPrefixCodec(o.MaxFrameSize)
	}
	return NewRawCodec(o.BufferSize)
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}
