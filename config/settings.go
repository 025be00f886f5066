// Package config holds the transfer settings shared by every session.
package config

import (
	"errors"
	"fmt"
	"time"

	"file_dump/constants"
)

// Settings is the settings provider handed to sessions and the dispatcher.
type Settings struct {
	ChunkSize        int           // Disk read size in bytes
	BlockSize        int           // Max frame payload in bytes
	RingSlots        int           // Reusable buffers between disk and network
	RetryInterval    time.Duration // Pause before retrying a rejected file
	MaxAttempts      int           // 0 retries forever
	DeleteAfter      bool          // Remove source file once the server confirms
	RateLimit        int64         // Bytes per second, <= 0 means unlimited
	Timeout          time.Duration // Read timeout for the accept and success booleans
	TOS              int
	Parallel         int
	ProgressInterval time.Duration // 0 disables progress events
}

var ErrBlockLargerThanChunk = errors.New("block size larger than chunk size")

// Default returns the settings used when nothing is overridden.
func Default() Settings {
	return Settings{
		ChunkSize:        constants.DEFAULT_FILE_CHUNK_SIZE * 1024,
		BlockSize:        constants.DEFAULT_BLOCK_SIZE * 1024,
		RingSlots:        constants.DEFAULT_RING_SLOTS,
		RetryInterval:    constants.DEFAULT_RETRY_INTERVAL * time.Second,
		Timeout:          constants.DEFAULT_TIMEOUT * time.Second,
		TOS:              constants.DEFAULT_TOS,
		Parallel:         constants.DEFAULT_PARALLEL,
		ProgressInterval: constants.DEFAULT_PROGRESS * time.Second,
	}
}

// Unlimited reports whether throughput is uncapped.
func (s Settings) Unlimited() bool {
	return s.RateLimit <= 0
}

// Normalize fills zero values from defaults and clamps sizes into supported ranges.
func Normalize(s Settings) Settings {
	def := Default()
	out := s
	if out.ChunkSize <= 0 {
		out.ChunkSize = def.ChunkSize
	}
	if out.ChunkSize > constants.MAX_CLIENT_CHUNK_SIZE*1024 {
		out.ChunkSize = constants.MAX_CLIENT_CHUNK_SIZE * 1024
	} else if out.ChunkSize < constants.MIN_CLIENT_CHUNK_SIZE*1024 {
		out.ChunkSize = constants.MIN_CLIENT_CHUNK_SIZE * 1024
	}
	if out.BlockSize <= 0 {
		out.BlockSize = def.BlockSize
	}
	if out.BlockSize < constants.MIN_BLOCK_SIZE*1024 {
		out.BlockSize = constants.MIN_BLOCK_SIZE * 1024
	}
	if out.RingSlots == 0 {
		out.RingSlots = def.RingSlots
	}
	if out.RingSlots < constants.MIN_RING_SLOTS {
		out.RingSlots = constants.MIN_RING_SLOTS
	} else if out.RingSlots > constants.MAX_RING_SLOTS {
		out.RingSlots = constants.MAX_RING_SLOTS
	}
	if out.RetryInterval <= 0 {
		out.RetryInterval = def.RetryInterval
	}
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	if out.Parallel < 1 {
		out.Parallel = 1
	}
	if out.MaxAttempts < 0 {
		out.MaxAttempts = 0
	}
	if out.RateLimit < 0 {
		out.RateLimit = 0
	}
	if out.ProgressInterval < 0 {
		out.ProgressInterval = 0
	}
	return out
}

// Validate reports combinations Normalize cannot repair.
func Validate(s Settings) error {
	if s.BlockSize > s.ChunkSize {
		return fmt.Errorf("%w: %d > %d", ErrBlockLargerThanChunk, s.BlockSize, s.ChunkSize)
	}
	if s.TOS < 0 || s.TOS > 255 {
		return fmt.Errorf("tos %d out of range 0-255", s.TOS)
	}
	return nil
}
