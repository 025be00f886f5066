package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	// ErrQueueClosed is returned by Poll after Close
	ErrQueueClosed = errors.New("buffer queue closed")
	// ErrDrained is returned by Poll once the end-of-file sentinel has been handed out
	ErrDrained = errors.New("buffer queue drained")
	// ErrTruncated means the file ended before its declared size
	ErrTruncated = errors.New("file shorter than declared size")
)

// filled is one ring slot ready for the consumer
type filled struct {
	data []byte
	err  error
}

// BufferQueue reads a file into a small ring of reusable buffers on its own goroutine.
// Free buffers travel back to the reader through a second channel, so a buffer is only
// refilled after the consumer has acknowledged it.
type BufferQueue struct {
	src       io.ReadCloser
	size      int64
	ready     chan filled
	free      chan []byte
	done      chan struct{}
	inflight  [][]byte
	drained   bool
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
	closeErr  error
}

// OpenBufferQueue opens file for reading with a ring of slots buffers of chunkSize bytes
func OpenBufferQueue(filename string, chunkSize, slots int) (*BufferQueue, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return NewBufferQueue(file, info.Size(), chunkSize, slots), nil
}

// NewBufferQueue prepares a queue over src. Exactly size bytes will be delivered.
func NewBufferQueue(src io.ReadCloser, size int64, chunkSize, slots int) *BufferQueue {
	if chunkSize <= 0 || slots <= 0 {
		panic("chunk size and slot count must be positive")
	}
	q := &BufferQueue{
		src:   src,
		size:  size,
		ready: make(chan filled, slots),
		free:  make(chan []byte, slots),
		done:  make(chan struct{}),
	}
	for i := 0; i < slots; i++ {
		q.free <- make([]byte, chunkSize)
	}
	return q
}

// Start launches the reader goroutine. Further calls do nothing.
func (q *BufferQueue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.fill()
	})
}

// fill reads the file slot by slot until size bytes have been queued
func (q *BufferQueue) fill() {
	defer q.wg.Done()
	reader := io.LimitReader(q.src, q.size)
	var queued int64
	for {
		var buf []byte
		select {
		case buf = <-q.free:
		case <-q.done:
			return
		}
		read, err := io.ReadFull(reader, buf)
		queued += int64(read)
		if read > 0 {
			if !q.push(filled{data: buf[:read]}) {
				return
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			if queued < q.size {
				q.push(filled{err: fmt.Errorf("%w: read %d of %d bytes", ErrTruncated, queued, q.size)})
				return
			}
			// Zero-length sentinel.
			q.push(filled{data: buf[:0]})
			return
		default:
			q.push(filled{err: fmt.Errorf("read file: %w", err)})
			return
		}
	}
}

func (q *BufferQueue) push(f filled) bool {
	select {
	case q.ready <- f:
		return true
	case <-q.done:
		return false
	}
}

// Poll blocks until the next chunk is ready. The last chunk handed out is zero length.
func (q *BufferQueue) Poll() ([]byte, error) {
	if q.drained {
		return nil, ErrDrained
	}
	select {
	case f := <-q.ready:
		if f.err != nil {
			return nil, f.err
		}
		if len(f.data) == 0 {
			q.drained = true
			return f.data, nil
		}
		q.inflight = append(q.inflight, f.data)
		return f.data, nil
	case <-q.done:
		return nil, ErrQueueClosed
	}
}

// Acknowledge returns the oldest polled chunk to the reader for reuse
func (q *BufferQueue) Acknowledge() {
	if len(q.inflight) == 0 {
		return
	}
	buf := q.inflight[0]
	q.inflight = q.inflight[1:]
	// Capacity equals slot count, this never blocks.
	q.free <- buf[:cap(buf)]
}

// Close stops the reader and releases the file handle. Safe to call more than once.
func (q *BufferQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		q.wg.Wait()
		q.closeErr = q.src.Close()
		q.inflight = nil
	})
	return q.closeErr
}
