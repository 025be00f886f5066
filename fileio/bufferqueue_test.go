package fileio

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRandomFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.dat")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

// drain polls until the sentinel and returns every chunk copied
func drain(t *testing.T, q *BufferQueue) [][]byte {
	t.Helper()
	var chunks [][]byte
	for {
		chunk, err := q.Poll()
		require.NoError(t, err)
		if len(chunk) == 0 {
			return chunks
		}
		chunks = append(chunks, append([]byte(nil), chunk...))
		q.Acknowledge()
	}
}

func TestBufferQueue_DeliversWholeFile(t *testing.T) {
	sizes := []int{0, 1, 1000, 4096, 4097, 3*4096 + 17, 64 * 1024}
	for _, size := range sizes {
		path, data := writeRandomFile(t, size)
		q, err := OpenBufferQueue(path, 4096, 3)
		require.NoError(t, err)
		q.Start()

		chunks := drain(t, q)
		got := bytes.Join(chunks, nil)
		assert.Equal(t, data, got, "size %d", size)
		for i, c := range chunks {
			if i < len(chunks)-1 {
				assert.Len(t, c, 4096)
			} else {
				assert.LessOrEqual(t, len(c), 4096)
				assert.NotZero(t, len(c))
			}
		}
		require.NoError(t, q.Close())
	}
}

func TestBufferQueue_SentinelOnlyOnce(t *testing.T) {
	path, _ := writeRandomFile(t, 10000)
	q, err := OpenBufferQueue(path, 4096, 2)
	require.NoError(t, err)
	defer q.Close()
	q.Start()

	drain(t, q)
	_, err = q.Poll()
	assert.ErrorIs(t, err, ErrDrained)
}

func TestBufferQueue_SlotNotReusedBeforeAcknowledge(t *testing.T) {
	const slots = 3
	path, data := writeRandomFile(t, 4096*10)
	q, err := OpenBufferQueue(path, 4096, slots)
	require.NoError(t, err)
	defer q.Close()
	q.Start()

	held := make([][]byte, 0, slots)
	for i := 0; i < slots; i++ {
		chunk, err := q.Poll()
		require.NoError(t, err)
		held = append(held, chunk)
	}

	// Give the reader time to misbehave if it was going to.
	time.Sleep(50 * time.Millisecond)
	for i, chunk := range held {
		assert.Equal(t, data[i*4096:(i+1)*4096], chunk, "slot %d overwritten", i)
	}

	// Nothing is free, so no further chunk can be ready.
	select {
	case f := <-q.ready:
		t.Fatalf("unexpected chunk of %d bytes while every slot is held", len(f.data))
	default:
	}

	for range held {
		q.Acknowledge()
	}
	rest := drain(t, q)
	assert.Equal(t, data[slots*4096:], bytes.Join(rest, nil))
}

func TestBufferQueue_BoundedReadAhead(t *testing.T) {
	path, _ := writeRandomFile(t, 4096*20)
	q, err := OpenBufferQueue(path, 4096, 2)
	require.NoError(t, err)
	defer q.Close()
	q.Start()

	assert.Eventually(t, func() bool { return len(q.ready) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, q.ready, 2)
	assert.Empty(t, q.free)
}

type failingReader struct {
	data   []byte
	failAt int
	read   int
	closed bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.read >= f.failAt {
		return 0, errors.New("disk on fire")
	}
	n := copy(p, f.data[f.read:f.failAt])
	f.read += n
	return n, nil
}

func (f *failingReader) Close() error {
	f.closed = true
	return nil
}

func TestBufferQueue_ReadErrorSurfacesOnPoll(t *testing.T) {
	src := &failingReader{data: make([]byte, 10000), failAt: 5000}
	q := NewBufferQueue(src, 10000, 4096, 2)
	q.Start()

	chunk, err := q.Poll()
	require.NoError(t, err)
	assert.Len(t, chunk, 4096)
	q.Acknowledge()

	var pollErr error
	for pollErr == nil {
		chunk, pollErr = q.Poll()
		if pollErr == nil {
			require.NotZero(t, len(chunk), "sentinel must not follow a read error")
			q.Acknowledge()
		}
	}
	assert.ErrorContains(t, pollErr, "disk on fire")

	require.NoError(t, q.Close())
	assert.True(t, src.closed)
}

func TestBufferQueue_TruncatedFile(t *testing.T) {
	src := io.NopCloser(bytes.NewReader(make([]byte, 100)))
	q := NewBufferQueue(src, 500, 64, 2)
	defer q.Close()
	q.Start()

	var err error
	for err == nil {
		var chunk []byte
		chunk, err = q.Poll()
		if err == nil {
			require.NotZero(t, len(chunk))
			q.Acknowledge()
		}
	}
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestBufferQueue_StopsAtDeclaredSize(t *testing.T) {
	src := io.NopCloser(bytes.NewReader(make([]byte, 1000)))
	q := NewBufferQueue(src, 300, 128, 2)
	defer q.Close()
	q.Start()

	assert.Len(t, bytes.Join(drain(t, q), nil), 300)
}

func TestBufferQueue_CloseIdempotentAndUnblocksPoll(t *testing.T) {
	src := &failingReader{data: make([]byte, 10), failAt: 10}
	q := NewBufferQueue(src, 10, 64, 2)

	// Never started: Poll would block forever without Close.
	done := make(chan error, 1)
	go func() {
		_, err := q.Poll()
		done <- err
	}()

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after Close")
	}
	assert.True(t, src.closed)
}

func TestBufferQueue_CloseWhileReaderBlocked(t *testing.T) {
	path, _ := writeRandomFile(t, 4096*8)
	q, err := OpenBufferQueue(path, 4096, 2)
	require.NoError(t, err)
	q.Start()

	_, err = q.Poll()
	require.NoError(t, err)
	// Reader is now parked waiting for a free slot.
	assert.Eventually(t, func() bool { return len(q.ready) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Close())
}

func TestOpenBufferQueue_MissingFile(t *testing.T) {
	_, err := OpenBufferQueue(filepath.Join(t.TempDir(), "nope"), 4096, 2)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChecksum_MatchesFile(t *testing.T) {
	path, data := writeRandomFile(t, 9999)
	var sum Checksum
	sum.Update(data[:5000])
	sum.Update(data[5000:])

	want, err := GetFileChecksumCRC32(path)
	require.NoError(t, err)
	assert.Equal(t, want, sum.Sum())
	assert.Equal(t, int64(9999), sum.Total())
}
