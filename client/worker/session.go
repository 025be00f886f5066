package worker

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"file_dump/client/comms"
	"file_dump/client/throttle"
	"file_dump/config"
	"file_dump/constants"
	"file_dump/fileio"

	"github.com/google/uuid"
)

// File describes the source file. It does not change during a session.
type File struct {
	Path string
	Size int64
}

// Stat builds a File from the file system
func Stat(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{Path: path, Size: info.Size()}, nil
}

// Registry is told when a file name is no longer in flight
type Registry interface {
	Remove(name string)
}

// transport is the server connection as seen by a session
type transport interface {
	Handshake(name string, size int64) (bool, error)
	WriteChunk(chunk []byte) error
	Finalize() (bool, error)
	Close() error
}

// Session pushes one file over one connection
type Session struct {
	file     File
	name     string
	address  string
	settings config.Settings
	registry Registry
	logger   *slog.Logger

	dial      func(address string, opts comms.Options) (transport, error)
	openQueue func(file File, settings config.Settings) (fileio.ChunkSource, error)
	sleep     func(time.Duration)
	now       func() time.Time
}

// NewSession prepares a transfer of file to address. The caller registers the file
// name; the session removes it from reg when it ends, whatever the outcome.
func NewSession(file File, address string, settings config.Settings, reg Registry, logger *slog.Logger) *Session {
	name := filepath.Base(file.Path)
	return &Session{
		file:     file,
		name:     name,
		address:  address,
		settings: settings,
		registry: reg,
		logger: logger.With(
			slog.String("session", uuid.NewString()),
			slog.String("file", name),
			slog.String("remote", address),
		),
		dial:      dialServer,
		openQueue: openBufferQueue,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

func dialServer(address string, opts comms.Options) (transport, error) {
	conn, err := comms.Connect(address, opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// openBufferQueue opens the file and starts its reader
func openBufferQueue(file File, settings config.Settings) (fileio.ChunkSource, error) {
	handle, err := os.Open(file.Path)
	if err != nil {
		return nil, err
	}
	queue := fileio.NewBufferQueue(handle, file.Size, settings.ChunkSize, settings.RingSlots)
	queue.Start()
	return queue, nil
}

// Name returns the file name sent to the server
func (s *Session) Name() string {
	return s.name
}

// Run performs the whole exchange. A rejection is not an error; every failure is a *Failure.
func (s *Session) Run() (Outcome, error) {
	defer s.registry.Remove(s.name)

	conn, err := s.dial(s.address, comms.Options{
		Timeout:     s.settings.Timeout,
		DialTimeout: constants.DIAL_TIMEOUT,
		TOS:         s.settings.TOS,
		BlockSize:   s.settings.BlockSize,
	})
	if err != nil {
		return s.fail(TransportFailure, "connect", err)
	}
	defer conn.Close()

	accepted, err := conn.Handshake(s.name, s.file.Size)
	if err != nil {
		return s.fail(TransportFailure, "handshake", err)
	}
	if !accepted {
		s.logger.Info("no space, file already exists, or all paths in use",
			slog.Duration("retry_in", s.settings.RetryInterval))
		return Rejected, nil
	}

	queue, err := s.openQueue(s.file, s.settings)
	if err != nil {
		return s.fail(LocalIOFailure, "open", err)
	}
	defer queue.Close()

	s.logger.Info("started transfer", slog.Int64("size", s.file.Size))
	begin := s.now()

	sum, failure := s.stream(conn, queue)
	if failure != nil {
		return s.fail(failure.Kind, failure.Op, failure.Err)
	}

	success, err := conn.Finalize()
	if err != nil {
		return s.fail(TransportFailure, "finalize", err)
	}
	if !success {
		return s.fail(ProtocolFailure, "finalize", ErrFinalizationFailed)
	}

	elapsed := s.now().Sub(begin)
	s.logger.Info("finished transfer",
		slog.Int64("bytes", sum.Total()),
		slog.Duration("elapsed", elapsed),
		slog.String("crc32", hex.EncodeToString(sum.Sum())))

	if !s.settings.DeleteAfter {
		return Completed, nil
	}
	// Release handles before removing the file.
	queue.Close()
	conn.Close()
	if err := os.Remove(s.file.Path); err != nil {
		s.logger.Error("could not delete file after transfer", slog.Any("error", err))
		return Completed, &Failure{Kind: LocalIOFailure, Op: "delete", Err: err}
	}
	s.logger.Info("deleted file", slog.String("path", s.file.Path))
	return Completed, nil
}

// stream moves every chunk from queue to conn until the end-of-file sentinel
func (s *Session) stream(conn transport, queue fileio.ChunkSource) (*fileio.Checksum, *Failure) {
	sum := new(fileio.Checksum)
	prog := newProgress(s.logger, s.file.Size, s.settings.ProgressInterval, s.now)
	start := s.now()
	var sent int64
	for {
		chunk, err := queue.Poll()
		if err != nil {
			return sum, &Failure{Kind: LocalIOFailure, Op: "read", Err: err}
		}
		if len(chunk) == 0 {
			return sum, nil
		}
		if err := conn.WriteChunk(chunk); err != nil {
			return sum, &Failure{Kind: TransportFailure, Op: "send", Err: err}
		}
		sum.Update(chunk)
		sent += int64(len(chunk))
		prog.add(len(chunk))
		queue.Acknowledge()

		if delay := throttle.Delay(start, s.now(), sent, s.settings.RateLimit); delay > 0 {
			s.sleep(delay)
		}
	}
}

func (s *Session) fail(kind FailureKind, op string, err error) (Outcome, error) {
	failure := &Failure{Kind: kind, Op: op, Err: err}
	switch kind {
	case TransportFailure:
		s.logger.Error("error in file transfer, most likely connection was lost", slog.Any("error", failure))
	case ProtocolFailure:
		s.logger.Error("error during finalization of file transfer", slog.Any("error", failure))
	default:
		s.logger.Error("file transfer failed", slog.Any("error", failure))
	}
	return Failed, failure
}
