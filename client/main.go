package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"file_dump/client/dispatch"
	"file_dump/client/logging"
	"file_dump/client/registry"
	"file_dump/config"
	"file_dump/constants"

	"github.com/akamensky/argparse"
)

func main() {
	args := argparse.NewParser("client", constants.Title)

	bind := args.String("a", "address", &argparse.Options{Required: true, Help: "Target host address"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Target port",
		Default: constants.DEFAULT_PORT})
	files := args.StringList("f", "file", &argparse.Options{Required: true, Help: "File path (repeatable)"})
	chunk := args.Int("c", "chunksize", &argparse.Options{Required: false, Help: "File I/O chunk size in KB " +
		"(" + strconv.Itoa(constants.MIN_CLIENT_CHUNK_SIZE) + "-" +
		strconv.Itoa(constants.MAX_CLIENT_CHUNK_SIZE) + ")", Default: constants.DEFAULT_FILE_CHUNK_SIZE})
	block := args.Int("b", "blocksize", &argparse.Options{Required: false, Help: "Frame payload size in KB",
		Default: constants.DEFAULT_BLOCK_SIZE})
	slots := args.Int("n", "slots", &argparse.Options{Required: false, Help: "Chunks buffered ahead of the network " +
		"(" + strconv.Itoa(constants.MIN_RING_SLOTS) + "-" + strconv.Itoa(constants.MAX_RING_SLOTS) + ")",
		Default: constants.DEFAULT_RING_SLOTS})
	rate := args.Float("r", "rate", &argparse.Options{Required: false, Help: "Throughput cap per file in MiB/s (0 for unlimited)",
		Default: 0.0})
	remove := args.Flag("x", "delete", &argparse.Options{Help: "Delete each file once the server confirms it"})
	retry := args.Int("i", "interval", &argparse.Options{Required: false, Help: "Seconds before retrying a rejected file",
		Default: constants.DEFAULT_RETRY_INTERVAL})
	attempts := args.Int("m", "attempts", &argparse.Options{Required: false, Help: "Attempts per file (0 retries forever)",
		Default: 0})
	parallel := args.Int("t", "parallel", &argparse.Options{Required: false, Help: "Files transferred at once",
		Default: constants.DEFAULT_PARALLEL})
	timeout := args.Int("w", "timeout", &argparse.Options{Required: false, Help: "Seconds to wait for a server reply",
		Default: constants.DEFAULT_TIMEOUT})
	tos := args.Int("d", "tos", &argparse.Options{Required: false, Help: "IP TOS byte for priority marking",
		Default: constants.DEFAULT_TOS})
	progress := args.Int("s", "progress", &argparse.Options{Required: false, Help: "Seconds between progress events (0 disables)",
		Default: constants.DEFAULT_PROGRESS})
	level := args.Selector("l", "log-level", []string{"debug", "info", "warn", "error"}, &argparse.Options{
		Required: false, Help: "Log level", Default: "info"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	settings := config.Normalize(config.Settings{
		ChunkSize:        *chunk * 1024,
		BlockSize:        *block * 1024,
		RingSlots:        *slots,
		RetryInterval:    time.Duration(*retry) * time.Second,
		MaxAttempts:      *attempts,
		DeleteAfter:      *remove,
		RateLimit:        int64(*rate * (1 << 20)),
		Timeout:          time.Duration(*timeout) * time.Second,
		TOS:              *tos,
		Parallel:         *parallel,
		ProgressInterval: time.Duration(*progress) * time.Second,
	})
	if err := config.Validate(settings); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	logger := logging.New("file-dump", *level)
	debug.SetGCPercent(666)

	addr := net.JoinHostPort(*bind, strconv.Itoa(*port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("sending files", "count", len(*files), "remote", addr,
		"chunk", settings.ChunkSize, "block", settings.BlockSize, "rate", settings.RateLimit)

	err = dispatch.New(addr, settings, registry.New(), logger).Send(ctx, *files)
	if err != nil {
		logger.Error("some files were not transferred", "error", err)
		stop()
		os.Exit(2)
	}
}
