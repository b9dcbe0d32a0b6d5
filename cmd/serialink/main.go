// Command serialink transfers a file over a serial link using the
// stop-and-wait framing protocol implemented by package serialink.
//
//	serialink <port> <tx|rx> <baud> <retries> <timeout> <filename>
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/serialink-go/serialink"
	"github.com/serialink-go/serialink/appsession"
	"github.com/serialink-go/serialink/internal/serialport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "serialink: no .env file found, continuing with process environment")
	}
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "serialink:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("serialink", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: serialink <port> <tx|rx> <baud> <retries> <timeout_seconds> <filename>")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 6 {
		fs.Usage()
		return fmt.Errorf("expected 6 positional arguments, got %d", len(rest))
	}

	port := rest[0]
	roleArg := rest[1]
	baud, err := parseUint(rest[2], "baud")
	if err != nil {
		return err
	}
	retries, err := parseUint(rest[3], "retries")
	if err != nil {
		return err
	}
	timeoutSec, err := parseUint(rest[4], "timeout")
	if err != nil {
		return err
	}
	filename := rest[5]

	var role serialink.Role
	switch roleArg {
	case "tx":
		role = serialink.Transmitter
	case "rx":
		role = serialink.Receiver
	default:
		return fmt.Errorf("role must be \"tx\" or \"rx\", got %q", roleArg)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	metrics := serialink.NewMetrics(prometheus.Labels{"port": port, "role": roleArg})

	dev, err := serialport.Open(port, uint32(baud))
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}
	timeout := time.Duration(timeoutSec) * time.Second
	channel := serialport.NewChannel(dev, timeout)

	le := serialink.New(channel,
		serialink.WithRole(role),
		serialink.WithTimeout(timeout),
		serialink.WithMaxRetries(int(retries)),
		serialink.WithLogger(sugar),
		serialink.WithMetrics(metrics),
	)

	if err := le.Open(); err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	if role == serialink.Transmitter {
		return runSender(le, sugar, filename)
	}
	return runReceiver(le, sugar, filename)
}

func runSender(le *serialink.LinkEndpoint, logger *zap.SugaredLogger, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}
	if info.Size() < 0 || info.Size() > 1<<32-1 {
		return fmt.Errorf("file size %d does not fit the protocol's 32-bit size field", info.Size())
	}

	sender := appsession.NewSender(le, appsession.WithLogger(logger))
	return sender.Send(f, uint32(info.Size()), filepath.Base(filename))
}

func runReceiver(le *serialink.LinkEndpoint, logger *zap.SugaredLogger, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer f.Close()

	receiver := appsession.NewReceiver(le, appsession.WithLogger(logger))
	_, err = receiver.Receive(f)
	return err
}

func parseUint(s, name string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, s)
	}
	return v, nil
}

