// Package iperf3 drives the iperf3 command line tool and exposes its
// server and client modes as keywords for test automation. The package
// assumes iperf3 is installed and reachable through PATH (or the path
// given with WithExecutable); the measurement itself is entirely the
// external tool's business.
package iperf3

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// DefaultExecutable is the iperf3 binary resolved through PATH.
const DefaultExecutable = "iperf3"

// Iperf3 is the keyword facade. One instance owns at most one background
// iperf3 server process. Instances are not safe for concurrent use;
// remote callers are expected to serialize keyword invocations.
type Iperf3 struct {
	execPath string
	logger   *log.Logger
	server   *serverHandle
}

// Option customizes a facade instance.
type Option func(*Iperf3)

// WithExecutable points the facade at an alternate iperf3 binary.
func WithExecutable(path string) Option {
	return func(i *Iperf3) {
		if path != "" {
			i.execPath = path
		}
	}
}

// WithLogger routes diagnostics to the given logger.
func WithLogger(logger *log.Logger) Option {
	return func(i *Iperf3) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New builds a facade instance.
func New(opts ...Option) *Iperf3 {
	i := &Iperf3{
		execPath: DefaultExecutable,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// StartServer spawns an iperf3 server in the background. If this instance
// already tracks a running server the call is a no-op and the existing
// handle is kept.
//
// Whether the server actually bound its port is deliberately not checked
// here: a failed start surfaces through the first client run, and a
// leftover server from an aborted test run stays usable for the next one.
func (i *Iperf3) StartServer(opts ServerOptions) error {
	if i.server != nil {
		return nil
	}
	handle, err := startServerProcess(i.execPath, BuildServerArgs(opts))
	if err != nil {
		return fmt.Errorf("start iperf3 server: %w", err)
	}
	i.server = handle
	return nil
}

// StopServer stops the tracked iperf3 server and returns one statistics
// mapping per client that connected to it. Calling StopServer without a
// running server returns an empty result and no error.
//
// The handle is cleared before anything else happens, so a broken server
// process can never wedge subsequent StartServer calls. Signal and wait
// failures are logged and contained; a malformed statistics report is
// returned as an error alongside whatever documents parsed cleanly.
func (i *Iperf3) StopServer() ([]map[string]any, error) {
	if i.server == nil {
		return []map[string]any{}, nil
	}
	handle := i.server
	i.server = nil

	if err := handle.terminate(); err != nil {
		i.logger.Printf("error stopping iperf3 server: %v", err)
		return []map[string]any{}, nil
	}
	return decodeReports(handle.stdout.Bytes())
}

// RunClient runs the iperf3 client against the given server and returns
// the parsed report. The call blocks for the full configured duration.
// On a non-zero exit the error carries iperf3's own JSON error message
// when present, falling back to raw stderr.
func (i *Iperf3) RunClient(opts ClientOptions) (map[string]any, error) {
	args, err := BuildClientArgs(opts)
	if err != nil {
		return nil, err
	}
	stdout, stderr, err := runForeground(i.execPath, args)
	if err != nil {
		return nil, errors.New(clientFailureReason(stdout, stderr, err))
	}
	return decodeReport(stdout)
}

// Close tears the facade down, stopping any server it still owns. The
// collected statistics are discarded.
func (i *Iperf3) Close() error {
	_, err := i.StopServer()
	return err
}

// clientFailureReason picks the most useful error detail from a failed
// client run: iperf3 reports connection problems as {"error": ...} on
// stdout when -J is given, while argument mistakes land on stderr.
func clientFailureReason(stdout, stderr []byte, runErr error) string {
	var doc map[string]any
	if err := json.Unmarshal(stdout, &doc); err == nil {
		if msg, ok := doc["error"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return msg
	}
	return runErr.Error()
}
