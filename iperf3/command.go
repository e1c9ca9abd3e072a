package iperf3

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument marks keyword argument validation failures. These are
// raised before any iperf3 process is spawned, so the caller can correct
// the input and retry.
var ErrInvalidArgument = errors.New("invalid argument")

// ServerOptions configures an iperf3 server instance.
type ServerOptions struct {
	// Port is the listen port; zero means the iperf3 default.
	Port int
	// BindAddress is an IPv4/IPv6 literal to bind to; empty means all
	// interfaces. The value is passed to iperf3 verbatim, which reports
	// malformed addresses itself.
	BindAddress string
}

// ClientOptions configures a single iperf3 client run.
//
// Reverse and Bidir accept a native bool or the strings "true"/"false" in
// any casing. Automation frameworks hand every keyword argument over as
// text, so both spellings have to work.
type ClientOptions struct {
	ServerAddress string
	Port          int
	BindAddress   string
	Protocol      string // "tcp" (default) or "udp"
	// Duration is the number of seconds to transmit for. Zero (and any
	// negative value) selects the 10 second default; an explicit
	// "--time 0" run cannot be requested through this field.
	Duration int
	NumStreams    int    // number of parallel streams; zero omits the flag
	Reverse       any    // bool-like; server sends to the client
	Bitrate       string // n[KM] bits/s; "0" disables the limit
	NumBytes      string // n[KM]; transmit a byte count instead of a duration
	Bidir         any    // bool-like; bidirectional mode
	TOS           string // IP type of service; decimal/octal/hex passed verbatim
	DSCP          string // numeric or symbolic DSCP value, passed verbatim
}

// DefaultDuration is applied when ClientOptions.Duration is unset.
const DefaultDuration = 10

// BuildServerArgs renders the argv for an iperf3 server invocation with
// JSON reporting enabled.
func BuildServerArgs(opts ServerOptions) []string {
	args := []string{"-s", "-J"}
	if opts.Port > 0 {
		args = append(args, "-p", strconv.Itoa(opts.Port))
	}
	if opts.BindAddress != "" {
		args = append(args, "-B", opts.BindAddress)
	}
	return args
}

// BuildClientArgs renders the argv for an iperf3 client invocation. All
// argument validation happens here so that a bad keyword call never spawns
// a process.
func BuildClientArgs(opts ClientOptions) ([]string, error) {
	if opts.ServerAddress == "" {
		return nil, fmt.Errorf("%w: server_address is required", ErrInvalidArgument)
	}

	args := []string{"-J", "-c", opts.ServerAddress}
	if opts.Port > 0 {
		args = append(args, "-p", strconv.Itoa(opts.Port))
	}
	if opts.BindAddress != "" {
		args = append(args, "-B", opts.BindAddress)
	}

	switch opts.Protocol {
	case "", "tcp":
	case "udp":
		args = append(args, "-u")
	default:
		return nil, fmt.Errorf("%w: unsupported protocol %q", ErrInvalidArgument, opts.Protocol)
	}

	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	args = append(args, "--time", strconv.Itoa(duration))

	if opts.NumStreams > 0 {
		args = append(args, "--parallel", strconv.Itoa(opts.NumStreams))
	}

	reverse, err := coerceBool(opts.Reverse)
	if err != nil {
		return nil, fmt.Errorf("reverse: %w", err)
	}
	if reverse {
		args = append(args, "--reverse")
	}

	if opts.Bitrate != "" {
		args = append(args, "-b", opts.Bitrate)
	}
	if opts.NumBytes != "" {
		args = append(args, "--bytes", opts.NumBytes)
	}

	bidir, err := coerceBool(opts.Bidir)
	if err != nil {
		return nil, fmt.Errorf("bidir: %w", err)
	}
	if bidir {
		args = append(args, "--bidir")
	}

	if opts.TOS != "" {
		args = append(args, "--tos", opts.TOS)
	}
	if opts.DSCP != "" {
		args = append(args, "--dscp", opts.DSCP)
	}
	return args, nil
}

// coerceBool accepts native bools and the case-insensitive strings
// "true"/"false". A nil value means the flag was not given.
func coerceBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(t) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: value %v is not bool-like", ErrInvalidArgument, v)
}
