package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/iperfkw/bridge"
	"github.com/lexcodex/iperfkw/iperf3"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "iperfkw",
		Short:         "iperf3 bandwidth keywords for test automation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the keywords over JSON-RPC until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveServeConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)))
			if err != nil {
				return err
			}
			logger := log.New(cmd.ErrOrStderr(), "iperfkw ", log.LstdFlags)
			kw := iperf3.New(iperf3.WithExecutable(cfg.Iperf3), iperf3.WithLogger(logger))
			logger.Printf("serving keywords on %s", lis.Addr())
			return bridge.NewServer(kw, logger).Serve(ctx, lis)
		},
	}
	cmd.Flags().StringP("address", "a", bridge.DefaultAddress, "server listen address")
	cmd.Flags().IntP("port", "p", bridge.DefaultPort, "server listen port")
	cmd.Flags().String("config", "", "optional YAML config file")
	cmd.Flags().String("iperf3", iperf3.DefaultExecutable, "path to the iperf3 binary")
	return cmd
}

// resolveServeConfig loads the optional config file and lets explicitly
// set flags win over file values.
func resolveServeConfig(cmd *cobra.Command) (*bridge.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := bridge.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("address") {
		cfg.Address, _ = cmd.Flags().GetString("address")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("iperf3") {
		cfg.Iperf3, _ = cmd.Flags().GetString("iperf3")
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	var opts iperf3.ClientOptions
	var udp, reverse, bidir bool
	var execPath string
	cmd := &cobra.Command{
		Use:   "run <server-address>",
		Short: "Run the iperf3 client once and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ServerAddress = args[0]
			if udp {
				opts.Protocol = "udp"
			}
			opts.Reverse = reverse
			opts.Bidir = bidir

			kw := iperf3.New(
				iperf3.WithExecutable(execPath),
				iperf3.WithLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags)),
			)
			report, err := kw.RunClient(opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().IntVar(&opts.Port, "port", 0, "server port (0 uses the iperf3 default)")
	cmd.Flags().StringVar(&opts.BindAddress, "bind", "", "local address to bind to")
	cmd.Flags().BoolVar(&udp, "udp", false, "use UDP instead of TCP")
	cmd.Flags().IntVar(&opts.Duration, "time", iperf3.DefaultDuration, "seconds to transmit for")
	cmd.Flags().IntVar(&opts.NumStreams, "parallel", 0, "number of parallel streams")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "server sends to the client")
	cmd.Flags().StringVar(&opts.Bitrate, "bitrate", "", "target bitrate n[KM] (\"0\" for unlimited)")
	cmd.Flags().StringVar(&opts.NumBytes, "bytes", "", "bytes to transmit instead of a duration")
	cmd.Flags().BoolVar(&bidir, "bidir", false, "bidirectional mode")
	cmd.Flags().StringVar(&opts.TOS, "tos", "", "IP type of service")
	cmd.Flags().StringVar(&opts.DSCP, "dscp", "", "IP DSCP value")
	cmd.Flags().StringVar(&execPath, "iperf3", iperf3.DefaultExecutable, "path to the iperf3 binary")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the iperfkw version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("iperfkw %s\n", version)
		},
	}
}
