package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nemith/xrcli"
)

type rootOptions struct {
	inventory   string
	device      string
	address     string
	transport   string
	port        int
	baud        int
	username    string
	password    string
	askPassword bool
	keyFile     string
	knownHosts  string
	insecure    bool
	timeout     string
	trace       bool
	logLevel    string
	metricsFile string

	registry *prometheus.Registry
	metrics  *xrcli.Metrics
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:   "xrconf",
	Short: "xrconf pushes configuration to IOS-XR routers",
	Long: `xrconf opens a CLI session to a single IOS-XR router over ssh, telnet, a
serial console or scrapligo, sends a batch of configuration lines and
commits them. A failed commit is reported with the output of
'show configuration failed'.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)

	// written even when the command failed so failed commits are counted
	if err := writeMetrics(); err != nil {
		log.Error(err)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	addConnectionFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile on exit")
}

func addConnectionFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&opts.inventory, "inventory", "i", os.Getenv("XRCONF_INVENTORY"), "device inventory file (YAML)")
	fs.StringVarP(&opts.device, "device", "d", "", "device name from the inventory")
	fs.StringVarP(&opts.address, "address", "a", "", "device address, instead of --device")
	fs.StringVar(&opts.transport, "transport", "", "transport to use (ssh, telnet, scrapli, serial)")
	fs.IntVar(&opts.port, "port", 0, "port to connect to")
	fs.IntVar(&opts.baud, "baud", 0, "serial console speed")
	fs.StringVarP(&opts.username, "username", "u", "", "login username")
	fs.StringVar(&opts.password, "password", os.Getenv("XRCONF_PASSWORD"), "login password")
	fs.BoolVarP(&opts.askPassword, "ask-password", "k", false, "prompt for the password")
	fs.StringVar(&opts.keyFile, "key-file", "", "ssh private key file")
	fs.StringVar(&opts.knownHosts, "known-hosts", "", "ssh known_hosts file (default ~/.ssh/known_hosts)")
	fs.BoolVar(&opts.insecure, "insecure", false, "skip ssh host key verification")
	fs.StringVar(&opts.timeout, "timeout", "", "how long to wait for each prompt (e.g. 30s)")
	fs.BoolVar(&opts.trace, "trace", false, "print all traffic to stderr")
}

func setup(cmd *cobra.Command, args []string) error {
	lvl, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	xrcli.SetLog(log.StandardLogger())

	if opts.metricsFile != "" {
		opts.registry = prometheus.NewRegistry()
		opts.metrics = xrcli.NewMetrics(opts.registry)
	}
	return nil
}

func writeMetrics() error {
	if opts.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(opts.metricsFile, opts.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
