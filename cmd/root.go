package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"miload/internal/addrsrc"
	"miload/internal/banner"
	"miload/internal/cli"
	"miload/internal/logging"
	"miload/internal/remote"
	"miload/internal/runner"
	"miload/internal/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "miload",
	Short: "miload - load generator for the address search service",
	Long: `
miload drives an address search service with many simultaneous users.

Two load shapes are available:
1. Flood (default): every worker sends exactly one request
2. Soak (--soak RATE): workers pace themselves towards a request rate,
   optionally simulating users typing a street name (--user)

Workers can be spread over several processes (--processes) and over other
hosts reached with ssh (--nodes).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.ConfigureCliLogging(viper.GetBool("verbose"), viper.GetString("log-format"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLoad(ctx)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		logFailure(log.StandardLogger(), err)
		os.Exit(1)
	}
}

func logFailure(logger *log.Logger, err error) {
	logging.WithStacktrace(log.NewEntry(logger), err).Error("miload failed")
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(workerCmd, dummyCmd, historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.miload.yaml)")
	pf.BoolP("verbose", "v", false, "Debug logging")
	pf.String("log-format", logging.FormatText, "Log format (text, json, plain)")
	pf.String("history", "", "Run history database (default is $HOME/.miload/history.db)")

	f := rootCmd.Flags()
	f.StringP("duration", "d", "5", "Soak duration, in seconds or as a duration (e.g. 90s)")
	f.IntP("workers", "t", 10, "Simultaneous workers per process")
	f.IntP("processes", "p", 1, "Number of processes")
	f.StringP("inputfile", "i", "", "File of addresses, one per line")
	f.StringP("rangefile", "a", "", "CSV of street number ranges (low, high, street)")
	f.Float64P("soak", "s", 0, "Soak at this many requests per second (default is flood)")
	f.BoolP("session", "e", false, "Reuse one connection per worker while soaking")
	f.BoolP("user", "u", false, "Simulate users typing a street name while soaking")
	f.BoolP("remote", "r", false, "Act as a remotely controlled instance and report JSON")
	f.StringP("nodes", "n", "", "File of user@host lines to start remote instances on")
	f.StringP("output", "o", cli.OutputText, "Summary format (text, json)")
	f.String("out", "", "Write raw results of each process to <prefix>-<process>.csv")
	f.String("url-template", "", "Template rendering an address into a target URL")
	f.String("fanout-timeout", "0", "Give up on processes that have not reported after this long (0 waits forever)")
	f.String("timeout", runner.DefaultTimeout.String(), "Request timeout")
	f.String("keystroke-delay", runner.DefaultKeystrokeDelay.String(), "Pause between simulated keystrokes")
	f.Int("max-iterations", runner.DefaultMaxIterations, "Upper bound on iterations per soak worker")
	f.Int64("seed", 0, "Workload seed (default is time based)")
	f.String("metrics-addr", "", "Expose Prometheus metrics on this address; processes use consecutive ports")
	f.Bool("tui", false, "Show a live dashboard")
	f.Bool("in-process", false, "Run every process as a goroutine of this one")
	f.Bool("no-history", false, "Do not record the run")
	f.String("remote-command", remote.DefaultCommand, "Load binary to run on --nodes hosts")
	f.String("remote-inputfile", "", "Address file path on --nodes hosts")

	viper.BindPFlags(pf)
	viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".miload")
		}
	}
	viper.SetEnvPrefix("miload")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file %s", viper.ConfigFileUsed())
	}
}

// parseDuration accepts bare numbers as seconds.
func parseDuration(name string) (time.Duration, error) {
	s := strings.TrimSpace(viper.GetString(name))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "--%s", name)
	}
	return d, nil
}

func buildConfig() (runner.Config, error) {
	cfg := runner.DefaultConfig()
	cfg.Workers = viper.GetInt("workers")
	cfg.Processes = viper.GetInt("processes")
	cfg.Session = viper.GetBool("session")
	cfg.SimulateUsers = viper.GetBool("user")
	cfg.MaxIterations = viper.GetInt("max-iterations")
	cfg.OutPrefix = viper.GetString("out")
	cfg.Verbose = viper.GetBool("verbose")
	cfg.Seed = viper.GetInt64("seed")
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	if rate := viper.GetFloat64("soak"); rate > 0 {
		cfg.Mode = runner.ModeSoak
		cfg.Rate = rate
	} else if cfg.Session || cfg.SimulateUsers {
		log.Warn("--session and --user only apply to soak runs")
	}

	var err error
	for name, dst := range map[string]*time.Duration{
		"duration":        &cfg.Duration,
		"fanout-timeout":  &cfg.FanoutTimeout,
		"timeout":         &cfg.Timeout,
		"keystroke-delay": &cfg.KeystrokeDelay,
	} {
		if *dst, err = parseDuration(name); err != nil {
			return cfg, err
		}
	}

	cfg.Targets, err = loadTargets(cfg.Seed)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadTargets(seed int64) ([]string, error) {
	tmpl := viper.GetString("url-template")
	inputFile := viper.GetString("inputfile")
	rangeFile := viper.GetString("rangefile")

	switch {
	case inputFile != "":
		src, err := addrsrc.NewSource(tmpl, seed)
		if err != nil {
			return nil, err
		}
		return src.ReadAddressFile(inputFile)
	case rangeFile != "":
		if tmpl == "" {
			tmpl = addrsrc.DefaultRangeTemplate
		}
		src, err := addrsrc.NewSource(tmpl, seed)
		if err != nil {
			return nil, err
		}
		return src.ReadRangeFile(rangeFile)
	default:
		src, err := addrsrc.NewSource(tmpl, seed)
		if err != nil {
			return nil, err
		}
		return src.DefaultTargets()
	}
}

func historyPath() string {
	if p := viper.GetString("history"); p != "" {
		return p
	}
	p, err := storage.DefaultPath()
	if err != nil {
		log.WithError(err).Debug("No default history location")
		return ""
	}
	return p
}

func runLoad(ctx context.Context) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	opts := cli.Options{
		Cfg:         cfg,
		Output:      viper.GetString("output"),
		Remote:      viper.GetBool("remote"),
		TUI:         viper.GetBool("tui"),
		InProcess:   viper.GetBool("in-process"),
		MetricsAddr: viper.GetString("metrics-addr"),
	}
	if !viper.GetBool("no-history") && !opts.Remote {
		opts.HistoryPath = historyPath()
	}

	if nodes := viper.GetString("nodes"); nodes != "" {
		if opts.Hosts, err = remote.ReadHostFile(nodes); err != nil {
			return err
		}
		opts.RemoteArgs = remote.ForwardArgs(cfg, viper.GetString("remote-inputfile"))
		orch := remote.NewOrchestrator()
		orch.Command = viper.GetString("remote-command")
		opts.Orchestrator = orch
	}

	_, err = cli.Run(ctx, opts)
	return err
}
