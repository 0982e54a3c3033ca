package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"miload/internal/fanout"
	"miload/internal/metrics"
)

// workerCmd is the child side of a fan-out. It is started by the
// coordinator, never by people.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one load process (internal)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return errors.Wrap(err, "reading child request")
		}
		var req fanout.ChildRequest
		if err := json.Unmarshal(in, &req); err != nil {
			return errors.Wrap(err, "decoding child request")
		}
		if req.Config.Verbose {
			log.SetLevel(log.DebugLevel)
		}
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.AddHook(processHook{index: req.Index})

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if metricsAddr != "" {
			addr, err := metrics.OffsetAddr(metricsAddr, req.Index)
			if err != nil {
				return err
			}
			go func() {
				if err := metrics.Serve(ctx, addr); err != nil {
					log.WithError(err).Warn("Metrics endpoint stopped")
				}
			}()
		}

		return fanout.RunChild(ctx, bytes.NewReader(in), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	workerCmd.Flags().String("metrics-addr", "", "Base metrics address; the process index is added to the port")
}

// processHook tags every log entry of a child with its process index.
type processHook struct {
	index int
}

func (h processHook) Levels() []log.Level {
	return log.AllLevels
}

func (h processHook) Fire(entry *log.Entry) error {
	entry.Data["process"] = h.index
	return nil
}
