package cmd

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"miload/internal/storage"
	"miload/internal/tui/app"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyPath()
		if path == "" {
			return errors.New("no history location, use --history")
		}
		store, err := storage.NewStore(path)
		if err != nil {
			return err
		}
		defer store.Close()

		id, _ := cmd.Flags().GetString("id")
		exportTo, _ := cmd.Flags().GetString("export")
		asJSON, _ := cmd.Flags().GetBool("json")

		var v interface{}
		if id != "" {
			item, err := store.Get(id)
			if err != nil {
				return errors.Wrapf(err, "run %s", id)
			}
			v = item
		} else if exportTo != "" || asJSON {
			items, err := store.List()
			if err != nil {
				return err
			}
			v = items
		}

		switch {
		case exportTo != "":
			if err := storage.ExportJSON(v, exportTo); err != nil {
				return err
			}
			log.Infof("Exported history to %s", exportTo)
			return nil
		case v != nil:
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		default:
			return app.ShowHistory(store)
		}
	},
}

func init() {
	historyCmd.Flags().String("id", "", "Print one run")
	historyCmd.Flags().Bool("json", false, "Print runs as JSON instead of opening the table")
	historyCmd.Flags().String("export", "", "Write the selected runs to a JSON file")
}
