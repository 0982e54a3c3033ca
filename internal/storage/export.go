package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"miload/internal/runner"
)

// CSVHeader lists the raw result columns.
var CSVHeader = []string{"start", "end", "elapsed", "url", "status", "status_code", "num_matches", "worker"}

// ExportCSV writes one row per record in the order given. Times are Unix
// seconds with microsecond precision; aborted rows leave elapsed and
// num_matches empty.
func ExportCSV(records []runner.RequestRecord, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating results file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "writing results header")
	}

	for _, rec := range records {
		elapsed, matches, code := "", "", ""
		if !rec.Aborted() {
			elapsed = strconv.FormatFloat(rec.Elapsed.Seconds(), 'f', 6, 64)
			matches = strconv.Itoa(rec.Matches)
			code = strconv.Itoa(rec.StatusCode)
		}

		row := []string{
			unixSeconds(rec.Start.UnixMicro()),
			unixSeconds(rec.End.UnixMicro()),
			elapsed,
			rec.Target,
			string(rec.Status),
			code,
			matches,
			strconv.Itoa(rec.Worker),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "writing results row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flushing results")
	}
	return f.Close()
}

func unixSeconds(us int64) string {
	return strconv.FormatFloat(float64(us)/1e6, 'f', 6, 64)
}

// ExportJSON writes v as indented JSON.
func ExportJSON(v interface{}, filename string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding JSON")
	}
	return errors.Wrap(os.WriteFile(filename, data, 0644), "writing JSON")
}
