// Package addrsrc turns address lists and street-number range tables into
// target URLs for the load generator.
package addrsrc

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/pkg/errors"
)

// DefaultRangeTemplate searches the low end of each range.
const DefaultRangeTemplate = `https://address.mivoter.org/index.php?max=5&num={{.Low}}&street={{query .Street}}`

var defaultAddresses = []string{
	"1 Main St",
	"8000 anchor bay dr",
}

// Source renders addresses into targets with one URL template.
type Source struct {
	engine *TemplateEngine
	tmpl   *template.Template
}

func NewSource(urlTemplate string, seed int64) (*Source, error) {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	e := NewTemplateEngine(seed)
	t, err := e.Parse("url", urlTemplate)
	if err != nil {
		return nil, err
	}
	return &Source{engine: e, tmpl: t}, nil
}

// ParseAddress splits a leading street number from the street name.
func ParseAddress(line string) Address {
	fields := strings.Fields(line)
	a := Address{}
	if len(fields) > 0 && isDigits(fields[0]) {
		a.Num = fields[0]
		fields = fields[1:]
	}
	a.Street = strings.Join(fields, " ")
	return a
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Render builds the target URL for one address line.
func (s *Source) Render(line string) (string, error) {
	return s.engine.Execute(s.tmpl, ParseAddress(line))
}

// DefaultTargets renders the built-in addresses.
func (s *Source) DefaultTargets() ([]string, error) {
	return s.renderAll(defaultAddresses)
}

func (s *Source) renderAll(lines []string) ([]string, error) {
	targets := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		target, err := s.Render(line)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// ReadAddresses reads one address per line. Blank lines are skipped.
func (s *Source) ReadAddresses(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading addresses")
	}
	targets, err := s.renderAll(lines)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.New("address list is empty")
	}
	return targets, nil
}

func (s *Source) ReadAddressFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening address file")
	}
	defer f.Close()
	targets, err := s.ReadAddresses(f)
	return targets, errors.Wrapf(err, "address file %s", path)
}

// ReadRanges reads a CSV table with a header naming at least the low and
// street columns; a high column is optional. Each row becomes one target.
func (s *Source) ReadRanges(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading range header")
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	lowCol, okLow := cols["low"]
	streetCol, okStreet := cols["street"]
	highCol, okHigh := cols["high"]
	if !okLow || !okStreet {
		return nil, errors.Errorf("range table needs low and street columns, got %v", header)
	}

	var targets []string
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading range row %d", line)
		}
		low, err := strconv.Atoi(strings.TrimSpace(row[lowCol]))
		if err != nil {
			return nil, errors.Wrapf(err, "range row %d: low", line)
		}
		a := Address{Num: strconv.Itoa(low), Street: strings.TrimSpace(row[streetCol]), Low: low, High: low}
		if okHigh {
			if high, err := strconv.Atoi(strings.TrimSpace(row[highCol])); err == nil {
				a.High = high
			}
		}
		target, err := s.engine.Execute(s.tmpl, a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		return nil, errors.New("range table is empty")
	}
	return targets, nil
}

func (s *Source) ReadRangeFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening range file")
	}
	defer f.Close()
	targets, err := s.ReadRanges(f)
	return targets, errors.Wrapf(err, "range file %s", path)
}
