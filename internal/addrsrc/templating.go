package addrsrc

import (
	"bytes"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultURLTemplate renders an address into a search against the address service.
const DefaultURLTemplate = `https://address.mivoter.org/index.php?max=5&{{if .Num}}num={{.Num}}&{{end}}street={{query .Street}}`

// TemplateEngine handles parsing and executing URL templates
type TemplateEngine struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	funcMap template.FuncMap
}

// Address is passed to the execution context
type Address struct {
	Num    string
	Street string
	Low    int
	High   int
}

// NewTemplateEngine initializes the engine and its functions
func NewTemplateEngine(seed int64) *TemplateEngine {
	e := &TemplateEngine{
		rnd: rand.New(rand.NewSource(seed)),
	}

	e.funcMap = template.FuncMap{
		"query":        queryEscape,
		"randomInt":    e.randomInt,
		"randomChoice": e.randomChoice,
		"uuid":         func() string { return uuid.New().String() },
	}

	return e
}

// Preprocess converts simple variables {{num}} to Go template syntax {{.Num}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{num}}", "{{.Num}}")
	s = strings.ReplaceAll(s, "{{street}}", "{{query .Street}}")
	return s
}

// Parse creates a new template with the engine's functions
func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Funcs(e.funcMap).Parse(e.Preprocess(text))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing template %q", name)
	}
	return t, nil
}

// Execute runs the template with data
func (e *TemplateEngine) Execute(t *template.Template, data Address) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "rendering %q", data.Street)
	}
	return buf.String(), nil
}

// --- Functions ---

func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// randomInt returns a value in [min, max]; it returns min when the range is empty.
func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(max-min+1) + min
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return choices[e.rnd.Intn(len(choices))]
}
