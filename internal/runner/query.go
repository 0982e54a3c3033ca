package runner

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type queryParam struct {
	key   string
	value string
}

// Query is a target URL split into its fixed part and the two fields a
// simulated user types: a numeric id and free text.
type Query struct {
	Base   string
	Num    string
	Street string

	params      []queryParam
	streetField string
}

// ParseQuery splits target on its query string, keeping parameter order.
// numField and streetField name the numeric id and free-text parameters.
func ParseQuery(target, numField, streetField string) (Query, error) {
	i := strings.IndexByte(target, '?')
	if i < 0 {
		return Query{}, errors.Errorf("target %q has no query", target)
	}
	if _, err := url.Parse(target[:i]); err != nil {
		return Query{}, errors.Wrapf(err, "target %q", target)
	}

	q := Query{Base: target[:i], streetField: streetField}
	for _, part := range strings.Split(target[i+1:], "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return Query{}, errors.Wrapf(err, "query key %q", k)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			// Unescaped literals such as "Main St" are accepted as-is.
			value = v
		}
		switch key {
		case numField:
			q.Num = value
		case streetField:
			q.Street = value
		}
		q.params = append(q.params, queryParam{key: key, value: value})
	}
	return q, nil
}

// Partial renders the query with the free-text field cut to n runes.
func (q Query) Partial(n int) string {
	street := []rune(q.Street)
	if n < 0 {
		n = 0
	}
	if n > len(street) {
		n = len(street)
	}

	parts := make([]string, 0, len(q.params))
	for _, p := range q.params {
		v := p.value
		if p.key == q.streetField {
			v = string(street[:n])
		}
		parts = append(parts, escapeQuery(p.key)+"="+escapeQuery(v))
	}
	return q.Base + "?" + strings.Join(parts, "&")
}

// String renders the full query.
func (q Query) String() string {
	return q.Partial(len([]rune(q.Street)))
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
