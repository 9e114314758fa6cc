// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// path ids, dates with a today default, amounts, the wizard's item rows and
// bodies that arrive either form-encoded or as JSON.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finmgr/internal/core"
)

// maxFormBody caps url-encoded and JSON bodies. Uploads have their own limit.
const maxFormBody = 1 << 20

var errInvalidID = errors.New("invalid id")

// ParseIDParam reads a positive integer path wildcard such as {id}.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	return parseID(r.PathValue(name))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// FormValue returns a sanitized form field.
func FormValue(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

// ParseDateOrToday parses a YYYY-MM-DD field. An empty field means today.
func ParseDateOrToday(form url.Values, key string, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(form.Get(key))
	if v == "" {
		y, m, d := now.Date()
		return core.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
	}
	return core.ParseDate(v)
}

// ParseAction splits a wizard action such as "remove_item:2" into its name
// and index. Index is -1 when the action carries none.
func ParseAction(form url.Values) (string, int) {
	name, arg, found := strings.Cut(strings.TrimSpace(form.Get("action")), ":")
	if !found {
		return name, -1
	}
	i, err := strconv.Atoi(arg)
	if err != nil {
		return name, -1
	}
	return name, i
}

// ParseItems rebuilds the wizard's line items from the parallel
// item_description / item_quantity / item_unit_price / item_days fields.
// ok is false when the form did not carry the item table.
func ParseItems(form url.Values) (items []core.LineItem, ok bool) {
	desc, ok := form["item_description"]
	if !ok {
		return nil, false
	}
	qty := form["item_quantity"]
	price := form["item_unit_price"]
	days := form["item_days"]
	at := func(vals []string, i int) string {
		if i < len(vals) {
			return sanitizeInput(vals[i])
		}
		return ""
	}
	items = make([]core.LineItem, 0, len(desc))
	for i := range desc {
		items = append(items, core.LineItem{
			Description: at(desc, i),
			Quantity:    at(qty, i),
			UnitPrice:   at(price, i),
			Days:        at(days, i),
		})
	}
	return items, true
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBody))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Raw returns a value without sanitizing it. Passwords must reach the
// backend exactly as typed.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format.")
	}
	return nil
}
