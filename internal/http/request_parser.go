// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"finance/internal/core"
	"finance/internal/services"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: request body too large", core.ErrInvalidArgument)
	}
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

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		// Keep amounts exact instead of going through float64.
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON body", core.ErrInvalidArgument)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body", core.ErrInvalidArgument)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
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
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseRecordInput reads the fields of a new record from the request body.
// Amount may be a JSON number or a string.
func ParseRecordInput(r *http.Request) (services.RecordInput, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return services.RecordInput{}, err
	}
	return services.RecordInput{
		Date:     p.Get("date"),
		Category: p.Get("category"),
		Title:    p.Get("title"),
		Amount:   p.Get("amount"),
		Notes:    p.Get("notes"),
	}, nil
}

// ParseMonthParam returns the month query parameter; empty selects every month.
func ParseMonthParam(query url.Values) string {
	return strings.TrimSpace(query.Get("month"))
}

// DeleteTarget identifies the record a delete request refers to.
type DeleteTarget struct {
	Index int
	ID    uuid.UUID
	ByID  bool
}

// ParseDeleteTarget reads ?id= or ?index= from the query. id wins when both
// are present.
func ParseDeleteTarget(query url.Values) (DeleteTarget, error) {
	if raw := strings.TrimSpace(query.Get("id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return DeleteTarget{}, fmt.Errorf("%w: invalid id %q", core.ErrInvalidArgument, raw)
		}
		return DeleteTarget{ID: id, ByID: true}, nil
	}
	raw := strings.TrimSpace(query.Get("index"))
	if raw == "" {
		return DeleteTarget{}, fmt.Errorf("%w: index or id is required", core.ErrInvalidArgument)
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return DeleteTarget{}, fmt.Errorf("%w: invalid index %q", core.ErrInvalidArgument, raw)
	}
	return DeleteTarget{Index: index}, nil
}
