// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// path values, calendar query parameters, JSON bodies and label uploads.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kcal/internal/core"
	"kcal/internal/estimate"
	"kcal/internal/middleware/trace"
)

const (
	// SessionHeader names the client's dialog slot. Requests without it get
	// a slot of their own.
	SessionHeader = "X-Session-ID"
	// IdempotencyHeader names a submission; concurrent duplicates share one
	// estimation.
	IdempotencyHeader = "Idempotency-Key"

	maxJSONBody    = 1 << 20
	maxImageBytes  = 8 << 20
	maxHeaderToken = 128
)

// DecodeJSON reads a size-limited JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "required"}
		}
		return &core.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}

// PathDate parses the {date} path value.
func PathDate(r *http.Request) (core.DateKey, error) {
	return core.ParseDateKey(r.PathValue("date"))
}

// PathCategory parses a category path value.
func PathCategory(r *http.Request, name string) (core.Category, error) {
	return core.ParseCategory(r.PathValue(name))
}

// PathIndex parses a non-negative integer path value.
func PathIndex(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n < 0 {
		return 0, &core.ValidationError{Field: name, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// ParseMonthParams extracts year and month from the query, defaulting to
// the month containing today.
func ParseMonthParams(query url.Values, today core.DateKey) (int, time.Month, error) {
	year, month, _ := today.Date()

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return 0, 0, &core.ValidationError{Field: "year", Reason: "must be 1-9999"}
		}
		year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, &core.ValidationError{Field: "month", Reason: "must be 1-12"}
		}
		month = time.Month(m)
	}
	return year, month, nil
}

const requestSlotPrefix = "request:"

// SessionSlot returns the dialog slot for r. Without a session header the
// slot lives for one request.
func SessionSlot(r *http.Request) string {
	if s := headerToken(r, SessionHeader); s != "" {
		return "session:" + s
	}
	id := trace.GetRequestID(r.Context())
	if id == "" {
		id = trace.GenerateRequestID()
	}
	return requestSlotPrefix + id
}

// IdempotencyKey returns the caller's submission key, or "".
func IdempotencyKey(r *http.Request) string {
	if k := headerToken(r, IdempotencyHeader); k != "" {
		return "idem:" + k
	}
	return ""
}

func headerToken(r *http.Request, name string) string {
	v := sanitizeInput(r.Header.Get(name))
	if len(v) > maxHeaderToken {
		return ""
	}
	return v
}

// ReadLabelImage reads the "image" part of a multipart upload.
func ReadLabelImage(w http.ResponseWriter, r *http.Request) (estimate.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<16))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return estimate.Image{}, err
		}
		return estimate.Image{}, &core.ValidationError{Field: "image", Reason: "expected multipart form"}
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		return estimate.Image{}, &core.ValidationError{Field: "image", Reason: "required"}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return estimate.Image{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return estimate.Image{}, &core.ValidationError{Field: "image", Reason: "empty file"}
	}
	if len(data) > maxImageBytes {
		return estimate.Image{}, &core.ValidationError{Field: "image", Reason: "too large"}
	}

	mediaType := hdr.Header.Get("Content-Type")
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return estimate.Image{}, &core.ValidationError{Field: "image", Reason: "not an image"}
	}
	mediaType, _, _ = strings.Cut(mediaType, ";")
	return estimate.Image{Data: data, MediaType: mediaType}, nil
}

// Grams accepts either a JSON number or a string such as "150g" or "12,5".
type Grams float64

func (g *Grams) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseGrams(s)
		if err != nil {
			return err
		}
		*g = Grams(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return &core.ValidationError{Field: "grams", Reason: "not a number"}
	}
	*g = Grams(v)
	return nil
}

// FormValue accepts a JSON string, number or null and keeps its text,
// so goal inputs can be parsed with the same fallback rules as a form.
type FormValue string

func (f *FormValue) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FormValue(stringValue(v))
	return nil
}

// stringValue converts a decoded JSON scalar to its text form.
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

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
