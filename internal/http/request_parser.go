// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data:
// query dates and ranges, bounded integers, path ids and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nfcescan/internal/core"
)

var (
	errBadDate  = errors.New("formato de data inválido")
	errBadRange = errors.New("data_fim deve ser posterior a data_inicio")
)

// ParseDateParam reads key as YYYY-MM-DD. The bool reports whether the
// parameter was present at all.
func ParseDateParam(query url.Values, key string) (core.Date, bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(v)
	if err != nil || len(v) != len(core.DateLayout) {
		return core.Date{}, true, errBadDate
	}
	return d, true, nil
}

// ParsePeriodRange reads data_inicio and data_fim as the half-open range
// [data_inicio, data_fim). Missing bounds default to the month of today.
func ParsePeriodRange(query url.Values, today core.Date) (core.DateRange, error) {
	month := core.PeriodThisMonth.Range(today)

	start, ok, err := ParseDateParam(query, "data_inicio")
	if err != nil {
		return core.DateRange{}, err
	}
	if !ok {
		start = month.Start
	}
	end, ok, err := ParseDateParam(query, "data_fim")
	if err != nil {
		return core.DateRange{}, err
	}
	if !ok {
		end = month.End
	}
	if end.Before(start.Time) {
		return core.DateRange{}, errBadRange
	}
	return core.DateRange{Start: start, End: end}, nil
}

// ParseOptionalRange is ParsePeriodRange without defaults: a missing bound
// leaves that side of the range open.
func ParseOptionalRange(query url.Values) (core.DateRange, error) {
	start, _, err := ParseDateParam(query, "data_inicio")
	if err != nil {
		return core.DateRange{}, err
	}
	end, _, err := ParseDateParam(query, "data_fim")
	if err != nil {
		return core.DateRange{}, err
	}
	return core.DateRange{Start: start, End: end}, nil
}

// ParseLimitParam reads an integer in [min, max], returning def when the
// parameter is absent.
func ParseLimitParam(query url.Values, key string, def, min, max int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s deve ser um número inteiro", key)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s deve estar entre %d e %d", key, min, max)
	}
	return n, nil
}

// ParseIDParam reads a positive integer from the request's path wildcard name.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s inválido", name)
	}
	return id, nil
}

// ParseRequiredInt reads a mandatory positive integer query parameter.
func ParseRequiredInt(query url.Values, key string) (int64, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, fmt.Errorf("%s é obrigatório", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s inválido", key)
	}
	return n, nil
}

// DecodeJSONBody decodes a bounded JSON body into v. Trailing data after
// the first value is rejected.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("corpo JSON inválido: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("corpo JSON inválido: dados extras")
	}
	return nil
}
