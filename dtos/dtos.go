// Package dtos moves data across the layer boundaries of a calyx service:
// request bodies into records, query strings into filters and find
// options.
package dtos

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/calyxweb/calyx"
	"github.com/calyxweb/calyx/kit/errors"
)

// Validator is implemented by DTOs that can check themselves after
// decoding.
type Validator interface {
	Validate() error
}

// DecodeRecord reads a single JSON object from rd as a record. When proto
// is non-nil the body is decoded through it first (rejecting unknown
// fields and running its Validate hook) before being flattened into a
// record.
func DecodeRecord(rd io.Reader, proto func() Validator) (calyx.Record, error) {
	if proto == nil {
		var rec calyx.Record
		if err := decodeStrict(rd, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	v := proto()
	if err := decodeStrict(rd, v); err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, validationErr(err)
	}
	return toRecord(v)
}

// DecodeRecords reads a JSON array of objects from rd as records, applying
// the same prototype validation per element as DecodeRecord.
func DecodeRecords(rd io.Reader, proto func() Validator) ([]calyx.Record, error) {
	var raw []json.RawMessage
	if err := decodeStrict(rd, &raw); err != nil {
		return nil, err
	}

	recs := make([]calyx.Record, 0, len(raw))
	for _, m := range raw {
		if proto == nil {
			var rec calyx.Record
			if err := json.Unmarshal(m, &rec); err != nil {
				return nil, invalidBody(err)
			}
			recs = append(recs, rec)
			continue
		}

		v := proto()
		if err := unmarshalStrict(m, v); err != nil {
			return nil, err
		}
		if err := v.Validate(); err != nil {
			return nil, validationErr(err)
		}
		rec, err := toRecord(v)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// FindOptionsFromRequest parses the skip, limit, sort and desc query
// parameters. Absent parameters leave their zero values: skip defaults to
// 0 and a zero limit means no limit.
func FindOptionsFromRequest(r *http.Request) (calyx.FindOptions, error) {
	var opts calyx.FindOptions
	q := r.URL.Query()

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, &errors.Error{Code: errors.EInvalid, Msg: "skip must be a non-negative integer"}
		}
		opts.Offset = n
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, &errors.Error{Code: errors.EInvalid, Msg: "limit must be a non-negative integer"}
		}
		opts.Limit = n
	}

	opts.SortBy = q.Get("sort")
	if v := q.Get("desc"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &errors.Error{Code: errors.EInvalid, Msg: "desc must be a boolean"}
		}
		opts.Descending = b
	}

	return opts, nil
}

// FilterFromRequest parses the q query parameter into a search filter. An
// empty or absent q matches everything.
func FilterFromRequest(r *http.Request) calyx.Filter {
	return calyx.Filter{Search: r.URL.Query().Get("q")}
}

func decodeStrict(rd io.Reader, v any) error {
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidBody(err)
	}
	return nil
}

func unmarshalStrict(m json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(m))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidBody(err)
	}
	return nil
}

// toRecord flattens a decoded DTO into a record by round-tripping it
// through json, so the DTO's json tags decide the column names.
func toRecord(v any) (calyx.Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &errors.Error{Code: errors.EInternal, Err: err}
	}
	var rec calyx.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, &errors.Error{Code: errors.EInternal, Err: err}
	}
	return rec, nil
}

func invalidBody(err error) error {
	return &errors.Error{Code: errors.EInvalid, Msg: "invalid request body", Err: err}
}

func validationErr(err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return &errors.Error{Code: errors.EUnprocessableEntity, Err: err}
}
