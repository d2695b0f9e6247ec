package fetcher

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeArray decodes a top-level JSON array of T. An empty body decodes to
// nil. Anything other than an array is an error, as is trailing garbage
// after the closing bracket.
func DecodeArray[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "json: read array start")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, eris.Errorf("json: want array, got %v", tok)
	}

	var out []T
	for i := 0; dec.More(); i++ {
		var item T
		if err := dec.Decode(&item); err != nil {
			return nil, eris.Wrapf(err, "json: element %d", i)
		}
		out = append(out, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "json: read array end")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, eris.New("json: data after array")
	}
	return out, nil
}

// DecodeObject decodes a single JSON value into a new T.
func DecodeObject[T any](r io.Reader) (*T, error) {
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &v, nil
}
