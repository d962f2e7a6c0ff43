package input

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array element by element, sending each to
// a channel. Both channels are closed when decoding completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "input: json: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("input: json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "input: json: context cancelled")
				return
			}
			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "input: json: decode element")
				return
			}
			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "input: json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "input: json: read closing token")
		}
	}()

	return outCh, errCh
}

// threadRef accepts either "id" or {"thread_id": "id"}.
type threadRef string

func (t *threadRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = threadRef(s)
		return nil
	}
	var obj struct {
		ThreadID string `json:"thread_id"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return eris.Errorf("input: json: element %s is neither a string nor an object", string(b))
	}
	if obj.ThreadID != "" {
		*t = threadRef(obj.ThreadID)
	} else {
		*t = threadRef(obj.ID)
	}
	return nil
}

func jsonIDs(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open json")
	}
	defer f.Close() //nolint:errcheck

	refs, errCh := DecodeJSONArray[threadRef](ctx, f)
	var ids []string
	for ref := range refs {
		ids = append(ids, string(ref))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return ids, nil
}
