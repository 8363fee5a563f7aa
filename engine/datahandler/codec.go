package datahandler

import (
	"encoding/json"
	"io"

	"github.com/flowerchecker/taskchain/engine/core"
)

// Codec is the extension point spec.md §4.6 reserves for the
// `.pd`/`.npy`/figure artifact formats the original ships natively:
// out of scope here (spec.md §1 Non-goals), but any caller may
// register its own Codec and pass it to New for the `single` and
// `streamed` families. JSONCodec is the one reference implementation
// this module ships.
type Codec interface {
	Encode(w io.Writer, v any) error
	Decode(r io.Reader) (any, error)
	Ext() string
}

// JSONCodec encodes values with encoding/json — the one artifact
// format spec.md §4.6 says ships without an external dependency.
type JSONCodec struct{}

func (JSONCodec) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (JSONCodec) Decode(r io.Reader) (any, error) {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, core.PersistenceError("DECODE_FAILED", "could not decode JSON artifact", err, nil)
	}
	return v, nil
}

func (JSONCodec) Ext() string { return ".json" }

func errUnknownKind(kind string) error {
	return core.PersistenceError("UNKNOWN_HANDLER_KIND", "unknown data handler kind `"+kind+"`", nil, map[string]any{
		"kind": kind,
	})
}
