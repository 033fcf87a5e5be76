package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Write writes strict JSON output for CLI commands.
//
// NOTE: We intentionally keep output strict JSON only, so command output is
// always machine-consumable.
func Write(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
