package backend

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Result is the uniform shape of every relay outcome.
// Fields the backend returns beyond the known ones are kept in Extra and
// passed through to the caller unchanged.
type Result struct {
	Success  bool
	Response string
	Error    string
	FileID   string
	Extra    map[string]json.RawMessage
}

// Failure builds an unsuccessful result.
func Failure(message string) *Result {
	return &Result{Success: false, Error: message}
}

// With returns a copy of r carrying an additional field.
func (r *Result) With(key string, value any) *Result {
	raw, err := json.Marshal(value)
	if err != nil {
		return r
	}
	out := *r
	out.Extra = make(map[string]json.RawMessage, len(r.Extra)+1)
	for k, v := range r.Extra {
		out.Extra[k] = v
	}
	out.Extra[key] = raw
	return &out
}

func (r Result) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		m[k] = v
	}
	m["success"] = r.Success
	if r.Response != "" {
		m["response"] = r.Response
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.FileID != "" {
		m["file_id"] = r.FileID
	}
	return json.Marshal(m)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("response is not a JSON object")
	}

	*r = Result{}
	raw, ok := fields["success"]
	if !ok {
		return errors.New("response has no success flag")
	}
	if err := json.Unmarshal(raw, &r.Success); err != nil {
		return errors.Wrap(err, "success flag is not a boolean")
	}
	r.Response = textField(fields["response"])
	r.Error = textField(fields["error"])
	r.FileID = textField(fields["file_id"])

	for _, k := range []string{"success", "response", "error", "file_id"} {
		delete(fields, k)
	}
	if len(fields) > 0 {
		r.Extra = fields
	}
	return nil
}

// textField reads a JSON string, or keeps any other non-null value as raw JSON text.
func textField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
