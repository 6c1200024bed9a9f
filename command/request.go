package command

import (
	"bytes"
	"encoding/json"

	"github.com/c360/vssbroker/errors"
	"github.com/c360/vssbroker/vsspath"
)

// request is the union of every action's possible fields. Not every field
// applies to every action; schema validation enforces which ones must be
// present for a given action.
type request struct {
	Action         string          `json:"action"`
	RequestID      json.Number     `json:"requestId"`
	Path           json.RawMessage `json:"path"`
	Value          any             `json:"value"`
	Tokens         string          `json:"tokens"`
	ClientID       string          `json:"clientid"`
	Secret         string          `json:"secret"`
	SubscriptionID json.Number     `json:"subscriptionId"`
}

func decodeRequest(raw []byte) (request, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var req request
	if err := dec.Decode(&req); err != nil {
		return request{}, errors.SchemaError("malformed request: " + err.Error())
	}
	return req, nil
}

// tryExtractRequestID attempts a best-effort partial decode of a request
// that failed full decoding, so an error envelope can still echo the
// client's action and requestId rather than reporting them as absent.
func tryExtractRequestID(raw []byte) (action string, requestID json.Number) {
	var partial struct {
		Action    string      `json:"action"`
		RequestID json.Number `json:"requestId"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	_ = dec.Decode(&partial) // best-effort; a zero value is fine on failure
	return partial.Action, partial.RequestID
}

// resolvePath accepts either wire form of a path: a dotted string
// ("Vehicle.Speed") or a segment array (["Vehicle", "Speed"]), both
// funneled through vsspath.Parse.
func resolvePath(raw json.RawMessage) (vsspath.VSSPath, error) {
	if len(raw) == 0 {
		return vsspath.VSSPath{}, errors.InvalidPath("path is required")
	}

	var dotted string
	if err := json.Unmarshal(raw, &dotted); err == nil {
		return vsspath.Parse(dotted)
	}

	var segments []string
	if err := json.Unmarshal(raw, &segments); err == nil {
		return vsspath.Parse(joinSegments(segments))
	}

	return vsspath.VSSPath{}, errors.InvalidPath("path must be a dotted string or an array of segments")
}

func joinSegments(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
