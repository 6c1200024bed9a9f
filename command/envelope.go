package command

import (
	"encoding/json"
	"time"

	goerrors "errors"

	"github.com/c360/vssbroker/errors"
)

func newEnvelope(action string, requestID json.Number) map[string]any {
	env := map[string]any{"timestamp": time.Now().Unix()}
	if action != "" {
		env["action"] = action
	}
	if requestID != "" {
		env["requestId"] = requestID
	}
	return env
}

// toEnvelope is the single boundary function that turns an error into a
// wire-level error envelope: {action, requestId, timestamp, error:
// {number, reason, message}}. Any error that is not already an
// *errors.CodedError is wrapped as a GenericError (400).
func toEnvelope(err error, action string, requestID json.Number) []byte {
	var ce *errors.CodedError
	if !goerrors.As(err, &ce) {
		ce = errors.GenericError(err)
	}

	env := newEnvelope(action, requestID)
	env["error"] = map[string]any{
		"number":  ce.Number(),
		"reason":  ce.Reason(),
		"message": ce.Error(),
	}

	b, marshalErr := json.Marshal(env)
	if marshalErr != nil {
		// Should not happen for this fixed shape; fall back to a minimal,
		// definitely-marshalable envelope rather than returning nothing.
		b, _ = json.Marshal(map[string]any{
			"error":     map[string]any{"number": 400, "reason": "Generic error", "message": "internal error"},
			"timestamp": time.Now().Unix(),
		})
	}
	return b
}

func marshalEnvelope(env map[string]any) []byte {
	b, err := json.Marshal(env)
	if err != nil {
		return toEnvelope(err, "", "")
	}
	return b
}
