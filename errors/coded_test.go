package errors

import (
	"errors"
	"testing"
)

func TestKind_NumberAndString(t *testing.T) {
	tests := []struct {
		kind   Kind
		number int
		reason string
	}{
		{KindInvalidPath, 404, "Invalid path"},
		{KindPathNotFound, 404, "Path not found"},
		{KindAmbiguousPath, 400, "Ambiguous path"},
		{KindTypeMismatch, 400, "Type mismatch"},
		{KindOutOfBounds, 400, "Value passed is out of bounds"},
		{KindNoPermission, 403, "No permission"},
		{KindInvalidToken, 401, "Invalid Token"},
		{KindUpstreamUnavailable, 501, "Upstream unavailable"},
		{KindSchemaError, 400, "Schema error"},
		{KindGenericError, 400, "Generic error"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := tt.kind.Number(); got != tt.number {
				t.Errorf("Number() = %d, want %d", got, tt.number)
			}
			if got := tt.kind.String(); got != tt.reason {
				t.Errorf("String() = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestCodedError_Envelope(t *testing.T) {
	err := OutOfBounds("Value passed is out of bounds")

	if err.Number() != 400 {
		t.Errorf("Number() = %d, want 400", err.Number())
	}
	if err.Reason() != "Value passed is out of bounds" {
		t.Errorf("Reason() = %q", err.Reason())
	}
	if err.Error() != "Value passed is out of bounds" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCodedError_Unwrap(t *testing.T) {
	cause := errors.New("nats: no responders available for request")
	err := UpstreamUnavailable("permission manager unreachable", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find wrapped cause")
	}
	if err.Number() != 501 {
		t.Errorf("Number() = %d, want 501", err.Number())
	}
}

func TestGenericError_PreservesCauseMessage(t *testing.T) {
	cause := errors.New("unexpected nil store")
	err := GenericError(cause)

	if err.Number() != 400 {
		t.Errorf("Number() = %d, want 400", err.Number())
	}
	if err.Message != cause.Error() {
		t.Errorf("Message = %q, want %q", err.Message, cause.Error())
	}
}
