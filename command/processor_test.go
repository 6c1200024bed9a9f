package command

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/c360/vssbroker/auth"
	"github.com/c360/vssbroker/signaltree"
	"github.com/c360/vssbroker/subscription"
)

const testDoc = `{
  "Vehicle": {
    "type": "branch",
    "uuid": "vehicle-root",
    "children": {
      "Speed": {"type": "sensor", "datatype": "float", "uuid": "speed-uuid"},
      "Cabin": {
        "type": "branch",
        "uuid": "cabin-branch",
        "children": {
          "DoorCount": {"type": "attribute", "datatype": "uint8", "uuid": "door-count"},
          "WindowOpen": {"type": "sensor", "datatype": "boolean", "uuid": "window-open"}
        }
      }
    }
  }
}`

type harness struct {
	proc *Processor
	subs *subscription.Engine
	sent []delivery
}

type delivery struct {
	connID  uint32
	payload []byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{}

	subs, err := subscription.NewEngine(0, 0, func(connID uint32, payload []byte) error {
		h.sent = append(h.sent, delivery{connID: connID, payload: payload})
		return nil
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := subs.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = subs.Stop(time.Second) })

	// Route published signal writes into the subscription engine, same as
	// server wiring does for a live connection.
	store := signaltree.New(subs.Publish)
	if err := store.Load([]byte(testDoc)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	verifier, err := auth.NewVerifier(context.Background(), auth.NewKeyStore(nil), 0)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	authenticator := auth.NewAuthenticator(verifier)

	h.proc = NewProcessor(store, authenticator, nil, subs)
	h.subs = subs
	return h
}

func authorizedChannel(connID uint32) *auth.Channel {
	ch := &auth.Channel{ConnID: connID}
	ch.Install(auth.Claims{
		Subject:    "driver-1",
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
		ModifyTree: false,
		Permissions: auth.PermissionSet{
			{Pattern: "Vehicle.**", Read: true, Write: true},
		},
	})
	return ch
}

func decodeEnvelope(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (raw=%s)", err, raw)
	}
	return env
}

func TestHandle_GetUnauthorizedDenied(t *testing.T) {
	h := newHarness(t)
	ch := &auth.Channel{ConnID: 1}

	raw := []byte(`{"action":"get","requestId":"1","path":"Vehicle.Speed"}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))

	errObj, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error envelope, got %v", env)
	}
	if errObj["number"].(float64) != 401 {
		t.Errorf("number = %v, want 401", errObj["number"])
	}
}

func TestHandle_GetAfterTokenExpiryDenied(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)
	ch.TokenExpiry = time.Now().Add(-time.Second).Unix()

	raw := []byte(`{"action":"get","requestId":"6","path":"Vehicle.Speed"}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))

	errObj, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error envelope, got %v", env)
	}
	if errObj["number"].(float64) != 401 {
		t.Errorf("number = %v, want 401 even though the path is otherwise readable", errObj["number"])
	}
}

func TestHandle_GetUnknownPathReturns404(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)

	raw := []byte(`{"action":"get","requestId":"1","path":"Vehicle.No.Such"}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))

	errObj, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error envelope, got %v", env)
	}
	if errObj["number"].(float64) != 404 {
		t.Errorf("number = %v, want 404", errObj["number"])
	}
}

func TestHandle_WildcardGetWithPartialPermissionWarns(t *testing.T) {
	h := newHarness(t)
	ch := &auth.Channel{ConnID: 1}
	ch.Install(auth.Claims{
		Subject:   "driver-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		Permissions: auth.PermissionSet{
			{Pattern: "Vehicle.Cabin.DoorCount", Read: true},
		},
	})

	raw := []byte(`{"action":"get","requestId":"5","path":"Vehicle.Cabin.*"}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))

	if _, bad := env["error"]; bad {
		t.Fatalf("unexpected error envelope: %v", env)
	}
	values, ok := env["values"].([]any)
	if !ok || len(values) != 1 {
		t.Fatalf("expected exactly one readable value, got %v", env["values"])
	}
	first := values[0].(map[string]any)
	if first["path"] != "Vehicle.Cabin.DoorCount" {
		t.Errorf("path = %v, want Vehicle.Cabin.DoorCount", first["path"])
	}
	warning, ok := env["warning"].(string)
	if !ok || warning == "" {
		t.Fatalf("expected a warning naming the denied leaf, got %v", env["warning"])
	}
}

func TestHandle_SetThenGetRoundTrips(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)

	setRaw := []byte(`{"action":"set","requestId":"2","path":"Vehicle.Speed","value":42.5}`)
	setEnv := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, setRaw))
	if _, bad := setEnv["error"]; bad {
		t.Fatalf("unexpected error on set: %v", setEnv)
	}

	getRaw := []byte(`{"action":"get","requestId":"3","path":"Vehicle.Speed"}`)
	getEnv := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, getRaw))
	if v, ok := getEnv["value"].(float64); !ok || v != 42.5 {
		t.Errorf("value = %v, want 42.5", getEnv["value"])
	}
}

func TestHandle_SetOutOfBoundsReportsCoercionError(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)

	raw := []byte(`{"action":"set","requestId":"4","path":"Vehicle.Cabin.DoorCount","value":300}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))

	errObj, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error envelope, got %v", env)
	}
	if errObj["number"].(float64) != 400 {
		t.Errorf("number = %v, want 400", errObj["number"])
	}
}

func TestHandle_SubscribeThenSetDeliversNotification(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(7)

	subRaw := []byte(`{"action":"subscribe","requestId":"5","path":"Vehicle.Speed"}`)
	subEnv := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, subRaw))
	if _, bad := subEnv["error"]; bad {
		t.Fatalf("unexpected error on subscribe: %v", subEnv)
	}
	subID, ok := subEnv["subscriptionId"].(float64)
	if !ok || subID == 0 {
		t.Fatalf("expected a non-zero subscriptionId, got %v", subEnv["subscriptionId"])
	}

	setRaw := []byte(`{"action":"set","requestId":"6","path":"Vehicle.Speed","value":99}`)
	setEnv := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, setRaw))
	if _, bad := setEnv["error"]; bad {
		t.Fatalf("unexpected error on set: %v", setEnv)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(h.sent) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if len(h.sent) == 0 {
		t.Fatal("expected a notification to be delivered to connection 7")
	}
	if h.sent[0].connID != 7 {
		t.Errorf("delivered to connID %d, want 7", h.sent[0].connID)
	}

	var notif map[string]any
	if err := json.Unmarshal(h.sent[0].payload, &notif); err != nil {
		t.Fatalf("unmarshal notification: %v", err)
	}
	if notif["value"].(float64) != 99 {
		t.Errorf("notification value = %v, want 99", notif["value"])
	}
}

func TestHandle_UnsubscribeRejectsWrongOwner(t *testing.T) {
	h := newHarness(t)
	subscriber := authorizedChannel(3)

	subRaw := []byte(`{"action":"subscribe","requestId":"7","path":"Vehicle.Speed"}`)
	subEnv := decodeEnvelope(t, h.proc.Handle(context.Background(), subscriber, subRaw))
	subID := subEnv["subscriptionId"].(float64)

	intruder := authorizedChannel(4)
	unsubRaw := []byte(fmt.Sprintf(`{"action":"unsubscribe","requestId":"8","subscriptionId":%d}`, int64(subID)))
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), intruder, unsubRaw))
	if _, bad := env["error"]; !bad {
		t.Fatal("expected unsubscribe by a different connection to fail")
	}
}

func TestHandle_GetMetadataReturnsAncestorChain(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)

	raw := []byte(`{"action":"getMetadata","requestId":"9","path":"Vehicle.Cabin.DoorCount"}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))

	metadata, ok := env["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata object, got %v", env)
	}
	if _, ok := metadata["Vehicle"]; !ok {
		t.Errorf("expected Vehicle ancestor in metadata chain: %v", metadata)
	}
}

func TestHandle_UnknownActionIsSchemaError(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)

	raw := []byte(`{"action":"frobnicate","requestId":"10"}`)
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))
	errObj, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error envelope, got %v", env)
	}
	if errObj["number"].(float64) != 400 {
		t.Errorf("number = %v, want 400", errObj["number"])
	}
}

func TestHandle_MalformedJSONStillEchoesWhatItCan(t *testing.T) {
	h := newHarness(t)
	ch := authorizedChannel(1)

	raw := []byte(`{"action":"get","requestId":"11",`) // truncated
	env := decodeEnvelope(t, h.proc.Handle(context.Background(), ch, raw))
	if env["requestId"] != "11" {
		t.Errorf("requestId = %v, want 11 (best-effort extraction)", env["requestId"])
	}
}
