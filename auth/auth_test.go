package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func TestPermissionSet_GlobMatch(t *testing.T) {
	ps := PermissionSet{
		{Pattern: "Vehicle.**", Read: true, Write: false},
		{Pattern: "Vehicle.Acceleration.*", Read: true, Write: true},
		{Pattern: "Vehicle.Speed", Read: true, Write: true},
	}

	if !ps.CanRead("Vehicle.Cabin.DoorCount") {
		t.Error("expected Vehicle.** to grant read on an unrelated leaf")
	}
	if ps.CanWrite("Vehicle.Cabin.DoorCount") {
		t.Error("Vehicle.** only grants read, not write")
	}
	if !ps.CanWrite("Vehicle.Acceleration.Lateral") {
		t.Error("expected the more specific Acceleration.* rule to grant write")
	}
	if !ps.CanWrite("Vehicle.Speed") {
		t.Error("expected the literal Vehicle.Speed rule to grant write")
	}
	if ps.CanRead("Other.Signal") {
		t.Error("expected no rule to match a path outside Vehicle")
	}
}

func TestPermissionSet_TieBrokenByDeclarationOrder(t *testing.T) {
	ps := PermissionSet{
		{Pattern: "Vehicle.*", Read: true, Write: false},
		{Pattern: "Vehicle.*", Read: false, Write: true},
	}
	// Equal specificity: first declared rule wins.
	if !ps.CanRead("Vehicle.Speed") {
		t.Error("expected the first declared rule to win the tie")
	}
	if ps.CanWrite("Vehicle.Speed") {
		t.Error("expected the first declared rule (read-only) to win, not the second")
	}
}

func signToken(t *testing.T, priv *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	header := map[string]any{"alg": "RS256", "typ": "JWT"}
	headerJSON, _ := json.Marshal(header)
	claimsJSON, _ := json.Marshal(claims)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	hashed := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hashed[:])
	if err != nil {
		t.Fatal(err)
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func TestVerifier_ValidToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	keys := NewKeyStore(&priv.PublicKey)
	v, err := NewVerifier(context.Background(), keys, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	token := signToken(t, priv, map[string]any{
		"sub": "driver-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"kuksa-vss": map[string]any{
			"Vehicle.Speed": "r",
		},
	})

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "driver-1" {
		t.Errorf("Subject = %q, want driver-1", claims.Subject)
	}
	if !claims.Permissions.CanRead("Vehicle.Speed") {
		t.Error("expected Vehicle.Speed read permission")
	}
}

func TestVerifier_ExpiredToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	keys := NewKeyStore(&priv.PublicKey)
	v, err := NewVerifier(context.Background(), keys, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	token := signToken(t, priv, map[string]any{
		"sub": "driver-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifier_WrongKeyRejected(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	keys := NewKeyStore(&other.PublicKey) // installed key does not match the signer
	v, err := NewVerifier(context.Background(), keys, 0)
	if err != nil {
		t.Fatal(err)
	}

	token := signToken(t, priv, map[string]any{
		"sub": "driver-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected signature verification to fail against the wrong key")
	}
}

func TestKeyStore_Rotation(t *testing.T) {
	priv1, _ := rsa.GenerateKey(rand.Reader, 2048)
	priv2, _ := rsa.GenerateKey(rand.Reader, 2048)
	keys := NewKeyStore(&priv1.PublicKey)
	v, err := NewVerifier(context.Background(), keys, 0)
	if err != nil {
		t.Fatal(err)
	}

	token := signToken(t, priv2, map[string]any{
		"sub": "driver-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected verification to fail before rotation")
	}

	keys.Install(&priv2.PublicKey)
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("expected verification to succeed after rotation: %v", err)
	}
}

func TestChannel_IsStillValid(t *testing.T) {
	ch := Channel{}
	claims := Claims{ExpiresAt: time.Now().Add(time.Hour).Unix(), Permissions: PermissionSet{
		{Pattern: "Vehicle.Speed", Read: true},
	}}
	ch.Install(claims)

	if !ch.IsStillValid(time.Now().Unix()) {
		t.Error("expected channel to be valid before expiry")
	}
	if !ch.CheckReadAccess("Vehicle.Speed") {
		t.Error("expected read access granted by installed permissions")
	}
	if ch.CheckWriteAccess("Vehicle.Speed") {
		t.Error("permission set only grants read")
	}
	if ch.IsStillValid(claims.ExpiresAt + 1) {
		t.Error("expected channel to be invalid after expiry")
	}
}
