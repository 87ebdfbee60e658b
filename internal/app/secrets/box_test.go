package secrets

import (
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestBoxRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	sealed, err := box.Seal("sk_live_verysecret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if strings.Contains(sealed, "verysecret") {
		t.Fatal("sealed value leaks plaintext")
	}

	got, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got != "sk_live_verysecret" {
		t.Fatalf("got %q", got)
	}
}

func TestBoxSealIsRandomized(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	a, _ := box.Seal("same")
	b, _ := box.Seal("same")

	if a == b {
		t.Fatal("two seals of the same plaintext must differ")
	}
}

func TestBoxOpenRejectsTampering(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	sealed, err := box.Seal("secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tampered := "A" + sealed[1:]
	if tampered == sealed {
		tampered = "B" + sealed[1:]
	}

	if _, err := box.Open(tampered); err == nil {
		t.Fatal("tampered value must not open")
	}
}

func TestNewBoxRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "abcd", "zz" + testKey[2:]} {
		if _, err := NewBox(key); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}
