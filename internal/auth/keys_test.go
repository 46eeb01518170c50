package auth

import (
	"testing"

	"rwkvd/internal/config"
)

func TestAuthorize(t *testing.T) {
	ks := NewKeystore([]config.AppKey{
		{AppID: "admin", SecretKey: "s3cret"},
		{AppID: "tenant", SecretKey: "other"},
	})
	if !ks.Authorize("admin", "s3cret") {
		t.Fatalf("valid key rejected")
	}
	if ks.Authorize("admin", "wrong") {
		t.Fatalf("wrong secret accepted")
	}
	if ks.Authorize("nobody", "s3cret") {
		t.Fatalf("unknown app id accepted")
	}
	if ks.Authorize("", "") {
		t.Fatalf("empty credentials accepted")
	}
}

func TestEmptyKeystoreIsOpen(t *testing.T) {
	ks := NewKeystore(nil)
	if !ks.Empty() {
		t.Fatalf("expected empty keystore")
	}
	if !ks.Authorize("anyone", "anything") {
		t.Fatalf("open instance should authorize every caller")
	}
}
