package store

import (
	"fmt"
	"testing"

	"google.golang.org/api/option"
)

func TestCredentialOptionPrefersInlineJSON(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS", `{"type":"service_account","project_id":"p"}`)
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/some/key.json")

	opt := credentialOption()
	if opt == nil {
		t.Fatal("credentialOption() = nil, want inline JSON credentials")
	}
	// GOOGLE_CREDENTIALS carries the JSON blob itself, never a path.
	want := option.WithCredentialsJSON([]byte(`{"type":"service_account","project_id":"p"}`))
	if got, expected := typeName(opt), typeName(want); got != expected {
		t.Errorf("option type = %s, want %s", got, expected)
	}
}

func TestCredentialOptionFallsBackToCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/some/key.json")

	opt := credentialOption()
	if opt == nil {
		t.Fatal("credentialOption() = nil, want credentials file option")
	}
	want := option.WithCredentialsFile("/some/key.json")
	if got, expected := typeName(opt), typeName(want); got != expected {
		t.Errorf("option type = %s, want %s", got, expected)
	}
}

func TestCredentialOptionDefaultsToNil(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if opt := credentialOption(); opt != nil {
		t.Errorf("credentialOption() = %v, want nil for application default credentials", opt)
	}
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
