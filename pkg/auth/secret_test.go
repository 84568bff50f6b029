package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSecretNeverFormatsValue(t *testing.T) {
	s, _ := NewSecret("hunter2")

	for _, verb := range []string{"%v", "%s", "%+v", "%#v"} {
		if out := fmt.Sprintf(verb, s); strings.Contains(out, "hunter2") {
			t.Errorf("%s leaked the secret: %q", verb, out)
		}
	}
	if (Secret{}).String() != "<unset>" {
		t.Errorf("zero Secret String = %q", Secret{}.String())
	}
}

func TestLoadSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSecretFile(path)
	if err != nil {
		t.Fatalf("LoadSecretFile failed: %v", err)
	}
	if Respond(s, "c") != Digest("c", "from-file") {
		t.Error("secret file contents not trimmed")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	os.WriteFile(empty, []byte("\n"), 0600)
	if _, err := LoadSecretFile(empty); err == nil {
		t.Error("expected error for blank secret file")
	}
}
