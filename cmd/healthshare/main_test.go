package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Types(t *testing.T) {
	out, err := run(t, "types")
	if err != nil {
		t.Fatalf("types: %v", err)
	}
	if !strings.Contains(out, `"85354-9"`) || !strings.Contains(out, `"bloodPressure"`) {
		t.Errorf("unexpected output %s", out)
	}

	out, err = run(t, "types", "-o", "yaml")
	if err != nil {
		t.Fatalf("types yaml: %v", err)
	}
	if !strings.Contains(out, "- dataType: steps\n") || !strings.Contains(out, "code: 85354-9\n") ||
		strings.Contains(out, "{") || strings.Contains(out, `"`) {
		t.Errorf("expected block yaml, got %s", out)
	}

	if _, err := run(t, "types", "-o", "xml"); err == nil {
		t.Error("expected unknown output format error")
	}
}

func TestCLI_ConsentShareHistoryAcrossInvocations(t *testing.T) {
	t.Setenv("STORE_DRIVER", "leveldb")
	t.Setenv("LEVELDB_PATH", filepath.Join(t.TempDir(), "db"))
	t.Setenv("ENV", "test")

	if _, err := run(t, "consent", "grant", "steps,weight"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	out, err := run(t, "consent", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, `"weight"`) {
		t.Errorf("expected weight in consent, got %s", out)
	}

	out, err = run(t, "convert", "--types", "weight")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out, `"29463-7"`) || strings.Contains(out, `"41950-7"`) {
		t.Errorf("unexpected bundle %s", out)
	}

	if _, err := run(t, "share", "dr-smith"); err != nil {
		t.Fatalf("share: %v", err)
	}
	out, err = run(t, "history", "list")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, `"dr-smith"`) || !strings.Contains(out, `"completed"`) {
		t.Errorf("unexpected history %s", out)
	}

	if _, err := run(t, "consent", "revoke"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := run(t, "share", "dr-smith"); err == nil {
		t.Error("expected share to fail without consent")
	}
}

func TestCLI_GrantRejectsUnknownType(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	if _, err := run(t, "consent", "grant", "steps,mood"); err == nil {
		t.Error("expected error for unknown data type")
	}
}

func TestCLI_HashPassword(t *testing.T) {
	out, err := run(t, "hash-password", "s3cret")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}
