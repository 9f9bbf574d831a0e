package hipaa

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewSealer(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		s, err := NewSealer(generateTestKey(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s == nil {
			t.Fatal("expected non-nil sealer")
		}
	})

	t.Run("key too short", func(t *testing.T) {
		if _, err := NewSealer(make([]byte, 16)); err == nil {
			t.Fatal("expected error for 16-byte key")
		}
	})

	t.Run("empty key", func(t *testing.T) {
		if _, err := NewSealer([]byte{}); err == nil {
			t.Fatal("expected error for empty key")
		}
	})
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(generateTestKey(t))
	if err != nil {
		t.Fatalf("create sealer: %v", err)
	}

	cases := [][]byte{
		[]byte(`{"consentedDataTypes":["steps"]}`),
		{},
		bytes.Repeat([]byte("x"), 4096),
	}
	for _, plaintext := range cases {
		sealed, err := s.Seal("health_data_consent", plaintext)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if len(plaintext) > 0 && bytes.Contains(sealed, plaintext) {
			t.Error("sealed blob contains plaintext")
		}
		opened, err := s.Open("health_data_consent", sealed)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !bytes.Equal(opened, plaintext) {
			t.Errorf("expected %q, got %q", plaintext, opened)
		}
	}
}

func TestSeal_UniqueNonces(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	a, _ := s.Seal("k", []byte("same"))
	b, _ := s.Seal("k", []byte("same"))
	if bytes.Equal(a, b) {
		t.Error("expected different ciphertexts for repeated seals")
	}
}

func TestOpen_WrongName(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	sealed, err := s.Seal("health_data_consent", []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := s.Open("health_data_sharing_history", sealed); err == nil {
		t.Fatal("expected error when opening under a different key name")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	a, _ := NewSealer(generateTestKey(t))
	b, _ := NewSealer(generateTestKey(t))
	sealed, _ := a.Seal("k", []byte("payload"))
	if _, err := b.Open("k", sealed); err == nil {
		t.Fatal("expected error when opening with a different key")
	}
}

func TestOpen_TooShort(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	if _, err := s.Open("k", []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
}

func TestOpen_Tampered(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	sealed, _ := s.Seal("k", []byte("payload"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open("k", sealed); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
}
