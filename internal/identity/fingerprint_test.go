package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintStableAcrossCopies(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.note")
	b := filepath.Join(dir, "sub", "b.note")

	content := []byte("handwritten payload")
	if err := os.WriteFile(a, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(b), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, content, 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Fingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Fingerprint(b)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("identical content hashed differently: %s vs %s", first, second)
	}
}

func TestFingerprintDetectsMutation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.note")

	if err := os.WriteFile(path, []byte("original bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, err := Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("original byteZ"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Fatal("single-byte mutation produced identical fingerprint")
	}
}

func TestFingerprintLargeFileChunking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.note")

	// Larger than the read chunk so multiple reads are exercised.
	payload := make([]byte, fingerprintChunkSize*3+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	digest, err := Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(digest) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(digest))
	}
}

func TestFingerprintMissingFile(t *testing.T) {
	if _, err := Fingerprint(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
