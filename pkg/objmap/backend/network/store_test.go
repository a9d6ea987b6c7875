package network

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Exercising Create/Open/Delete/Scan against a real bucket needs either
// network access or a full S3-API-compatible HTTP fake (MinIO, localstack);
// neither is available in this environment (see DESIGN.md). The pieces
// that don't require a live client — key prefixing and not-found
// classification — are still plain unit-testable and are covered here.

func TestKeyAppliesPrefix(t *testing.T) {
	s := New(nil, Config{Bucket: "b", KeyPrefix: "objects/"})
	if got := s.key("a/b.txt"); got != "objects/a/b.txt" {
		t.Fatalf("key() = %q, want %q", got, "objects/a/b.txt")
	}
}

func TestKeyWithEmptyPrefix(t *testing.T) {
	s := New(nil, Config{Bucket: "b"})
	if got := s.key("a/b.txt"); got != "a/b.txt" {
		t.Fatalf("key() = %q, want %q", got, "a/b.txt")
	}
}

func TestIsNotFoundRecognisesTypedErrors(t *testing.T) {
	if !isNotFound(&types.NoSuchKey{}) {
		t.Fatal("isNotFound(NoSuchKey) = false, want true")
	}
	if !isNotFound(&types.NotFound{}) {
		t.Fatal("isNotFound(NotFound) = false, want true")
	}
}

func TestIsNotFoundRecognisesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("operation failed: %w", &types.NoSuchKey{})
	if !isNotFound(wrapped) {
		t.Fatal("isNotFound() = false on wrapped NoSuchKey, want true")
	}
}

func TestIsNotFoundRejectsUnrelatedErrors(t *testing.T) {
	if isNotFound(errors.New("connection reset")) {
		t.Fatal("isNotFound() = true on unrelated error, want false")
	}
}

func TestIsNotFoundNilIsFalse(t *testing.T) {
	if isNotFound(nil) {
		t.Fatal("isNotFound(nil) = true, want false")
	}
}
