package canonicalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSignature_StableAcrossVolatileSubstrings(t *testing.T) {
	a := ErrorSignature("assertion failed at 2026-07-30T12:00:00Z for request 123, id=4f3c2b1a-9e8d-7c6b-5a4f-3e2d1c0b9a8f, addr 0xDEADBEEF, line 42")
	b := ErrorSignature("assertion failed at 2026-08-01T09:30:11Z for request 456, id=1a2b3c4d-5e6f-7890-abcd-ef1234567890, addr 0xC0FFEE, line 77")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestErrorSignature_DiffersOnSemanticText(t *testing.T) {
	a := ErrorSignature("expected 200 but got 500")
	b := ErrorSignature("connection refused")

	assert.NotEqual(t, a, b)
}

func TestErrorSignature_EmptyMessageIsEmptySignature(t *testing.T) {
	assert.Equal(t, "", ErrorSignature(""))
}

func TestNormalizeErrorMessage_ReplacesURL(t *testing.T) {
	got := NormalizeErrorMessage("failed GET https://api.example.com/v1/users/42")
	assert.Contains(t, got, "<url>")
	assert.NotContains(t, got, "https://")
}
