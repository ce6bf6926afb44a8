package source

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"
)

func TestCleanReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"file with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "hello,world"...), "hello,world"},
		{"file without BOM", []byte("hello,world"), "hello,world"},
		{"empty file", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial BOM kept and sanitized", []byte{0xEF, 0xBB, 'a', 'b'}, "??ab"},
		{"valid multibyte", []byte("café,naïve"), "café,naïve"},
		{"invalid byte replaced", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"BOM and invalid byte", []byte{0xEF, 0xBB, 0xBF, 'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewCleanReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCleanReader_SmallReads(t *testing.T) {
	input := "été 日本"

	// One-byte reads split every multibyte rune across calls.
	got, err := io.ReadAll(iotest.OneByteReader(NewCleanReader(iotest.HalfReader(bytes.NewReader([]byte(input))))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}
