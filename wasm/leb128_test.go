package wasm

import (
	"bytes"
	"testing"
)

func TestLEB128uRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 63, 64, 127, 128, 255, 624485, 0xFFFFFFFF}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128u(&buf, v)
		got, err := ReadLEB128u(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadLEB128u(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
}

func TestLEB128sRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 63, -64, 64, -65, 127, 128, -128, 2147483647, -2147483648}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128s(&buf, v)
		got, err := ReadLEB128s(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadLEB128s(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
}

func TestLEB128uKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		if got := EncodeLEB128u(tt.value); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeLEB128u(%d) = %x, want %x", tt.value, got, tt.want)
		}
	}
}

func TestLEB128sKnownEncodings(t *testing.T) {
	tests := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-123456, []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tt := range tests {
		if got := EncodeLEB128s(tt.value); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeLEB128s(%d) = %x, want %x", tt.value, got, tt.want)
		}
	}
}

func TestLEB128uOverflow(t *testing.T) {
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := ReadLEB128u(bytes.NewReader(data)); err != ErrOverflow {
		t.Errorf("err = %v, want ErrOverflow", err)
	}
}
