package audio

import (
	"bytes"
	"testing"
)

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(10)

	written := rb.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, got %d", written)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	written = rb.Write([]byte{6, 7, 8})
	if written != 3 {
		t.Errorf("Expected to write 3 bytes, got %d", written)
	}
	if rb.Available() != 8 {
		t.Errorf("Expected available 8, got %d", rb.Available())
	}
}

func TestRingBuffer_WriteOverflowCountsDropped(t *testing.T) {
	rb := NewRingBuffer(5)

	written := rb.Write([]byte{1, 2, 3, 4, 5, 6})
	if written != 4 {
		t.Errorf("Expected to write 4 bytes (size-1), got %d", written)
	}
	if !rb.IsFull() {
		t.Error("Expected buffer to be full after writing size-1 bytes")
	}
	if rb.Dropped() != 2 {
		t.Errorf("Expected 2 dropped bytes, got %d", rb.Dropped())
	}

	if written := rb.Write([]byte{7}); written != 0 {
		t.Errorf("Expected to write 0 bytes into a full buffer, got %d", written)
	}
	if rb.Dropped() != 3 {
		t.Errorf("Expected 3 dropped bytes, got %d", rb.Dropped())
	}
}

func TestRingBuffer_Read(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte{1, 2, 3, 4, 5})

	readBuf := make([]byte, 3)
	read := rb.Read(readBuf)
	if read != 3 {
		t.Errorf("Expected to read 3 bytes, got %d", read)
	}
	if !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("Read incorrect data: %v", readBuf)
	}
	if rb.Available() != 2 {
		t.Errorf("Expected available 2 after read, got %d", rb.Available())
	}
}

func TestRingBuffer_ReadEmpty(t *testing.T) {
	rb := NewRingBuffer(10)

	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty initially")
	}
	if read := rb.Read(make([]byte, 5)); read != 0 {
		t.Errorf("Expected to read 0 bytes from empty buffer, got %d", read)
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := NewRingBuffer(5)

	rb.Write([]byte{1, 2, 3, 4})
	rb.Read(make([]byte, 2))

	if written := rb.Write([]byte{5, 6}); written != 2 {
		t.Fatalf("Expected to write 2 bytes across the wrap, got %d", written)
	}
	if rb.Available() != 4 {
		t.Errorf("Expected available 4, got %d", rb.Available())
	}

	readBuf := make([]byte, 4)
	if read := rb.Read(readBuf); read != 4 {
		t.Errorf("Expected to read 4 bytes, got %d", read)
	}
	if !bytes.Equal(readBuf, []byte{3, 4, 5, 6}) {
		t.Errorf("Expected [3 4 5 6], got %v", readBuf)
	}
}

func TestRingBuffer_Drain(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write([]byte{1, 2, 3, 4, 5})
	rb.Read(make([]byte, 3))
	rb.Write([]byte{6, 7, 8, 9})

	got := rb.Drain()
	if !bytes.Equal(got, []byte{4, 5, 6, 7, 8, 9}) {
		t.Errorf("Expected [4 5 6 7 8 9], got %v", got)
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after drain")
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{1, 2, 3, 4, 5})

	rb.Clear()
	if rb.Available() != 0 {
		t.Errorf("Expected available 0 after clear, got %d", rb.Available())
	}
	if rb.Dropped() != 0 {
		t.Errorf("Expected dropped counter reset, got %d", rb.Dropped())
	}
	if rb.Space() != 3 {
		t.Errorf("Expected space 3 after clear, got %d", rb.Space())
	}
}
