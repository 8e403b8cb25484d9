package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []Frame{
		{Command: CmdChat, SourceUID: 7, StreamID: 0, Payload: []byte("hello")},
		{Command: CmdWelcome, SourceUID: relayServerUID, StreamID: 0, Payload: nil},
		{Command: CmdStreamData, SourceUID: 1, StreamID: 42, Payload: bytes.Repeat([]byte{0xAB}, 256)},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, want); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}

		got, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}

		if got.Command != want.Command || got.SourceUID != want.SourceUID || got.StreamID != want.StreamID {
			t.Fatalf("header mismatch: got %+v want %+v", got, want)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("payload mismatch: got %v want %v", got.Payload, want.Payload)
		}
	}
}

func TestFrameOversizedPayloadRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Command: CmdStreamData, Payload: make([]byte, 100)}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	_, err := ReadFrame(&buf, 50)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	_, err := ReadFrame(buf, 0)
	if err != ErrShortHeader {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestFixedString(t *testing.T) {
	dst := make([]byte, NicknameFieldSize)
	PutFixedString(dst, "alice")
	if got := FixedString(dst); got != "alice" {
		t.Fatalf("got %q want alice", got)
	}

	long := make([]byte, 4)
	PutFixedString(long, "abcdef")
	if got := FixedString(long); got != "abcd" {
		t.Fatalf("got %q want abcd (truncated)", got)
	}
}

// relayServerUID mirrors relay.ServerUID without importing the relay
// package, keeping this codec test free of a dependency on domain types.
const relayServerUID = 0xFFFFFFFF
