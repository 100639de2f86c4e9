package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEncode_Framing(t *testing.T) {
	msg := map[string]any{"jsonrpc": "2.0", "method": "test"}
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	str := string(data)
	header, body, ok := strings.Cut(str, "\r\n\r\n")
	if !ok {
		t.Fatalf("missing header separator in %q", str)
	}
	if !strings.HasPrefix(header, "Content-Length: ") {
		t.Errorf("bad header %q", header)
	}
	var n int
	if _, err := fmt.Sscanf(header, "Content-Length: %d", &n); err != nil {
		t.Fatalf("unparseable header %q", header)
	}
	if n != len(body) {
		t.Errorf("Content-Length = %d, body is %d bytes", n, len(body))
	}
	if !json.Valid([]byte(body)) {
		t.Errorf("body is not valid JSON: %q", body)
	}
}

func TestReadMessage_RoundTrip(t *testing.T) {
	msg := map[string]any{"jsonrpc": "2.0", "id": float64(7), "method": "x"}
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	r := NewReader(bytes.NewReader(data))
	body, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["id"] != float64(7) || decoded["method"] != "x" {
		t.Errorf("round trip mismatch: %v", decoded)
	}
}

func TestReadMessage_IgnoresOtherHeaders(t *testing.T) {
	body := `{"jsonrpc":"2.0"}`
	wire := fmt.Sprintf("Content-Type: application/json\r\nContent-Length: %d\r\n\r\n%s", len(body), body)

	r := NewReader(strings.NewReader(wire))
	got, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(got) != body {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestReadMessage_SequentialMessages(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		data, _ := Encode(map[string]any{"id": i})
		buf.Write(data)
	}

	r := NewReader(&buf)
	for i := 0; i < 3; i++ {
		body, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		var m map[string]int
		if err := json.Unmarshal(body, &m); err != nil || m["id"] != i {
			t.Errorf("message %d decoded as %v (err %v)", i, m, err)
		}
	}
}

func TestReadMessage_ClosedStream(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("got %v, want ErrConnectionClosed", err)
	}
}

func TestReadMessage_MissingContentLength(t *testing.T) {
	r := NewReader(strings.NewReader("Content-Type: json\r\n\r\n{}"))
	_, err := r.ReadMessage()
	var badHeader *BadHeaderError
	if !errors.As(err, &badHeader) {
		t.Errorf("got %v, want BadHeaderError", err)
	}
}

func TestReadMessage_MalformedHeader(t *testing.T) {
	r := NewReader(strings.NewReader("garbage line\r\n\r\n"))
	_, err := r.ReadMessage()
	var badHeader *BadHeaderError
	if !errors.As(err, &badHeader) {
		t.Errorf("got %v, want BadHeaderError", err)
	}
}

func TestReadMessage_TruncatedBody(t *testing.T) {
	r := NewReader(strings.NewReader("Content-Length: 100\r\n\r\n{}"))
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("got %v, want ErrConnectionClosed for truncated body", err)
	}
}
