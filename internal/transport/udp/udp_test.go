// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"microfeatures/internal/transport"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func receive(t *testing.T, conn *net.UDPConn) Packet {
	t.Helper()
	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	p, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return p
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	features := []float32{0, -1.5, 25.5}
	if err := Encode(&buf, 42, 1234567890, features); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != HeaderSize+12 {
		t.Fatalf("packet is %d bytes, want %d", buf.Len(), HeaderSize+12)
	}
	// Sequence is the first big-endian word.
	if b := buf.Bytes(); b[3] != 42 || b[0] != 0 {
		t.Errorf("header bytes = % x", b[:4])
	}

	p, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if p.Sequence != 42 || p.Timestamp != 1234567890 || len(p.Features) != 3 || p.Features[1] != -1.5 {
		t.Errorf("Decode() = %+v", p)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected an error for a short packet")
	}
	var buf bytes.Buffer
	Encode(&buf, 1, 1, []float32{1, 2})
	if _, err := Decode(buf.Bytes()[:buf.Len()-1]); err == nil {
		t.Error("expected an error for a truncated payload")
	}
}

func TestSender(t *testing.T) {
	conn := listen(t)
	s, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	Encode(&buf, 3, 9, []float32{7})
	if err := s.Send(buf.Bytes()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if p := receive(t, conn); p.Sequence != 3 || p.Features[0] != 7 {
		t.Errorf("received %+v", p)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Send(buf.Bytes()); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send() after Close = %v, want ErrSenderClosed", err)
	}
}

func TestSenderBadAddress(t *testing.T) {
	if _, err := NewUDPSender("not-an-address"); err == nil {
		t.Error("expected an error for an unresolvable address")
	}
}

func TestPublisherSendsLatest(t *testing.T) {
	conn := listen(t)
	s, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewUDPPublisher(5*time.Millisecond, s)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Send(transport.FeatureFrame{Sequence: 0, Timestamp: 100, Features: []float32{1, 2}})
	p.Send(&transport.FeatureFrame{Sequence: 1, Timestamp: 200, Features: []float32{3, 4}})
	p.Start()
	p.Start()

	got := receive(t, conn)
	if got.Sequence != 1 || got.Timestamp != 200 || len(got.Features) != 2 || got.Features[0] != 3 {
		t.Errorf("first packet = %+v, want latest frame", got)
	}

	p.Send([]float32{5})
	got = receive(t, conn)
	if got.Sequence != 2 || got.Features[0] != 5 || got.Timestamp == 0 {
		t.Errorf("second packet = %+v", got)
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestPublisherCopiesFrame(t *testing.T) {
	conn := listen(t)
	s, _ := NewUDPSender(conn.LocalAddr().String())
	p, _ := NewUDPPublisher(0, s)
	defer p.Close()

	features := []float32{1}
	p.Send(features)
	features[0] = 99
	p.Start()

	if got := receive(t, conn); got.Features[0] != 1 {
		t.Errorf("published %v, want the value at Send time", got.Features)
	}
}

func TestPublisherNilSender(t *testing.T) {
	if _, err := NewUDPPublisher(time.Millisecond, nil); err == nil {
		t.Error("expected an error for a nil sender")
	}
}
