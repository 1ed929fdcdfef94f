package devsim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mojo-nes/mk3prog/programmer"
	"github.com/mojo-nes/mk3prog/protocol"
	"github.com/mojo-nes/mk3prog/transport"
)

func TestQUICSession(t *testing.T) {
	dev := New(WithFirmwareVersion(protocol.FirmwareVersion{Major: 3, Minor: 1}))
	srv, err := Listen(dev, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go srv.Serve(ctx)

	link, err := transport.DialQUIC(ctx, srv.Addr().String(), nil)
	if err != nil {
		t.Fatalf("DialQUIC: %v", err)
	}
	s := programmer.New(transport.NewSerial(link))
	defer s.Close()

	ver, err := s.FirmwareVersion(ctx)
	if err != nil {
		t.Fatalf("FirmwareVersion: %v", err)
	}
	if ver.String() != "3.1" {
		t.Errorf("version = %s, want 3.1", ver)
	}

	rom := bytes.Repeat([]byte{0xA5, 0x5A, 0x00}, 1000)
	if err := s.WriteFlash(ctx, protocol.RegionPRG, 0x100, rom); err != nil {
		t.Fatalf("WriteFlash: %v", err)
	}
	if err := s.Verify(ctx, protocol.RegionPRG, 0x100, rom); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
