package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mojo-nes/mk3prog/programmer"
	"github.com/mojo-nes/mk3prog/protocol"
	"github.com/mojo-nes/mk3prog/transport"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    protocol.FirmwareVersion
		wantErr bool
	}{
		{"1.0", protocol.FirmwareVersion{Major: 1, Minor: 0}, false},
		{"2.13", protocol.FirmwareVersion{Major: 2, Minor: 13}, false},
		{"3", protocol.FirmwareVersion{}, true},
		{"1.256", protocol.FirmwareVersion{}, true},
		{"a.b", protocol.FirmwareVersion{}, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestServeOverQUIC(t *testing.T) {
	dir := t.TempDir()
	prg := filepath.Join(dir, "game.prg")
	if err := os.WriteFile(prg, []byte("NES\x1a"), 0o644); err != nil {
		t.Fatal(err)
	}
	ram := filepath.Join(dir, "save.srm")
	if err := os.WriteFile(ram, []byte{0x42}, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addrs := make(chan net.Addr, 1)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(func(a net.Addr) { addrs <- a })
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{
		"--listen", "127.0.0.1:0",
		"--fw-version", "2.7",
		"--load-prg", prg + ":0x10",
		"--load-ram", ram + ":0x7000",
	})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var addr net.Addr
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("command exited early: %v\n%s", err, errOut.String())
	case <-ctx.Done():
		t.Fatal("simulator did not start")
	}

	link, err := transport.DialQUIC(ctx, addr.String(), nil)
	if err != nil {
		t.Fatalf("DialQUIC: %v", err)
	}
	s := programmer.New(transport.NewSerial(link))

	v, err := s.FirmwareVersion(ctx)
	if err != nil {
		t.Fatalf("FirmwareVersion: %v", err)
	}
	if v.String() != "2.7" {
		t.Errorf("version = %s, want 2.7", v)
	}

	got, err := s.ReadFlash(ctx, protocol.RegionPRG, 0x10, 4)
	if err != nil {
		t.Fatalf("ReadFlash: %v", err)
	}
	if string(got) != "NES\x1a" {
		t.Errorf("PRG = %q", got)
	}

	b, err := s.ReadRAM(ctx, 0x7000, 1)
	if err != nil {
		t.Fatalf("ReadRAM: %v", err)
	}
	if b[0] != 0x42 {
		t.Errorf("RAM = 0x%02X, want 0x42", b[0])
	}
	s.Close()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("command returned %v", err)
	}
	if !strings.Contains(out.String(), "mk3sim listening on 127.0.0.1:") {
		t.Errorf("output = %q", out.String())
	}
}

func TestBadArguments(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"version", []string{"--fw-version", "x"}, "invalid firmware version"},
		{"log level", []string{"--log-level", "chatty"}, "unknown log level"},
		{"missing image", []string{"--load-chr", "/nonexistent/chr.bin"}, "failed to open image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd(nil)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append([]string{"--listen", "127.0.0.1:0"}, tt.args...))
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}
