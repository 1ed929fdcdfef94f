package devsim

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/mojo-nes/mk3prog/transport"
)

// Server exposes a Device over QUIC. Every stream of every connection is an
// independent host session on the same device.
type Server struct {
	dev      *Device
	listener *quic.Listener
	udpConn  *net.UDPConn
}

// Listen opens a QUIC listener on addr. A nil tlsConf selects a self-signed
// certificate.
func Listen(dev *Device, addr string, tlsConf *tls.Config) (*Server, error) {
	if tlsConf == nil {
		var err error
		if tlsConf, err = transport.SelfSignedTLS(); err != nil {
			return nil, fmt.Errorf("generate TLS config: %w", err)
		}
	}
	tlsConf = tlsConf.Clone()
	tlsConf.NextProtos = []string{transport.ALPN}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	listener, err := quic.Listen(udpConn, tlsConf, nil)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("failed to create QUIC listener: %w", err)
	}

	return &Server{dev: dev, listener: listener, udpConn: udpConn}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return err
		}

		s.dev.logger.Info("connection accepted", "remote", conn.RemoteAddr().String())
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			s.dev.logger.Debug("connection closed", "remote", conn.RemoteAddr().String(), "reason", err)
			return
		}

		go func() {
			defer stream.Close()
			if err := s.dev.Serve(ctx, stream); err != nil {
				s.dev.logger.Error("session ended", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.udpConn.Close()
	return err
}
