package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated on QUIC links.
const ALPN = "mk3prog"

// DialQUIC connects to a device simulator at addr and opens one stream,
// which carries the serial framing. A nil tlsConf accepts any server
// certificate.
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config) (*Stream, error) {
	target := "quic " + addr
	if tlsConf == nil {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	tlsConf = tlsConf.Clone()
	tlsConf.NextProtos = []string{ALPN}

	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &OpenError{Step: StepLocate, Target: target, Err: err}
	}
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, &OpenError{Step: StepConfigure, Target: target, Err: err}
	}

	conn, err := quic.Dial(ctx, udpConn, remote, tlsConf, &quic.Config{KeepAlivePeriod: 10 * time.Second})
	if err != nil {
		udpConn.Close()
		return nil, &OpenError{Step: StepLocate, Target: target, Err: err}
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		udpConn.Close()
		return nil, &OpenError{Step: StepClaim, Target: target, Err: err}
	}

	s := NewStream(stream)
	s.closer = func() error {
		stream.Close()
		err := conn.CloseWithError(0, "closed")
		udpConn.Close()
		return err
	}
	return s, nil
}

// SelfSignedTLS returns a server TLS configuration with a throwaway
// certificate, for simulators reachable only on trusted networks.
func SelfSignedTLS() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
	}, nil
}
