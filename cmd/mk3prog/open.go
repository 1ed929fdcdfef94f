package main

import (
	"context"
	"fmt"

	"github.com/mojo-nes/mk3prog/config"
	"github.com/mojo-nes/mk3prog/transport"
)

// openTransport opens the transport selected in cfg.
func openTransport(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	tc := cfg.Transport
	serialOpts := []transport.SerialOption{transport.WithResyncLimit(tc.ResyncLimit)}

	switch tc.Kind {
	case config.KindUSB:
		b, err := transport.OpenBulk(transport.DefaultBulkConfig())
		if err != nil {
			return nil, err
		}
		return b, nil

	case config.KindMPSSE:
		mc := transport.DefaultMPSSEConfig()
		mc.Interface = cfg.MPSSE.IfNum - 1
		mc.ClockHz = cfg.MPSSE.ClockHz
		link, err := transport.OpenMPSSE(ctx, mc)
		if err != nil {
			return nil, err
		}
		return transport.NewSerial(link, serialOpts...), nil

	case config.KindUART:
		if tc.Address == "" {
			return nil, fmt.Errorf("uart transport needs a device path, use --address")
		}
		link, err := transport.OpenUART(tc.Address, tc.Baud)
		if err != nil {
			return nil, err
		}
		return transport.NewSerial(link, serialOpts...), nil

	case config.KindQUIC:
		if tc.Address == "" {
			return nil, fmt.Errorf("quic transport needs a simulator address, use --address")
		}
		dctx, cancel := context.WithTimeout(ctx, tc.Timeout)
		defer cancel()
		link, err := transport.DialQUIC(dctx, tc.Address, nil)
		if err != nil {
			return nil, err
		}
		return transport.NewSerial(link, serialOpts...), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", tc.Kind)
	}
}
