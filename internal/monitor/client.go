package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/pion/dtls/v3"
	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/tracer"
)

// readBufSize fits the largest record a feed sends.
const readBufSize = 8192

// Dial connects to a monitor feed and completes the handshake.
func Dial(ctx context.Context, addr string, cfg *dtls.Config) (net.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := dtls.Dial("udp", raddr, cfg)
	if err != nil {
		return nil, err
	}
	hctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(hctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return conn, nil
}

// Watch decodes records from conn and passes them to fn until ctx is
// cancelled or the connection fails. Undecodable datagrams are skipped.
func Watch(ctx context.Context, conn net.Conn, fn func(tracer.Record)) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, readBufSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var rec tracer.Record
		if err := json.Unmarshal(buf[:n], &rec); err != nil {
			log.WithField("caller", "monitor").WithError(err).Warn("Error decoding record")
			continue
		}
		fn(rec)
	}
}
