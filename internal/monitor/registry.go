package monitor

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/tracer"
)

// DefaultWriteTimeout bounds a single record write; a subscriber that cannot
// keep up is disconnected.
const DefaultWriteTimeout = 200 * time.Millisecond

// Registry tracks connected subscribers by remote address.
type Registry struct {
	conns        sync.Map // string -> net.Conn
	count        atomic.Int64
	writeTimeout time.Duration
	readBufSize  int
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry(writeTimeout time.Duration) *Registry {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Registry{writeTimeout: writeTimeout, readBufSize: 512}
}

// Register adds a subscriber and watches it for disconnects. A subscriber
// already registered under the same address is replaced and closed.
func (r *Registry) Register(conn net.Conn) {
	key := conn.RemoteAddr().String()
	if old, loaded := r.conns.Swap(key, conn); loaded {
		_ = old.(net.Conn).Close()
	} else {
		r.count.Add(1)
	}
	log.WithField("caller", "monitor").Infof("Subscriber %s connected", key)
	go r.readLoop(conn)
}

// readLoop discards anything a subscriber sends; the feed is read-only. It
// returns once the connection fails.
func (r *Registry) readLoop(conn net.Conn) {
	buf := make([]byte, r.readBufSize)
	for {
		if _, err := conn.Read(buf); err != nil {
			log.WithField("caller", "monitor").WithError(err).Debugf("Subscriber %s read", conn.RemoteAddr())
			r.unregister(conn)
			return
		}
	}
}

// unregister removes conn if it is still the one registered for its address.
func (r *Registry) unregister(conn net.Conn) {
	if r.conns.CompareAndDelete(conn.RemoteAddr().String(), conn) {
		r.count.Add(-1)
		log.WithField("caller", "monitor").Infof("Subscriber %s disconnected", conn.RemoteAddr())
	}
	_ = conn.Close()
}

// Len returns the number of connected subscribers.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Broadcast writes one JSON-encoded record to every subscriber as a single
// datagram. Subscribers whose write fails or times out are dropped.
func (r *Registry) Broadcast(rec tracer.Record) {
	if r.Len() == 0 {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		log.WithField("caller", "monitor").WithError(err).Error("Encoding record")
		return
	}
	r.conns.Range(func(_, value any) bool {
		conn := value.(net.Conn)
		_ = conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
		if _, err := conn.Write(data); err != nil {
			log.WithField("caller", "monitor").WithError(err).Warnf("Dropping subscriber %s", conn.RemoteAddr())
			r.unregister(conn)
		}
		return true
	})
}

// CloseAll disconnects every subscriber.
func (r *Registry) CloseAll() {
	r.conns.Range(func(_, value any) bool {
		r.unregister(value.(net.Conn))
		return true
	})
}
