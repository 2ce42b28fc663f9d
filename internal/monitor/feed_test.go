package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wgsim/controller/internal/config"
	mdtls "github.com/wgsim/controller/internal/dtls"
	"github.com/wgsim/controller/pkg/network"
	"github.com/wgsim/controller/pkg/tracer"
)

func loopbackMonitor() config.Monitor {
	m := config.Monitor{Enabled: true, Host: "127.0.0.1", Port: "0", Env: "dev"}
	m.DTLS.Certs.Mode = "self_signed"
	return m
}

func TestNew_InvalidDTLS(t *testing.T) {
	m := loopbackMonitor()
	m.DTLS.Certs.Mode = "bogus"

	_, err := New(m, nil)
	assert.ErrorContains(t, err, "unknown mode")
}

func TestNew_GeneratesCertificatesInDev(t *testing.T) {
	m := loopbackMonitor()
	m.DTLS.Certs.Mode = "files"
	m.DTLS.Certs.Path = t.TempDir()
	m.DTLS.Certs.Cert = "monitor.crt"
	m.DTLS.Certs.Key = "monitor.key"

	f, err := New(m, nil)
	require.NoError(t, err)
	assert.Len(t, f.dtlsConfig.Certificates, 1)
}

func TestFeed_EndToEnd(t *testing.T) {
	records := make(chan tracer.Record, 16)
	f, err := New(loopbackMonitor(), records)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.Run(ctx))
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	require.Eventually(t, func() bool { return f.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, f.Run(ctx), ErrAlreadyRunning)

	clientCfg, err := mdtls.ClientConfig(nil)
	require.NoError(t, err)
	conn, err := Dial(ctx, f.Addr().String(), clientCfg)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	got := make(chan tracer.Record, 1)
	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- Watch(watchCtx, conn, func(r tracer.Record) { got <- r })
	}()

	records <- tracer.NewRecord(9, network.Responder, "Assembled message from client #1", "neutral")

	select {
	case r := <-got:
		assert.Equal(t, network.NodeID(9), r.Node)
		assert.Equal(t, "Server", r.Category)
		assert.Equal(t, "Assembled message from client #1", r.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("record was not delivered")
	}

	stopWatch()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestFeed_DrainsWithoutSubscribers(t *testing.T) {
	records := make(chan tracer.Record, 1)
	f, err := New(loopbackMonitor(), records)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		select {
		case records <- record("tick"):
		case <-time.After(2 * time.Second):
			t.Fatal("feed stopped draining records")
		}
	}
	cancel()
	<-done
}
