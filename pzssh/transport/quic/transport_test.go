package quic

import (
	"context"
	"io"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestListenDialEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Listen("127.0.0.1:0", &Config{MaxIdleTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	if ln.AddrString() == "" {
		t.Fatalf("expected listener addr")
	}

	var g errgroup.Group
	g.Go(func() error {
		conn, err := ln.Accept(ctx)
		if err != nil {
			return err
		}
		st, err := conn.AcceptStream(ctx)
		if err != nil {
			return err
		}
		buf := make([]byte, 4)
		if _, err := io.ReadFull(st, buf); err != nil {
			return err
		}
		if _, err := st.Write(buf); err != nil {
			return err
		}
		return st.Close()
	})

	conn, err := Dial(ctx, ln.AddrString(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseWithError(0, "")
	if got := conn.ConnectionState().TLS.NegotiatedProtocol; got != ALPN {
		t.Fatalf("ALPN = %q, want %q", got, ALPN)
	}

	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		t.Fatalf("OpenStreamSync: %v", err)
	}
	if _, err := st.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(st, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("echo = %q", buf)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("server: %v", err)
	}
}
