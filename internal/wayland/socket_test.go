package wayland

import (
	"net"
	"testing"
	"time"

	"github.com/danmuck/wlprobe/internal/testutil/fakewl"
	"github.com/danmuck/wlprobe/internal/testutil/testlog"
)

func TestSocketReaderNeverReturnsNegativeCount(t *testing.T) {
	testlog.Start(t)
	s := fakewl.Start(t, nil, fakewl.Hooks{})
	sock, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: s.Path, Net: "unix"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	r := newSocketReader(sock)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := r.Read(buf)
		done <- result{n, err}
	}()

	time.Sleep(50 * time.Millisecond)
	_ = sock.Close()
	select {
	case res := <-done:
		if res.n != 0 || res.err == nil {
			t.Fatalf("expected (0, err) after close, got (%d, %v)", res.n, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return after close")
	}
}
