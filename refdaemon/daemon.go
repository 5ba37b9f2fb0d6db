// Package refdaemon is a minimal reference double for the daemon spec.md
// 1 declares out of scope: it owns a listening UNIX socket, accepts one
// worker connection, and lets a test drive frames across it. It carries
// no load-balancing policy and is not part of the worker's production
// surface -- its only job is letting worker_test.go-style tests dial a
// worker end-to-end without a real daemon process. Adapted from the
// teacher's accept-loop-plus-worker-pool shape (server/engine/epoll.go,
// server/engine/pool.go), retargeted from AF_INET/epoll onto a plain
// net.Listen("unix", ...) accept loop since this is a control-plane
// socket, not a high-fanout data-plane listener.
package refdaemon

import (
	"net"
	"sync"

	"github.com/m1dok/serverino/engine"
)

// Daemon accepts exactly the workers a test spawns against it, keeping
// one net.Conn per accepted worker so the test can send request frames
// and read response frames back.
type Daemon struct {
	ln   net.Listener
	mu   sync.Mutex
	conn net.Conn
}

// Listen starts a UNIX-domain listener at path (a filesystem path is
// sufficient for a test double; production workers use the
// abstract-namespace form on Linux, see worker.DialControlSocket).
func Listen(path string) (*Daemon, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Daemon{ln: ln}, nil
}

// Addr returns the socket path workers should dial.
func (d *Daemon) Addr() string {
	return d.ln.Addr().String()
}

// Accept blocks for one worker to connect and consumes its 1-byte
// acknowledgement (spec.md 4.5 step 3).
func (d *Daemon) Accept() error {
	conn, err := d.ln.Accept()
	if err != nil {
		return err
	}
	var ack [1]byte
	if _, err := conn.Read(ack[:]); err != nil {
		conn.Close()
		return err
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	return nil
}

// SendRequest frames and sends a raw HTTP request to the accepted worker.
func (d *Daemon) SendRequest(raw []byte) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	_, err := conn.Write(engine.EncodeInboundFrame(raw))
	return err
}

// ReadResponse reads one framed response back from the worker.
func (d *Daemon) ReadResponse() (keepAlive bool, payload []byte, err error) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	return engine.DecodeOutboundFrame(conn)
}

// Close shuts down the listener and any accepted connection.
func (d *Daemon) Close() error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return d.ln.Close()
}
