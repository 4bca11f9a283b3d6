// carrier.go
//
// Carrier framing: 4-byte big-endian length-prefixed messages over a
// net.Conn (§E resolves spec.md §6's silence on exact carrier framing in
// favor of TCP, replacing the teacher's UDP datagram carrier). Both
// handshake messages and LLP wire records are framed identically — the
// carrier has no opinion on what it is carrying. Grounded on the
// teacher's messages.go encoding/binary idiom, applied to message framing
// instead of field marshaling.

package transport

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/samber/oops"
)

// MaxMessageSize bounds a single carrier message to prevent a malicious or
// corrupted length prefix from causing an unbounded allocation.
const MaxMessageSize = 1 << 20

// Carrier is a framed byte-stream connection — the single bidirectional
// reliable stream per session spec.md's carrier layer describes.
type Carrier struct {
	conn net.Conn
}

// NewCarrier wraps an established net.Conn (a real TCP connection, an
// in-memory net.Pipe, or a mock satisfying net.Conn) with the LLP framing.
func NewCarrier(conn net.Conn) *Carrier {
	return &Carrier{conn: conn}
}

// DialCarrier opens a new TCP connection to addr and wraps it.
func DialCarrier(addr string) (*Carrier, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, oops.Code("transport").Wrapf(err, "dial carrier %s", addr)
	}
	return NewCarrier(conn), nil
}

// WriteMessage frames msg with a 4-byte big-endian length prefix and
// writes it to the underlying connection.
func (c *Carrier) WriteMessage(msg []byte) error {
	if len(msg) > MaxMessageSize {
		return oops.Code("codec").Errorf("message of %d bytes exceeds carrier limit %d", len(msg), MaxMessageSize)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg)))
	if _, err := c.conn.Write(lenBuf[:]); err != nil {
		return oops.Code("transport").Wrapf(err, "write carrier length prefix")
	}
	if _, err := c.conn.Write(msg); err != nil {
		return oops.Code("transport").Wrapf(err, "write carrier message body")
	}
	return nil
}

// ReadMessage reads one length-prefixed message from the underlying
// connection.
func (c *Carrier) ReadMessage() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return nil, oops.Code("transport").Wrapf(err, "read carrier length prefix")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return nil, oops.Code("codec").Errorf("carrier length prefix %d exceeds limit %d", n, MaxMessageSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, oops.Code("transport").Wrapf(err, "read carrier message body")
	}
	return body, nil
}

// Close closes the underlying connection.
func (c *Carrier) Close() error {
	return c.conn.Close()
}

// RemoteAddr reports the peer address of the underlying connection.
func (c *Carrier) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Listener accepts incoming carrier connections. Grounded on the same
// setup-function idiom as the teacher's conn.SetupUDP, adapted to TCP
// listen/accept instead of a single UDP socket.
type Listener struct {
	ln net.Listener
}

// Listen binds a TCP listener on addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("transport").Wrapf(err, "listen on %s", addr)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a new carrier connection arrives.
func (l *Listener) Accept() (*Carrier, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, oops.Code("transport").Wrapf(err, "accept carrier connection")
	}
	return NewCarrier(conn), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr reports the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
