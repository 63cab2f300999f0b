package client

import (
	"errors"
	"io"
	"net"

	"github.com/marmos91/oncrpc/pkg/rpc"
)

// transport performs whole-record I/O on a stream connection.
type transport struct {
	conn      net.Conn
	maxRecord int
}

// send writes buf completely. Writers are allowed to accept fewer bytes than
// offered without an error; send keeps writing the remainder until buf is
// flushed. It returns the number of bytes actually written.
func (t *transport) send(buf []byte) (int, error) {
	sent := 0
	for sent < len(buf) {
		n, err := t.conn.Write(buf[sent:])
		sent += n
		if err != nil {
			return sent, &NetworkError{Op: "write", Err: err}
		}
		if n == 0 {
			return sent, &NetworkError{Op: "write", Err: io.ErrShortWrite}
		}
	}
	return sent, nil
}

// receive reads one complete record, reassembling fragments. It returns the
// record and the number of bytes consumed from the stream.
//
// Stream failures (timeout, reset, EOF) become *NetworkError; malformed
// framing stays *rpc.ProtocolError.
func (t *transport) receive() ([]byte, int, error) {
	cr := &countingReader{r: t.conn}

	record, err := rpc.ReadRecord(cr, t.maxRecord)
	if err != nil {
		var perr *rpc.ProtocolError
		if errors.As(err, &perr) {
			return nil, cr.n, err
		}
		return nil, cr.n, &NetworkError{Op: "read", Err: err}
	}

	return record, cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
