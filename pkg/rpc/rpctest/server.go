package rpctest

import (
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/marmos91/oncrpc/pkg/rpc"
)

// Handler produces the bytes written back for a call, record marking
// included. Returning nil closes the connection without replying.
type Handler func(call *Call) []byte

// Echo replies SUCCESS with the call arguments as the result.
func Echo(call *Call) []byte {
	return Frame(SuccessReply(call.Header.XID, call.Args))
}

// Server is a loopback TCP RPC server for tests.
type Server struct {
	listener net.Listener
	handler  Handler

	mu     sync.Mutex
	closed bool
	calls  []*Call
	peers  []*net.TCPAddr
	conns  map[net.Conn]struct{}

	wg sync.WaitGroup
}

// NewServer starts a server on 127.0.0.1 with an ephemeral port. It is
// closed automatically when the test ends.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		listener: listener,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Calls returns the calls received so far, in order.
func (s *Server) Calls() []*Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Call(nil), s.calls...)
}

// Peers returns the remote address of every accepted connection.
func (s *Server) Peers() []*net.TCPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*net.TCPAddr(nil), s.peers...)
}

// Close stops accepting, closes every open connection and waits for the
// serving goroutines to exit.
func (s *Server) Close() {
	_ = s.listener.Close()

	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			s.peers = append(s.peers, addr)
		}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		record, err := rpc.ReadRecord(conn, rpc.DefaultMaxRecordSize)
		if err != nil {
			return
		}

		call, err := ParseCall(record)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		s.mu.Unlock()

		reply := s.handler(call)
		if reply == nil {
			return
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}
