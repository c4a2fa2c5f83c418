// Package sink provides concrete demod.Sink implementations: a plain
// file sink and a TCP sink, mirroring the original Meteor-M2 LRPT
// demodulator's single-file output and the broader pack's pattern
// (baobrien-smartsdr-golang/tcpInterface.go) of streaming a
// demodulator's output over a network connection as an alternate sink.
package sink

import (
	"net"
	"os"
)

// File wraps an *os.File as a demod.Sink.
type File struct {
	f *os.File
}

// OpenFile creates (or truncates) name for writing and wraps it as a Sink.
func OpenFile(name string) (*File, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

func (s *File) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *File) Close() error                { return s.f.Close() }

// TCP wraps an outbound net.Conn as a demod.Sink, for streaming soft
// symbols to a downstream decoder over the network instead of to disk.
type TCP struct {
	conn net.Conn
}

// DialTCP connects to addr and wraps the connection as a Sink.
func DialTCP(addr string) (*TCP, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCP{conn: conn}, nil
}

func (s *TCP) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *TCP) Close() error                { return s.conn.Close() }
