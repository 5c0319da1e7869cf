// Package udp sends each pose as a single JSON datagram.
package udp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"

	"attview/internal/pipeline"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Sender struct {
	dest string
	conn udpConn

	sent    atomic.Uint64
	refused atomic.Uint64
}

func NewSender(dest string) (*Sender, error) {
	return newSender(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newSender(dest string, resolve resolveFunc, dial dialFunc) (*Sender, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Sender{dest: dest, conn: conn}, nil
}

func (s *Sender) Dest() string { return s.dest }

// Send writes one datagram. A refused port (nobody listening yet) is counted
// rather than reported.
func (s *Sender) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if _, err := s.conn.Write(payload); err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			s.refused.Add(1)
			return nil
		}
		return err
	}
	s.sent.Add(1)
	return nil
}

// Publish implements pipeline.Presenter.
func (s *Sender) Publish(p pipeline.Pose) error {
	if s == nil || s.conn == nil {
		return nil
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("udp: marshal pose: %w", err)
	}
	if err := s.Send(payload); err != nil {
		return fmt.Errorf("udp: send to %s: %w", s.dest, err)
	}
	return nil
}

func (s *Sender) Sent() uint64    { return s.sent.Load() }
func (s *Sender) Refused() uint64 { return s.refused.Load() }

func (s *Sender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
