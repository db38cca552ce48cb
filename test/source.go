package test

import (
	"math/rand"
	"net"

	"github.com/juju/ratelimit"
)

// PacedUDPSource writes fixed-size datagrams to a UDP address at a bounded
// byte rate, imitating a live TS multicast feed.
type PacedUDPSource struct {
	conn   *net.UDPConn
	bucket *ratelimit.Bucket
	rng    *rand.Rand

	DatagramSize int
}

func NewPacedUDPSource(addr string, byteRate int64) (*PacedUDPSource, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	var bucket *ratelimit.Bucket
	if byteRate > 0 {
		bucket = ratelimit.NewBucketWithRate(float64(byteRate), byteRate)
	}
	return &PacedUDPSource{
		conn:         conn,
		bucket:       bucket,
		rng:          rand.New(rand.NewSource(42)),
		DatagramSize: 1316,
	}, nil
}

// Send writes the payload in DatagramSize datagrams and returns the bytes
// sent on the wire.
func (s *PacedUDPSource) Send(payload []byte) (int, error) {
	sent := 0
	for len(payload) > 0 {
		n := s.DatagramSize
		if n > len(payload) {
			n = len(payload)
		}
		if s.bucket != nil {
			s.bucket.Wait(int64(n))
		}
		if _, err := s.conn.Write(payload[:n]); err != nil {
			return sent, err
		}
		sent += n
		payload = payload[n:]
	}
	return sent, nil
}

// SendRandom sends total bytes of pseudorandom payload and returns a copy of
// what was sent, in order.
func (s *PacedUDPSource) SendRandom(total int) ([]byte, error) {
	payload := make([]byte, total)
	s.rng.Read(payload)
	if _, err := s.Send(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Close closes the underlying connection.
func (s *PacedUDPSource) Close() error {
	return s.conn.Close()
}
