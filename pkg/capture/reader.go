// Package capture turns an unreliable, rate-variable datagram source into a
// bounded, backpressured byte stream a transcode session can consume. A
// Reader receives datagrams on its own goroutine and pushes them into a
// bounded queue; the Stream side presents the queue as a blocking io.Reader.
package capture

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/ratelimit"
	"github.com/muxable/avbridge/pkg/metrics"
	"github.com/muxable/avbridge/pkg/pipeline"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"
)

// State of a Reader. Idle -> Bound -> Receiving -> {TimedOut, Closed}.
type State int32

const (
	StateIdle State = iota
	StateBound
	StateReceiving
	StateTimedOut
	StateClosed
)

// tsDatagramSize is seven 188-byte MPEG-TS packets, the conventional UDP
// payload size for TS over UDP. File replay chunks at this size.
const tsDatagramSize = 1316

// Packet is one received datagram. Ownership transfers to the consumer when
// dequeued; the consumer holds it until fully read.
type Packet struct {
	Payload []byte
}

type Config struct {
	// Timeout is the inactivity window. Once the stream has delivered at
	// least one byte, a quiet period longer than this is treated as a clean
	// end of stream. Before any byte has arrived it only re-arms the read.
	Timeout time.Duration

	// SocketBuffer sizes the UDP receive buffer.
	SocketBuffer int

	// QueueLen bounds the packet queue. A full queue blocks the receive
	// loop (backpressure); packets are never dropped.
	QueueLen int

	// RTP unwraps RTP-encapsulated datagrams, delivering only the payload.
	// Malformed packets are dropped with a warning.
	RTP bool

	// ReplayRate paces file replay in bytes per second, the equivalent of a
	// realtime network feed. 0 replays as fast as the consumer drains.
	ReplayRate int64
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.SocketBuffer == 0 {
		c.SocketBuffer = 16 * 1024 * 1024
	}
	if c.QueueLen == 0 {
		c.QueueLen = 1024
	}
	return c
}

// Reader receives datagrams from a UDP socket, or replays a local file in
// TS-sized datagrams when addr is a path.
type Reader struct {
	ctx  pipeline.Context
	addr string
	conf Config

	conn  *net.UDPConn
	queue chan *Packet
	errc  chan error

	state   int32
	bytes   int64
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewReader binds the source and starts the receive loop. The returned
// Stream is the single consumer of the packet queue.
func NewReader(ctx pipeline.Context, addr string, conf Config) (*Reader, *Stream, error) {
	conf = conf.withDefaults()
	r := &Reader{
		ctx:     ctx,
		addr:    addr,
		conf:    conf,
		queue:   make(chan *Packet, conf.QueueLen),
		errc:    make(chan error, 10),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	if strings.HasPrefix(addr, "/") || strings.HasPrefix(addr, "./") {
		f, err := os.Open(addr)
		if err != nil {
			return nil, nil, err
		}
		r.setState(StateBound)
		go r.replay(f)
		return r, newStream(r), nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, nil, err
	}

	listenAddr := udpAddr
	multicast := udpAddr.IP != nil && udpAddr.IP.IsMulticast()
	if multicast {
		listenAddr = &net.UDPAddr{IP: net.IPv4zero, Port: udpAddr.Port}
	}
	conn, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.SetReadBuffer(conf.SocketBuffer); err != nil {
		log.Warn().Err(err).Msg("failed to set UDP receive buffer, continuing")
	}
	if multicast {
		if err := ipv4.NewPacketConn(conn).JoinGroup(nil, &net.UDPAddr{IP: udpAddr.IP}); err != nil {
			conn.Close()
			return nil, nil, err
		}
	}
	r.conn = conn
	r.setState(StateBound)
	log.Info().Str("Addr", addr).Msg("capture bound")

	go r.receive()
	return r, newStream(r), nil
}

// receive reads datagrams until timeout, error or close.
func (r *Reader) receive() {
	defer close(r.done)
	defer close(r.queue)

	buf := make([]byte, 64*1024)
	for {
		// the kernel compares the deadline against wall time, so it has to
		// come from time.Now even when an injected clock drives durations.
		if err := r.conn.SetReadDeadline(time.Now().Add(r.conf.Timeout)); err != nil {
			r.fail(err)
			return
		}
		n, sender, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if atomic.LoadInt64(&r.bytes) == 0 {
					// stream not started yet, keep waiting.
					continue
				}
				log.Info().Dur("Timeout", r.conf.Timeout).Int64("Bytes", atomic.LoadInt64(&r.bytes)).Msg("capture inactivity, treating as end of stream")
				r.setState(StateTimedOut)
				r.setState(StateClosed)
				return
			}
			select {
			case <-r.closing:
				r.setState(StateClosed)
				return
			default:
			}
			log.Error().Err(err).Stringer("Sender", sender).Msg("UDP read failed")
			r.fail(err)
			return
		}
		r.setState(StateReceiving)

		payload := buf[:n]
		if r.conf.RTP {
			p := &rtp.Packet{}
			if err := p.Unmarshal(payload); err != nil {
				log.Warn().Err(err).Msg("failed to parse rtp packet")
				continue
			}
			payload = p.Payload
		}
		if !r.enqueue(payload) {
			return
		}
	}
}

// replay reads the file in TS-sized datagrams, optionally paced.
func (r *Reader) replay(f *os.File) {
	defer close(r.done)
	defer close(r.queue)
	defer f.Close()

	var bucket *ratelimit.Bucket
	if r.conf.ReplayRate > 0 {
		bucket = ratelimit.NewBucketWithRate(float64(r.conf.ReplayRate), r.conf.ReplayRate)
	}

	buf := make([]byte, tsDatagramSize)
	for {
		select {
		case <-r.closing:
			r.setState(StateClosed)
			return
		default:
		}
		n, err := f.Read(buf)
		if n > 0 {
			r.setState(StateReceiving)
			if bucket != nil {
				bucket.Wait(int64(n))
			}
			if !r.enqueue(buf[:n]) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.fail(err)
				return
			}
			r.setState(StateClosed)
			return
		}
	}
}

// enqueue copies payload into the queue, blocking while it is full. Returns
// false if the reader is closing.
func (r *Reader) enqueue(payload []byte) bool {
	pkt := &Packet{Payload: append([]byte(nil), payload...)}
	select {
	case r.queue <- pkt:
		atomic.AddInt64(&r.bytes, int64(len(payload)))
		metrics.DatagramsReceived.Inc()
		metrics.QueueDepth.Set(float64(len(r.queue)))
		return true
	case <-r.closing:
		r.setState(StateClosed)
		return false
	}
}

func (r *Reader) fail(err error) {
	r.setState(StateClosed)
	select {
	case r.errc <- err:
	default:
	}
}

func (r *Reader) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

// State returns the reader's current state.
func (r *Reader) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// LocalAddr returns the bound socket address, or nil for file replay.
func (r *Reader) LocalAddr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Err exposes fatal source errors (anything other than the inactivity
// timeout) to the owning session.
func (r *Reader) Err() <-chan error {
	return r.errc
}

// Close stops the receive loop and waits for it to exit, so the queue can
// never be written after Close returns. Safe to call more than once.
func (r *Reader) Close() error {
	r.once.Do(func() {
		close(r.closing)
		if r.conn != nil {
			r.conn.Close()
		}
	})
	<-r.done
	return nil
}
