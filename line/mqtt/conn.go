package mqtt

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const (
	// DefaultName is the line name used when the URL has no name parameter.
	DefaultName = "uart0"
	// PacketBacklog is the number of payloads buffered ahead of Read.
	PacketBacklog = 16
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("mqtt line closed")

// DefaultClientID derives a stable client id from the machine id. MQTT 3.1
// brokers cap ids at 23 bytes, so the hash is truncated.
func DefaultClientID() string {
	id, err := machineid.ProtectedID("uartq")
	if err != nil {
		glog.Warningf("mqtt: machine id: %v", err)
		return ""
	}
	if len(id) > 16 {
		id = id[:16]
	}
	return "uartq-" + id
}

// Conn carries a byte stream over two topics: writes are published to
// PubTopic, payloads received on SubTopic are returned by Read.
//
// Up to PacketBacklog received payloads wait for Read. Further payloads are
// dropped with a warning so a stalled reader never blocks the client's
// message router, which serves every subscription on the Queue.
type Conn struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	pending  []byte
	sub      *Subscription
	closed   chan struct{}
	once     sync.Once
}

// NewConn creates a Conn on q. The device side publishes to <name>/tx and
// reads <name>/rx; the peer side swaps them.
func NewConn(q *Queue, name string, peer bool) *Conn {
	c := &Conn{
		Queue:    q,
		packetCh: make(chan []byte, PacketBacklog),
		closed:   make(chan struct{}),
	}
	if peer {
		c.SubTopic, c.PubTopic = name+"/tx", name+"/rx"
	} else {
		c.SubTopic, c.PubTopic = name+"/rx", name+"/tx"
	}
	return c
}

// Dial connects to the broker in rawURL and opens a Conn. The query
// parameters name (line name) and side=peer select the topics.
func Dial(ctx context.Context, rawURL string) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	name := u.Query().Get("name")
	if name == "" {
		name = DefaultName
	}
	q, err := NewQueueFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := q.Connect(ctx); err != nil {
		return nil, err
	}
	c := NewConn(q, name, u.Query().Get("side") == "peer")
	c.sub = q.Sub(c.SubTopic, c.handleMsg)
	glog.Infof("mqtt: line %q pub %q sub %q", name, q.TopicPrefix+c.PubTopic, q.TopicPrefix+c.SubTopic)
	return c, nil
}

// Read implements io.Reader. It blocks until a payload arrives and returns
// io.EOF after Close.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		select {
		case pkt := <-c.packetCh:
			c.pending = pkt
		case <-c.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements io.Writer; p is published as one message.
func (c *Conn) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, ErrClosed
	default:
	}
	token := c.Queue.Pub(c.PubTopic, p)
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close unsubscribes and disconnects.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		if c.sub != nil {
			err = c.sub.Close()
		}
		if c.Queue != nil {
			c.Queue.Close()
		}
	})
	return err
}

func (c *Conn) handleMsg(_ string, payload []byte) {
	pkt := append([]byte(nil), payload...)
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.packetCh <- pkt:
	default:
		glog.Warningf("mqtt: %s backlog full, dropped %d bytes", c.SubTopic, len(pkt))
	}
}
