package mqtt

import (
	"context"
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// Queue wraps MQTT client.
type Queue struct {
	Client      paho.Client
	TopicPrefix string

	subsLock sync.RWMutex
	subs     map[string][]*Subscription
}

// Subscription is a subscribed topic.
type Subscription struct {
	Token paho.Token

	queue   *Queue
	topic   string
	handler Handler
}

// ClientOptionsFromURL creates ClientOptions from URL. The path becomes the
// topic prefix. Without a client-id query parameter the id is derived from
// the machine id.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	var server string
	switch u.Scheme {
	case "", "mqtt":
		server = "tcp"
	case "mqtts":
		server = "ssl"
	default:
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}

	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	} else {
		opts.SetClientID(DefaultClientID())
	}

	return opts, topicPrefix, nil
}

// NewQueue creates Queue.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL creates Queue from URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(opts, topicPrefix), nil
}

// Connect connects the client and waits for the result or ctx.
func (q *Queue) Connect(ctx context.Context) error {
	token := q.Client.Connect()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Sub subscribes a topic.
func (q *Queue) Sub(topic string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, topic: topic, handler: handler}
	q.subsLock.Lock()
	if q.subs == nil {
		q.subs = make(map[string][]*Subscription)
	}
	newSub := len(q.subs[topic]) == 0
	q.subs[topic] = append(q.subs[topic], sub)
	q.subsLock.Unlock()

	if newSub {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+topic)
		sub.Token = q.Client.Subscribe(q.TopicPrefix+topic, 0, q.dispatch)
	} else {
		sub.Token = &paho.DummyToken{}
	}
	return sub
}

// Pub publishes to a topic.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.Client.Publish(q.TopicPrefix+topic, 0, false, payload)
}

// resubscribe restores every subscription after a reconnect.
func (q *Queue) resubscribe() {
	filters := make(map[string]byte)
	q.subsLock.RLock()
	for topic := range q.subs {
		filters[q.TopicPrefix+topic] = 0
	}
	q.subsLock.RUnlock()
	if len(filters) > 0 {
		q.Client.SubscribeMultiple(filters, q.dispatch)
	}
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt: connected")
	q.resubscribe()
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt: connection lost: %v", err)
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	glog.V(2).Infof("RCV %q", topic)
	q.deliver(topic[len(q.TopicPrefix):], msg.Payload())
}

func (q *Queue) deliver(topic string, payload []byte) {
	q.subsLock.RLock()
	subs := append([]*Subscription(nil), q.subs[topic]...)
	q.subsLock.RUnlock()
	for _, s := range subs {
		s.handler(topic, payload)
	}
}

// Close unsubscribes the handler, and the topic once no handler is left.
func (s *Subscription) Close() error {
	q := s.queue
	q.subsLock.Lock()
	list := q.subs[s.topic]
	for i, sub := range list {
		if sub == s {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	unsub := len(list) == 0
	if unsub {
		delete(q.subs, s.topic)
	} else {
		q.subs[s.topic] = list
	}
	q.subsLock.Unlock()
	if unsub {
		glog.V(2).Infof("UNSUB %q", s.topic)
		token := q.Client.Unsubscribe(q.TopicPrefix + s.topic)
		token.Wait()
		return token.Error()
	}
	return nil
}
