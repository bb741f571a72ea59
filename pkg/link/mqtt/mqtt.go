// Package mqtt bridges link frames over an MQTT broker, so simulated
// nodes and monitors can share one medium across hosts.
package mqtt

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

// FrameTopic is the topic prefix carrying frames, one subtopic per
// destination address (12 hex digits).
const FrameTopic = "fr/"

// ClientOptionsFromURL creates paho options from mqtt://host:port/prefix.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	topicPrefix := strings.TrimPrefix(u.Path, "/")
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	return opts, topicPrefix, nil
}

// TopicFor maps a destination address to its frame topic (no prefix).
func TopicFor(addr link.Addr) string {
	return FrameTopic + hex.EncodeToString(addr[:])
}

// AddrFromTopic recovers the destination address from a frame topic.
func AddrFromTopic(topic string) (a link.Addr, err error) {
	i := strings.LastIndex(topic, "/")
	b, err := hex.DecodeString(topic[i+1:])
	if err != nil || len(b) != 6 {
		return a, fmt.Errorf("bad frame topic %q", topic)
	}
	copy(a[:], b)
	return a, nil
}

// Transport implements link.Transport over MQTT. Published messages are
// [src 6][payload]; the destination rides in the topic. The publish
// token result drives the send-status callback.
type Transport struct {
	client      paho.Client
	topicPrefix string
	local       link.Addr

	mu       sync.Mutex
	handler  link.FrameHandler
	notifier link.SendStatusNotifier
	peers    map[link.Addr]struct{}
	closed   bool
}

// Dial connects to the broker and subscribes to the local address and
// both reserved broadcast addresses.
func Dial(brokerURL string, local link.Addr) (*Transport, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("emcnow:" + local.String())
	}
	t := &Transport{
		topicPrefix: topicPrefix,
		local:       local,
		peers:       make(map[link.Addr]struct{}),
	}
	opts.SetOnConnectHandler(func(paho.Client) {
		glog.Info("mqtt connected")
		t.subscribe()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt connection lost: %v", err)
	})
	t.client = paho.NewClient(opts)
	token := t.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transport) subscribe() {
	for _, addr := range []link.Addr{t.local, link.WorkerBroadcast, link.CoordinatorBroadcast} {
		topic := t.topicPrefix + TopicFor(addr)
		if token := t.client.Subscribe(topic, 0, t.dispatch); token.Wait() && token.Error() != nil {
			glog.Errorf("subscribe %q: %v", topic, token.Error())
		}
	}
}

func (t *Transport) dispatch(_ paho.Client, msg paho.Message) {
	dst, err := AddrFromTopic(msg.Topic())
	if err != nil {
		glog.V(2).Infof("drop message: %v", err)
		return
	}
	payload := msg.Payload()
	if len(payload) < 6 {
		return
	}
	var src link.Addr
	copy(src[:], payload[:6])
	if src == t.local {
		return
	}
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.HandleFrame(context.Background(), link.Frame{
			Src:     src,
			Dst:     dst,
			Payload: append([]byte(nil), payload[6:]...),
		})
	}
}

// Bind implements Transport.
func (t *Transport) Bind(h link.FrameHandler, n link.SendStatusNotifier) {
	t.mu.Lock()
	t.handler, t.notifier = h, n
	t.mu.Unlock()
}

// AddPeer implements Transport.
func (t *Transport) AddPeer(addr link.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return link.ErrClosed
	}
	if _, ok := t.peers[addr]; ok {
		return nil
	}
	if len(t.peers) >= link.MaxPeers {
		return link.ErrPeerTableFull
	}
	t.peers[addr] = struct{}{}
	return nil
}

// RemovePeer implements Transport.
func (t *Transport) RemovePeer(addr link.Addr) error {
	t.mu.Lock()
	delete(t.peers, addr)
	t.mu.Unlock()
	return nil
}

// Send implements Transport.
func (t *Transport) Send(dst link.Addr, payload []byte) error {
	if len(payload) > link.MaxPayload {
		return link.ErrPayloadTooLarge
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return link.ErrClosed
	}
	if _, ok := t.peers[dst]; !ok && !dst.IsBroadcast() {
		t.mu.Unlock()
		return link.ErrUnknownPeer
	}
	t.mu.Unlock()

	msg := make([]byte, 6+len(payload))
	copy(msg[:6], t.local[:])
	copy(msg[6:], payload)
	token := t.client.Publish(t.topicPrefix+TopicFor(dst), 0, false, msg)
	go func() {
		token.Wait()
		ok := token.Error() == nil
		t.mu.Lock()
		n := t.notifier
		t.mu.Unlock()
		if n != nil {
			n.SendStatus(context.Background(), dst, ok)
		}
	}()
	return nil
}

// Close implements Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.handler, t.notifier = nil, nil
	t.mu.Unlock()
	t.client.Disconnect(250)
	return nil
}
