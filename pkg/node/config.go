// Package node provides common setup shared by the daemons: local
// address selection and carrier construction from flags/environment.
package node

import (
	"flag"
	"fmt"
	"os"

	"github.com/Daenzell/emcnow.go/pkg/link"
	"github.com/Daenzell/emcnow.go/pkg/link/mqtt"
	"github.com/Daenzell/emcnow.go/pkg/link/udp"
	"github.com/Daenzell/emcnow.go/pkg/link/ws"
)

// Config selects the node address and the carrier for the link medium.
type Config struct {
	// Addr overrides the machine-derived local address.
	Addr string
	// Carrier is one of mqtt, udp, ws.
	Carrier string

	MQTTURL string
	WSURL   string
	UDP     udp.Config
}

var defaultConfig = Config{
	Carrier: "mqtt",
	MQTTURL: "mqtt://localhost:1883/emcnow/",
	WSURL:   "ws://localhost:17669/air",
}

func init() {
	if val := os.Getenv("EMCNOW_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("EMCNOW_ADDR"); val != "" {
		defaultConfig.Addr = val
	}
	if val := os.Getenv("EMCNOW_CARRIER"); val != "" {
		defaultConfig.Carrier = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Addr, "addr", defaultConfig.Addr, "Node address (aa:bb:cc:dd:ee:ff), default derived from machine ID")
	flag.StringVar(&defaultConfig.Carrier, "carrier", defaultConfig.Carrier, "Link carrier: mqtt, udp or ws")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.WSURL, "ws", defaultConfig.WSURL, "Websocket hub URL")
	flag.StringVar(&defaultConfig.UDP.Interface, "udp-if", defaultConfig.UDP.Interface, "UDP multicast interface")
	flag.StringVar(&defaultConfig.UDP.Group, "udp-group", defaultConfig.UDP.Group, "UDP multicast group")
	flag.IntVar(&defaultConfig.UDP.Port, "udp-port", defaultConfig.UDP.Port, "UDP multicast port")
}

// NewConfig copies the default config.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LocalAddr resolves the node's unicast address.
func (c *Config) LocalAddr() (link.Addr, error) {
	if c.Addr == "" {
		return link.NodeAddr(), nil
	}
	return link.ParseAddr(c.Addr)
}

// NewTransport constructs the selected carrier.
func (c *Config) NewTransport() (link.Transport, link.Addr, error) {
	local, err := c.LocalAddr()
	if err != nil {
		return nil, local, err
	}
	var tr link.Transport
	switch c.Carrier {
	case "mqtt":
		tr, err = mqtt.Dial(c.MQTTURL, local)
	case "udp":
		tr, err = udp.Dial(c.UDP, local)
	case "ws":
		tr, err = ws.Dial(c.WSURL, "http://localhost/", local)
	default:
		err = fmt.Errorf("unknown carrier %q", c.Carrier)
	}
	if err != nil {
		return nil, local, err
	}
	return tr, local, nil
}
