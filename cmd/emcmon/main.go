package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Daenzell/emcnow.go/pkg/link"
	"github.com/Daenzell/emcnow.go/pkg/link/mqtt"
	"github.com/Daenzell/emcnow.go/pkg/pair"
)

// emcmon passively watches the MQTT carrier and prints classified frames.

var mqttURL = "mqtt://localhost:1883/emcnow/"

func init() {
	if val := os.Getenv("EMCNOW_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, topicPrefix, err := mqtt.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	opts.SetClientID("emcmon")
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	topic := topicPrefix + mqtt.FrameTopic + "#"
	token := client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		dst, err := mqtt.AddrFromTopic(msg.Topic())
		if err != nil {
			log.Printf("bad topic %q", msg.Topic())
			return
		}
		payload := msg.Payload()
		if len(payload) < 6 {
			log.Printf("-> %s: runt message (%d bytes)", dst, len(payload))
			return
		}
		var src link.Addr
		copy(src[:], payload[:6])
		describe(src, dst, payload[6:])
	})
	if token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}

func describe(src, dst link.Addr, payload []byte) {
	switch {
	case dst == link.WorkerBroadcast && string(payload) == pair.WorkerAnnounce:
		log.Printf("%s ANNOUNCE worker", src)
	case dst == link.CoordinatorBroadcast && string(payload) == pair.CoordinatorAnnounce:
		log.Printf("%s ANNOUNCE coordinator", src)
	case len(payload) == pair.CommandSize:
		var cmd pair.Command
		if cmd.Decode(payload) == nil {
			log.Printf("%s -> %s COMMAND main=%d sub=%d idx=%d,%d value=%g int=%d",
				src, dst, cmd.MainID, cmd.SubID, cmd.Index1, cmd.Index2, cmd.Value, cmd.ValueInt)
		}
	case len(payload) == pair.WorkerStatusSize:
		var s pair.WorkerStatus
		if s.Decode(payload) == nil {
			log.Printf("%s -> %s STATUS buttons=%x", src, dst, s.Buttons)
		}
	default:
		log.Printf("%s -> %s UNKNOWN %d bytes", src, dst, len(payload))
	}
}
