package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"net/http"

	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/link/ws"
)

// emcgw hosts the websocket hub that relays frames between ws carriers.

var listen = ":17669"

func init() {
	flag.StringVar(&listen, "listen", listen, "HTTP listen address.")
}

func main() {
	flag.Parse()

	hub := ws.NewHub()
	http.Handle("/air", hub.Handler())
	glog.Infof("hub listening on %s", listen)
	if err := http.ListenAndServe(listen, nil); err != nil {
		log.Fatalln(err)
	}
}
