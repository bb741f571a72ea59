package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/node"
	"github.com/Daenzell/emcnow.go/pkg/pair"
	"github.com/Daenzell/emcnow.go/pkg/run"
)

var (
	buttonsHex string
	dataStr    string
)

func init() {
	node.SetupFlags()
	flag.StringVar(&buttonsHex, "buttons", "", "Initial button bits, hex, up to 16 bytes")
	flag.StringVar(&dataStr, "data", "", "Initial data block, up to 64 bytes")
}

func main() {
	flag.Parse()

	conf := node.NewConfig()
	tr, local, err := conf.NewTransport()
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("worker %s on %s", local, conf.Carrier)

	eng := pair.New(pair.Config{Role: pair.RoleWorker, Transport: tr})
	if err := eng.Start(); err != nil {
		log.Fatalln(err)
	}
	defer eng.Shutdown()

	var status pair.WorkerStatus
	if buttonsHex != "" {
		b, err := hex.DecodeString(buttonsHex)
		if err != nil || len(b) > len(status.Buttons) {
			log.Fatalf("invalid -buttons %q", buttonsHex)
		}
		copy(status.Buttons[:], b)
	}
	if len(dataStr) > len(status.Data) {
		log.Fatalf("-data too long (max %d bytes)", len(status.Data))
	}
	copy(status.Data[:], dataStr)
	eng.SetStatus(status)

	runner := run.NewRunner().HandleSignals()
	runner.Go(run.NamedRun("engine", eng))
	runner.Go(run.NamedRun("watch", run.RunFunc(func(ctx context.Context) error {
		return watchCommands(ctx, eng)
	})))
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}

// watchCommands logs each newly accepted command record.
func watchCommands(ctx context.Context, eng *pair.Engine) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var last pair.Command
	bound := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if b := eng.PeerCount() > 1; b != bound {
				bound = b
				if bound {
					glog.Info("coordinator found")
				} else {
					glog.Warning("coordinator lost")
				}
			}
			if cmd := eng.ReceivedCommand(); !cmd.Equal(&last) {
				last = cmd
				glog.Infof("command: main=%d sub=%d idx=%d,%d value=%g int=%d",
					cmd.MainID, cmd.SubID, cmd.Index1, cmd.Index2, cmd.Value, cmd.ValueInt)
			}
		}
	}
}
