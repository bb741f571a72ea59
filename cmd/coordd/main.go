package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/node"
	"github.com/Daenzell/emcnow.go/pkg/pair"
	"github.com/Daenzell/emcnow.go/pkg/run"
)

var (
	mainID   = flag.Uint("cmd-main", 0, "Command main ID")
	subID    = flag.Uint("cmd-sub", 0, "Command sub ID")
	idx1     = flag.Uint("cmd-i1", 0, "Command index 1")
	idx2     = flag.Uint("cmd-i2", 0, "Command index 2")
	value    = flag.Float64("cmd-value", 0, "Command value")
	valueInt = flag.Int("cmd-int", 0, "Command integer value")
)

func init() {
	node.SetupFlags()
}

func main() {
	flag.Parse()

	conf := node.NewConfig()
	tr, local, err := conf.NewTransport()
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("coordinator %s on %s", local, conf.Carrier)

	eng := pair.New(pair.Config{Role: pair.RoleCoordinator, Transport: tr})
	if err := eng.Start(); err != nil {
		log.Fatalln(err)
	}
	defer eng.Shutdown()
	eng.SetCommand(pair.Command{
		MainID:   uint8(*mainID),
		SubID:    uint8(*subID),
		Index1:   uint8(*idx1),
		Index2:   uint8(*idx2),
		Value:    float32(*value),
		ValueInt: int32(*valueInt),
	})

	runner := run.NewRunner().HandleSignals()
	runner.Go(run.NamedRun("engine", eng))
	runner.Go(run.NamedRun("watch", run.RunFunc(func(ctx context.Context) error {
		return watchWorkers(ctx, eng)
	})))
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}

// watchWorkers logs peer-count changes and newly accepted status records.
func watchWorkers(ctx context.Context, eng *pair.Engine) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var last pair.WorkerStatus
	peers := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := eng.PeerCount() - 1; n != peers {
				peers = n
				glog.Infof("workers: %d", peers)
			}
			if s := eng.ReceivedStatus(); !s.Equal(&last) {
				last = s
				glog.Infof("status: buttons=%x", s.Buttons)
			}
		}
	}
}
