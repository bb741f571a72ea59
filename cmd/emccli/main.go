package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/Daenzell/emcnow.go/pkg/node"
	"github.com/Daenzell/emcnow.go/pkg/pair"
	"github.com/Daenzell/emcnow.go/pkg/run"
)

// emccli runs a coordinator with an interactive console for poking the
// command record and inspecting the peer table.

const engineKey = "$engine"

func init() {
	node.SetupFlags()
}

func engineFrom(c *ishell.Context) *pair.Engine {
	return c.Get(engineKey).(*pair.Engine)
}

var commands = []*ishell.Cmd{
	{
		Name: "peers",
		Help: "list registered peers",
		Func: func(c *ishell.Context) {
			for _, p := range engineFrom(c).Peers() {
				c.Printf("%3d  %s\n", p.Handle, p.Addr)
			}
		},
	},
	{
		Name: "set",
		Help: "set command record: set <main> <sub> <i1> <i2> <value> <int>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 6 {
				c.Err(fmt.Errorf("usage: set <main> <sub> <i1> <i2> <value> <int>"))
				return
			}
			var b [4]uint8
			for i := 0; i < 4; i++ {
				v, err := strconv.ParseUint(c.Args[i], 0, 8)
				if err != nil {
					c.Err(err)
					return
				}
				b[i] = uint8(v)
			}
			val, err := strconv.ParseFloat(c.Args[4], 32)
			if err != nil {
				c.Err(err)
				return
			}
			vi, err := strconv.ParseInt(c.Args[5], 0, 32)
			if err != nil {
				c.Err(err)
				return
			}
			engineFrom(c).SetCommand(pair.Command{
				MainID: b[0], SubID: b[1], Index1: b[2], Index2: b[3],
				Value: float32(val), ValueInt: int32(vi),
			})
		},
	},
	{
		Name: "cmd",
		Help: "show the outbound command record",
		Func: func(c *ishell.Context) {
			cmd := engineFrom(c).Command()
			c.Printf("main=%d sub=%d idx=%d,%d value=%g int=%d\n",
				cmd.MainID, cmd.SubID, cmd.Index1, cmd.Index2, cmd.Value, cmd.ValueInt)
		},
	},
	{
		Name: "status",
		Help: "show the latest received worker status",
		Func: func(c *ishell.Context) {
			s := engineFrom(c).ReceivedStatus()
			c.Printf("buttons: %x\n", s.Buttons)
			c.Printf("data:    %x\n", s.Data)
		},
	},
}

func main() {
	flag.Parse()

	conf := node.NewConfig()
	tr, local, err := conf.NewTransport()
	if err != nil {
		log.Fatalln(err)
	}

	eng := pair.New(pair.Config{Role: pair.RoleCoordinator, Transport: tr})
	if err := eng.Start(); err != nil {
		log.Fatalln(err)
	}
	defer eng.Shutdown()

	runner := run.NewRunner()
	runner.Go(run.NamedRun("engine", eng))

	shell := ishell.New()
	shell.Set(engineKey, eng)
	shell.SetPrompt(fmt.Sprintf("[%s] > ", local))
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}
	shell.Run()
}
