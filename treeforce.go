package main

import (
	"fmt"
	"os"

	"github.com/sphgrav/treeforce/lib"
	"github.com/sphgrav/treeforce/lib/cell"
	"github.com/sphgrav/treeforce/lib/exchange"
	"github.com/sphgrav/treeforce/lib/stack"
	"github.com/sphgrav/treeforce/lib/wire"
)

func main() {
	if len(os.Args) < 2 {
		PrintHelp()
		os.Exit(1)
	}
	mode := os.Args[1]

	// Run the chosen mode.
	switch mode {
	case "help":
		PrintHelp()
	case "check":
		Check(configName())
	case "layout":
		Layout()
	case "selftest":
		Selftest(configName())
	default:
		lib.ExternalErrorf(
			"You attempted to run treeforce in the mode '%s', but the only "+
				"valid modes are 'help', 'check', 'layout', and 'selftest'.",
			mode,
		)
	}
}

func configName() string {
	if len(os.Args) < 3 {
		lib.ExternalErrorf(
			"The '%s' mode needs a configuration file:\n"+
				"$ treeforce %s <config file>", os.Args[1], os.Args[1],
		)
	}
	return os.Args[2]
}

func PrintHelp() {
	fmt.Println(`treeforce <mode> [config file]

Modes:
  help       Print this message.
  check      Validate a configuration file and the compiled wire layout.
  layout     Print the derived wire layout of the cell record.
  selftest   Run a two-rank exchange over a loopback transport, using the
             thread, generation, and compression settings in the config
             file.`)
}

// Check runs treeforce's "check" mode, which validates the configuration
// file and rebuilds the wire layout the way every rank does at startup.
func Check(configFile string) {
	cfg, err := lib.ReadConfig(configFile)
	if err != nil {
		lib.ExternalErrorf("%s", err.Error())
	}

	_, err = wire.BuildLayout(&cell.Buffer{})
	if err != nil {
		lib.InternalErrorf("%s", err.Error())
	}

	fmt.Printf("No errors detected. (%d ranks, %d max hops)\n",
		cfg.Exchange.Ranks, cfg.Exchange.MaxHops)
}

// Layout runs treeforce's "layout" mode, which prints the measured wire
// layout of the cell record.
func Layout() {
	l, err := wire.BuildLayout(&cell.Buffer{})
	if err != nil {
		lib.InternalErrorf("%s", err.Error())
	}

	// Ranks built with different Versions may lay the record out
	// differently, so the version is part of the layout report.
	fmt.Printf("record version 0x%x\n", lib.Version)
	fmt.Printf("%5s %6s %6s %8s\n", "field", "kind", "count", "offset")
	for i, f := range l.Fields {
		fmt.Printf("%5d %6s %6d %8d\n", i, f.Kind, f.Count, f.Offset)
	}
	fmt.Printf("extent: %d bytes\n", l.Extent)
}

// Selftest runs treeforce's "selftest" mode: two simulated ranks push cells
// through a work stack, exchange the ones marked remote over a loopback
// transport, and check the reconciled sums. The config file supplies the
// same run-time knobs a real run would use: thread count, generation
// number, and whether the transport compresses.
func Selftest(configFile string) {
	cfg, err := lib.ReadConfig(configFile)
	if err != nil {
		lib.ExternalErrorf("%s", err.Error())
	}
	if cfg.Exchange.Ranks != 2 {
		lib.ExternalErrorf(
			"The selftest simulates exactly two ranks, but the config file "+
				"sets Ranks = %d.", cfg.Exchange.Ranks,
		)
	}

	sent, err := selftest(cfg)
	if err != nil {
		lib.InternalErrorf("%s", err.Error())
	}

	fmt.Printf("No errors detected. (%d cells exchanged)\n", sent)
}

// selftest runs the two-rank loopback exchange and returns the number of
// cells that made the round trip.
func selftest(cfg *lib.Config) (sent int, err error) {
	lib.SetThreads(cfg.Run.Threads)

	l, err := wire.BuildLayout(&cell.Buffer{})
	if err != nil {
		return 0, err
	}

	lo := exchange.NewLoopback(2, 64)
	tr := [2]exchange.Transport{lo[0], lo[1]}
	if cfg.Exchange.Compress {
		for i := range tr {
			tr[i] = exchange.NewZstdTransport(
				tr[i], cfg.Exchange.CompressLevel,
			)
		}
	}

	gen := cfg.Run.Generation
	e0, err := exchange.New(0, gen, &cfg.Exchange, l, tr[0])
	if err != nil {
		return 0, err
	}
	e1, err := exchange.New(1, gen, &cfg.Exchange, l, tr[1])
	if err != nil {
		return 0, err
	}

	// Rank 1 answers every request by contributing 1 to each sum component.
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- e1.Serve(func(c *cell.Buffer) (int, error) {
			contrib := make([]float64, cell.MaxOutput)
			for j := range contrib {
				contrib[j] = 1
			}
			for i := 0; i < int(c.NPart); i++ {
				c.AccumulateSums(i, contrib)
			}
			return -1, nil
		}, nil)
	}()

	// Rank 0 produces a pass of cells, sends every odd one to rank 1, and
	// resolves the rest locally.
	s := stack.New(gen, 8)
	scratch := &cell.Buffer{}
	for id := int32(0); id < 16; id++ {
		scratch.Reset(id, 0)
		for i := 0; i < 3; i++ {
			err := scratch.Append(cell.Particle{Index: id*3 + int32(i)})
			if err != nil {
				return 0, err
			}
		}
		s.Push(scratch)
	}

	for s.Len() > 0 {
		top, err := s.Peek()
		if err != nil {
			return sent, err
		}

		if top.CellID%2 == 1 {
			if err := e0.Mark(top, 1); err != nil {
				return sent, err
			}
			resolved, err := e0.HandleOnce(nil)
			if err != nil {
				return sent, err
			}
			if resolved == nil || resolved.Sums[0][0] != 1 {
				return sent, fmt.Errorf(
					"cell %d came back with sums %g, expected 1",
					top.CellID, top.Sums[0][0],
				)
			}
			sent++
		}

		if err := s.Pop(scratch); err != nil {
			return sent, err
		}
	}

	if err := lo[1].Close(); err != nil {
		return sent, err
	}
	return sent, <-serveErr
}
