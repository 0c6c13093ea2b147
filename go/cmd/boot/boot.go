package boot

import (
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/boot"
	"github.com/sereneos/initsys/go/cmd"
	"github.com/sereneos/initsys/go/emu"
	"github.com/sereneos/initsys/go/kernel/sim"
	"github.com/sereneos/initsys/go/models"
)

func Main(args []string) int {
	c := cmd.NewInitCmd("boot")
	c.NArgs = 1
	c.Usage = "<archive.tar[.sz]>"

	var target *string
	var wait, run, nolength, etrace *bool
	var budget, view *uint64
	c.SetupFlags = func() error {
		target = c.Flags.String("target", models.DefaultTarget, "path of the init executable inside the archive")
		wait = c.Flags.Bool("wait", false, "wait for one message from init after starting it (implies -run)")
		run = c.Flags.Bool("run", false, "execute init on the emulated CPU once started")
		budget = c.Flags.Uint64("budget", models.DefaultBudget, "instruction budget for -run (0 is unlimited)")
		view = c.Flags.Uint64("view", models.DefaultViewSize, "archive view size when the length is withheld")
		nolength = c.Flags.Bool("nolength", false, "withhold the archive length, as some kernels do")
		etrace = c.Flags.Bool("etrace", false, "log every executed instruction (with -run)")
		return nil
	}
	c.Main = func(args []string) error {
		cfg := c.Config
		cfg.Archive = args[0]
		c.Flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "target":
				cfg.Target = *target
			case "wait":
				cfg.WaitMessage = *wait
			case "run":
				cfg.Run = *run
			case "budget":
				cfg.Budget = *budget
			case "view":
				cfg.ViewSize = *view
			}
		})

		img, err := cmd.OpenArchive(cfg.Archive)
		if err != nil {
			return err
		}
		defer img.Close()

		k := sim.New()
		k.SetBootArchive(img.Data, !*nolength)
		d := &boot.Driver{Kernel: k, IPC: k, Config: cfg}
		runner := &emu.Runner{Budget: cfg.Budget, Trace: *etrace}
		if cfg.WaitMessage {
			// init runs before the driver waits, so the endpoint must exist
			// first. init finds it in its first argument register.
			ep, err := k.EndpointCreate()
			if err != nil {
				return errors.Wrap(err, "endpoint_create")
			}
			defer k.EndpointDestroy(ep)
			d.Endpoint = ep
			runner.Args = []uint64{uint64(ep)}
			cfg.Run = true
		}
		if cfg.Run {
			k.Runner = runner
		}

		res, err := d.Run()
		if err != nil {
			return err
		}
		fmt.Printf("%s: process %d started at %#x\n", cfg.Target, res.Process, res.Entry)
		for i := range res.Segments {
			fmt.Printf("  %s\n", &res.Segments[i])
		}
		if p, err := k.Process(res.Process); err == nil && cfg.Run {
			if p.Err != nil {
				fmt.Printf("  %s: %v\n", p.State, p.Err)
			} else {
				fmt.Printf("  %s\n", p.State)
			}
		}
		if res.Message != nil {
			fmt.Printf("  message: %q\n", res.Message)
		}
		return nil
	}
	return c.Run(args)
}

func init() { cmd.Register("boot", "boot init from a tar archive on the simulated kernel", Main) }
