package exec

import (
	"flag"
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sereneos/initsys/go/boot"
	"github.com/sereneos/initsys/go/cmd"
	"github.com/sereneos/initsys/go/cpu"
	"github.com/sereneos/initsys/go/emu"
	"github.com/sereneos/initsys/go/kernel/sim"
	"github.com/sereneos/initsys/go/loader"
	"github.com/sereneos/initsys/go/logflags"
	"github.com/sereneos/initsys/go/models"
)

// start runs a freshly loaded image, destroying its process if Start fails.
func start(k models.Kernel, img *loader.Image, log *logrus.Entry) error {
	g := boot.Guard(k, img.Process, log)
	defer g.Release()
	if err := k.Start(img.Process, img.Entry); err != nil {
		return errors.Wrap(err, "start")
	}
	g.Disarm()
	return nil
}

func Main(args []string) int {
	c := cmd.NewInitCmd("exec")
	c.NArgs = 1
	c.Usage = "<image.elf>"

	var run, etrace *bool
	var budget *uint64
	var disas *int
	c.SetupFlags = func() error {
		run = c.Flags.Bool("run", false, "execute the image on the emulated CPU")
		etrace = c.Flags.Bool("etrace", false, "log every executed instruction (with -run)")
		budget = c.Flags.Uint64("budget", models.DefaultBudget, "instruction budget for -run (0 is unlimited)")
		disas = c.Flags.Int("disas", 32, "bytes to disassemble at the entry point with -v (0 disables)")
		return nil
	}
	c.Main = func(args []string) error {
		cfg := c.Config
		c.Flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "run":
				cfg.Run = *run
			case "budget":
				cfg.Budget = *budget
			}
		})
		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "read image")
		}
		f, err := loader.Parse(data)
		if err != nil {
			return err
		}
		plan := f.Plan()
		fmt.Printf("%s: entry %#x, %d LOAD segments\n", args[0], f.Entry(), len(plan))
		for i := range plan {
			fmt.Printf("  %s\n", &plan[i])
		}
		for _, pair := range f.Overlaps() {
			fmt.Printf("  warning: segments %d and %d share pages, the second will not map\n", pair[0], pair[1])
		}

		k := sim.New()
		if cfg.Run {
			k.Runner = &emu.Runner{Budget: cfg.Budget, Trace: *etrace}
		}
		img, err := f.Load(k)
		if err != nil {
			return err
		}
		if cfg.Verbose && *disas > 0 {
			mem, err := k.ReadFrom(img.Process, img.Entry, uint64(*disas))
			if err == nil {
				if out, err := cpu.NewX86_64().Disas(mem, img.Entry); err == nil {
					fmt.Println(out)
				}
			}
		}
		if err := start(k, img, logflags.BootLogger()); err != nil {
			return err
		}
		p, _ := k.Process(img.Process)
		if p.Err != nil {
			return p.Err
		}
		fmt.Printf("process %d %s\n", img.Process, p.State)
		return nil
	}
	return c.Run(args)
}

func init() { cmd.Register("exec", "load an ELF image into a fresh process and start it", Main) }
