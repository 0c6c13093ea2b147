package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/image"
	"github.com/sereneos/initsys/go/logflags"
	"github.com/sereneos/initsys/go/models"
)

// InitCmd is the shared flag, config and error handling for every
// subcommand.
type InitCmd struct {
	Config *models.Config
	Flags  *flag.FlagSet

	SetupFlags func() error
	// Main runs the command with the positional arguments.
	Main func(args []string) error

	// NArgs is the number of required positional arguments.
	NArgs int
	Usage string

	Stderr io.Writer
	color  bool
}

func NewInitCmd(name string) *InitCmd {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &InitCmd{Flags: fs, Stderr: os.Stderr}
	if f, ok := c.Stderr.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		c.Stderr = colorable.NewColorable(f)
		c.color = true
	}
	return c
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (c *InitCmd) paint(s, style string) string {
	if !c.color {
		return s
	}
	return ansi.Color(s, style)
}

// PrintError prints err and the innermost stack trace it carries.
func (c *InitCmd) PrintError(err error) {
	w := c.Stderr
	fmt.Fprintf(w, "%s\n", c.paint(strings.Repeat("-", 40), "red"))
	fmt.Fprintf(w, "%s %s\n", c.paint("Error:", "red+b"), err)

	var st stackTracer
	for e := err; e != nil; {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
		cause, ok := e.(interface{ Cause() error })
		if !ok {
			break
		}
		e = cause.Cause()
	}
	if st == nil {
		return
	}
	// parse method name and file:line for each frame
	var frames [][]string
	for _, f := range st.StackTrace() {
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)
		frames = append(frames, []string{fileline, method})
		if method == "main" {
			break
		}
	}
	width := 0
	for _, f := range frames {
		if len(f[0]) > width {
			width = len(f[0])
		}
	}
	for _, f := range frames {
		pad := strings.Repeat(" ", width-len(f[0]))
		fmt.Fprintf(w, "%s%s | %s()\n", f[0], pad, f[1])
	}
}

// Run parses argv, builds the config and runs Main. It returns the process
// exit code.
func (c *InitCmd) Run(argv []string) int {
	fs := c.Flags
	configPath := fs.String("config", "", "config file (default: initsys/config.toml in the user config folder)")
	verbose := fs.Bool("v", false, "verbose output")
	logOn := fs.Bool("log", false, "enable debug logging")
	layers := fs.String("log-layers", "", "comma separated list of layers to log: boot,loader,kernel,emu or all")
	traceKern := fs.Bool("strace", false, "trace capability calls (same as -log -log-layers kernel)")
	fs.Usage = func() {
		fmt.Fprintf(c.Stderr, "Usage: %s [options] %s\n\nOptions:\n", argv[0], c.Usage)
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		PrintFlags(c.Stderr, flags)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	if err := fs.Parse(argv[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	args := fs.Args()
	if len(args) < c.NArgs {
		fs.Usage()
		return 2
	}

	config := models.DefaultConfig()
	path := *configPath
	if path == "" {
		path = models.ConfigPath()
	}
	if err := config.Load(path); err != nil {
		c.PrintError(err)
		return 1
	}
	// flags given on the command line override the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			config.Verbose = *verbose
		case "log":
			config.Log = *logOn
		case "log-layers":
			config.LogLayers = *layers
		case "strace":
			config.TraceKern = *traceKern
		}
	})
	c.Config = config
	if err := c.setupLogging(); err != nil {
		c.PrintError(err)
		return 1
	}
	if err := c.Main(args); err != nil {
		c.PrintError(err)
		return 1
	}
	return 0
}

func (c *InitCmd) setupLogging() error {
	cfg := c.Config
	logOn, layers := cfg.Log, cfg.LogLayers
	if cfg.TraceKern {
		logOn = true
		if layers == "" {
			layers = "kernel"
		} else if layers != "all" {
			layers += ",kernel"
		}
	}
	if cfg.Verbose && !logOn {
		logOn, layers = true, "boot"
	}
	return logflags.Setup(logOn, layers, c.Stderr)
}

// OpenArchive opens a plain or snappy compressed boot archive.
func OpenArchive(path string) (*image.Image, error) {
	img, err := image.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return img, nil
}
