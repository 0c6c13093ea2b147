package cmd

import (
	"bytes"
	"flag"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/models"
)

func TestWrap(t *testing.T) {
	lines := wrap("aaa bbb ccc dddddddddd e", 8)
	want := []string{"aaa bbb", "ccc", "dddddddddd", "e"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("wrap() = %q", lines)
	}
}

func TestPrintFlags(t *testing.T) {
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	fs.String("target", "/init", "path of init")
	fs.Bool("run", false, "run it")
	var flags []*flag.Flag
	fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
	var buf bytes.Buffer
	PrintFlags(&buf, flags)
	out := buf.String()
	if !strings.Contains(out, "-target (/init)") || !strings.Contains(out, "path of init") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "(false)") {
		t.Errorf("false default shown:\n%s", out)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	c := &InitCmd{Stderr: &buf}
	c.PrintError(errors.Wrap(errors.New("boom"), "boot"))
	out := buf.String()
	if !strings.Contains(out, "Error: boot: boom") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, "TestPrintError()") {
		t.Errorf("no stack trace:\n%s", out)
	}
	buf.Reset()
	c.PrintError(io.EOF)
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("plain error output:\n%s", buf.String())
	}
}

func newTestCmd(main func(args []string) error) *InitCmd {
	c := NewInitCmd("test")
	c.Stderr = ioutil.Discard
	c.Main = main
	return c
}

func TestRunConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	conf := "target = \"/sbin/init\"\nverbose = false\nbudget = 5\n"
	if err := ioutil.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}
	var got *models.Config
	c := newTestCmd(func(args []string) error { return nil })
	c.Main = func(args []string) error {
		got = c.Config
		return nil
	}
	if code := c.Run([]string{"test", "-config", path, "-v"}); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if got.Target != "/sbin/init" || got.Budget != 5 {
		t.Errorf("file values lost: %+v", got)
	}
	if !got.Verbose {
		t.Error("flag did not override the file")
	}
	if got.ViewSize != models.DefaultViewSize {
		t.Errorf("default lost: %+v", got)
	}
}

func TestRunExitCodes(t *testing.T) {
	c := newTestCmd(func(args []string) error { return errors.New("fail") })
	if code := c.Run([]string{"test"}); code != 1 {
		t.Errorf("failing Main exit code %d", code)
	}
	c = newTestCmd(func(args []string) error { return nil })
	c.NArgs = 1
	if code := c.Run([]string{"test"}); code != 2 {
		t.Errorf("missing argument exit code %d", code)
	}
	c = newTestCmd(func(args []string) error { return nil })
	if code := c.Run([]string{"test", "-config", filepath.Join(t.TempDir(), "missing.toml")}); code != 1 {
		t.Errorf("missing config exit code %d", code)
	}
}
