package ls

import (
	"fmt"
	"strings"

	"github.com/sereneos/initsys/go/cmd"
	"github.com/sereneos/initsys/go/tar"
)

func Main(args []string) int {
	c := cmd.NewInitCmd("ls")
	c.NArgs = 1
	c.Usage = "<archive.tar[.sz]>"

	var prefix *string
	var long *bool
	c.SetupFlags = func() error {
		prefix = c.Flags.String("prefix", "/", "only list paths starting with this prefix")
		long = c.Flags.Bool("l", false, "show kind, mode and size")
		return nil
	}
	c.Main = func(args []string) error {
		img, err := cmd.OpenArchive(args[0])
		if err != nil {
			return err
		}
		defer img.Close()
		archive := tar.New(img.Data)
		if !*long {
			paths, err := archive.List(*prefix)
			for _, p := range paths {
				fmt.Println(p)
			}
			return err
		}
		return archive.Walk(func(e *tar.Entry) error {
			if strings.HasPrefix(e.Path, *prefix) {
				fmt.Printf("%-11s %04o %10d %s\n", e.Kind, e.Mode, e.Size, e.Path)
			}
			return nil
		})
	}
	return c.Run(args)
}

func init() { cmd.Register("ls", "list the paths in a boot archive", Main) }
