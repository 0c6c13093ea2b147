package cmd

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// PrintFlags writes flags as an aligned table, wrapping usage text at 80
// columns.
func PrintFlags(w io.Writer, flags []*flag.Flag) {
	wname, wdef := 0, 0
	for _, f := range flags {
		if len(f.Name) > wname {
			wname = len(f.Name)
		}
		if len(f.DefValue) > wdef {
			wdef = len(f.DefValue)
		}
	}
	wdesc := 80 - wname - wdef - 7
	if wdesc < 20 {
		wdesc = 20
	}
	namefmt := fmt.Sprintf("  -%%-%ds ", wname)
	deffmt := fmt.Sprintf("%%-%ds ", wdef+2)
	lpad := strings.Repeat(" ", wname+wdef+7)
	for _, f := range flags {
		fmt.Fprintf(w, namefmt, f.Name)
		if f.DefValue != "" && f.DefValue != "false" {
			fmt.Fprintf(w, deffmt, "("+f.DefValue+")")
		} else {
			fmt.Fprintf(w, deffmt, "")
		}
		for i, line := range wrap(f.Usage, wdesc) {
			if i > 0 {
				fmt.Fprint(w, lpad)
			}
			fmt.Fprintln(w, line)
		}
	}
}

// wrap splits s on spaces into lines of at most width runes. Words longer
// than width get a line of their own.
func wrap(s string, width int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(s) {
		if line != "" && len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = ""
		}
		if line != "" {
			line += " "
		}
		line += word
	}
	return append(lines, line)
}
