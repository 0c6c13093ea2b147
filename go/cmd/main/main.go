package main

import (
	"github.com/sereneos/initsys/go/cmd"

	_ "github.com/sereneos/initsys/go/cmd/boot"
	_ "github.com/sereneos/initsys/go/cmd/exec"
	_ "github.com/sereneos/initsys/go/cmd/ls"
	_ "github.com/sereneos/initsys/go/cmd/proc"
)

func main() { cmd.Main() }
