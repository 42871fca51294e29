package main

import (
	"os"

	"github.com/mna/mainer"

	"loom/internal/buildinfo"
	"loom/internal/maincmd"
)

func main() {
	c := maincmd.Cmd{BuildVersion: buildinfo.Long()}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
