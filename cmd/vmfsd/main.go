package main

import (
	"github.com/jeffh/vmfs/cli"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cli.BasicServerMain()
}
