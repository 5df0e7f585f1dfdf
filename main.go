// Package main is the entry point of boxrelay.
package main

import (
	"github.com/boxrelay/boxrelay/cmd"
	"github.com/boxrelay/boxrelay/config"
	"github.com/boxrelay/boxrelay/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
