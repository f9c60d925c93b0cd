// main is the entry point of the chartkit CLI.
package main

import (
	"github.com/huangsam/chartkit/cmd"
	"github.com/huangsam/chartkit/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("chartkit", err)
	}
}
