// main.go
//
// Entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/inference-sim/moe-hybrid/cmd"
)

func main() {
	cmd.Execute()
}
