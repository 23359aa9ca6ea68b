package main

import (
	"os"

	"github.com/weby-homelab/light-monitor-kyiv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
