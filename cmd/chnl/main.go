package main

import (
	"os"

	"github.com/guiyumin/chnl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
