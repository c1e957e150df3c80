package main

import (
	"os"

	"github.com/GenuineDickies/pat-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
