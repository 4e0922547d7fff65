package main

import (
	"github.com/BioHazard786/Roomdrop/cmd"
	"github.com/BioHazard786/Roomdrop/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
