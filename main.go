// Command cardgen writes CMS Combine datacards from ROOT histograms.
package main

import (
	"os"

	"github.com/topljets/cardgen/cmd"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/iocache"
)

func main() {
	defer iocache.CloseStores()

	if err := cmd.Execute(); err != nil {
		contract.LogWarn("Command failed", err)
		iocache.CloseStores()
		os.Exit(1)
	}
	if err := cmd.StopProfiling(); err != nil {
		contract.LogWarn("Failed to stop profiling", err)
	}
}
