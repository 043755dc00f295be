package main

import (
	"os"

	"github.com/DeBrosOfficial/caseledger/pkg/cli"
)

// version metadata populated via -ldflags at build time
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	root := cli.NewRootCmd(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	os.Exit(cli.Execute(root, os.Stderr))
}
