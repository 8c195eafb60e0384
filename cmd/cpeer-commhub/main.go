package main

import (
	"os"

	"k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/commhub/cmd/cpeer-commhub/app"
)

func main() {
	ctx := server.SetupSignalContext()
	if err := app.NewCommHubCommand(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}
