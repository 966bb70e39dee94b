package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/viper"

	"github.com/omegabytes/carbonboard/ui"
)

// Version is set at build time
var Version = "dev"

func main() {
	root := newRootCmd(viper.New())
	root.Version = Version
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithColorSchemeFunc(ui.FangColorScheme),
	); err != nil {
		os.Exit(1)
	}
}
