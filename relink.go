package main

import (
	"os"
	"path/filepath"

	"github.com/ComedicChimera/olive"
	"github.com/ksco/relink/pkg/config"
	"github.com/ksco/relink/pkg/linker"
	"github.com/ksco/relink/pkg/logging"
	"github.com/ksco/relink/pkg/utils"
)

var version = "dev"

func main() {
	cli := olive.NewCLI("relink", "relink splits relocatable modules into editable trees and rebuilds them", true)
	cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"silent", "error", "warning", "verbose"})

	unpackCmd := cli.AddSubcommand("unpack", "split every module of a directory into an unpack tree", true)
	unpackCmd.AddPrimaryArg("root", "the directory holding the modules and their maps", true)

	rebuildCmd := cli.AddSubcommand("rebuild", "rebuild every module of an unpack tree", true)
	rebuildCmd.AddPrimaryArg("root", "the directory holding the unpacked modules", true)

	cli.AddSubcommand("version", "print the relink version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(2)
	}

	logLevel := ""
	if v, ok := result.Arguments["loglevel"]; ok {
		logLevel = v.(string)
	}

	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "unpack":
		ctx := newContext(subResult, logLevel)
		exitOnError("unpack", linker.Unpack(ctx))
		logging.Infof("unpack", "%d modules written to %s",
			len(ctx.Modules), filepath.Join(ctx.Arg.Root, ctx.Config.OutputDir))
	case "rebuild":
		ctx := newContext(subResult, logLevel)
		exitOnError("rebuild", linker.Rebuild(ctx))
		logging.Infof("rebuild", "%d modules written to %s", len(ctx.Modules), ctx.Arg.Root)
	case "version":
		logging.PrintInfoMessage("relink", version)
	}
}

// newContext loads the configuration of the root directory. A level given
// on the command line wins over the configured one.
func newContext(result *olive.ArgParseResult, logLevel string) *linker.Context {
	root, _ := result.PrimaryArg()
	root, err := filepath.Abs(root)
	utils.MustNo(err)

	cfg, err := config.Load(root)
	utils.MustNo(err)

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Initialize(cfg.LogLevel)

	return linker.NewContext(root, cfg)
}

func exitOnError(tag string, err error) {
	if err != nil {
		logging.Errorf(tag, "%v", err)
		os.Exit(1)
	}
}
