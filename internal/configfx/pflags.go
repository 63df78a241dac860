package configfx

import (
	"os"

	"github.com/spf13/pflag"
)

const (
	FlagConfig         = "config"
	FlagConfinfo       = "confinfo"
	FlagEra            = "era"
	FlagForceOverwrite = "force-overwrite"
	FlagLogDir         = "log-dir"
	FlagBatchSize      = "batch-size"
	FlagVerbose        = "verbose"
)

// Args are the command line arguments parsed by PFlags.
type Args []string

func DefaultArgs() Args {
	return os.Args[1:]
}

func PFlags(args Args) (*pflag.FlagSet, error) {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	// Config file flag
	fs.String(FlagConfig, "", "Config file")

	fs.StringP(FlagConfinfo, "c", "", "Serialized list of segments to recover")
	fs.String(FlagEra, "", "Era of the cluster")
	fs.BoolP(FlagForceOverwrite, "f", false, "Overwrite existing target data directories on full recovery")
	fs.StringP(FlagLogDir, "l", "", "Log directory")
	fs.IntP(FlagBatchSize, "b", 8, "Number of segments recovered in parallel")
	fs.BoolP(FlagVerbose, "v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return fs, nil
}
