package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/killallgit/podcast-dl/internal/services/recognition"
)

func addOutputDirFlag(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "", "output directory (default ~/Downloads/podcast-dl)")
	bindConfig(flags, "output", "output.dir")
}

func addFormatFlag(flags *pflag.FlagSet) {
	flags.String("format", "txt", "output format (txt, srt, json, all)")
	bindConfig(flags, "format", "output.format")
}

func addSkipExistingFlag(flags *pflag.FlagSet) {
	flags.Bool("skip-existing", true, "reuse audio already downloaded (--skip-existing=false to fetch again)")
	bindConfig(flags, "skip-existing", "output.skip_existing")
}

func addRecognitionFlags(flags *pflag.FlagSet) {
	flags.StringP("model", "m", string(recognition.DefaultModelSize),
		fmt.Sprintf("model size (%s)", recognition.JoinNames(recognition.ModelSizes)))
	flags.StringP("language", "l", "", "language code (e.g. zh, en); auto-detect if omitted")
	flags.String("compute-type", "",
		fmt.Sprintf("compute type (%s); chosen from hardware if omitted", recognition.JoinNames(recognition.ComputeProfiles)))

	bindConfig(flags, "model", "transcription.model")
	bindConfig(flags, "language", "transcription.language")
	bindConfig(flags, "compute-type", "transcription.compute_type")
}
