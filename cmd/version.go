package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// Build variables - these will be set during build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
	OS        = runtime.GOOS
	Arch      = runtime.GOARCH
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Display detailed version information about podcast-dl.

This includes the version number, git commit hash, build time,
and runtime information.`,
		Args: cobra.NoArgs,
		Run:  runVersion,
	}
	cmd.Flags().BoolP("short", "s", false, "print just the version number")
	return cmd
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Fprintf(out, "v%s\n", Version)
		return
	}

	rule := strings.Repeat("-", 40)
	fmt.Fprintln(out, "podcast-dl")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Version:      v%s\n", Version)
	fmt.Fprintf(out, "Git Commit:   %s\n", GitCommit)
	fmt.Fprintf(out, "Build Time:   %s\n", BuildTime)
	fmt.Fprintf(out, "Go Version:   %s\n", GoVersion)
	fmt.Fprintf(out, "OS/Arch:      %s/%s\n", OS, Arch)
	fmt.Fprintln(out, rule)
}
