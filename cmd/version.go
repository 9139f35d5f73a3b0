package cmd

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/spigell/job-matcher/cmd.version=... -X ...cmd.commit=...".
var (
	version = ""
	commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the job-matcher version",
	Run: func(cmd *cobra.Command, _ []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildVersion falls back to the module version and VCS revision recorded by go install.
func buildVersion() (string, string) {
	v, c := version, commit
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			if c == "" && setting.Key == "vcs.revision" {
				c = setting.Value
			}
		}
	}
	if v == "" {
		v = "dev"
	}
	return v, c
}

func printVersion(w io.Writer) {
	v, c := buildVersion()
	if c == "" {
		fmt.Fprintf(w, "%s version: %s\n", app, v)
		return
	}
	if len(c) > 12 {
		c = c[:12]
	}
	fmt.Fprintf(w, "%s version: %s (commit %s)\n", app, v, c)
}
