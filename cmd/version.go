package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/abhisek/storyteller/internal/llm"
)

// version is set via -ldflags at build time.
var version = "(devel)"

type buildInfo struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Revision string `json:"revision,omitempty"`
	Provider string `json:"llm_provider"`
}

// currentBuild describes this binary. Without ldflags the module version
// and VCS revision embedded by the Go toolchain are used.
func currentBuild() buildInfo {
	info := buildInfo{
		Version:  version,
		Go:       runtime.Version(),
		Provider: llm.ConfigFromEnv().Provider,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "(devel)" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Revision = s.Value
			}
		}
	}
	return info
}

func writeVersion(w io.Writer, info buildInfo, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(info)
	}
	_, err := fmt.Fprintf(w, "storyteller %s (%s, llm provider %s)\n", info.Version, info.Go, info.Provider)
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return writeVersion(cmd.OutOrStdout(), currentBuild(), asJSON)
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Print build information as JSON")
}
