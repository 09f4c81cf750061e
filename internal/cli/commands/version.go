package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// BuildInfo is stamped into the binary with -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewVersionCommand prints the build and the dialects and drivers compiled in.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the LeapORM version, build metadata and the dialects and drivers compiled into this binary.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "LeapORM v%s\n", info.Version)
			if info.Commit != "" && info.Commit != "unknown" {
				_, _ = fmt.Fprintf(w, "Commit:   %s (built %s)\n", info.Commit, info.Date)
			}
			_, _ = fmt.Fprintf(w, "Dialects: %s\n", listOrNone(dialect.List()))
			_, _ = fmt.Fprintf(w, "Drivers:  %s\n", listOrNone(driver.ListDrivers()))
		},
	}
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
