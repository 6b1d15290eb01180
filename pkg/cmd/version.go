package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
)

const includeDepsFlag = "include-deps"

// CurrentVersion returns the current version of the binary.
func CurrentVersion() (string, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", fmt.Errorf("failed to read BuildInfo because the program was compiled with Go %s", runtime.Version())
	}

	return cobrautil.VersionWithFallbacks(bi), nil
}

func NewVersionCommand(programName string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("displays the version of %s", programName),
		RunE: func(cmd *cobra.Command, _ []string) error {
			bi, ok := debug.ReadBuildInfo()
			if !ok {
				return fmt.Errorf("failed to read BuildInfo because the program was compiled with Go %s", runtime.Version())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", programName, cobrautil.VersionWithFallbacks(bi))
			if !cobrautil.MustGetBool(cmd, includeDepsFlag) {
				return nil
			}

			fmt.Fprintf(out, "go %s\n", bi.GoVersion)
			for _, dep := range bi.Deps {
				fmt.Fprintf(out, "%s %s\n", dep.Path, dep.Version)
			}
			return nil
		},
	}
	cmd.Flags().Bool(includeDepsFlag, false, "include versions of dependencies")
	return cmd
}
