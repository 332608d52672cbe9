package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/output"
	"github.com/Aman-CERP/resumatch/internal/vector"
	"github.com/Aman-CERP/resumatch/pkg/version"
)

// versionOutput adds the index file format to the build details, since a
// format change is what forces a rebuild after upgrading.
type versionOutput struct {
	version.BuildInfo
	IndexFormat int `json:"index_format"`
}

func newVersionCmd() *cobra.Command {
	var jsonOutput, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the resumatch version, commit, build date, Go version and index file format.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case jsonOutput:
				return output.New(w).JSON(versionOutput{BuildInfo: version.GetInfo(), IndexFormat: vector.FormatVersion})
			default:
				_, err := fmt.Fprintf(w, "%s\nindex format: v%d\n", version.String(), vector.FormatVersion)
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Output only the version number")

	return cmd
}
