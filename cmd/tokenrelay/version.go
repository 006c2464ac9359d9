package tokenrelay

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tokenrelay/tokenrelay/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of tokenrelay",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.Version)
		},
	}
}
