// File: cmd/version.go
package cmd

import "github.com/spf13/cobra"

// Version is the application version.
// Set at build time: go build -ldflags "-X github.com/xkilldash9x/uiprobe/cmd.Version=1.0.0"
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the uiprobe version",
		Args:  cobra.NoArgs,
		// Printing the version needs neither config nor a logger.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("uiprobe " + Version)
		},
	}
}
