package main

import (
	"github.com/spf13/cobra"
	"github.com/wgsim/controller/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Prompt for every setting and write the result to the file named by
--config. Pressing Enter keeps the suggested default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.Setup(configPath, cmd.InOrStdin(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
