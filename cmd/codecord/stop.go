package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ///////////////////////////////////////////////
// Stop Command
// ///////////////////////////////////////////////

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Force-stop the daemon and clear session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setupEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.manager.Stop(); err != nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
