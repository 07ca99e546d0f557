package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "slideconv",
	Short: "Convert whole-slide images to DICOM and publish them",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing env file is fine; the environment may carry everything.
		_ = godotenv.Load(envFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(migrateCmd)

	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "Path to the environment file")
}
