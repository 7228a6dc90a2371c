package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webforge/internal/config"
	"webforge/internal/setup"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.GetConfigPath()
			}
			if path == "" {
				return errors.New("could not determine the config path; pass --config")
			}
			err := setup.NewWizard(os.Stdin, os.Stdout, path).Run(cmd.Context())
			if errors.Is(err, setup.ErrAborted) {
				fmt.Println("Kept the existing config.")
				return nil
			}
			return err
		},
	}
}
