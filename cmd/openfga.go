/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/mautops/procurement-gin/internal/auth"
	"github.com/spf13/cobra"
)

// openfgaCmd represents the openfga command
var openfgaCmd = &cobra.Command{
	Use:   "openfga",
	Short: "OpenFGA helpers",
}

// openfgaModelCmd 输出权限模型, 用于 fga model write
var openfgaModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Print the OpenFGA authorization model",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), auth.GetPermissionModel())
		return err
	},
}

func init() {
	rootCmd.AddCommand(openfgaCmd)
	openfgaCmd.AddCommand(openfgaModelCmd)
}
