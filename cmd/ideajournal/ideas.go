package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ideasCmd = &cobra.Command{
	Use:   "ideas",
	Short: "Maintain stored ideas",
}

var ideasRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Re-render the PDF of every idea",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, _, err := openRepository(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		n, err := repo.RenderAll(cmd.Context())
		if err != nil {
			logger.Error("render stopped", zap.Int("rendered", n), zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rendered %d ideas\n", n)
		return nil
	},
}

func init() {
	ideasCmd.AddCommand(ideasRenderCmd)
}
