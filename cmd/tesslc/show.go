package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tesslc/internal/pipeline"
	"tesslc/internal/tess"
)

var showCmd = &cobra.Command{
	Use:   "show <tic>",
	Short: "Print one page of a target's lightcurves",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().String("flux", "pdcsap", "flux channel: pdcsap or sap")
	showCmd.Flags().Int("page", 1, "page number, 1 is the most recent sectors")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fluxFlag, _ := cmd.Flags().GetString("flux")
	flux, err := tess.ParseFluxChannel(fluxFlag)
	if err != nil {
		return err
	}
	page, _ := cmd.Flags().GetInt("page")

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()

	sess, err := a.newSession()
	if err != nil {
		return err
	}
	r := pipeline.NewTextRenderer(cmd.OutOrStdout())
	req := pipeline.Request{Identifier: tess.ParseIdentifier(args[0]), Flux: flux, Page: page}
	out, err := a.pipeline.View(cmd.Context(), sess, req, r)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoData) || errors.Is(err, pipeline.ErrResolution) {
			return err
		}
		return fmt.Errorf("show %s: %w", args[0], err)
	}
	if len(out.Failed) > 0 {
		return fmt.Errorf("%d of %d sectors failed to load", len(out.Failed), len(out.Failed)+len(out.Rendered))
	}
	return nil
}
