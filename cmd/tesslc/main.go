package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "tesslc",
	Short:        "Browse TESS lightcurves by TIC number",
	Long:         "tesslc finds every sector TESS observed a target in, picks the best lightcurve per sector and serves them page by page with the star's catalog parameters.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", os.Getenv("TESSLC_CONFIG"), "path to tesslc.yaml")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
