package cli

import (
	"github.com/spf13/cobra"

	"salesetl/internal/config"
	"salesetl/internal/etl"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the quality gate over the raw extracts",
		Long: `Normalize every raw extract and evaluate its quality rules. Accepted
extracts are written to the validated directory; a JSON report is written for
every evaluated extract.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Validate(cmd.Context())
			renderGate(cmd.OutOrStdout(), res)
			return err
		},
	}
}

func (a *app) curateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "curate",
		Short: "Enrich the validated extracts and write parquet tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Curate(cmd.Context(), nil)
			if err != nil {
				return err
			}
			renderCurated(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Replace the warehouse tables with the curated data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			loaded, err := p.Load(cmd.Context())
			renderLoaded(cmd.OutOrStdout(), loaded)
			return err
		},
	}
}

func (a *app) runCmd() *cobra.Command {
	var opt etl.RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate, curate and load in one pass",
		Example: `  # Full run against the default Postgres warehouse
  salesetl run

  # Stop after writing parquet
  salesetl run --skip-load`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			s, err := p.Run(cmd.Context(), opt)
			w := cmd.OutOrStdout()
			renderGate(w, s.Gate)
			if s.Curated != nil {
				renderCurated(w, *s.Curated)
			}
			if len(s.Loaded) > 0 {
				renderLoaded(w, s.Loaded)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opt.SkipLoad, "skip-load", false, "stop after writing the curated tables")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.Dump(cmd.OutOrStdout(), a.cfg)
		},
	}
}
