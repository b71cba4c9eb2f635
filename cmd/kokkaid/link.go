package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kokkai-archive/kokkaid/config"
	srv "github.com/kokkai-archive/kokkaid/internal/server"
	"github.com/kokkai-archive/kokkaid/internal/store"
)

func linkCMD() *cobra.Command {
	var cfgPath string
	var fromStr, untilStr string

	var link = &cobra.Command{
		Use:   "link",
		Short: "Run the minutes-to-broadcast linking engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			from, until, err := parseRange(fromStr, untilStr)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			defer st.DB.Close()
			svc := srv.NewService(cfg, st)

			report, err := svc.LinkRun(ctx, from, until)
			if err != nil {
				return err
			}
			fmt.Printf("linked=%d superseded=%d kept=%d unmatched=%d conflicts=%d\n",
				len(report.Linked), len(report.Superseded), report.Kept, len(report.Unmatched), report.Conflicts)
			// unmatched records are reported above; they do not fail the run
			return nil
		},
	}
	link.Flags().StringVar(&fromStr, "from", "", "start date YYYY-MM-DD (default from watermark)")
	link.Flags().StringVar(&untilStr, "until", "", "end date YYYY-MM-DD (default today)")
	link.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return link
}
