package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokkai-archive/kokkaid/config"
	"github.com/kokkai-archive/kokkaid/internal/ingest"
	srv "github.com/kokkai-archive/kokkaid/internal/server"
	"github.com/kokkai-archive/kokkaid/internal/store"
)

func syncCMD() *cobra.Command {
	var cfgPath string
	var source string
	var fromStr, untilStr string

	var sync = &cobra.Command{
		Use:   "sync",
		Short: "Fetch publication metadata from the government sources",
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

			switch source {
			case "":
				return svc.SyncAll(ctx, from, until)
			case ingest.SourceSessionList:
				return svc.SyncSessions(ctx)
			case ingest.SourceMinutes:
				_, err := svc.SyncMinutes(ctx, from, until)
				return err
			case ingest.SourceShugiinTV:
				_, err := svc.SyncTV(ctx, from, until)
				return err
			case "questions":
				_, err := svc.SyncQuestions(ctx)
				return err
			default:
				return fmt.Errorf("unknown source %q (want minutes, shugiintv, session_list or questions)", source)
			}
		},
	}
	sync.Flags().StringVar(&source, "source", "", "single source to sync (default all)")
	sync.Flags().StringVar(&fromStr, "from", "", "start date YYYY-MM-DD (default from watermark)")
	sync.Flags().StringVar(&untilStr, "until", "", "end date YYYY-MM-DD (default today)")
	sync.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return sync
}

func parseRange(fromStr, untilStr string) (time.Time, time.Time, error) {
	var from, until time.Time
	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if untilStr != "" {
		until, err = time.Parse("2006-01-02", untilStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
		}
	}
	return from, until, nil
}
