package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nitesh/civictrack/internal/geo"
	"github.com/nitesh/civictrack/internal/service"
	"github.com/nitesh/civictrack/internal/store"
)

var (
	nearbyRadius string
	nearbyLimit  int
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List issues near the saved location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		radius, err := geo.ParseRadius(nearbyRadius, cfg.DefaultRadius())
		if err != nil {
			return err
		}
		fs, err := localStore()
		if err != nil {
			return err
		}
		conn, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close() //nolint:errcheck

		svc := service.NewService(store.NewSQLStore(conn), single(fs), nil)
		if _, ok := svc.LoadLocation(ctx, cliSession); !ok {
			return eris.New("no saved location; run `civictrack location set` first")
		}
		issues, err := svc.Nearby(ctx, cliSession, nil, radius, nearbyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(issues) == 0 {
			fmt.Fprintf(out, "no issues within %s km\n", radius)
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DISTANCE\tCATEGORY\tSTATUS\tVOTES\tTITLE\tID")
		for _, is := range issues {
			dist := "-"
			if is.DistanceKm != nil {
				dist = fmt.Sprintf("%.1f km", *is.DistanceKm)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", dist, is.Category, is.Status, is.Votes, is.Title, is.ID)
		}
		return w.Flush()
	},
}

func init() {
	nearbyCmd.Flags().StringVar(&nearbyRadius, "radius", "", "neighborhood radius in km: 3, 4 or 5 (default from config)")
	nearbyCmd.Flags().IntVar(&nearbyLimit, "limit", store.DefaultLimit, "maximum issues to list")
	rootCmd.AddCommand(nearbyCmd)
}
