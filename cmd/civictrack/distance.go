package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nitesh/civictrack/internal/geo"
)

var distanceCmd = &cobra.Command{
	Use:   "distance LAT1 LON1 LAT2 LON2",
	Short: "Print the great-circle distance between two points",
	Example: `  civictrack distance 0 0 0 0.01
  civictrack distance -- 40.7128 -74.006 51.5074 -0.1278`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals := make([]float64, len(args))
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return eris.Wrapf(err, "argument %d", i+1)
			}
			vals[i] = v
		}
		d := geo.DistanceKm(vals[0], vals[1], vals[2], vals[3])
		fmt.Fprintf(cmd.OutOrStdout(), "%.1f km\n", geo.RoundKm(d))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(distanceCmd)
}
