package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nitesh/civictrack/internal/service"
	"github.com/nitesh/civictrack/pkg/models"
)

// cliSession names the CLI's only session; the file store ignores it.
const cliSession = "cli"

var (
	locationLat     float64
	locationLon     float64
	locationAddress string
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage the saved reference location",
}

var locationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save a location from coordinates or an address",
	Example: `  civictrack location set --lat 40.7128 --lon -74.006
  civictrack location set --address "City Hall, New York"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var in models.LocationInput
		if cmd.Flags().Changed("lat") {
			in.Latitude = &locationLat
		}
		if cmd.Flags().Changed("lon") {
			in.Longitude = &locationLon
		}
		in.Address = locationAddress

		svc, err := locationService()
		if err != nil {
			return err
		}
		loc, err := svc.SaveLocation(cmd.Context(), cliSession, in)
		if err != nil {
			return err
		}
		return printJSON(cmd, loc)
	},
}

var locationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := locationService()
		if err != nil {
			return err
		}
		loc, ok := svc.LoadLocation(cmd.Context(), cliSession)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no saved location")
			return nil
		}
		return printJSON(cmd, loc)
	},
}

var locationClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := locationService()
		if err != nil {
			return err
		}
		if err := svc.ClearLocation(cmd.Context(), cliSession); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "location cleared")
		return nil
	},
}

// locationService is a service without an issue store; location commands never touch issues.
func locationService() (*service.Service, error) {
	fs, err := localStore()
	if err != nil {
		return nil, err
	}
	return service.NewService(nil, single(fs), newGeocoder()), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func init() {
	locationSetCmd.Flags().Float64Var(&locationLat, "lat", 0, "latitude in degrees")
	locationSetCmd.Flags().Float64Var(&locationLon, "lon", 0, "longitude in degrees")
	locationSetCmd.Flags().StringVar(&locationAddress, "address", "", "address to geocode (manual entry)")

	locationCmd.AddCommand(locationSetCmd, locationShowCmd, locationClearCmd)
	rootCmd.AddCommand(locationCmd)
}
