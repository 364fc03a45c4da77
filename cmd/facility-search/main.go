package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kceleski/agent-healthproassist-sub000/internal/application/services"
	"github.com/kceleski/agent-healthproassist-sub000/internal/bootstrap"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "facility-search",
		Short: "Search senior-care facilities near a location",
		Long: `facility-search runs one search against the configured facility sources and
prints the ranked results.

Environment variables are the same as the API server, for example:
  FACILITY_CSV_PATH     bulk dataset to search
  GEOLOCATION_PROVIDER  static (default) or google
  PLACES_ENABLED        also query the live listing API`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level")

	rootCmd.AddCommand(searchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type searchOptions struct {
	csvPath     string
	lat, lon    float64
	types       []string
	careLevels  []string
	insurance   []string
	medical     []string
	amenities   []string
	priceTiers  []string
	minRating   float64
	maxDistance float64
	available   bool
	sources     []string
	role        string
	limit       int
}

func searchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <location>",
		Short: "Search facilities near a location",
		Long:  "Geocodes the location, queries every configured source and prints facilities in rank order.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			logLevel, _ := cmd.Flags().GetString("log-level")

			location := ""
			if len(args) == 1 {
				location = args[0]
			}
			query, err := buildQuery(location, cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon"), opts)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLogger("facility-search", cfg.Env, logLevel)
			if opts.csvPath != "" {
				cfg.Sources.CSVPath = opts.csvPath
			}

			components, err := bootstrap.Build(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			return runSearch(cmd.Context(), cmd.OutOrStdout(), components.NewSession(""), query, outputJSON)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.csvPath, "csv", "", "Facility dataset (overrides FACILITY_CSV_PATH)")
	f.Float64Var(&opts.lat, "lat", 0, "Search center latitude (skips geocoding)")
	f.Float64Var(&opts.lon, "lon", 0, "Search center longitude (skips geocoding)")
	f.StringSliceVarP(&opts.types, "type", "t", nil, "Facility types, e.g. memory-care,hospice")
	f.StringSliceVar(&opts.careLevels, "care-level", nil, "Required care levels")
	f.StringSliceVar(&opts.insurance, "insurance", nil, "Accepted insurance")
	f.StringSliceVar(&opts.medical, "medical-need", nil, "Supported medical needs")
	f.StringSliceVar(&opts.amenities, "amenity", nil, "Amenities")
	f.StringSliceVar(&opts.priceTiers, "price", nil, "Price tiers ($..$$$$ or 1..4)")
	f.Float64Var(&opts.minRating, "min-rating", 0, "Minimum rating (0-5)")
	f.Float64VarP(&opts.maxDistance, "distance", "d", 0, "Maximum distance in miles")
	f.BoolVar(&opts.available, "available", false, "Only facilities with current availability")
	f.StringSliceVar(&opts.sources, "source", nil, "Restrict to bulk and/or live sources")
	f.StringVar(&opts.role, "role", "", "Caller role used for source policy and match scoring")
	f.IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results (0 for all)")

	return cmd
}

func buildQuery(location string, hasCenter bool, opts searchOptions) (entities.SearchQuery, error) {
	query := entities.SearchQuery{
		LocationText: strings.TrimSpace(location),
		Role:         strings.ToLower(strings.TrimSpace(opts.role)),
		Limit:        opts.limit,
	}
	if hasCenter {
		center, err := entities.NewGeoPoint(opts.lat, opts.lon)
		if err != nil {
			return query, err
		}
		query.CenterOverride = &center
	}
	if query.LocationText == "" && query.CenterOverride == nil {
		return query, fmt.Errorf("a location argument or --lat/--lon is required")
	}

	for _, v := range opts.types {
		t, ok := entities.ParseFacilityType(v)
		if !ok {
			return query, fmt.Errorf("unknown facility type %q", v)
		}
		query.Filters.FacilityTypes = append(query.Filters.FacilityTypes, t)
	}
	for _, v := range opts.priceTiers {
		tier, ok := entities.ParsePriceTier(v)
		if !ok {
			return query, fmt.Errorf("unknown price tier %q", v)
		}
		query.Filters.PriceTiers = append(query.Filters.PriceTiers, tier)
	}
	for _, v := range opts.sources {
		p, err := entities.ParseProvenance(v)
		if err != nil {
			return query, err
		}
		query.SourcePreference = append(query.SourcePreference, p)
	}
	if opts.minRating < 0 || opts.minRating > 5 {
		return query, fmt.Errorf("--min-rating must be between 0 and 5")
	}
	if opts.maxDistance < 0 {
		return query, fmt.Errorf("--distance must not be negative")
	}
	if opts.maxDistance > 0 {
		d := opts.maxDistance
		query.Filters.MaxDistanceMiles = &d
	}
	query.Filters.CareLevels = opts.careLevels
	query.Filters.Insurance = opts.insurance
	query.Filters.MedicalNeeds = opts.medical
	query.Filters.Amenities = opts.amenities
	query.Filters.MinRating = opts.minRating
	query.Filters.AvailabilityOnly = opts.available
	return query, nil
}

func runSearch(ctx context.Context, out io.Writer, session *services.SearchSession, query entities.SearchQuery, outputJSON bool) error {
	result, err := session.Search(ctx, query)
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Found %d facilities near %s:\n\n", len(result.Records), result.Center)
	for i, r := range result.Records {
		f := r.Facility
		fmt.Fprintf(out, "%d. %s (%s) %.1f mi", i+1, f.Name, f.Type, r.DistanceMiles)
		if f.Rating != nil {
			fmt.Fprintf(out, "  %.1f★", *f.Rating)
		}
		if r.MatchScore != nil {
			fmt.Fprintf(out, "  match %.0f", *r.MatchScore)
		}
		fmt.Fprintln(out)
		if f.Address != nil {
			fmt.Fprintf(out, "   %s\n", *f.Address)
		}
	}
	if result.Truncated {
		fmt.Fprintln(out, "\nMore facilities exist; narrow the search to see them.")
	}
	if result.PartialFailure {
		for _, s := range result.Diagnostics.Sources {
			if s.Failed() {
				fmt.Fprintf(out, "\nWarning: source %s failed (%s)\n", s.Source, s.ErrorKind)
			}
		}
	}
	return nil
}
