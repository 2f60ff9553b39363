package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/db"
	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
)

var (
	catalogVenueSlug string
	catalogVenueName string
	catalogStyle     string
	catalogCSVPath   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Import a venue's wine list from CSV",
	Long:  "Loads a wine list CSV (name,color,price,cost,available,region,grape_variety,vintage,description,tasting_notes) into the venue's catalog. Re-importing the same list updates wines in place.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("catalog"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		venue, err := ensureVenue(ctx, st)
		if err != nil {
			return err
		}

		wines, err := readWineCSV(catalogCSVPath, venue.ID)
		if err != nil {
			return err
		}
		if len(wines) == 0 {
			return eris.Errorf("no wines in %s", catalogCSVPath)
		}

		imported, err := importWines(ctx, st, wines)
		if err != nil {
			return eris.Wrap(err, "import wines")
		}

		zap.L().Info("catalog import complete",
			zap.String("venue", venue.Slug),
			zap.Int64("wines", imported),
			zap.String("csv", catalogCSVPath),
		)
		return nil
	},
}

func ensureVenue(ctx context.Context, st store.Store) (*model.Venue, error) {
	venue, err := st.GetVenueBySlug(ctx, catalogVenueSlug)
	if err != nil {
		return nil, eris.Wrap(err, "look up venue")
	}
	if venue != nil {
		return venue, nil
	}

	if catalogVenueName == "" {
		return nil, eris.Errorf("venue %s not found; pass --venue-name to create it", catalogVenueSlug)
	}
	venue, err = st.CreateVenue(ctx, model.Venue{
		Slug:           catalogVenueSlug,
		Name:           catalogVenueName,
		SommelierStyle: catalogStyle,
	})
	if err != nil {
		return nil, eris.Wrap(err, "create venue")
	}
	zap.L().Info("venue created", zap.String("slug", venue.Slug))
	return venue, nil
}

// readWineCSV parses the wine list. The header row is required; column
// order follows it.
func readWineCSV(path string, venueID int64) ([]model.Wine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open csv %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "color", "price"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var wines []model.Wine
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read csv line %d", line)
		}

		price, err := strconv.ParseFloat(field(row, "price"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "bad price on line %d", line)
		}
		cost := 0.0
		if s := field(row, "cost"); s != "" {
			if cost, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, eris.Wrapf(err, "bad cost on line %d", line)
			}
		}
		available := true
		if s := field(row, "available"); s != "" {
			if available, err = strconv.ParseBool(s); err != nil {
				return nil, eris.Wrapf(err, "bad available flag on line %d", line)
			}
		}

		wines = append(wines, model.Wine{
			VenueID:      venueID,
			Name:         field(row, "name"),
			Color:        model.WineColor(strings.ToLower(field(row, "color"))),
			Price:        price,
			Cost:         cost,
			Available:    available,
			Region:       field(row, "region"),
			GrapeVariety: field(row, "grape_variety"),
			Vintage:      field(row, "vintage"),
			Description:  field(row, "description"),
			TastingNotes: field(row, "tasting_notes"),
		})
	}
	return wines, nil
}

// importWines bulk-upserts on Postgres via COPY into a temp table, and
// falls back to per-row upserts elsewhere.
func importWines(ctx context.Context, st store.Store, wines []model.Wine) (int64, error) {
	if pg, ok := st.(*store.PostgresStore); ok {
		rows := make([][]any, len(wines))
		for i, w := range wines {
			rows[i] = []any{
				w.VenueID, w.Name, string(w.Color), w.Price, w.Cost, w.Available,
				w.Region, w.GrapeVariety, w.Vintage, w.Description, w.TastingNotes,
			}
		}
		return db.BulkUpsert(ctx, pg.Pool(), db.UpsertConfig{
			Table: "wines",
			Columns: []string{
				"venue_id", "name", "color", "price", "cost", "available",
				"region", "grape_variety", "vintage", "description", "tasting_notes",
			},
			ConflictKeys: []string{"venue_id", "name"},
		}, rows)
	}

	for _, w := range wines {
		if err := st.UpsertWine(ctx, w); err != nil {
			return 0, err
		}
	}
	return int64(len(wines)), nil
}

func init() {
	catalogCmd.Flags().StringVar(&catalogVenueSlug, "venue", "", "venue slug (required)")
	catalogCmd.Flags().StringVar(&catalogCSVPath, "csv", "", "path to wine list CSV (required)")
	catalogCmd.Flags().StringVar(&catalogVenueName, "venue-name", "", "create the venue with this name if it does not exist")
	catalogCmd.Flags().StringVar(&catalogStyle, "style", "professional", "sommelier style for a newly created venue")
	_ = catalogCmd.MarkFlagRequired("venue")
	_ = catalogCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(catalogCmd)
}
