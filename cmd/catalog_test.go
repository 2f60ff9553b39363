package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
)

const wineListCSV = `name,color,price,cost,available,region,grape_variety,vintage,description,tasting_notes
Nebbiolo d'Alba,red,18.00,8.00,true,Piemonte,Nebbiolo,2021,,red fruit and roses
Barolo Riserva,red,42.00,20.00,true,Piemonte,Nebbiolo,2017,,tar and dried cherry
Soave Classico,white,22.00,10.00,false,Veneto,Garganega,2022,,
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wines.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadWineCSV(t *testing.T) {
	wines, err := readWineCSV(writeTempCSV(t, wineListCSV), 7)
	require.NoError(t, err)
	require.Len(t, wines, 3)

	assert.Equal(t, int64(7), wines[0].VenueID)
	assert.Equal(t, "Nebbiolo d'Alba", wines[0].Name)
	assert.Equal(t, model.ColorRed, wines[0].Color)
	assert.Equal(t, 18.0, wines[0].Price)
	assert.Equal(t, 8.0, wines[0].Cost)
	assert.True(t, wines[0].Available)
	assert.Equal(t, "Nebbiolo", wines[0].GrapeVariety)
	assert.Equal(t, "red fruit and roses", wines[0].TastingNotes)

	assert.False(t, wines[2].Available)
}

func TestReadWineCSV_MissingColumn(t *testing.T) {
	_, err := readWineCSV(writeTempCSV(t, "name,cost\nBarolo,20\n"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
}

func TestReadWineCSV_BadPrice(t *testing.T) {
	_, err := readWineCSV(writeTempCSV(t, "name,color,price\nBarolo,red,lots\n"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestImportWines_SQLiteUpserts(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	venue, err := st.CreateVenue(ctx, model.Venue{Slug: "osteria", Name: "Osteria"})
	require.NoError(t, err)

	wines, err := readWineCSV(writeTempCSV(t, wineListCSV), venue.ID)
	require.NoError(t, err)

	n, err := importWines(ctx, st, wines)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Re-import with a new price updates in place.
	wines[0].Price = 19.5
	_, err = importWines(ctx, st, wines)
	require.NoError(t, err)

	got, err := st.ListAvailableWines(ctx, venue.ID)
	require.NoError(t, err)
	require.Len(t, got, 2) // the Soave is unavailable
	assert.Equal(t, 19.5, got[0].Price)
}
