package location

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

func xlsxFixture(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadSpreadsheet_xlsx(t *testing.T) {
	buf := xlsxFixture(t, [][]any{
		{"Office ID", " Region ", "Division", "Office Name"},
		{"1", "North", "Highlands", "Nyeri BO"},
		{"2", "South", "Coast", "Mombasa"},
		{"", "", "", ""},
	})

	records, err := ReadSpreadsheet(buf, "locations.xlsx")
	require.NoError(t, err)
	require.Equal(t, []model.LocationRecord{
		{OfficeID: "1", Region: "North", Division: "Highlands", OfficeName: "Nyeri BO"},
		{OfficeID: "2", Region: "South", Division: "Coast", OfficeName: "Mombasa"},
	}, records)
}

func TestReadSpreadsheet_csvRaggedRows(t *testing.T) {
	in := "region,office,division\nNorth,Nyeri BO,Highlands\nSouth,Mombasa\n"
	records, err := ReadSpreadsheet(strings.NewReader(in), "upload.CSV")
	require.NoError(t, err)
	require.Equal(t, []model.LocationRecord{
		{Region: "North", Division: "Highlands", OfficeName: "Nyeri BO"},
		{Region: "South", OfficeName: "Mombasa"},
	}, records)
}

func TestReadSpreadsheet_csvShortColumns(t *testing.T) {
	in := "region,division,office name\nNorth,Highlands,Nyeri BO\n"
	records, err := ReadSpreadsheet(strings.NewReader(in), "upload.csv")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Nyeri BO", records[0].OfficeName)
	require.Empty(t, records[0].OfficeID)
}

func TestReadSpreadsheet_missingColumn(t *testing.T) {
	_, err := ReadSpreadsheet(strings.NewReader("division\nX\n"), "a.csv")
	require.ErrorContains(t, err, "region")
}

func TestImport_replacesTable(t *testing.T) {
	mem := store.NewMemory("primary")
	ctx := context.Background()
	require.NoError(t, store.PutJSON(ctx, mem, store.CollectionLocations, "old", model.LocationRecord{OfficeID: "old"}))

	n, err := Import(ctx, mem, []model.LocationRecord{
		{OfficeID: "1", Region: "North", OfficeName: "A"},
		{Region: "North", OfficeName: "B"},
		{OfficeID: "1", Region: "South", OfficeName: "C"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, mem.Len(store.CollectionLocations))

	_, err = mem.Get(ctx, store.CollectionLocations, "old")
	require.ErrorIs(t, err, store.ErrNotFound)

	records, err := NewProvider(mem, 2, nil).Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
}
