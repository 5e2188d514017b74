package location

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

// maxXLSRows bounds the legacy .xls reader.
const maxXLSRows = 100000

var headerAliases = map[string]string{
	"office id":   "officeId",
	"officeid":    "officeId",
	"office_id":   "officeId",
	"region":      "region",
	"division":    "division",
	"office name": "officeName",
	"officename":  "officeName",
	"office_name": "officeName",
	"office":      "officeName",
}

// ReadSpreadsheet parses a location table from an .xlsx, .xls or .csv file.
// The first row is the header; columns are matched by name, case-insensitive.
func ReadSpreadsheet(r io.Reader, filename string) ([]model.LocationRecord, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := columns[key]; !dup {
				columns[key] = i
			}
		}
	}
	for _, required := range []string{"region", "officeName"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	col := func(row []string, key string) string {
		idx, ok := columns[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var out []model.LocationRecord
	for _, row := range rows[1:] {
		rec := model.LocationRecord{
			OfficeID:   col(row, "officeId"),
			Region:     col(row, "region"),
			Division:   col(row, "division"),
			OfficeName: col(row, "officeName"),
		}
		if rec == (model.LocationRecord{}) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func readRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(bytes.NewReader(data))
		cr.FieldsPerRecord = -1
		return cr.ReadAll()
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		return workbook.ReadAllCells(maxXLSRows), nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		return file.GetRows(sheet)
	}
}

// Import replaces the location table with records in one atomic batch.
// Records without an office id get a generated one.
func Import(ctx context.Context, s store.DocumentStore, records []model.LocationRecord) (int, error) {
	existing, err := s.Query(ctx, store.CollectionLocations, nil)
	if err != nil {
		return 0, fmt.Errorf("read existing locations: %w", err)
	}

	muts := make([]store.Mutation, 0, len(existing)+len(records))
	for _, e := range existing {
		muts = append(muts, store.DeleteMutation(store.CollectionLocations, e.ID))
	}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.OfficeID == "" || seen[rec.OfficeID] {
			rec.OfficeID = uuid.NewString()
		}
		seen[rec.OfficeID] = true
		doc, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode location %s: %w", rec.OfficeID, err)
		}
		muts = append(muts, store.PutMutation(store.CollectionLocations, rec.OfficeID, doc))
	}

	if err := s.Commit(ctx, muts); err != nil {
		return 0, err
	}
	return len(records), nil
}
