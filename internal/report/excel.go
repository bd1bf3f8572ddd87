// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/meta-engine/pkg/types"
)

const workbookFile = "analysis.xlsx"

// writeWorkbook writes the three analysis tables as sheets of one XLSX
// workbook (R6.3). Cell values mirror the CSV rendering, so a missing
// numeric is an empty cell in both formats.
func writeWorkbook(outDir string, records []types.EffectRecord, pooled []types.PooledResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"Effects", effectsHeader, effectsRows(records)},
		{"Readiness", readinessHeader, readinessRows(records)},
		{"Pooled", pooledHeader, pooledRows(pooled)},
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return fmt.Errorf("renaming sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return fmt.Errorf("creating sheet %s: %w", sheet.name, err)
			}
		}

		if err := setRow(f, sheet.name, 1, sheet.header); err != nil {
			return err
		}
		for r, row := range sheet.rows {
			if err := setRow(f, sheet.name, r+2, row); err != nil {
				return err
			}
		}
	}

	path := filepath.Join(outDir, workbookFile)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("addressing row %d: %w", row, err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing row %d of %s: %w", row, sheet, err)
	}
	return nil
}
