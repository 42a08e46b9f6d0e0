package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("Month,Revenue,Region\n2024-01,\"1,200\",North\n2024-02,,South\n2024-03,900\n"), 0o644))

	rows, cols, err := loadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Month", "Revenue", "Region"}, cols)
	require.Len(t, rows, 3)
	assert.Equal(t, 1200.0, rows[0]["Revenue"])
	assert.Nil(t, rows[1]["Revenue"])
	assert.Nil(t, rows[2]["Region"], "short records are padded")
	assert.Equal(t, "2024-01", rows[0]["Month"])
}

func TestLoadTable_Excel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Product", "Units"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Widget", 12}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Gadget", 7}))
	path := filepath.Join(t.TempDir(), "products.xlsx")
	require.NoError(t, f.SaveAs(path))

	rows, cols, err := loadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product", "Units"}, cols)
	require.Len(t, rows, 2)
	assert.Equal(t, 12.0, rows[0]["Units"])
	assert.Equal(t, "Gadget", rows[1]["Product"])
}

func TestLoadTable_Rejects(t *testing.T) {
	dir := t.TempDir()
	_, _, err := loadTable(filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("A,B\n"), 0o644))
	_, _, err = loadTable(empty)
	assert.Error(t, err)
}
