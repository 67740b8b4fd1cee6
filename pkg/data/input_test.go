package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func writeWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseFeedbackCSV(t *testing.T) {
	in := "label,author,source\n사실,kim,A\n사실 아님, lee ,B\n\n,park,C\n"
	list, err := ParseFeedbackCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "사실", list[0].Label)
	assert.Equal(t, "lee", list[1].Author)
	assert.Equal(t, "", list[2].Label)
}

func TestParseFeedbackCSV_KoreanHeaderAndBOM(t *testing.T) {
	in := "\ufeff판정,기자,언론사,extra\n대체로 사실,kim,한겨레,x\n"
	list, err := ParseFeedbackCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "대체로 사실", list[0].Label)
	assert.Equal(t, "kim", list[0].Author)
	assert.Equal(t, "한겨레", list[0].Source)
}

func TestParseFeedbackCSV_ShortRow(t *testing.T) {
	list, err := ParseFeedbackCSV(strings.NewReader("label,author,source\n사실,kim\n"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "", list[0].Source)
}

func TestParseFeedbackCSV_MissingColumn(t *testing.T) {
	_, err := ParseFeedbackCSV(strings.NewReader("label,author\n사실,kim\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestParseFeedbackCSV_Empty(t *testing.T) {
	_, err := ParseFeedbackCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, errNoHeader)

	list, err := ParseFeedbackCSV(strings.NewReader("label,author,source\n"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReadFeedback_CSVFile(t *testing.T) {
	path := writeFile(t, "batch.csv", "source,label,author\nA,사실,kim\n")
	list, err := ReadFeedback(path)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Source)
}

func TestReadFeedback_Workbook(t *testing.T) {
	path := writeWorkbook(t, "batch.xlsx", [][]any{
		{"라벨", "작성자", "매체"},
		{"사실", "kim", "A"},
		{"사실 아님", "lee", "B"},
	})
	list, err := ReadFeedback(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "사실 아님", list[1].Label)
	assert.Equal(t, "B", list[1].Source)
}

func TestReadFeedback_MissingFile(t *testing.T) {
	_, err := ReadFeedback(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestReadSeed(t *testing.T) {
	path := writeFile(t, "seed.csv", "source,initial_weight,final_weight\nA,0.4,\nB,0.5,0.6\n 연합뉴스 ,0.9,0.9\n")
	tbl, err := ReadSeed(path)
	require.NoError(t, err)
	require.Len(t, tbl, 3)
	assert.InDelta(t, 0.4, tbl["A"].FinalWeight, 1e-9)
	assert.InDelta(t, 0.5, tbl["B"].InitialWeight, 1e-9)
	assert.InDelta(t, 0.6, tbl["B"].FinalWeight, 1e-9)
	assert.Contains(t, tbl, "연합뉴스")
	assert.Zero(t, tbl["A"].ArticleCount)
}

func TestReadSeed_SnapshotFileAsSeed(t *testing.T) {
	path := writeFile(t, "weights.csv", "source,initial_weight,final_weight,article_count\nA,0.4,0.58,3\n")
	tbl, err := ReadSeed(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.58, tbl["A"].FinalWeight, 1e-9)
}

func TestReadSeed_Workbook(t *testing.T) {
	path := writeWorkbook(t, "seed.xlsx", [][]any{
		{"source", "initial_weight"},
		{"A", 0.4},
		{"B", "0.7"},
	})
	tbl, err := ReadSeed(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, tbl["A"].FinalWeight, 1e-9)
	assert.InDelta(t, 0.7, tbl["B"].FinalWeight, 1e-9)
}

func TestReadSeed_ReportsEveryProblem(t *testing.T) {
	path := writeFile(t, "seed.csv", "source,initial_weight\n,0.4\nA,1.5\nB,abc\nC,0.5\nC,0.6\nD,NaN\nE,Inf\nF,-Inf\n")
	_, err := ReadSeed(path)
	require.Error(t, err)
	msg := err.Error()
	for _, row := range []string{"row 2:", "row 3:", "row 4:", "row 6:", "row 7:", "row 8:"} {
		assert.Contains(t, msg, row)
	}
	assert.NotContains(t, msg, "row 5:")
}

func TestReadSeed_NonFiniteFinalWeight(t *testing.T) {
	path := writeFile(t, "seed.csv", "source,initial_weight,final_weight\nA,0.5,NaN\n")
	_, err := ReadSeed(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final_weight")
}

func TestReadSeed_MissingColumn(t *testing.T) {
	path := writeFile(t, "seed.csv", "source,final_weight\nA,0.4\n")
	_, err := ReadSeed(path)
	assert.Error(t, err)
}
