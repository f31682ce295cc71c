package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15", day(2024, 1, 15)},
		{"01/15/2024", day(2024, 1, 15)},
		{"1/5/2024", day(2024, 1, 5)},
		{"2024-01-15T10:30:00Z", day(2024, 1, 15)},
		{"2024-01-15 10:30:00", day(2024, 1, 15)},
		{"20240115", day(2024, 1, 15)},
		{"Jan 15, 2024", day(2024, 1, 15)},
		{"45306", day(2024, 1, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	got, err := ParseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate("next tuesday")
	assert.ErrorContains(t, err, "unrecognized date")
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("$1,250.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1250.50")))

	d, err = ParseAmount("(300)")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(-300)))

	d, err = ParseAmount("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseAmount("lots")
	assert.Error(t, err)
}

func TestRow_Get(t *testing.T) {
	r := Row{cols: headerIndex([]string{"\ufeffAgency Tracking Number", "Company", "UEI"}), values: []string{"A1", "", "U1"}}
	assert.Equal(t, "A1", r.Get("agency_tracking_number"))
	assert.Equal(t, "U1", r.Get("missing", "uei"))
	assert.Equal(t, "", r.Get("company"), "empty values fall through")
	assert.Equal(t, "", r.Get("nope"))
}

const awardsCSV = `Agency Tracking Number,Company,UEI,Duns,Agency,Branch,Phase,Proposal Award Date,Contract End Date,Abstract
A1,Acme Robotics Inc,u1,,DOD,Air Force,Phase II,2021-01-01,2022-06-30,Autonomous navigation for small drones
A2,Beta Sensors LLC,,123456789,NASA,,Phase I,03/15/2021,,Hyperspectral imaging payload
,Nameless,,,DOD,,I,2021-01-01,2021-06-01,
A4,Gamma,,,DOD,,II,not-a-date,,
`

func TestReadAwards_CSV(t *testing.T) {
	path := writeFile(t, "awards.csv", awardsCSV)

	awards, stats, err := ReadAwards(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ReadStats{Rows: 4, Parsed: 2, Skipped: 2}, stats)
	require.Len(t, awards, 2)

	a1 := awards[0]
	assert.Equal(t, "A1", a1.ID)
	assert.Equal(t, "Acme Robotics Inc", a1.VendorName)
	assert.Equal(t, "U1", a1.Vendor.UEI)
	assert.Equal(t, "DOD", a1.Agency)
	assert.Equal(t, "Air Force", a1.SubAgency)
	assert.Equal(t, model.PhaseII, a1.Phase)
	require.NotNil(t, a1.CompletionDate)
	assert.Equal(t, day(2022, 6, 30), *a1.CompletionDate)

	a2 := awards[1]
	assert.Equal(t, "123456789", a2.Vendor.DUNS)
	assert.Nil(t, a2.CompletionDate)
	completion, ok := a2.EffectiveCompletion()
	require.True(t, ok)
	assert.Equal(t, day(2021, 9, 15), completion)
}

func TestReadAwards_XLSX(t *testing.T) {
	path := writeXLSX(t, [][]string{
		{"award_id", "vendor_name", "agency", "award_date", "completion_date", "tech_area"},
		{"A1", "Acme", "DOD", "2021-01-01", "2022-01-01", "Autonomy"},
	})

	awards, stats, err := ReadAwards(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parsed)
	require.Len(t, awards, 1)
	assert.Equal(t, "Autonomy", awards[0].TechArea)
}

func TestReadAwards_MissingFile(t *testing.T) {
	_, _, err := ReadAwards(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorContains(t, err, "ingest: open")
}

func TestReadAwards_EmptyFile(t *testing.T) {
	_, _, err := ReadAwards(context.Background(), writeFile(t, "empty.csv", ""))
	assert.ErrorContains(t, err, "is empty")
}

func TestReadAwards_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ReadAwards(ctx, writeFile(t, "awards.csv", awardsCSV))
	assert.Error(t, err)
}

const contractsCSV = `contract_id,recipient_name,recipient_uei,awarding_agency_name,period_of_performance_start_date,extent_competed_code,federal_action_obligation,award_description
C1,Acme Robotics,U1,DOD,2022-09-01,C,"$1,000,000.00",Drone navigation
C2,Acme Robotics,U1,DOD,2022-10-01,A,500,Spare parts
C3,Beta Sensors,U2,NASA,2023-01-01,D,250,Imaging
C4,Gamma,U3,DOD,2023-02-01,,0,Other
C5,Gamma,U3,DOD,2023-03-01,,0,Other
`

func TestContractStream_CutsAtVendorBoundary(t *testing.T) {
	path := writeFile(t, "contracts.csv", contractsCSV)
	s, err := OpenContracts(context.Background(), path, 2, nil)
	require.NoError(t, err)
	defer s.Close()

	ids := func(cs []model.Contract) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	chunk, err := s.NextChunk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, ids(chunk))

	chunk, err = s.NextChunk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C3", "C4", "C5"}, ids(chunk), "same vendor stays in one chunk")

	_, err = s.NextChunk(context.Background())
	assert.Equal(t, io.EOF, err)
	_, err = s.NextChunk(context.Background())
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, ReadStats{Rows: 5, Parsed: 5}, s.Stats())
}

func TestContractStream_HardCap(t *testing.T) {
	content := "contract_id,uei,start_date\n"
	for _, id := range []string{"C1", "C2", "C3", "C4", "C5"} {
		content += id + ",U1,2023-01-01\n"
	}
	s, err := OpenContracts(context.Background(), writeFile(t, "c.csv", content), 2, nil)
	require.NoError(t, err)
	defer s.Close()

	first, err := s.NextChunk(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 4)
	second, err := s.NextChunk(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestContractStream_SkipsMalformedAndLabels(t *testing.T) {
	content := "contract_id\tuei\tstart_date\tamount\n" +
		"C1\tU1\t2023-01-01\t10\n" +
		"C2\tU1\t\t10\n" +
		"C3\tU1\t2023-01-01\tten dollars\n" +
		"C4\tU1\t2023-02-01\t(5)\n"
	s, err := OpenContracts(context.Background(), writeFile(t, "c.tsv", content), 10,
		map[string]string{"C4": "Sensors"})
	require.NoError(t, err)
	defer s.Close()

	chunk, err := s.NextChunk(context.Background())
	require.NoError(t, err)
	require.Len(t, chunk, 2)
	assert.Equal(t, "C1", chunk[0].ID)
	assert.Equal(t, "Sensors", chunk[1].TechArea)
	assert.True(t, chunk[1].Amount.Equal(decimal.NewFromInt(-5)))
	assert.Equal(t, ReadStats{Rows: 4, Parsed: 2, Skipped: 2}, s.Stats())
}

func TestReadContracts(t *testing.T) {
	contracts, stats, err := ReadContracts(context.Background(), writeFile(t, "contracts.csv", contractsCSV))
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Parsed)
	require.Len(t, contracts, 5)

	c1 := contracts[0]
	assert.Equal(t, model.CompetitionSoleSource, c1.Competition)
	assert.True(t, c1.Amount.Equal(decimal.NewFromInt(1_000_000)))
	assert.Equal(t, "U1", c1.Vendor.UEI)
	assert.Equal(t, "uei:U1", ContractKey(&c1))
	assert.Equal(t, model.CompetitionLimited, contracts[2].Competition)
	assert.Equal(t, model.CompetitionUnknown, contracts[3].Competition)
}

func TestReadPatents(t *testing.T) {
	content := `patent_number,assignee,assignee_uei,filing_date,grant_date,title,abstract
P1,Acme Robotics Inc,U1,2022-08-01,2023-05-01,Drone navigation,Visual odometry
P2,"Beta Sensors, LLC",,2021-01-01,,Imaging payload,
P3,Acme,,,,No filing date,
,Acme,,2022-01-01,,No id,
`
	patents, stats, err := ReadPatents(context.Background(), writeFile(t, "patents.csv", content))
	require.NoError(t, err)
	assert.Equal(t, ReadStats{Rows: 4, Parsed: 2, Skipped: 2}, stats)
	require.Len(t, patents, 2)

	assert.Equal(t, "uei:U1", patents[0].VendorKey)
	assert.Equal(t, day(2022, 8, 1), patents[0].FilingDate)
	require.NotNil(t, patents[0].GrantDate)
	assert.Equal(t, "name:"+resolve.NormalizeName("Beta Sensors, LLC"), patents[1].VendorKey)
	assert.Nil(t, patents[1].GrantDate)
}

func TestReadTechLabels(t *testing.T) {
	content := "record_id,tech_area\nA1,Autonomy\nA2,\nC1,Sensors\nA1,Robotics\n"
	labels, stats, err := ReadTechLabels(context.Background(), writeFile(t, "labels.csv", content))
	require.NoError(t, err)
	assert.Equal(t, ReadStats{Rows: 4, Parsed: 3, Skipped: 1}, stats)
	assert.Equal(t, map[string]string{"A1": "Robotics", "C1": "Sensors"}, labels)

	awards := []model.Award{{ID: "A1"}, {ID: "A2"}, {ID: "A3", TechArea: "Keep"}}
	assert.Equal(t, 1, LabelAwards(awards, labels))
	assert.Equal(t, "Robotics", awards[0].TechArea)
	assert.Equal(t, "", awards[1].TechArea)
	assert.Equal(t, "Keep", awards[2].TechArea)
}
