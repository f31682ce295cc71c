package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const awardsCSV = `award_id,vendor_name,uei,agency,award_date,completion_date,phase
A1,Acme Robotics Inc,U1ACME,DOD,2020-01-15,2022-01-01,Phase II
A2,Blue Sky Sensors LLC,U2BLUE,NASA,2021-06-01,2021-12-01,Phase I
A3,,,,,,
`

const contractsCSV = `contract_id,vendor_name,uei,agency,start_date,competition,amount
C1,ACME ROBOTICS,U1ACME,DOD,2022-03-01,C,"$1,500,000"
C2,Acme Robotics,U1ACME,DOD,2025-06-01,A,20000
C3,Other Co,U9OTHER,DOE,2022-03-01,A,100
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dir, "transitions.db"),
		},
		Transition: config.DefaultTransitionConfig(),
		Graph:      config.GraphConfig{BatchSize: 10, MaxAttempts: 1},
		Batch:      config.BatchConfig{MaxConcurrentAwards: 2, ContractChunkSize: 100},
		Monitoring: config.MonitoringConfig{LookbackWindowHours: 24},
		Log:        config.LogConfig{Level: "info", Format: "json"},
	}
}

// fixtureDir writes the award and contract extracts to a temp dir.
func fixtureDir(t *testing.T) (dir, awards, contracts string) {
	t.Helper()
	dir = t.TempDir()
	awards = writeFile(t, dir, "awards.csv", awardsCSV)
	contracts = writeFile(t, dir, "contracts.csv", contractsCSV)
	return dir, awards, contracts
}
