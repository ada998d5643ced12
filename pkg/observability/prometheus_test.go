package observability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	require.NotNil(t, m.registry)
	assert.Equal(t, m.registry, m.Registry())
}

func TestRecordSpawn(t *testing.T) {
	m := NewMetrics()

	m.RecordSpawn("adb", nil)
	m.RecordSpawn("adb", errors.New(`exec: "adb": executable file not found in $PATH`))
	m.RecordSpawn("ssh", nil)
	m.RecordSpawn("ssh", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.spawnsTotal.WithLabelValues("adb", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.spawnsTotal.WithLabelValues("adb", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.spawnsTotal.WithLabelValues("ssh", "success")))
}

func TestRecordCheck(t *testing.T) {
	started := time.Date(2026, 3, 14, 7, 5, 9, 0, time.UTC)

	tests := []struct {
		name        string
		loggedIn    bool
		result      string
		wantLogin   string
		wantLoginOK float64
		wantNFS     float64
	}{
		{name: "nfs mounted", loggedIn: true, result: "yes", wantLogin: "success", wantLoginOK: 1, wantNFS: 1},
		{name: "local mount", loggedIn: true, result: "no", wantLogin: "success", wantLoginOK: 1, wantNFS: 0},
		{name: "login failed", loggedIn: false, result: "unknown", wantLogin: "failed", wantLoginOK: 0, wantNFS: 0},
		{name: "session error", loggedIn: false, result: "error", wantLogin: "failed", wantLoginOK: 0, wantNFS: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics()
			m.RecordCheck(tt.loggedIn, tt.result, started, 4*time.Second)

			assert.Equal(t, 1.0, testutil.ToFloat64(m.checksTotal.WithLabelValues(tt.wantLogin, tt.result)))
			assert.Equal(t, tt.wantLoginOK, testutil.ToFloat64(m.loginSuccess))
			assert.Equal(t, tt.wantNFS, testutil.ToFloat64(m.nfsMounted))
			assert.Equal(t, float64(started.Unix()), testutil.ToFloat64(m.lastCheckTimestamp))
			assert.Equal(t, 1, testutil.CollectAndCount(m.checkDuration))
		})
	}
}

func TestRecordCheck_GaugesFollowLastCheck(t *testing.T) {
	m := NewMetrics()
	now := time.Now()

	m.RecordCheck(true, "yes", now, time.Second)
	m.RecordCheck(false, "unknown", now.Add(time.Minute), time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.loginSuccess))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.nfsMounted))
	assert.Equal(t, float64(now.Add(time.Minute).Unix()), testutil.ToFloat64(m.lastCheckTimestamp))
	assert.Equal(t, 2, testutil.CollectAndCount(m.checksTotal))
}

func TestMetricsNamespace(t *testing.T) {
	m := NewMetrics()
	m.RecordSpawn("adb", nil)
	m.RecordCheck(true, "no", time.Now(), time.Second)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	for _, mf := range families {
		assert.True(t, strings.HasPrefix(mf.GetName(), "emmc_check_"), "metric %s lacks namespace", mf.GetName())
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.RecordCheck(true, "yes", time.Now(), time.Second)

	assert.Equal(t, 1, testutil.CollectAndCount(m1.checksTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(m2.checksTotal))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordSpawn("adb", nil)
	m.RecordCheck(true, "yes", time.Unix(1700000000, 0), 2*time.Second)

	path := filepath.Join(t.TempDir(), "emmc_check.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, `emmc_check_checks_total{login="success",result="yes"} 1`)
	assert.Contains(t, body, `emmc_check_bridge_spawns_total{status="success",transport="adb"} 1`)
	assert.Contains(t, body, "emmc_check_login_success 1")
	assert.Contains(t, body, "emmc_check_nfs_mounted 1")
	assert.Contains(t, body, "emmc_check_last_check_timestamp_seconds 1.7e+09")
	assert.Contains(t, body, "emmc_check_check_duration_seconds_count 1")
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	m := NewMetrics()

	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "emmc_check.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics textfile")
}
