package analyzer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/store"
)

func newRunnerFixture(t *testing.T) (*Runner, *model.Device, *store.Store) {
	t.Helper()
	st, err := store.Open("sqlite", ":memory:", zerolog.Nop())
	require.NoError(t, err)

	d := &model.Device{Name: "fw-lab", Serial: "FGLAB001"}
	require.NoError(t, st.CreateDevice(d))
	return NewRunner(st, DefaultThresholds(), zerolog.Nop()), d, st
}

func TestAnalyzeDeviceDedupsAcrossRuns(t *testing.T) {
	r, d, st := newRunnerFixture(t)

	open := model.Policy{
		DeviceID: d.ID, VDOM: "root", PolicyID: "1", Action: "accept",
		SrcIntf: model.StringList{"any"}, DstIntf: model.StringList{"port2"},
		SrcAddr: model.StringList{"all"}, DstAddr: model.StringList{"all"},
		Services: model.StringList{"ALL"},
	}
	require.NoError(t, st.DB().Create(&open).Error)

	first, err := r.AnalyzeDevice(d.ID)
	require.NoError(t, err)
	// Fully open policy on a wildcard interface with no traffic:
	// permissive, wildcard-interface, no-inspection summary, zombie,
	// unused-open.
	assert.Equal(t, 5, first.Inserted)
	assert.Zero(t, first.Refreshed)

	second, err := r.AnalyzeDevice(d.ID)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 5, second.Refreshed)

	recs, err := st.ListRecommendations(d.ID, store.RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 5)

	// Both per-policy security findings survive the dedup pass.
	audits, err := st.ListRecommendations(d.ID, store.RecommendationFilter{
		Category: model.CategorySecurityAudit, Status: model.StatusOpen,
	})
	require.NoError(t, err)
	var titles []string
	for _, rec := range audits {
		if rec.RelatedPolicyID == "1" {
			titles = append(titles, rec.Title)
		}
	}
	assert.Len(t, titles, 2)
}

func TestSweepCoversAllDevices(t *testing.T) {
	r, d, st := newRunnerFixture(t)

	other := &model.Device{Name: "fw-lab-2", Serial: "FGLAB002"}
	require.NoError(t, st.CreateDevice(other))

	results := r.Sweep([]string{d.ID, other.ID}, 2)
	require.Len(t, results, 2)
	for id, res := range results {
		require.NoError(t, res.Err, "device %s", id)
		require.NotNil(t, res.Report)
	}
}
