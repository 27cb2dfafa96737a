package diff

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/parser"
	"firewall-policy-auditor/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store, *model.Device) {
	t.Helper()
	st, err := store.Open("sqlite", ":memory:", zerolog.Nop())
	require.NoError(t, err)
	d := &model.Device{Name: "fw", Serial: "FG100A"}
	require.NoError(t, st.CreateDevice(d))
	return New(st, zerolog.Nop()), st, d
}

func incomingSet() []parser.PolicyConfig {
	return []parser.PolicyConfig{
		{
			ID: "1", Name: "allow web", VDOM: "root",
			SrcIntf: []string{"port2"}, DstIntf: []string{"port1"},
			SrcAddr: []string{"all"}, DstAddr: []string{"web-servers"},
			Services: []string{"HTTPS"}, Action: "ACCEPT", NAT: "Enabled",
		},
		{
			ID: "2", Name: "deny all", VDOM: "root",
			UUID:    "2f1d4a6e-70a1-51ec-9f44-001122334455",
			SrcIntf: []string{"any"}, DstIntf: []string{"any"},
			SrcAddr: []string{"all"}, DstAddr: []string{"all"},
			Services: []string{"ALL"}, Action: "DENY", NAT: "Disabled",
		},
	}
}

func TestReconcileCreatesAndIsIdempotent(t *testing.T) {
	r, st, d := newTestReconciler(t)

	report, err := r.Reconcile(d.ID, "root", "sess-1", incomingSet())
	require.NoError(t, err)
	assert.Len(t, report.Added, 2)
	assert.Empty(t, report.Modified)
	assert.Empty(t, report.Deleted)

	// Same input again: nothing changes, no new history.
	report, err = r.Reconcile(d.ID, "root", "sess-2", incomingSet())
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Modified)
	assert.Empty(t, report.Deleted)
	assert.Equal(t, 2, report.UnchangedCount)

	history, err := st.HistoryForDevice(d.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, model.ChangeCreate, h.ChangeType)
		assert.Equal(t, "sess-1", h.ImportSessionID)
	}
}

func TestReconcileModifyRecordsDelta(t *testing.T) {
	r, st, d := newTestReconciler(t)

	_, err := r.Reconcile(d.ID, "root", "sess-1", incomingSet())
	require.NoError(t, err)

	changed := incomingSet()
	changed[0].DstAddr = []string{"db-servers"}
	changed[0].Services = []string{"MYSQL", "HTTPS"}

	report, err := r.Reconcile(d.ID, "root", "sess-2", changed)
	require.NoError(t, err)
	require.Len(t, report.Modified, 1)
	assert.Equal(t, 1, report.UnchangedCount)

	mod := report.Modified[0]
	assert.Equal(t, "1", mod.PolicyID)
	assert.Contains(t, mod.Changes, "Dst Addr: 'web-servers' -> 'db-servers'")
	assert.Contains(t, mod.Changes, "Service: 'HTTPS' -> 'HTTPS, MYSQL'")

	p, err := st.PolicyByIdentity(d.ID, "root", "1")
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"db-servers"}, p.DstAddr)

	history, err := st.HistoryForPolicy(p.UID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ChangeModify, history[0].ChangeType)

	// Delta keeps the pre-change state, snapshot the post-change state.
	previous, ok := history[0].Delta["previous"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"web-servers"}, previous["dst_addr"])
	assert.Equal(t, []any{"db-servers"}, history[0].Snapshot["dst_addr"])
}

func TestReconcileListOrderDoesNotCountAsChange(t *testing.T) {
	r, _, d := newTestReconciler(t)

	first := []parser.PolicyConfig{{
		ID: "1", VDOM: "root", Action: "ACCEPT", NAT: "Disabled",
		SrcIntf: []string{"port1"}, DstIntf: []string{"port2"},
		SrcAddr: []string{"a", "b"}, DstAddr: []string{"all"}, Services: []string{"ALL"},
	}}
	_, err := r.Reconcile(d.ID, "root", "s1", first)
	require.NoError(t, err)

	reordered := []parser.PolicyConfig{{
		ID: "1", VDOM: "root", Action: "ACCEPT", NAT: "Disabled",
		SrcIntf: []string{"port1"}, DstIntf: []string{"port2"},
		SrcAddr: []string{"b", "a"}, DstAddr: []string{"all"}, Services: []string{"ALL"},
	}}
	report, err := r.Reconcile(d.ID, "root", "s2", reordered)
	require.NoError(t, err)
	assert.Empty(t, report.Modified)
	assert.Equal(t, 1, report.UnchangedCount)
}

func TestReconcileDeleteRecordsSnapshot(t *testing.T) {
	r, st, d := newTestReconciler(t)

	_, err := r.Reconcile(d.ID, "root", "sess-1", incomingSet())
	require.NoError(t, err)

	report, err := r.Reconcile(d.ID, "root", "sess-2", incomingSet()[:1])
	require.NoError(t, err)
	require.Len(t, report.Deleted, 1)
	assert.Equal(t, "2", report.Deleted[0].PolicyID)
	assert.Equal(t, "2f1d4a6e-70a1-51ec-9f44-001122334455", report.Deleted[0].UUID)

	_, err = st.PolicyByIdentity(d.ID, "root", "2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// History outlives the deleted policy and keeps its state.
	history, err := st.HistoryForDevice(d.ID, 0)
	require.NoError(t, err)
	var deleteRow *model.PolicyHistory
	for i := range history {
		if history[i].ChangeType == model.ChangeDelete {
			deleteRow = &history[i]
		}
	}
	require.NotNil(t, deleteRow)
	assert.Equal(t, "missing_in_import", deleteRow.Delta["reason"])
	assert.Equal(t, "deny all", deleteRow.Snapshot["name"])
}

func TestReconcileScopedByVDOM(t *testing.T) {
	r, st, d := newTestReconciler(t)

	_, err := r.Reconcile(d.ID, "root", "s1", incomingSet())
	require.NoError(t, err)

	// A dmz import must not delete root policies.
	dmz := []parser.PolicyConfig{{
		ID: "10", VDOM: "dmz", Action: "ACCEPT", NAT: "Disabled",
		SrcIntf: []string{"vlan100"}, DstIntf: []string{"port1"},
		SrcAddr: []string{"all"}, DstAddr: []string{"all"}, Services: []string{"ALL"},
	}}
	report, err := r.Reconcile(d.ID, "dmz", "s2", dmz)
	require.NoError(t, err)
	assert.Len(t, report.Added, 1)
	assert.Empty(t, report.Deleted)

	rootPolicies, err := st.ListPolicies(d.ID, store.PolicyFilter{VDOM: "root"})
	require.NoError(t, err)
	assert.Len(t, rootPolicies, 2)
}

func TestReconcileRejectsDuplicateIdentity(t *testing.T) {
	r, st, d := newTestReconciler(t)

	batch := incomingSet()
	batch[1].ID = "1"

	_, err := r.Reconcile(d.ID, "root", "s1", batch)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "1", conflict.PolicyID)
	assert.Equal(t, "root", conflict.VDOM)

	// Nothing was written.
	policies, err := st.ListPolicies(d.ID, store.PolicyFilter{})
	require.NoError(t, err)
	assert.Empty(t, policies)
}
