package analyzer

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"firewall-policy-auditor/internal/store"
)

// Report summarizes one analysis run over a device.
type Report struct {
	DeviceID  string
	Findings  int
	Inserted  int
	Refreshed int
}

// Runner loads a device's inventory, runs every analyzer over it and
// persists the findings through the deduplicating upsert.
type Runner struct {
	st  *store.Store
	cfg Thresholds
	log zerolog.Logger
}

func NewRunner(st *store.Store, cfg Thresholds, log zerolog.Logger) *Runner {
	return &Runner{st: st, cfg: cfg.withDefaults(), log: log}
}

// AnalyzeDevice runs the static, dynamic and VDOM analyzers for one
// device. Findings matching an open recommendation refresh it instead
// of creating a duplicate.
func (r *Runner) AnalyzeDevice(deviceID string) (*Report, error) {
	policies, err := r.st.ListPolicies(deviceID, store.PolicyFilter{})
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	interfaces, err := r.st.InterfacesByDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("load interfaces: %w", err)
	}
	vdoms, err := r.st.VDOMsByDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("load vdoms: %w", err)
	}

	findings := StaticAnalysis(deviceID, policies)

	dynamic, err := DynamicAnalysis(deviceID, policies, r.st, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("dynamic analysis: %w", err)
	}
	findings = append(findings, dynamic...)
	findings = append(findings, VDOMAnalysis(deviceID, policies, interfaces, vdoms)...)

	report := &Report{DeviceID: deviceID, Findings: len(findings)}
	for i := range findings {
		outcome, err := r.st.UpsertRecommendation(&findings[i])
		if err != nil {
			return nil, fmt.Errorf("persist recommendation %q: %w", findings[i].Title, err)
		}
		switch outcome {
		case store.Inserted:
			report.Inserted++
		case store.Refreshed:
			report.Refreshed++
		}
	}

	r.log.Info().
		Str("device_id", deviceID).
		Int("findings", report.Findings).
		Int("inserted", report.Inserted).
		Int("refreshed", report.Refreshed).
		Msg("analysis complete")
	return report, nil
}

// SweepResult is the outcome for one device in a sweep. Failed devices
// carry an Err; the sweep itself keeps going.
type SweepResult struct {
	Report *Report
	Err    error
}

// Sweep analyzes many devices concurrently with a bounded worker pool.
// A panic in one device's analysis is recovered and reported as that
// device's error.
func (r *Runner) Sweep(deviceIDs []string, workers int) map[string]SweepResult {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan string)
	var mu sync.Mutex
	results := make(map[string]SweepResult, len(deviceIDs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for deviceID := range jobs {
				res := r.analyzeSafely(deviceID)
				if res.Err != nil {
					r.log.Error().Err(res.Err).Str("device_id", deviceID).Msg("device analysis failed")
				}
				mu.Lock()
				results[deviceID] = res
				mu.Unlock()
			}
		}()
	}

	for _, id := range deviceIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
	return results
}

func (r *Runner) analyzeSafely(deviceID string) (res SweepResult) {
	defer func() {
		if p := recover(); p != nil {
			res = SweepResult{Err: fmt.Errorf("analysis panicked: %v", p)}
		}
	}()
	report, err := r.AnalyzeDevice(deviceID)
	return SweepResult{Report: report, Err: err}
}
