// Command auditor imports FortiGate configuration dumps, traffic log
// exports and policy-table exports, tracks policy changes, and runs the
// security analyzers over the stored state.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"firewall-policy-auditor/internal/analyzer"
	"firewall-policy-auditor/internal/config"
	"firewall-policy-auditor/internal/importer"
	"firewall-policy-auditor/internal/logging"
	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/store"
	"firewall-policy-auditor/pkg/wellknown"
)

var (
	cfgFile   string
	dbDriver  string
	dbDSN     string
	logLevel  string
	logFormat string
)

// app holds the wired dependencies shared by all subcommands.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	st  *store.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dbDriver != "" && dbDriver != cfg.Database.Driver {
		// The loaded DSN belongs to the previous driver.
		cfg.Database.Driver = dbDriver
		cfg.Database.DSN = ""
	}
	if dbDSN != "" {
		cfg.Database.DSN = dbDSN
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.FillDSN()

	log, err := logging.Init(cfg.Logging)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, st: st}, nil
}

// resolveDevice accepts a device id, serial or name.
func (a *app) resolveDevice(ref string) (*model.Device, error) {
	if d, err := a.st.DeviceByID(ref); err == nil {
		return d, nil
	}
	if d, err := a.st.DeviceByDevID(ref); err == nil {
		return d, nil
	}
	devices, err := a.st.ListDevices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if strings.EqualFold(devices[i].Name, ref) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no device matches %q", ref)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "auditor",
		Short:         "FortiGate policy and traffic audit pipeline",
		Long:          "auditor ingests FortiGate configuration and log exports, tracks\npolicy changes over time and derives security recommendations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "Database driver: sqlite or mysql")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "Database DSN")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or console")

	rootCmd.AddCommand(newDeviceCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newRecommendationsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSessionsCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newDeviceCmd() *cobra.Command {
	deviceCmd := &cobra.Command{Use: "device", Short: "Manage registered devices"}

	var name, serial, hostname string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a device by serial",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			d := &model.Device{Name: name, Serial: serial, Hostname: hostname}
			if err := a.st.CreateDevice(d); err != nil {
				return err
			}
			fmt.Printf("registered device %s (%s)\n", d.Name, d.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Device name (required)")
	addCmd.Flags().StringVar(&serial, "serial", "", "Device serial number (required)")
	addCmd.Flags().StringVar(&hostname, "hostname", "", "Device hostname")
	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("serial")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			devices, err := a.st.ListDevices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tHOSTNAME\tSERIAL\tHA\tFIRMWARE")
			for _, d := range devices {
				ha := "-"
				if d.HAEnabled {
					ha = d.HAMode
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Hostname, d.Serial, ha, d.Firmware)
			}
			return w.Flush()
		},
	}

	deviceCmd.AddCommand(addCmd, listCmd)
	return deviceCmd
}

func newImportCmd() *cobra.Command {
	importCmd := &cobra.Command{Use: "import", Short: "Import configuration, log or policy exports"}

	configCmd := &cobra.Command{
		Use:   "config <file>",
		Short: "Import a configuration dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := importer.New(a.st, a.log).ImportConfig(filepath.Base(args[0]), string(content))
			if err != nil {
				return err
			}
			if res.DeviceCreated {
				fmt.Printf("registered new device %s (%s)\n", res.Device.Name, res.Device.ID)
			}
			for _, vdom := range sortedKeys(res.Reports) {
				r := res.Reports[vdom]
				fmt.Printf("vdom %s: %d added, %d modified, %d deleted, %d unchanged\n",
					vdom, len(r.Added), len(r.Modified), len(r.Deleted), r.UnchangedCount)
				for _, m := range r.Modified {
					for _, change := range m.Changes {
						fmt.Printf("  policy %s: %s\n", m.PolicyID, change)
					}
				}
			}
			return nil
		},
	}

	logsCmd := &cobra.Command{
		Use:   "logs <file>",
		Short: "Import a FortiAnalyzer log export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := importer.New(a.st, a.log).ImportLogs(filepath.Base(args[0]), string(content))
			if err != nil {
				if errors.Is(err, importer.ErrDeviceNotResolved) {
					return fmt.Errorf("%w (register the device or import its configuration first)", err)
				}
				return err
			}
			fmt.Printf("imported %d entries for %s (%d lines rejected)\n", res.Imported, res.Device.Name, res.Rejected)
			return nil
		},
	}

	var deviceRef, vdom string
	policiesCmd := &cobra.Command{
		Use:   "policies <file>",
		Short: "Import a JSON policy-table export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			device, err := a.resolveDevice(deviceRef)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, err := importer.New(a.st, a.log).ImportPolicyExport(device.ID, vdom, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Printf("%d added, %d modified, %d deleted, %d unchanged\n",
				len(report.Added), len(report.Modified), len(report.Deleted), report.UnchangedCount)
			return nil
		},
	}
	policiesCmd.Flags().StringVar(&deviceRef, "device", "", "Device id, serial or name (required)")
	policiesCmd.Flags().StringVar(&vdom, "vdom", model.DefaultVDOM, "Target VDOM")
	policiesCmd.MarkFlagRequired("device")

	importCmd.AddCommand(configCmd, logsCmd, policiesCmd)
	return importCmd
}

func newAnalyzeCmd() *cobra.Command {
	var deviceRef string
	var all bool
	var workers int

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the security analyzers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if !all && deviceRef == "" {
				return fmt.Errorf("either --device or --all is required")
			}

			runner := analyzer.NewRunner(a.st, a.cfg.Thresholds(), a.log)

			var ids []string
			if all {
				devices, err := a.st.ListDevices()
				if err != nil {
					return err
				}
				for _, d := range devices {
					ids = append(ids, d.ID)
				}
			} else {
				device, err := a.resolveDevice(deviceRef)
				if err != nil {
					return err
				}
				ids = append(ids, device.ID)
			}

			if workers <= 0 {
				workers = a.cfg.Analyzer.Workers
			}
			results := runner.Sweep(ids, workers)

			failed := 0
			for _, id := range ids {
				res := results[id]
				if res.Err != nil {
					failed++
					fmt.Printf("device %s: analysis failed: %v\n", id, res.Err)
					continue
				}
				fmt.Printf("device %s: %d findings (%d new, %d refreshed)\n",
					id, res.Report.Findings, res.Report.Inserted, res.Report.Refreshed)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d devices failed", failed, len(ids))
			}
			return nil
		},
	}
	analyzeCmd.Flags().StringVar(&deviceRef, "device", "", "Device id, serial or name")
	analyzeCmd.Flags().BoolVar(&all, "all", false, "Analyze every registered device")
	analyzeCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent device analyses")
	return analyzeCmd
}

func newRecommendationsCmd() *cobra.Command {
	recCmd := &cobra.Command{Use: "recommendations", Short: "List and update findings"}

	var deviceRef, severity, category, status, vdom string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List findings for a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			device, err := a.resolveDevice(deviceRef)
			if err != nil {
				return err
			}
			recs, err := a.st.ListRecommendations(device.ID, store.RecommendationFilter{
				Severity: severity,
				Category: category,
				Status:   status,
				VDOM:     vdom,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tSTATUS\tPOLICY\tTITLE")
			for _, r := range recs {
				policy := r.RelatedPolicyID
				if policy == "" {
					policy = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Severity, r.Category, r.Status, policy, r.Title)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&deviceRef, "device", "", "Device id, serial or name (required)")
	listCmd.Flags().StringVar(&severity, "severity", "", "Filter by severity")
	listCmd.Flags().StringVar(&category, "category", "", "Filter by category")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&vdom, "vdom", "", "Filter by VDOM")
	listCmd.MarkFlagRequired("device")

	var actor string
	statusCmd := &cobra.Command{
		Use:   "status <id> <open|acknowledged|resolved|ignored>",
		Short: "Update a finding's lifecycle state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.st.SetRecommendationStatus(args[0], args[1], actor); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no recommendation with id %q", args[0])
				}
				return err
			}
			fmt.Printf("recommendation %s is now %s\n", args[0], args[1])
			return nil
		},
	}
	statusCmd.Flags().StringVar(&actor, "by", "", "Operator name recorded on resolution")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one finding with its remediation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			var rec model.Recommendation
			if err := a.st.DB().First(&rec, "id = ?", args[0]).Error; err != nil {
				return fmt.Errorf("no recommendation with id %q", args[0])
			}
			fmt.Printf("%s [%s/%s] %s\n\n%s\n\n%s\n", rec.Title, rec.Severity, rec.Category, rec.Status,
				rec.Description, rec.Recommendation)
			if sp := rec.SuggestedPolicy; sp != nil {
				fmt.Printf("\nSuggested policy:\n  %s -> %s, service %s, action %s\n",
					sp.SrcAddr, sp.DstAddr, serviceWithPorts(sp.Service), sp.Action)
			}
			if rec.CLIRemediation != "" {
				fmt.Printf("\nRemediation:\n%s\n", rec.CLIRemediation)
			}
			return nil
		},
	}

	recCmd.AddCommand(listCmd, statusCmd, showCmd)
	return recCmd
}

// serviceWithPorts annotates a well-known service name with its port
// bindings, e.g. `HTTPS (tcp/443)`. Unknown names come back unchanged.
func serviceWithPorts(name string) string {
	entries, ok := wellknown.Services(name)
	if !ok {
		return name
	}
	ports := make([]string, 0, len(entries))
	for _, e := range entries {
		ports = append(ports, fmt.Sprintf("%s/%d", e.Protocol, e.Port))
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(ports, ", "))
}

func newHistoryCmd() *cobra.Command {
	var deviceRef, vdom, policyID string
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the policy change log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			device, err := a.resolveDevice(deviceRef)
			if err != nil {
				return err
			}

			var rows []model.PolicyHistory
			if policyID != "" {
				p, err := a.st.PolicyByIdentity(device.ID, vdom, policyID)
				if err != nil {
					return fmt.Errorf("policy %s in vdom %s: %w", policyID, vdom, err)
				}
				rows, err = a.st.HistoryForPolicy(p.UID)
				if err != nil {
					return err
				}
			} else {
				rows, err = a.st.HistoryForDevice(device.ID, limit)
				if err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tVDOM\tPOLICY\tCHANGE\tDETAIL")
			for _, h := range rows {
				detail := "-"
				if changes, ok := h.Delta["changes"].([]any); ok && len(changes) > 0 {
					parts := make([]string, 0, len(changes))
					for _, c := range changes {
						parts = append(parts, fmt.Sprint(c))
					}
					detail = strings.Join(parts, "; ")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					h.ChangeDate.Format("2006-01-02 15:04"), h.VDOM, h.PolicyID, h.ChangeType, detail)
			}
			return w.Flush()
		},
	}
	historyCmd.Flags().StringVar(&deviceRef, "device", "", "Device id, serial or name (required)")
	historyCmd.Flags().StringVar(&vdom, "vdom", model.DefaultVDOM, "VDOM of --policy")
	historyCmd.Flags().StringVar(&policyID, "policy", "", "Limit to one policy id")
	historyCmd.Flags().IntVar(&limit, "limit", 50, "Most recent changes to show")
	historyCmd.MarkFlagRequired("device")
	return historyCmd
}

func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Inspect import sessions"}

	var deviceRef string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a device's import sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			device, err := a.resolveDevice(deviceRef)
			if err != nil {
				return err
			}
			sessions, err := a.st.ListSessions(device.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tFILE\tCOUNT\tIMPORTED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.Kind, s.Filename, s.Count, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&deviceRef, "device", "", "Device id, serial or name (required)")
	listCmd.MarkFlagRequired("device")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one import session with its stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			sess, err := a.st.SessionByID(args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no import session with id %q", args[0])
				}
				return err
			}
			fmt.Printf("%s import of %s: %d records\n", sess.Kind, sess.Filename, sess.Count)
			if sess.StartDate != nil && sess.EndDate != nil {
				fmt.Printf("range: %s .. %s\n", sess.StartDate.Format("2006-01-02 15:04"), sess.EndDate.Format("2006-01-02 15:04"))
			}
			for _, key := range sortedKeys(sess.Stats) {
				fmt.Printf("  %s: %v\n", key, sess.Stats[key])
			}
			return nil
		},
	}

	sessionsCmd.AddCommand(listCmd, showCmd)
	return sessionsCmd
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
