// soarctl - CLI for the SOAR console
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/logware/soar/internal/console"
	"github.com/logware/soar/pkg/sdk"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	serverURL string
	apiKey    string
	output    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "soarctl",
		Short:   "SOAR console CLI - Inspect and control security automation runs",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "SOAR console server URL")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")

	execCmd := &cobra.Command{
		Use:   "executions",
		Short: "Inspect and control execution runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE:  listExecutions,
	}
	addQueryFlags(listCmd)

	abortCmd := &cobra.Command{
		Use:   "abort [execution-id]",
		Short: "Request an abort of a running execution",
		Args:  cobra.ExactArgs(1),
		RunE:  abortExecution,
	}
	abortCmd.Flags().String("reason", "", "Reason for the abort")
	abortCmd.Flags().String("actor-id", "", "Acting identity ID")
	abortCmd.Flags().String("actor-name", "", "Acting identity name")

	execCmd.AddCommand(
		listCmd,
		&cobra.Command{
			Use:   "get [execution-id]",
			Short: "Get execution details",
			Args:  cobra.ExactArgs(1),
			RunE:  getExecution,
		},
		abortCmd,
	)

	playbooksCmd := &cobra.Command{
		Use:   "playbooks",
		Short: "Inspect playbook definitions",
	}
	playbooksCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List playbooks",
			RunE:  listPlaybooks,
		},
		&cobra.Command{
			Use:   "get [playbook-id]",
			Short: "Get playbook details",
			Args:  cobra.ExactArgs(1),
			RunE:  getPlaybook,
		},
	)

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect detection rules",
	}
	rulesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE:  listRules,
	})

	anomaliesCmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Inspect flagged anomalies",
	}
	anomaliesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List anomalies",
		RunE:  listAnomalies,
	})

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show aggregate execution figures",
		RunE:  showSummary,
	}
	addQueryFlags(summaryCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of executions, refreshed on an interval",
		RunE:  watchExecutions,
	}
	addQueryFlags(watchCmd)
	watchCmd.Flags().Duration("interval", 5*time.Second, "Refresh interval")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Push demo playbooks, rules, executions, and anomalies",
		RunE:  seedDemo,
	}

	rootCmd.AddCommand(execCmd, playbooksCmd, rulesCmd, anomaliesCmd, summaryCmd, watchCmd, seedCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "Filter by status (running, completed, failed, aborted, all)")
	cmd.Flags().String("source", "", "Filter by source type (playbook, rule, all)")
	cmd.Flags().String("window", "", "Filter by start-time window (1d, 7d, 30d, all)")
	cmd.Flags().String("search", "", "Free-text search over name, ID, and trigger")
	cmd.Flags().Int("limit", 0, "Maximum number of results")
}

func queryFromFlags(cmd *cobra.Command) sdk.Query {
	status, _ := cmd.Flags().GetString("status")
	source, _ := cmd.Flags().GetString("source")
	window, _ := cmd.Flags().GetString("window")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	return sdk.Query{Status: status, Source: source, Window: window, Search: search, Limit: limit}
}

func newClient() *sdk.Client {
	opts := []sdk.ClientOption{sdk.WithUserAgent("soarctl/" + Version)}
	if apiKey != "" {
		opts = append(opts, sdk.WithAPIKey(apiKey))
	}
	return sdk.NewClient(serverURL, opts...)
}

// Output helpers

func printOutput(data interface{}) error {
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(data)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func printExecutionsTable(execs []*sdk.Execution) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tNAME\tSTATUS\tPROGRESS\tSTARTED\tDURATION")

	for _, e := range execs {
		duration := "-"
		if e.DurationSeconds != nil {
			duration = (time.Duration(*e.DurationSeconds * float64(time.Second))).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			shortID(e.ID),
			e.SourceType,
			e.SourceName,
			e.Badge.Label,
			e.ProgressPercent,
			formatTime(e.StartTime),
			duration,
		)
	}
	w.Flush()
}

// Execution commands

func listExecutions(cmd *cobra.Command, args []string) error {
	execs, err := newClient().ListExecutions(cmd.Context(), queryFromFlags(cmd))
	if err != nil {
		return err
	}

	if output == "table" {
		fmt.Printf("Total: %d executions\n\n", len(execs))
		printExecutionsTable(execs)
		return nil
	}
	return printOutput(execs)
}

func getExecution(cmd *cobra.Command, args []string) error {
	e, err := newClient().GetExecution(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if output != "table" {
		return printOutput(e)
	}

	fmt.Printf("ID:        %s\n", e.ID)
	fmt.Printf("Source:    %s %s", e.SourceType, e.SourceName)
	if e.SourceVersion != "" {
		fmt.Printf(" (v%s)", e.SourceVersion)
	}
	fmt.Println()
	fmt.Printf("Status:    %s\n", e.Badge.Label)
	fmt.Printf("Progress:  %d%%\n", e.ProgressPercent)
	fmt.Printf("Trigger:   %s", e.TriggeredBy.Type)
	if e.TriggeredBy.Name != "" {
		fmt.Printf(" (%s)", e.TriggeredBy.Name)
	}
	fmt.Println()
	fmt.Printf("Started:   %s\n", formatTime(e.StartTime))
	if e.DurationSeconds != nil {
		fmt.Printf("Duration:  %s\n", time.Duration(*e.DurationSeconds*float64(time.Second)).Round(time.Second))
	}
	if e.AbortRequestedAt != nil {
		fmt.Printf("Abort:     requested by %s at %s\n", e.AbortRequestedBy, formatTime(*e.AbortRequestedAt))
	}

	if len(e.Steps) > 0 {
		fmt.Println("\nSteps:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ORDER\tNAME\tSTATUS")
		for i, s := range e.Steps {
			label := s.Status
			if i < len(e.StepBadges) {
				label = e.StepBadges[i].Label
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\n", s.Order, s.Name, label)
		}
		w.Flush()
	}
	return nil
}

func abortExecution(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")
	actorID, _ := cmd.Flags().GetString("actor-id")
	actorName, _ := cmd.Flags().GetString("actor-name")

	result, err := newClient().AbortExecutionAs(cmd.Context(), args[0], reason,
		sdk.Actor{ID: actorID, Name: actorName})
	if err != nil {
		return err
	}

	relayed := "queued for relay"
	if !result.Relayed {
		relayed = "not relayed (no relay configured)"
	}
	fmt.Printf("Abort requested for %s by %s: %s\n",
		result.Abort.ExecutionID, displayActor(result.Abort.RequestedBy), relayed)
	return nil
}

func displayActor(a sdk.Actor) string {
	switch {
	case a.Name != "":
		return a.Name
	case a.ID != "":
		return a.ID
	default:
		return "anonymous"
	}
}

// Playbook, rule, and anomaly commands

func listPlaybooks(cmd *cobra.Command, args []string) error {
	pbs, err := newClient().ListPlaybooks(cmd.Context())
	if err != nil {
		return err
	}

	if output != "table" {
		return printOutput(pbs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTEPS\tENABLED")
	for _, pb := range pbs {
		enabled := "no"
		if pb.Enabled {
			enabled = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", shortID(pb.ID), pb.Name, pb.Version, len(pb.Steps), enabled)
	}
	return w.Flush()
}

func getPlaybook(cmd *cobra.Command, args []string) error {
	pb, err := newClient().GetPlaybook(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if output != "table" {
		return printOutput(pb)
	}

	fmt.Printf("ID:          %s\n", pb.ID)
	fmt.Printf("Name:        %s\n", pb.Name)
	fmt.Printf("Version:     %s\n", pb.Version)
	fmt.Printf("Description: %s\n", pb.Description)
	fmt.Printf("Enabled:     %v\n", pb.Enabled)
	if len(pb.Steps) > 0 {
		fmt.Println("\nSteps:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ORDER\tNAME\tACTION\tTARGET")
		for _, s := range pb.Steps {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", s.Order, s.Name, s.ActionType, s.Target)
		}
		w.Flush()
	}
	return nil
}

func listRules(cmd *cobra.Command, args []string) error {
	rules, err := newClient().ListRules(cmd.Context())
	if err != nil {
		return err
	}

	if output != "table" {
		return printOutput(rules)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSEVERITY\tCONDITION\tENABLED")
	for _, r := range rules {
		enabled := "no"
		if r.Enabled {
			enabled = "yes"
		}
		cond := fmt.Sprintf("%s %s %s", r.Condition.Field, r.Condition.Operator, r.Condition.Value)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(r.ID), r.Name, r.Severity, cond, enabled)
	}
	return w.Flush()
}

func listAnomalies(cmd *cobra.Command, args []string) error {
	anomalies, err := newClient().ListAnomalies(cmd.Context())
	if err != nil {
		return err
	}

	if output != "table" {
		return printOutput(anomalies)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tSEVERITY\tCONFIDENCE\tENTITY\tTITLE")
	for _, a := range anomalies {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			shortID(a.ID), a.Category, a.Severity, a.Confidence*100, a.Entity, a.Title)
	}
	return w.Flush()
}

// Summary command

func showSummary(cmd *cobra.Command, args []string) error {
	sum, err := newClient().GetSummary(cmd.Context(), queryFromFlags(cmd))
	if err != nil {
		return err
	}

	if output != "table" {
		return printOutput(sum)
	}

	printSummary(sum)
	return nil
}

func printSummary(sum *sdk.Summary) {
	fmt.Printf("Total:        %d\n", sum.Total)
	fmt.Printf("Succeeded:    %d\n", sum.Succeeded)
	fmt.Printf("Failed:       %d\n", sum.Failed)
	fmt.Printf("Aborted:      %d\n", sum.Aborted)
	fmt.Printf("Running:      %d\n", sum.Running)
	fmt.Printf("Success rate: %d%%\n", sum.SuccessRatePercent)
	fmt.Printf("Avg duration: %s\n",
		time.Duration(sum.AverageDurationSeconds*float64(time.Second)).Round(time.Second))
}

// Watch command

func watchExecutions(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")

	client := newClient()
	comp := console.New(client, console.Config{ExecutionsInterval: interval},
		zerolog.Nop(), nil, nil)
	defer comp.Close()

	comp.SetQuery(queryFromFlags(cmd))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Watching executions every %s (Ctrl-C to stop)\n", interval)
	for {
		select {
		case <-sigCh:
			return nil
		case <-comp.Updates():
			snap := comp.Executions()
			fmt.Printf("\n%s", strings.Repeat("-", 72))
			fmt.Printf("\n%s", formatTime(time.Now()))
			if snap.Err != nil {
				fmt.Printf("  (last fetch failed: %v)", snap.Err)
			}
			fmt.Println()
			printExecutionsTable(comp.ExecutionView())
		}
	}
}

// Seed command

func seedDemo(cmd *cobra.Command, args []string) error {
	client := newClient()
	ctx := cmd.Context()
	now := time.Now().UTC()

	playbooks := []*sdk.Playbook{
		{
			Name:    "Phishing Response",
			Version: "1.2.0",
			Steps: []sdk.PlaybookStep{
				{Name: "enrich-sender", Order: 1, ActionType: "ti.lookup"},
				{Name: "quarantine-mail", Order: 2, ActionType: "mail.quarantine"},
				{Name: "notify-user", Order: 3, ActionType: "chat.notify"},
			},
			Enabled: true,
		},
		{
			Name:    "Contain Host",
			Version: "2.0.1",
			Steps: []sdk.PlaybookStep{
				{Name: "isolate", Order: 1, ActionType: "edr.isolate"},
				{Name: "snapshot", Order: 2, ActionType: "edr.snapshot"},
			},
			Enabled: true,
		},
	}
	for _, pb := range playbooks {
		created, err := client.CreatePlaybook(ctx, pb)
		if err != nil {
			return fmt.Errorf("seeding playbook %q: %w", pb.Name, err)
		}
		fmt.Printf("Playbook created: %s (%s)\n", created.Name, shortID(created.ID))
	}

	rules := []*sdk.Rule{
		{
			Name:     "Impossible travel",
			Severity: "high",
			Condition: sdk.RuleCondition{
				Field: "login.distance_kmh", Operator: "gt", Value: "900",
			},
			Enabled: true,
		},
		{
			Name:     "Mass file deletion",
			Severity: "critical",
			Condition: sdk.RuleCondition{
				Field: "fs.deletes_per_minute", Operator: "gt", Value: "200",
			},
			Enabled: true,
		},
	}
	for _, r := range rules {
		created, err := client.CreateRule(ctx, r)
		if err != nil {
			return fmt.Errorf("seeding rule %q: %w", r.Name, err)
		}
		fmt.Printf("Rule created: %s (%s)\n", created.Name, shortID(created.ID))
	}

	end := now.Add(-10 * time.Minute)
	executions := []*sdk.Execution{
		{
			ID:         "seed-exec-1",
			SourceType: "playbook",
			SourceName: "Phishing Response",
			Status:     "running",
			StartTime:  now.Add(-5 * time.Minute),
			TriggeredBy: sdk.TriggerRef{
				Type: "user", Name: "Dana",
			},
			Steps: []sdk.StepResult{
				{Name: "enrich-sender", Order: 1, Status: "success"},
				{Name: "quarantine-mail", Order: 2, Status: "running"},
				{Name: "notify-user", Order: 3, Status: "pending"},
			},
		},
		{
			ID:         "seed-exec-2",
			SourceType: "rule",
			SourceName: "Impossible travel",
			Status:     "completed",
			StartTime:  now.Add(-30 * time.Minute),
			EndTime:    &end,
			TriggeredBy: sdk.TriggerRef{
				Type: "rule", Name: "Impossible travel",
			},
		},
	}
	for _, e := range executions {
		if _, err := client.CreateExecution(ctx, e); err != nil {
			return fmt.Errorf("seeding execution %q: %w", e.ID, err)
		}
		fmt.Printf("Execution created: %s (%s)\n", e.ID, e.Status)
	}

	anomalies := []*sdk.Anomaly{
		{
			Category:   "network",
			Severity:   "high",
			Confidence: 0.87,
			Title:      "Beaconing to rare domain",
			Entity:     "host-42",
			DetectedAt: now.Add(-15 * time.Minute),
		},
		{
			Category:   "user",
			Severity:   "medium",
			Confidence: 0.64,
			Title:      "Unusual login hour",
			Entity:     "dana@example.com",
			DetectedAt: now.Add(-2 * time.Hour),
		},
	}
	for _, a := range anomalies {
		created, err := client.CreateAnomaly(ctx, a)
		if err != nil {
			return fmt.Errorf("seeding anomaly %q: %w", a.Title, err)
		}
		fmt.Printf("Anomaly created: %s (%s)\n", created.Title, shortID(created.ID))
	}

	fmt.Println("Demo data seeded")
	return nil
}
