package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lumos-Labs-HQ/formseed/internal/generator"
	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
	"github.com/Lumos-Labs-HQ/formseed/internal/seeder"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var reportKinds = []schema.Kind{schema.KindAccount, schema.KindSurvey, schema.KindResponse}

func printGenerationResult(w io.Writer, res *generator.Result) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "\n%-12s %10s %10s %10s\n", "KIND", "REQUESTED", "ACCEPTED", "REJECTED")
	rows := []struct {
		name                          string
		requested, accepted, rejected int
	}{
		{"accounts", res.Requested.Accounts, res.Accepted.Accounts, res.Rejected.Accounts},
		{"surveys", res.Requested.Surveys, res.Accepted.Surveys, res.Rejected.Surveys},
		{"responses", res.Requested.Responses, res.Accepted.Responses, res.Rejected.Responses},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s %10d %s %s\n", r.name, r.requested,
			color.GreenString("%10d", r.accepted), colorIfNonZero(r.rejected, color.RedString))
	}
	if res.Repaired > 0 {
		fmt.Fprintf(w, "\n🔧 %d records needed output repair\n", res.Repaired)
	}

	if len(res.Rejections) == 0 {
		return
	}
	color.New(color.FgYellow).Fprintf(w, "\n⚠️  %d records rejected:\n", len(res.Rejections))
	for _, r := range res.Rejections {
		fmt.Fprintf(w, "  • %s #%d: %s\n", r.Kind, r.Index, r.Reason)
	}
}

func printSeedReport(w io.Writer, rep *seeder.Report) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "\n%-12s %10s %10s %10s\n", "KIND", "CREATED", "FAILED", "SKIPPED")
	for _, k := range reportKinds {
		fmt.Fprintf(w, "%-12s %s %s %s\n", k,
			color.GreenString("%10d", rep.Created[k]),
			colorIfNonZero(rep.Failed[k], color.RedString),
			colorIfNonZero(rep.Skipped[k], color.YellowString))
	}

	var problems []seeder.Outcome
	for _, o := range rep.Outcomes {
		if o.Status != seeder.StatusCreated {
			problems = append(problems, o)
		}
	}
	if len(problems) == 0 {
		return
	}

	fmt.Fprintln(w)
	const limit = 20
	for i, o := range problems {
		if i == limit {
			fmt.Fprintf(w, "  … and %d more (use --report for the full list)\n", len(problems)-limit)
			break
		}
		line := fmt.Sprintf("  • %s %s %s: %s", o.Status, o.Kind, shortKey(o.Key), o.Reason)
		if o.HTTPStatus != 0 {
			line += fmt.Sprintf(" (HTTP %d after %d attempts)", o.HTTPStatus, o.Attempts)
		}
		if o.Status == seeder.StatusFailed {
			color.New(color.FgRed).Fprintln(w, line)
		} else {
			color.New(color.FgYellow).Fprintln(w, line)
		}
	}
}

// writeReport encodes v as YAML for .yaml/.yml paths and as indented JSON otherwise.
func writeReport(path string, v any) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func colorIfNonZero(n int, paint func(string, ...interface{}) string) string {
	if n == 0 {
		return fmt.Sprintf("%10d", n)
	}
	return paint("%10d", n)
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func sum(m map[schema.Kind]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}
