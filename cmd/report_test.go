package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lumos-Labs-HQ/formseed/internal/generator"
	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
	"github.com/Lumos-Labs-HQ/formseed/internal/seeder"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *seeder.Report {
	return &seeder.Report{
		Created: map[schema.Kind]int{schema.KindAccount: 2, schema.KindSurvey: 1, schema.KindResponse: 0},
		Failed:  map[schema.Kind]int{schema.KindAccount: 0, schema.KindSurvey: 1, schema.KindResponse: 0},
		Skipped: map[schema.Kind]int{schema.KindAccount: 0, schema.KindSurvey: 0, schema.KindResponse: 3},
		Outcomes: []seeder.Outcome{
			{Kind: schema.KindAccount, Key: "a1", Status: seeder.StatusCreated, TargetID: "m-1", Attempts: 1},
			{Kind: schema.KindAccount, Key: "a2", Status: seeder.StatusCreated, TargetID: "m-2", Attempts: 1},
			{Kind: schema.KindSurvey, Key: "s1", Status: seeder.StatusCreated, TargetID: "sv-1", Attempts: 1},
			{Kind: schema.KindSurvey, Key: "s2-0123456789", Status: seeder.StatusFailed, HTTPStatus: 400, Reason: seeder.ReasonRejected, Attempts: 1},
			{Kind: schema.KindResponse, Key: "r1", Status: seeder.StatusSkipped, Reason: seeder.ReasonUnresolvedReference},
			{Kind: schema.KindResponse, Key: "r2", Status: seeder.StatusSkipped, Reason: seeder.ReasonUnresolvedReference},
			{Kind: schema.KindResponse, Key: "r3", Status: seeder.StatusSkipped, Reason: seeder.ReasonUnresolvedReference},
		},
	}
}

func TestPrintSeedReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printSeedReport(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "KIND")
	assert.Regexp(t, `account\s+2\s+0\s+0`, out)
	assert.Regexp(t, `survey\s+1\s+1\s+0`, out)
	assert.Regexp(t, `response\s+0\s+0\s+3`, out)
	assert.Contains(t, out, "failed survey s2-01234: rejected (HTTP 400 after 1 attempts)")
	assert.Equal(t, 3, strings.Count(out, "skipped response"))
	assert.NotContains(t, out, "created account")
}

func TestPrintGenerationResult(t *testing.T) {
	color.NoColor = true

	res := &generator.Result{
		Requested: generator.Tally{Accounts: 3, Surveys: 1, Responses: 2},
		Accepted:  generator.Tally{Accounts: 2, Surveys: 1, Responses: 2},
		Rejected:  generator.Tally{Accounts: 1},
		Repaired:  1,
		Rejections: []generator.Rejection{
			{Kind: schema.KindAccount, Index: 1, Reason: "account.email: not a valid address"},
		},
	}

	var buf bytes.Buffer
	printGenerationResult(&buf, res)
	out := buf.String()

	assert.Regexp(t, `accounts\s+3\s+2\s+1`, out)
	assert.Contains(t, out, "1 records needed output repair")
	assert.Contains(t, out, "account #1: account.email: not a valid address")
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	rep := sampleReport()

	jsonPath := filepath.Join(dir, "nested", "report.json")
	require.NoError(t, writeReport(jsonPath, rep))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded seeder.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Created[schema.KindAccount])
	assert.Len(t, decoded.Outcomes, 7)

	yamlPath := filepath.Join(dir, "report.yml")
	require.NoError(t, writeReport(yamlPath, rep))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, yaml.Unmarshal(data, &generic))
	assert.Contains(t, generic, "outcomes")
	assert.Contains(t, string(data), "status: failed")
}

func TestSum(t *testing.T) {
	assert.Equal(t, 0, sum(nil))
	assert.Equal(t, 3, sum(sampleReport().Created))
}
