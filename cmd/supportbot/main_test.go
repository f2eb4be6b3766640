package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := `
log:
  level: disabled
embedder:
  provider: none
  dimension: 16
generator:
  provider: none
vector_store:
  type: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "kb.db") + `
history:
  path: ` + filepath.Join(dir, "history.db") + `
`
	path := filepath.Join(dir, "supportbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, dir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCLI_IngestAskStats(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	kb := filepath.Join(dir, "faq.txt")
	require.NoError(t, os.WriteFile(kb, []byte("Tickets are answered within one business day. Password resets happen on the login page."), 0o644))

	out := run(t, "--config", cfgPath, "ingest", kb)
	assert.Contains(t, out, "Ingested 1 files into 1 chunks (sqlite)")

	out = run(t, "--config", cfgPath, "ask", "--user", "u42", "What's the status of ticket 123456?")
	var res domain.OrchestrationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.IntentTicketStatus, res.Intent)
	require.NotNil(t, res.ActionInvoked)
	assert.Equal(t, "check_ticket_status", *res.ActionInvoked)
	assert.Contains(t, res.Response, "123456")
	require.Len(t, res.SourceDocs, 1)

	out = run(t, "--config", cfgPath, "stats")
	assert.Contains(t, out, "status:      degraded")
	assert.Contains(t, out, "embedder:    pseudo")
	assert.Contains(t, out, "vectors:     sqlite (1 passages)")
	assert.Contains(t, out, "history:     1 exchanges")
}

func TestCLI_AskGreetingWithoutKnowledgeBase(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out := run(t, "--config", cfgPath, "ask", "Hi!")
	var res domain.OrchestrationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.IntentGreeting, res.Intent)
	assert.Empty(t, res.SourceDocs)
	assert.Nil(t, res.ActionInvoked)
}
