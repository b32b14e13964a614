package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ticketd/internal/config"
	ihttp "github.com/fyrsmithlabs/ticketd/internal/http"
	"github.com/fyrsmithlabs/ticketd/internal/logging"
	"github.com/fyrsmithlabs/ticketd/internal/routing"
	"github.com/fyrsmithlabs/ticketd/internal/services"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

func newTestAPI(t *testing.T) string {
	t.Helper()
	reg, err := services.Build(context.Background(), config.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	srv, err := ihttp.NewServer(reg.Orchestrator(), reg.Status(), logging.Nop(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func execute(t *testing.T, url, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", url}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProcessAndStatus(t *testing.T) {
	url := newTestAPI(t)

	out, err := execute(t, url, "", "process", "--id", "T-1", "urgent: cannot reset password")
	require.NoError(t, err)

	var outcome ticket.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, "T-1", outcome.TicketID)
	assert.Equal(t, ticket.StatusInProgress, outcome.FinalStatus)

	out, err = execute(t, url, "", "status", "T-1")
	require.NoError(t, err)
	assert.Contains(t, out, "T-1: in-progress")
	assert.Contains(t, out, "open -> in-progress")
}

func TestProcess_ReadsStdin(t *testing.T) {
	url := newTestAPI(t)

	out, err := execute(t, url, "feature request: dark mode\n", "process", "--id", "T-2", "-")
	require.NoError(t, err)

	var outcome ticket.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, ticket.StatusResolved, outcome.FinalStatus)
}

func TestProcess_Errors(t *testing.T) {
	url := newTestAPI(t)

	_, err := execute(t, url, "", "process", "hello")
	require.Error(t, err, "--id is required")

	_, err = execute(t, url, "   ", "process", "--id", "T-3")
	require.ErrorContains(t, err, "no ticket text")

	_, err = execute(t, url, "", "status", "T-404")
	require.ErrorContains(t, err, "404: NotFound")
}

func TestPlan(t *testing.T) {
	url := newTestAPI(t)

	tests := []struct {
		name     string
		args     []string
		path     routing.Path
		decision string
		pending  bool
	}{
		{name: "critical", args: []string{"--urgency", "critical"}, path: routing.PathCritical},
		{name: "pending elevated", args: []string{"--sentiment", "negative"}, path: routing.PathElevated, pending: true},
		{name: "confident match", args: []string{"--sentiment", "negative", "--similarity", "0.85"}, path: routing.PathElevated, decision: routing.DecisionHighConfidence},
		{name: "degraded search", args: []string{"--urgency", "high", "--degraded"}, path: routing.PathElevated, decision: routing.DecisionSearchDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, url, "", append([]string{"plan"}, tt.args...)...)
			require.NoError(t, err)

			var resp ihttp.PlanResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, tt.path, resp.Plan.Path)
			assert.Equal(t, tt.pending, resp.Plan.Pending)
			assert.Equal(t, tt.decision, resp.Plan.Decision)
		})
	}

	_, err := execute(t, url, "", "plan", "--urgency", "apocalyptic")
	assert.ErrorContains(t, err, "InvalidInput")
}

func TestHealth(t *testing.T) {
	url := newTestAPI(t)

	out, err := execute(t, url, "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")

	_, err = execute(t, "http://127.0.0.1:1", "", "health")
	assert.Error(t, err)
}
