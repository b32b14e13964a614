package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ihttp "github.com/fyrsmithlabs/ticketd/internal/http"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

func newRootCmd() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	root := &cobra.Command{
		Use:   "ticketctl",
		Short: "CLI for ticketd",
		Long: `ticketctl submits tickets to a running ticketd and inspects their status
and routing decisions.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "ticketd server URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")

	api := func() *apiClient {
		return &apiClient{
			baseURL: strings.TrimRight(serverURL, "/"),
			http:    &http.Client{Timeout: timeout},
		}
	}

	root.AddCommand(
		newProcessCmd(api),
		newStatusCmd(api),
		newPlanCmd(api),
		newHealthCmd(api),
	)
	return root
}

func newProcessCmd(api func() *apiClient) *cobra.Command {
	var req ihttp.TicketRequest

	cmd := &cobra.Command{
		Use:   "process --id ID [text | -]",
		Short: "Submit a ticket and print its outcome",
		Long: `Submit a ticket for processing. The ticket text comes from the argument,
or from stdin when the argument is "-" or missing.

Examples:
  ticketctl process --id T-1 "urgent: cannot reset password"
  echo "feature request: dark mode" | ticketctl process --id T-2 -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			req.Text = text

			var out ticket.Outcome
			if err := api().do(cmd, http.MethodPost, "/api/v1/tickets", req, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "ticket id (required)")
	cmd.Flags().StringVar(&req.Title, "title", "", "ticket title")
	cmd.Flags().StringVar(&req.RequesterContact, "contact", "", "requester contact")
	cmd.Flags().StringVar(&req.PriorityHint, "priority", "", "priority hint")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newStatusCmd(api func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show a ticket's current status and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out ihttp.StatusResponse
			if err := api().do(cmd, http.MethodGet, "/api/v1/tickets/"+args[0]+"/status", nil, &out); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %s\n", out.TicketID, out.Status)
			for _, tr := range out.History {
				fmt.Fprintf(w, "  %s  %s -> %s\n", tr.At.Format(time.RFC3339), tr.From, tr.To)
			}
			return nil
		},
	}
}

func newPlanCmd(api func() *apiClient) *cobra.Command {
	var (
		c          ticket.Classification
		urgency    string
		sentiment  string
		similarity float64
		degraded   bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the routing plan for a classification",
		Long: `Ask the routing engine which activities it would run for a classification.
Pass --similarity or --degraded to resume an elevated plan with a search result.

Examples:
  ticketctl plan --urgency critical
  ticketctl plan --sentiment negative --similarity 0.85`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Urgency = ticket.Urgency(urgency)
			c.Sentiment = ticket.Sentiment(sentiment)
			req := ihttp.PlanRequest{Classification: c}
			switch {
			case degraded:
				req.SearchResult = &ticket.SearchResult{Degraded: true}
			case cmd.Flags().Changed("similarity"):
				req.SearchResult = &ticket.SearchResult{Matches: []ticket.KnowledgeMatch{{ID: "cli", Similarity: similarity}}}
			}

			var out ihttp.PlanResponse
			if err := api().do(cmd, http.MethodPost, "/api/v1/plan", req, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&c.Intent, "intent", "general-inquiry", "intent")
	cmd.Flags().StringVar(&c.Category, "category", ticket.CategoryGeneral, "category")
	cmd.Flags().StringVar(&urgency, "urgency", string(ticket.UrgencyMedium), "low, medium, high or critical")
	cmd.Flags().StringVar(&sentiment, "sentiment", string(ticket.SentimentNeutral), "positive, neutral or negative")
	cmd.Flags().Float64Var(&similarity, "similarity", 0, "similarity of the best knowledge match")
	cmd.Flags().BoolVar(&degraded, "degraded", false, "resume as if knowledge search failed")
	return cmd
}

func newHealthCmd(api func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check ticketd health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api()
			var out ihttp.HealthResponse
			if err := client.do(cmd, http.MethodGet, "/health", nil, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\nServer URL: %s\n", out.Status, client.baseURL)
			return nil
		},
	}
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no ticket text given")
	}
	return text, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
