package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wenqic/agentgate/domain"
)

func newAskCmd() *cobra.Command {
	var gateway string
	var mode string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question through a running gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd, gateway, mode, args[0])
		},
	}
	cmd.Flags().StringVar(&gateway, "gateway", "http://localhost:8080", "gateway base URL")
	cmd.Flags().StringVar(&mode, "mode", "", "retrieval mode: semantic or vector (default none)")
	return cmd
}

func ask(cmd *cobra.Command, gateway, mode, question string) error {
	path := "/api/agent/ask"
	switch mode {
	case "":
	case "semantic", "vector":
		path = "/api/agent/ask-" + mode
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	u := gateway + path + "?question=" + url.QueryEscape(question)
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp domain.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("gateway error [%d]: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("gateway error [%d]: %s", resp.StatusCode, string(body))
	}

	var answer domain.AskResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:    %s (%s)\n", answer.RunID, answer.RunStatus)
	if answer.RunError != nil {
		fmt.Fprintf(out, "error:  %s\n", answer.RunError.Message)
	}
	fmt.Fprintf(out, "answer: %s\n", answer.Answer)
	return nil
}
