// Package main implements the currc CLI for manual operations against
// the curriculumd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the curriculumd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "currc",
	Short: "CLI for curriculumd HTTP server operations",
	Long: `currc is a command-line interface for the curriculumd academic
planning daemon. It provides commands for indexing syllabus documents,
running planning workflows, and checking server health.`,
	Version: version,
}

var (
	syllabusPath string
	question     string
	answer       string
	maxScore     float64
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8740", "curriculumd server URL")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthCmd)

	runCmd.Flags().StringVar(&syllabusPath, "syllabus", "", "syllabus document to parse instead of retrieving from the index")
	runCmd.Flags().StringVar(&question, "question", "", "question text for evaluation requests")
	runCmd.Flags().StringVar(&answer, "answer", "", "student answer for evaluation requests")
	runCmd.Flags().Float64Var(&maxScore, "max-score", 0, "mark total for evaluation requests")
}

// indexCmd rebuilds the server's vector index from a document.
var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Rebuild the syllabus index from a document",
	Long: `Rebuild the curriculumd vector index from a syllabus document.
The path must be readable by the server process.

Examples:
  # Index a syllabus
  currc index /srv/courses/cs201-syllabus.pdf

  # Use a different server
  currc index --server http://localhost:9090 syllabus.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

// runCmd executes a planning workflow.
var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a planning workflow",
	Long: `Run a planning workflow from a natural language request and print
the result envelope as JSON.

Examples:
  # Generate a lesson plan
  currc run "6-week lesson plan for Unit 1 and Unit 2"

  # Generate a quiz from a specific syllabus file
  currc run --syllabus cs201.pdf "quiz on binary trees"

  # Grade an answer
  currc run --question "Explain BST deletion" --answer "$(cat answer.txt)" --max-score 10 "grade this answer"`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check curriculumd server health",
	RunE:  runHealth,
}

// WorkflowRequest matches internal/server WorkflowRequest.
type WorkflowRequest struct {
	Request      string  `json:"request"`
	SyllabusPath string  `json:"syllabus_path,omitempty"`
	Question     string  `json:"question,omitempty"`
	Answer       string  `json:"answer,omitempty"`
	MaxScore     float64 `json:"max_score,omitempty"`
}

// IndexRequest matches internal/server IndexRequest.
type IndexRequest struct {
	Path string `json:"path"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	body, err := postJSON("/v1/index", IndexRequest{Path: args[0]}, 5*time.Minute)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), body)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	req := WorkflowRequest{
		Request:      args[0],
		SyllabusPath: syllabusPath,
		Question:     question,
		Answer:       answer,
		MaxScore:     maxScore,
	}
	body, err := postJSON("/v1/workflows", req, 10*time.Minute)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), body)
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(serverURL, "/") + "/healthz")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy (%d): %s", resp.StatusCode, string(body))
	}
	return printJSON(cmd.OutOrStdout(), body)
}

// postJSON posts a request body and returns the raw response body.
func postJSON(path string, payload any, timeout time.Duration) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(strings.TrimSuffix(serverURL, "/")+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// printJSON re-indents the response for the terminal.
func printJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		// Not JSON; print as-is.
		fmt.Fprintln(w, string(body))
		return nil
	}
	fmt.Fprintln(w, buf.String())
	return nil
}
