// Package cmd implements the scandash CLI for interacting with the
// dashboard API: uploading scan CSVs and fetching aggregates.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkgscan/scandash/model"
)

var (
	serverURL string
	csvFile   string
	verbose   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scandash",
	Short: "Scandash CLI for the package scan dashboard API",
	Long: `A CLI tool for interacting with the scandash API.
Uploads package scanner CSV output and fetches the dashboard
aggregates as tables.`,
}

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a scanner CSV to the dashboard",
	Long: `Reads a package scanner CSV file and uploads it to the dashboard,
making it the active dataset for all views.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "scandash API server URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Upload command specific flags
	uploadCmd.Flags().StringVarP(&csvFile, "csv", "c", "", "Path to scanner CSV file (required)")
	uploadCmd.MarkFlagRequired("csv")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	// Validate CSV file exists
	if _, err := os.Stat(csvFile); os.IsNotExist(err) {
		return fmt.Errorf("CSV file not found: %s", csvFile)
	}

	content, err := os.ReadFile(csvFile)
	if err != nil {
		return fmt.Errorf("failed to read CSV file: %w", err)
	}

	if verbose {
		fmt.Printf("Uploading %s (%d bytes)\n", csvFile, len(content))
	}

	url := serverURL + "/api/v1/datasets"
	resp, err := http.Post(url, "text/csv", bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Rows    int    `json:"rows"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("✓ Uploaded %d rows: %s\n", result.Rows, result.Message)
	return nil
}

// overviewCmd represents the overview command
var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Print the dashboard overview aggregates",
	Long:  `Fetches and displays the overview metrics and the most used packages.`,
	RunE:  runOverview,
}

func init() {
	rootCmd.AddCommand(overviewCmd)
}

func runOverview(cmd *cobra.Command, args []string) error {
	url := serverURL + "/api/v1/overview"

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var report model.OverviewReport
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Total packages:    %d\n", report.TotalRecords)
	fmt.Printf("Unique packages:   %d\n", report.UniquePackages)
	fmt.Printf("Locations scanned: %d\n", report.UniqueLocations)
	fmt.Printf("Infected packages: %d\n", report.InfectedCount)
	fmt.Println()

	fmt.Printf("%-40s %-10s\n", "PACKAGE", "COUNT")
	fmt.Println("──────────────────────────────────────────────────")
	for _, entry := range report.TopPackages {
		fmt.Printf("%-40s %-10d\n", entry.Name, entry.Count)
	}

	if len(report.InfectedByType) > 0 {
		fmt.Println()
		fmt.Printf("%-40s %-10s\n", "INFECTED TYPE", "COUNT")
		fmt.Println("──────────────────────────────────────────────────")
		for _, entry := range report.InfectedByType {
			fmt.Printf("%-40s %-10d\n", entry.Name, entry.Count)
		}
	}

	return nil
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the normalized dataset as CSV",
	Long:  `Downloads the CSV echo of the currently active normalized dataset.`,
	RunE:  runExport,
}

var outputFile string

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write CSV to file (stdout when omitted)")
}

func runExport(cmd *cobra.Command, args []string) error {
	url := serverURL + "/api/v1/export"

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, body, 0644); err != nil {
			return fmt.Errorf("failed to write CSV to file: %w", err)
		}
		fmt.Printf("CSV written to: %s\n", outputFile)
		return nil
	}

	fmt.Print(string(body))
	return nil
}

// scansCmd represents the scans command
var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List archived scans",
	Long:  `Retrieves and displays all archived scan uploads with their key, file name, and row count.`,
	RunE:  runScans,
}

func init() {
	rootCmd.AddCommand(scansCmd)
}

func runScans(cmd *cobra.Command, args []string) error {
	url := serverURL + "/api/v1/scans"

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Success bool         `json:"success"`
		Count   int          `json:"count"`
		Scans   []model.Scan `json:"scans"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("API returned success=false")
	}

	fmt.Printf("Found %d scan(s):\n\n", result.Count)
	fmt.Printf("%-30s %-30s %-10s %-25s\n", "KEY", "FILE", "ROWS", "UPLOADED")
	fmt.Println("─────────────────────────────────────────────────────────────────────────────────────────")

	for _, scan := range result.Scans {
		fmt.Printf("%-30s %-30s %-10d %-25s\n", scan.Key, scan.FileName, scan.RowCount, scan.UploadedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}
