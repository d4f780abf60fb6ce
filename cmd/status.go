/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wordbridge/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const statusRequestTimeout = 3 * time.Second

var (
	statusOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	statusKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

type bridgeHealth struct {
	Status        string `json:"status"`
	Clients       int    `json:"clients"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running bridge",
	Long:  "Queries the health endpoint of a running WordBridge instance and prints its status.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		health, err := fetchBridgeHealth(healthURL(cfg))
		if err != nil {
			fmt.Println(statusDownStyle.Render("down"), err)
			return
		}

		fmt.Println(renderHealth(health))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func healthURL(cfg *config.Config) string {
	host := cfg.Bridge.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return "http://" + host + ":" + strconv.Itoa(cfg.Bridge.Port) + "/healthz"
}

func fetchBridgeHealth(url string) (bridgeHealth, error) {
	client := &http.Client{Timeout: statusRequestTimeout}

	resp, err := client.Get(url)
	if err != nil {
		return bridgeHealth{}, fmt.Errorf("query %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return bridgeHealth{}, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var health bridgeHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return bridgeHealth{}, fmt.Errorf("decode health response: %w", err)
	}

	return health, nil
}

func renderHealth(health bridgeHealth) string {
	state := statusOKStyle.Render(health.Status)
	if health.Status != "ok" {
		state = statusDownStyle.Render(health.Status)
	}

	uptime := (time.Duration(health.UptimeSeconds) * time.Second).String()

	return fmt.Sprintf("%s %s\n%s %d\n%s %s",
		statusKeyStyle.Render("status:"), state,
		statusKeyStyle.Render("clients:"), health.Clients,
		statusKeyStyle.Render("uptime:"), uptime,
	)
}
