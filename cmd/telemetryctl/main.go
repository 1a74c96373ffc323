// Package main is the entry point for the telemetryctl binary.
// It provides a CLI for inspecting and controlling the telemetry client's
// opt-in state and for firing test events at the configured backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/automagik/telemetry-go/pkg/config"
	"github.com/automagik/telemetry-go/pkg/event"
	"github.com/automagik/telemetry-go/pkg/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "telemetryctl",
		Short: "Control the Automagik telemetry client",
		Long: `Inspect and control the opt-in state of the Automagik telemetry
client, and send test events to verify backend connectivity.

Telemetry is disabled by default; nothing is transmitted until a user
explicitly opts in.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose diagnostics")

	rootCmd.AddCommand(newStatusCmd(), newEnableCmd(), newDisableCmd(), newSendCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return config.Config{}, err
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	} else {
		cfg, err = config.New(config.Config{
			ProjectName: "telemetryctl",
			Version:     "dev",
		})
		if err != nil {
			return config.Config{}, err
		}
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command) (*telemetry.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return telemetry.New(cfg)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show telemetry status, queue sizes, and the effective endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client)

			status := client.GetStatus()
			out := map[string]any{
				"enabled":    status.Enabled,
				"opted_out":  status.OptedOut,
				"user_id":    status.UserID,
				"session_id": status.SessionID,
				"project":    status.ProjectName,
				"version":    status.Version,
				"backend":    string(status.Backend),
				"endpoint":   status.Endpoint,
				"queues": map[string]int{
					"spans":   status.QueueSizes[event.KindSpan],
					"metrics": status.QueueSizes[event.KindMetric],
					"logs":    status.QueueSizes[event.KindLog],
				},
			}
			encoded, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			cmd.Print(string(encoded))
			return nil
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Opt in to telemetry and clear the opt-out marker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client)

			client.Enable()
			cmd.Println("Telemetry enabled. Thank you for helping improve Automagik!")
			return nil
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Opt out of telemetry and persist the preference",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client)

			client.Disable()
			cmd.Println("Telemetry disabled. No data will be transmitted.")
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send a test event to verify backend connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Enabled = true

			client, err := telemetry.New(cfg)
			if err != nil {
				return err
			}
			defer closeClient(client)

			client.TrackEvent("telemetryctl.test", map[string]any{
				"source": "telemetryctl",
			})
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			client.Flush(ctx)
			cmd.Println("Test event sent.")
			return nil
		},
	}
}

func closeClient(client *telemetry.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client.Close(ctx)
}
