// Package main — cmd/truckctl-opctl/main.go
//
// truckctl-opctl: cockpit operator CLI, talking to the agent's opsock
// Unix socket. A root command with verb subcommands, persistent
// --config/--socket/--jwt-secret flags, and tablewriter-backed table
// rendering for status and truck-list output.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/haulctl/truckctl/internal/config"
	"github.com/haulctl/truckctl/internal/transport/opsock"
)

var (
	configPath string
	socketPath string
	jwtSecret  string
	dialTTL    = 5 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "truckctl-opctl",
		Short:         "Cockpit operator CLI for the truck control agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/truckctl/config.yaml", "Path to the agent's config.yaml")
	root.PersistentFlags().StringVar(&socketPath, "socket", "", "Operator socket path (overrides config)")
	root.PersistentFlags().StringVar(&jwtSecret, "jwt-secret", "", "Operator JWT signing secret (overrides config)")

	root.AddCommand(statusCmd(), listCmd(),
		commandCmd("request-auto", "Request automatic mode", opsock.Request{RequestAutomatic: true}),
		commandCmd("request-manual", "Request manual mode", opsock.Request{RequestManual: true}),
		commandCmd("rearm", "Clear a latched fault", opsock.Request{Rearm: true}),
		commandCmd("accelerate", "Hold the accelerate input", opsock.Request{Accelerate: true}),
		commandCmd("steer-left", "Steer left (manual mode)", opsock.Request{SteerLeft: true}),
		commandCmd("steer-right", "Steer right (manual mode)", opsock.Request{SteerRight: true}),
	)
	return root
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the truck's current mode and fault state",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := roundTrip(opsock.Request{Cmd: "status"})
			if err != nil {
				return err
			}
			printStatus(resp)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known trucks and their fault codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := roundTrip(opsock.Request{Cmd: "list"})
			if err != nil {
				return err
			}
			printTrucks(resp.Trucks)
			return nil
		},
	}
}

func commandCmd(use, short string, req opsock.Request) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Cmd = "command"
			resp, err := roundTrip(req)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("rejected: %s", resp.Error)
			}
			printStatus(resp)
			return nil
		},
	}
}

// roundTrip mints a short-lived operator token, dials the operator socket,
// and exchanges one JSON request/response.
func roundTrip(req opsock.Request) (opsock.Response, error) {
	var resp opsock.Response

	path := socketPath
	secret := jwtSecret
	ttl := time.Minute
	if path == "" || secret == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return resp, fmt.Errorf("load config: %w", err)
		}
		if path == "" {
			path = cfg.Operator.SocketPath
		}
		if secret == "" {
			secret = cfg.Operator.JWTSecret
		}
		ttl = cfg.Operator.TokenTTL
	}

	auth, err := opsock.NewAuthenticator(secret)
	if err != nil {
		return resp, fmt.Errorf("authenticator: %w", err)
	}
	token, err := auth.Mint("opctl", ttl)
	if err != nil {
		return resp, fmt.Errorf("mint token: %w", err)
	}
	req.Token = token

	conn, err := net.DialTimeout("unix", path, dialTTL)
	if err != nil {
		return resp, fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(dialTTL))
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return resp, fmt.Errorf("send request: %w", err)
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

func printStatus(resp opsock.Response) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Automatic", "Fault", "Fault Code"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.Append([]string{
		fmt.Sprintf("%v", resp.Automatic),
		fmt.Sprintf("%v", resp.Fault),
		fmt.Sprintf("%d", resp.FaultCode),
	})
	table.Render()
}

func printTrucks(trucks []opsock.TruckStatus) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Truck ID", "Automatic", "Fault", "Fault Code"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	for _, tr := range trucks {
		table.Append([]string{
			fmt.Sprintf("%d", tr.TruckID),
			fmt.Sprintf("%v", tr.Automatic),
			fmt.Sprintf("%v", tr.Fault),
			fmt.Sprintf("%d", tr.FaultCode),
		})
	}
	table.Render()
}
