// Command syspulsectl is the thin cobra front end for syspulsed: every
// subcommand dials the control socket via pkg/client and prints the result.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyber-boost/syspulse/internal/config"
	"github.com/cyber-boost/syspulse/pkg/client"
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func connect() (*client.Client, error) {
	return client.Connect()
}

func main() {
	root := &cobra.Command{Use: "syspulsectl", Short: "Control a running syspulsed"}

	var wait bool
	var force bool
	var timeout time.Duration

	cmdStart := &cobra.Command{
		Use:   "start <name>",
		Short: "Start a registered daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return c.Start(args[0], wait, timeout)
		},
	}
	cmdStart.Flags().BoolVar(&wait, "wait", false, "block until the daemon reaches Running")
	cmdStart.Flags().DurationVar(&timeout, "timeout", 0, "wait timeout (0 waits up to 30s)")

	cmdStop := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return c.Stop(args[0], force, timeout)
		},
	}
	cmdStop.Flags().BoolVar(&force, "force", false, "escalate to Kill if the graceful stop times out")
	cmdStop.Flags().DurationVar(&timeout, "timeout", 0, "graceful stop timeout")

	cmdRestart := &cobra.Command{
		Use:   "restart <name>",
		Short: "Stop then start a daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return c.Restart(args[0], force, wait)
		},
	}
	cmdRestart.Flags().BoolVar(&force, "force", false, "ignore a failed stop and start anyway")
	cmdRestart.Flags().BoolVar(&wait, "wait", false, "block until the daemon reaches Running")

	cmdStatus := &cobra.Command{
		Use:   "status [name]",
		Short: "Show one daemon's status, or every daemon if name is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				list, err := c.List()
				if err != nil {
					return err
				}
				printJSON(list)
				return nil
			}
			inst, err := c.Status(name)
			if err != nil {
				return err
			}
			printJSON(inst)
			return nil
		},
	}

	cmdList := &cobra.Command{
		Use:   "list",
		Short: "List every registered daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			list, err := c.List()
			if err != nil {
				return err
			}
			printJSON(list)
			return nil
		},
	}

	var tailLines int
	var stderr bool
	cmdLogs := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show the last lines of a daemon's stdout or stderr",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			lines, err := c.Logs(args[0], tailLines, stderr)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmdLogs.Flags().IntVar(&tailLines, "lines", 100, "number of lines to show")
	cmdLogs.Flags().BoolVar(&stderr, "stderr", false, "show stderr instead of stdout")

	var specFile string
	cmdAdd := &cobra.Command{
		Use:   "add",
		Short: "Register a new daemon from a spec file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if specFile == "" {
				return fmt.Errorf("add requires --spec <file>")
			}
			bundle, err := config.Load(specFile)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			for _, spec := range bundle.Daemons {
				inst, err := c.Add(spec)
				if err != nil {
					return fmt.Errorf("add %q: %w", spec.Name, err)
				}
				printJSON(inst)
			}
			return nil
		},
	}
	cmdAdd.Flags().StringVar(&specFile, "spec", "", "path to a TOML/YAML/JSON file declaring one or more daemons")

	cmdRemove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Unregister a daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return c.Remove(args[0], force)
		},
	}
	cmdRemove.Flags().BoolVar(&force, "force", false, "stop the daemon first if it is active")

	cmdShutdown := &cobra.Command{
		Use:   "shutdown",
		Short: "Ask syspulsed to stop every daemon and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return c.Shutdown()
		},
	}

	cmdPing := &cobra.Command{
		Use:   "ping",
		Short: "Check that syspulsed is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			if err := c.Ping(); err != nil {
				return err
			}
			fmt.Println("pong")
			return nil
		},
	}

	root.AddCommand(cmdStart, cmdStop, cmdRestart, cmdStatus, cmdList, cmdLogs, cmdAdd, cmdRemove, cmdShutdown, cmdPing)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
