package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loykin/devsup/internal/config"
	"github.com/loykin/devsup/internal/resolver"
	"github.com/loykin/devsup/pkg/client"
)

// KeyFlags holds flags for commands addressing one dev server.
type KeyFlags struct {
	Key     int
	Cwd     string
	Command string
	Data    string
	Cols    uint16
	Rows    uint16
}

// newClient builds an API client from flags, falling back to the config
// file for the address and token.
func newClient(flags *GlobalFlags) (*client.Client, error) {
	cfg := client.DefaultConfig()
	c, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	cfg.BaseURL = "http://" + c.Server.Listen + c.Server.BasePath
	cfg.Token = c.Server.Token
	if flags.APIUrl != "" {
		cfg.BaseURL = flags.APIUrl
	}
	if flags.Token != "" {
		cfg.Token = flags.Token
	}
	if flags.APITimeout > 0 {
		cfg.Timeout = flags.APITimeout
	}
	return client.New(cfg), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dirArg(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return filepath.Abs(dir)
}

func createDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [dir]",
		Short: "Detect the framework of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := dirArg(args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resolver.DetectFramework(dir))
		},
	}
}

func createResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [dir]",
		Short: "Print the dev command devsup would run for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := dirArg(args)
			if err != nil {
				return err
			}
			command, err := resolver.ResolveCommand(dir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), command)
			return err
		},
	}
}

func createStartCommand(flags *GlobalFlags) *cobra.Command {
	kf := &KeyFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start (or restart) the dev server for a project key",
		Long: `Start the dev server for a project key. Without --command the dev
command is resolved from package.json and the project's lockfile.

Examples:
  devsup start --key 1 --cwd /work/web
  devsup start --key 2 --cwd /work/api --command "go run ./cmd/api"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			cwd, err := filepath.Abs(kf.Cwd)
			if err != nil {
				return err
			}
			res, err := c.Start(cmd.Context(), client.StartRequest{Key: kf.Key, Cwd: cwd, Command: kf.Command})
			if err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Command)
			return err
		},
	}
	cmd.Flags().IntVar(&kf.Key, "key", 0, "project key")
	cmd.Flags().StringVar(&kf.Cwd, "cwd", ".", "project directory")
	cmd.Flags().StringVar(&kf.Command, "command", "", "command to run instead of the resolved one")
	return cmd
}

func createStopCommand(flags *GlobalFlags) *cobra.Command {
	kf := &KeyFlags{}
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the dev server for a project key",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			return c.Stop(cmd.Context(), kf.Key)
		},
	}
	cmd.Flags().IntVar(&kf.Key, "key", 0, "project key")
	return cmd
}

func createPortCommand(flags *GlobalFlags) *cobra.Command {
	kf := &KeyFlags{}
	cmd := &cobra.Command{
		Use:   "port",
		Short: "Print the detected port for a project key",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			port, ok, err := c.Port(cmd.Context(), kf.Key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no port detected for key %d", kf.Key)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), port)
			return err
		},
	}
	cmd.Flags().IntVar(&kf.Key, "key", 0, "project key")
	return cmd
}

func createInputCommand(flags *GlobalFlags) *cobra.Command {
	kf := &KeyFlags{}
	cmd := &cobra.Command{
		Use:   "input",
		Short: "Send input to a dev server's terminal",
		Long: `Send raw input to a dev server's terminal. A trailing carriage return is
not added.

Examples:
  devsup input --key 1 --data $'r\r'   # vite: restart`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			return c.Input(cmd.Context(), kf.Key, []byte(kf.Data))
		},
	}
	cmd.Flags().IntVar(&kf.Key, "key", 0, "project key")
	cmd.Flags().StringVar(&kf.Data, "data", "", "bytes to write")
	return cmd
}

func createListCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running dev servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			list, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
}

func createStatsCommand(flags *GlobalFlags) *cobra.Command {
	kf := &KeyFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show resource usage of a dev server's process tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			st, err := c.Stats(cmd.Context(), kf.Key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().IntVar(&kf.Key, "key", 0, "project key")
	return cmd
}

func createAttachCommand(flags *GlobalFlags) *cobra.Command {
	kf := &KeyFlags{}
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Follow a dev server's terminal output until it exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			if kf.Cols > 0 && kf.Rows > 0 {
				if err := c.Resize(cmd.Context(), kf.Key, kf.Cols, kf.Rows); err != nil {
					return err
				}
			}
			return attach(cmd.Context(), c, kf.Key, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().IntVar(&kf.Key, "key", 0, "project key")
	cmd.Flags().Uint16Var(&kf.Cols, "cols", 0, "resize the terminal before attaching")
	cmd.Flags().Uint16Var(&kf.Rows, "rows", 0, "resize the terminal before attaching")
	return cmd
}

// attach copies output for key to out and returns when the dev server
// exits. A non-zero exit code is returned as an error.
func attach(ctx context.Context, c *client.Client, key int, out, errOut io.Writer) error {
	es, err := c.Events(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = es.Close() }()
	go func() {
		<-ctx.Done()
		_ = es.Close()
	}()
	for {
		e, err := es.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if e.Key != key {
			continue
		}
		switch e.Channel {
		case client.ChannelData:
			if _, err := out.Write(e.Data); err != nil {
				return err
			}
		case client.ChannelPortDetected:
			_, _ = fmt.Fprintf(errOut, "devsup: port %d detected\n", e.Port)
		case client.ChannelExit:
			if e.Code != nil && *e.Code != 0 {
				return fmt.Errorf("dev server exited with code %d", *e.Code)
			}
			return nil
		}
	}
}

