// Package topology is the operator CLI for the broker layout: it verifies
// the declared exchanges, queues, and bindings, and applies them to a live
// broker. Declaration is idempotent, so running apply twice is safe.
package topology

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velprakashr08-max/Frutify/internal/broker"
	"github.com/velprakashr08-max/Frutify/internal/config"
	"github.com/velprakashr08-max/Frutify/internal/tools/common"
)

type options struct {
	envFile string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "topology",
		Short:         "Inspect and apply the event broker topology",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file to load before reading configuration")
	root.PersistentFlags().BoolVar(&opts.ci, "ci", false, "emit a single JSON result line for CI")

	root.AddCommand(newVerifyCommand(opts))
	root.AddCommand(newApplyCommand(opts))
	return root
}

func newVerifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Validate the topology without touching the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := broker.DefaultTopology()
			err := t.Validate()
			details := describe(t)
			if opts.ci {
				common.PrintCIResult(err == nil, "topology verify", details, err)
				return err
			}
			if err != nil {
				return err
			}
			for _, line := range details {
				cmd.Println(line)
			}
			return nil
		},
	}
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Declare exchanges, queues, and bindings on the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := apply(opts)
			if opts.ci {
				common.PrintCIResult(err == nil, "topology apply", describe(broker.DefaultTopology()), err)
			}
			return err
		},
	}
}

func apply(opts *options) error {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := broker.Dial(cfg.RabbitMQURL, cfg.BrokerPrefetch, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return conn.DeclareTopology(broker.DefaultTopology())
}

func describe(t broker.Topology) []string {
	lines := make([]string, 0, len(t.Exchanges)+len(t.Queues))
	for _, ex := range t.Exchanges {
		lines = append(lines, fmt.Sprintf("exchange %s (%s)", ex.Name, ex.Kind))
	}
	for _, q := range t.Queues {
		lines = append(lines, fmt.Sprintf("queue %s <- %s [%s]", q.Name, q.Exchange, strings.Join(q.Bindings, ", ")))
	}
	sort.Strings(lines)
	return lines
}
