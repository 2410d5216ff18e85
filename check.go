package main

import (
	"fmt"

	"maintflow/config"
	"maintflow/domain"
	"maintflow/domain/state"
	"maintflow/domain/threshold"

	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration, state machines and recipient tables without starting the service",
	RunE:  runCheckConfig,
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	validator, resolver, err := buildRules(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, k := range domain.Kinds {
		m, err := validator.Machine(k)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "machine %s: %d states, %d transitions\n", m.Kind, len(m.States), len(m.Transitions))
	}
	for _, t := range resolver.Tables() {
		fmt.Fprintf(out, "recipients %s/%s: %d ranges\n", t.Kind, t.State, len(t.Ranges))
	}
	fmt.Fprintln(out, "configuration ok")
	return nil
}

func buildRules(cfg *config.Config) (*state.Validator, *threshold.Resolver, error) {
	machines, err := cfg.Machines()
	if err != nil {
		return nil, nil, err
	}
	validator, err := state.NewValidator(machines...)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := threshold.NewResolver(cfg.Tables()...)
	if err != nil {
		return nil, nil, err
	}
	return validator, resolver, nil
}
