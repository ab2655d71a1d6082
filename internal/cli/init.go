package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the project configuration",
		Long: `Create the project configuration record from the deployment file's project
section. The caller becomes the authority and funds the record. When
project.authority is set it must match the caller.

Example:
  didreg init --config deploy.cue --keypair authority.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	caller, err := signer(opts)
	if err != nil {
		return err
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	want, err := e.cfg.Authority()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if !want.IsZero() && !want.Equals(caller) {
		return NewExitError(ExitCommandError, fmt.Sprintf("keypair %s is not project.authority %s", caller, want))
	}

	settings, err := e.cfg.Settings()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	res, err := e.engine.Initialize(cmdContext(cmd), caller, settings)
	if err != nil {
		return e.out.Reject(err)
	}
	return printResult(e.out, res)
}
