package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/JensKSuessmeyer/delta-kusto/internal/cli"
	"github.com/JensKSuessmeyer/delta-kusto/internal/config"
	"github.com/JensKSuessmeyer/delta-kusto/internal/gateway"
	"github.com/JensKSuessmeyer/delta-kusto/internal/orchestration"
	"github.com/JensKSuessmeyer/delta-kusto/internal/telemetry"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const cliVersion = "0.0.0-dev"

var cliFileSystem = afero.NewOsFs()

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newDeltaKustoCommand()
	parsedArgs := []string{}
	if len(args) > 1 {
		parsedArgs = args[1:]
	}
	root.SetArgs(parsedArgs)
	return root.ExecuteContext(ctx)
}

func newDeltaKustoCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "delta-kusto",
		Short:        "Compute and apply schema deltas between Kusto databases and scripts",
		Version:      cliVersion,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runDelta,
	}
	addRunFlags(root)

	root.PersistentFlags().String("config", "", "path to delta-kusto CLI config file")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.InitViperFromCommand(cmd, cli.ViperConfig{
			EnvPrefix:    "DELTA_KUSTO",
			ConfigEnvVar: "DELTA_KUSTO_CONFIG",
		})
	}

	addLeaf := func(parent *cobra.Command, use, short string, args cobra.PositionalArgs, addFlags func(*cobra.Command), runFn func(*cobra.Command, []string) error) {
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE:  runFn,
		}
		if addFlags != nil {
			addFlags(cmd)
		}
		parent.AddCommand(cmd)
	}

	addLeaf(root, "run", "run every job of a parameter file", cobra.NoArgs, addRunFlags, runDelta)
	addLeaf(root, "parse", "parse scripts and print them in normalized form", cobra.MinimumNArgs(1), nil, runParse)
	addLeaf(root, "version", "print the version", cobra.NoArgs, nil, runVersion)
	root.InitDefaultCompletionCmd()
	return root
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("parameter", "p", "delta-kusto.yaml", "path to the parameter file")
	cmd.Flags().StringArrayP("override", "o", nil, "override a parameter, as path=value (repeatable)")
	cmd.Flags().Bool("fail-if-data-loss", false, "fail any job whose delta would lose data")
}

func runDelta(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Log)
	orch := &orchestration.DeltaOrchestration{
		Config:  cfg,
		Files:   gateway.NewFileGateway(cliFileSystem),
		Console: cmd.OutOrStdout(),
		Logger:  logger,
		Tracer:  telemetry.Tracer(cfg.Telemetry.ServiceName),
	}
	parameterPath := cli.ResolveStringFlag(cmd, "parameter")
	overrides := cli.ResolveStringSliceFlag(cmd, "override")
	if cli.ResolveBoolFlag(cmd, "fail-if-data-loss") {
		overrides = append(overrides, "failIfDataLoss=true")
	}
	results, err := orch.Run(cmd.Context(), parameterPath, overrides)
	if err != nil {
		return err
	}
	logger.Info("delta run complete", "jobs", len(results))
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	files := gateway.NewFileGateway(cliFileSystem)
	for i, path := range args {
		file, err := files.ReadFile(path)
		if err != nil {
			return err
		}
		cmds, err := command.ParseScript(file.Content)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprintln(cmd.OutOrStdout(), command.RenderScript(cmds))
	}
	return nil
}

func runVersion(cmd *cobra.Command, _ []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "delta-kusto %s\n", cliVersion)
	return nil
}
