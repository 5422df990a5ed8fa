package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/raymyers/ralph-cf/pkg/cfgen"
	"github.com/raymyers/ralph-cf/pkg/ssa"
	"github.com/raymyers/ralph-cf/pkg/ssa/ssaload"
)

var version = "0.1.0"

// Debug flags for dumping intermediate results
var (
	dSSA      bool
	dLive     bool
	dRegalloc bool
	dTypes    bool
	dCF       bool
)

// Pipeline options
var (
	noRemat     bool
	verifyAlloc bool
	workers     int
	verbose     bool
	runArgs     []string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept single-dash dump flags like -dcf
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the dump flags that also accept single-dash style
var debugFlagNames = []string{"dssa", "dlive", "dregalloc", "dtypes", "dcf"}

// normalizeFlags converts single-dash dump flags like -dcf to --dcf
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-cf [file]",
		Short: "ralph-cf lowers SSA methods to stack-machine code",
		Long: `ralph-cf reads SSA method bodies from a YAML or CUE file and
lowers them to stack-machine code with allocated local slots and
verifier frames. Dump flags print the result of each pass.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			setupLogging(errOut)
			return doCompile(cmd, args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVarP(&dSSA, "dssa", "", false, "Dump the input SSA")
	rootCmd.Flags().BoolVarP(&dLive, "dlive", "", false, "Dump liveness intervals")
	rootCmd.Flags().BoolVarP(&dRegalloc, "dregalloc", "", false, "Dump slot assignments")
	rootCmd.Flags().BoolVarP(&dTypes, "dtypes", "", false, "Dump verifier types")
	rootCmd.Flags().BoolVarP(&dCF, "dcf", "", false, "Dump stack-form code")

	// Defaults can come from the environment
	rootCmd.Flags().BoolVar(&noRemat, "no-remat", env.Bool("RALPH_CF_NO_REMAT"), "Give constants slots instead of re-emitting them")
	rootCmd.Flags().BoolVar(&verifyAlloc, "verify-alloc", env.Bool("RALPH_CF_VERIFY_ALLOC"), "Check the slot assignment")
	rootCmd.Flags().IntVarP(&workers, "workers", "j", env.Int("RALPH_CF_WORKERS", 0), "Methods compiled in parallel (0 for one per CPU)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", env.Bool("RALPH_CF_VERBOSE"), "Log pass events to stderr")
	rootCmd.Flags().StringArrayVar(&runArgs, "run", nil, "Interpret each method before and after lowering on comma-separated arguments")

	return rootCmd
}

func setupLogging(errOut io.Writer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})))
}

func pipelineOptions() cfgen.Options {
	return cfgen.Options{
		Rematerialize:    !noRemat,
		VerifyAllocation: verifyAlloc,
		Workers:          workers,
	}
}

// doCompile loads the methods of filename, lowers them and prints the
// requested dumps in pipeline order.
func doCompile(cmd *cobra.Command, filename string, out, errOut io.Writer) error {
	fns, err := ssaload.LoadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-cf: %v\n", err)
		return err
	}

	if dSSA {
		// Before critical edge splitting changes the blocks
		p := ssa.NewPrinter(out)
		for _, fn := range fns {
			p.PrintFunc(fn)
		}
	}

	results, buildErr := cfgen.BuildAll(cmd.Context(), fns, pipelineOptions())
	for _, res := range results {
		if res == nil {
			continue
		}
		if dLive {
			printLiveness(out, res)
		}
		if dRegalloc {
			printAllocation(out, res)
		}
		if dTypes {
			printTypes(out, res)
		}
		if dCF {
			printCode(out, res)
		}
		if !dumping() && len(runArgs) == 0 {
			printSummary(out, res)
		}
		for _, a := range runArgs {
			if err := doRun(out, res, a); err != nil {
				buildErr = errors.Join(buildErr, err)
			}
		}
	}
	if buildErr != nil {
		for _, line := range strings.Split(buildErr.Error(), "\n") {
			fmt.Fprintf(errOut, "ralph-cf: %s\n", line)
		}
		return buildErr
	}
	return nil
}

func dumping() bool {
	return dSSA || dLive || dRegalloc || dTypes || dCF
}
