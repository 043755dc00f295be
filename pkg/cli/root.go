// Package cli implements the evidencectl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/app"
	"github.com/DeBrosOfficial/caseledger/pkg/config"
	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/telemetry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// BuildInfo is version metadata set via -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type rootOptions struct {
	configPath string
	format     string
	timeout    time.Duration
	verbose    bool

	build   BuildInfo
	appOpts []app.Option
}

// NewRootCmd builds the evidencectl command tree. appOpts are passed to
// app.New for every command that needs the wired components.
func NewRootCmd(build BuildInfo, appOpts ...app.Option) *cobra.Command {
	o := &rootOptions{build: build, appOpts: appOpts}

	root := &cobra.Command{
		Use:           "evidencectl",
		Short:         "Manage legal cases and evidence on the case registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch o.format {
			case FormatTable, FormatJSON:
				return nil
			default:
				return fmt.Errorf("unknown format %q (want %s or %s)", o.format, FormatTable, FormatJSON)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default ~/.caseledger/config.yaml)")
	flags.StringVar(&o.format, "format", FormatTable, "output format: table or json")
	flags.DurationVar(&o.timeout, "timeout", 0, "overall deadline for the command; 0 waits indefinitely")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newConnectCmd(o),
		newNetworkCmd(o),
		newCaseCmd(o),
		newEvidenceCmd(o),
		newURLCmd(o),
		newVersionCmd(o),
	)
	return root
}

// Exit codes by error category. Anything unclassified exits with 1.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitWallet  = 3
	ExitLedger  = 4
	ExitNetwork = 5
)

// Execute runs the command tree and prints any error together with its
// actionable hint. It returns the process exit code.
func Execute(root *cobra.Command, stderr io.Writer) int {
	err := root.Execute()
	if err == nil {
		return ExitOK
	}
	flags := root.PersistentFlags()
	format, _ := flags.GetString("format")
	verbose, _ := flags.GetBool("verbose")

	hint := apperrors.Action(err)
	if format == FormatJSON {
		_ = printJSON(stderr, errorOutput{
			Code:    apperrors.GetErrorCode(err),
			Message: apperrors.GetErrorMessage(err),
			Detail:  err.Error(),
			Hint:    hint,
		})
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if hint != "" {
			fmt.Fprintf(stderr, "Hint:  %s\n", hint)
		}
	}
	if verbose {
		var traced interface{ StackTrace() string }
		if errors.As(err, &traced) {
			if trace := traced.StackTrace(); trace != "" {
				fmt.Fprintf(stderr, "Stack:\n%s", trace)
			}
		}
	}
	return exitCode(err)
}

// errorOutput is the --format json shape of a failed command on stderr.
type errorOutput struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Hint    string `json:"hint,omitempty"`
}

func exitCode(err error) int {
	switch apperrors.GetCategory(apperrors.GetErrorCode(err)) {
	case apperrors.CategoryClient:
		return ExitUsage
	case apperrors.CategoryWallet:
		return ExitWallet
	case apperrors.CategoryLedger:
		return ExitLedger
	case apperrors.CategoryNetwork, apperrors.CategoryTimeout:
		return ExitNetwork
	default:
		return ExitFailure
	}
}

// session is one command invocation's wired app, context and teardown.
type session struct {
	*app.App
	ctx   context.Context
	close func()
}

func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}

	logger, closeLog, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cancel := func() {}
	if o.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.ComponentWarn(logging.ComponentCLI, "tracing disabled", zap.Error(err))
	}

	stderr := cmd.ErrOrStderr()
	opts := append([]app.Option{
		app.WithWriteObserver(func(method string, state registry.WriteState, tx common.Hash) {
			if o.format != FormatTable {
				return
			}
			if tx != (common.Hash{}) {
				fmt.Fprintf(stderr, "  %s: %s (tx %s)\n", method, state, tx.Hex())
				return
			}
			fmt.Fprintf(stderr, "  %s: %s\n", method, state)
		}),
	}, o.appOpts...)

	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		cancel()
		closeLog()
		return nil, err
	}

	return &session{
		App: a,
		ctx: ctx,
		close: func() {
			a.Close()
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if shutdownTracing != nil {
				_ = shutdownTracing(flushCtx)
			}
			cancel()
			_ = logger.Sync()
			closeLog()
		},
	}, nil
}

// connect opens the session and connects the wallet, for commands that write.
func (o *rootOptions) connect(cmd *cobra.Command) (*session, error) {
	s, err := o.open(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := s.Connection.Connect(s.ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), o.build)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "evidencectl %s", o.build.Version)
			if o.build.Commit != "" {
				fmt.Fprintf(out, " (commit %s)", o.build.Commit)
			}
			if o.build.Date != "" {
				fmt.Fprintf(out, " built %s", o.build.Date)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
