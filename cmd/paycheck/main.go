package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/classifier"
	"github.com/iurnickita/bogstatus/internal/logger"
	loggerConfig "github.com/iurnickita/bogstatus/internal/logger/config"
	"github.com/iurnickita/bogstatus/internal/model"
	"github.com/iurnickita/bogstatus/internal/poller"
	"github.com/iurnickita/bogstatus/internal/service/statusclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	baseURL     string
	timeout     time.Duration
	interval    time.Duration
	maxAttempts int
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "paycheck",
		Short:         "Check BOG payment status of travel orders",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", envOr("BOG_BASE_URL", "http://localhost:8081"), "status gateway base URL")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "single request timeout")
	flags.DurationVar(&opts.interval, "interval", poller.DefaultInterval, "poll interval")
	flags.IntVar(&opts.maxAttempts, "max-attempts", poller.DefaultMaxAttempts, "poll attempt ceiling")
	flags.StringVar(&opts.logLevel, "log-level", "error", "log level")

	root.AddCommand(newStatusCmd(opts), newKindCmd())
	return root
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status ORDER_ID",
		Short: "Poll the order until it is paid, failed or the attempts run out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID := args[0]
			kind, err := model.KindFromOrderID(orderID)
			if err != nil && orderID != "" {
				return err
			}

			zaplog, err := logger.NewZapLog(loggerConfig.Config{LogLevel: opts.logLevel})
			if err != nil {
				return err
			}
			defer zaplog.Sync()

			client := statusclient.NewStatusClient(opts.baseURL, opts.timeout, zaplog)
			fetch := func(ctx context.Context, orderID string) (model.StatusRecord, error) {
				return client.GetStatus(ctx, kind, orderID)
			}
			p := poller.New(fetch, classifier.For(kind), poller.Config{
				Interval:    opts.interval,
				MaxAttempts: opts.maxAttempts,
			}, poller.WithLogger(zaplog.With(zap.String("order", orderID))))

			out := cmd.OutOrStdout()
			state := p.Run(cmd.Context(), orderID, func(state poller.State) {
				printState(out, orderID, state)
			})
			return state.Err
		},
	}
}

func newKindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kind ORDER_ID",
		Short: "Print the order kind and its gateway status path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.KindFromOrderID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", kind, kind.Path(args[0]))
			return nil
		},
	}
}

type stateLine struct {
	OrderID  string              `json:"orderId"`
	Loading  bool                `json:"isLoading"`
	Outcome  string              `json:"outcome"`
	Attempts int                 `json:"attempts"`
	Details  *model.StatusRecord `json:"paymentDetails,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func printState(w io.Writer, orderID string, state poller.State) {
	line := stateLine{
		OrderID:  orderID,
		Loading:  state.Loading,
		Outcome:  state.Outcome.String(),
		Attempts: state.Attempts,
		Details:  state.Details,
	}
	if state.Err != nil {
		line.Error = state.Err.Error()
	}
	b, _ := json.Marshal(line)
	fmt.Fprintln(w, string(b))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
