package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	core "github.com/ligun0805/bundle-relay/internal/bundlecore"
	"github.com/ligun0805/bundle-relay/internal/config"
	"github.com/ligun0805/bundle-relay/internal/logging"
	"github.com/ligun0805/bundle-relay/internal/metrics"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bundlecli",
		Short: "Submit a two-payment Flashbots bundle on Sepolia until it lands",
		Long: `Build a bundle of two signed payments with consecutive nonces and submit it
to the Flashbots relay, one target block at a time, until it is included or the
attempt budget runs out.

Configuration is read from the environment (.env and .env.local are loaded):
  PRIVATE_KEY  wallet key, also used to sign relay requests
  RPC_URL      Sepolia JSON-RPC endpoint

Examples:
  bundlecli
  bundlecli --env-file sepolia.env --max-attempts 20
  bundlecli simulate`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSubmit,
	}
	simulateCmd := &cobra.Command{
		Use:     "simulate",
		Aliases: []string{"dry-run"},
		Short:   "Simulate one bundle against the current head and exit",
		RunE:    runSimulate,
	}

	rootCmd.PersistentFlags().String("env-file", "", "extra env file loaded over .env and .env.local")
	rootCmd.PersistentFlags().Bool("prompt-key", false, "ask for PRIVATE_KEY on the terminal when it is not set")
	rootCmd.Flags().Int("max-attempts", 0, "number of target blocks to try (overrides MAX_ATTEMPTS)")
	rootCmd.Flags().Bool("no-simulate", false, "skip the simulation before the first attempt")
	rootCmd.AddCommand(simulateCmd)
	return rootCmd
}

func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:]))
}

// execute runs the command tree and maps its error to the exit status:
// 0 for an included or exhausted run, 1 for anything fatal.
func execute(cmd *cobra.Command, args []string) int {
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err.Error())
		return 1
	}
	return 0
}

// session is everything a command needs after settings are loaded.
type session struct {
	st     config.Settings
	log    *zap.Logger
	reg    *prometheus.Registry
	client *core.Client
}

func (s *session) close() {
	if s.client != nil {
		s.client.Close()
	}
	_ = s.log.Sync()
}

func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Settings{}, err
	}
	if prompt, _ := cmd.Flags().GetBool("prompt-key"); prompt && strings.TrimSpace(os.Getenv("PRIVATE_KEY")) == "" {
		key, err := readPassword("PRIVATE_KEY: ")
		if err != nil {
			return config.Settings{}, err
		}
		_ = os.Setenv("PRIVATE_KEY", key)
	}

	st, err := config.Load()
	if err != nil {
		return config.Settings{}, err
	}
	if f := cmd.Flags().Lookup("max-attempts"); f != nil && f.Changed {
		st.MaxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	}
	if f := cmd.Flags().Lookup("no-simulate"); f != nil && f.Changed {
		st.Simulate = false
	}
	return st, st.Validate()
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	st, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.DefaultLogger(st.LogDev)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("run_id", uuid.NewString()))

	printConfig(st)

	client, err := core.Dial(ctx, st)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &session{st: st, log: log, reg: reg, client: client}, nil
}

func printConfig(st config.Settings) {
	fmt.Println("=== CONFIG (.env) ===")
	fmt.Println("RPC_URL           :", st.RPCURL)
	fmt.Println("CHAIN_ID          :", st.ChainID.String())
	fmt.Println("RELAY_URL         :", st.RelayURL)
	fmt.Println("PRIVATE_KEY       :", maskHex(st.PrivateKeyHex))
	if st.FlashbotsAuthPKHex != "" {
		fmt.Println("FLASHBOTS_AUTH_PK :", maskHex(st.FlashbotsAuthPKHex))
	}
	fmt.Println("Recipient         :", st.Recipient.Hex())
	fmt.Println("Value             :", formatEther(st.ValueWei), "ETH")
	fmt.Println("Max attempts      :", st.MaxAttempts)
	fmt.Println("Nonce mode        :", st.NonceMode)
	fmt.Println("Target mode       :", st.TargetMode)
	fmt.Println("=====================")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx = logging.WithLogger(ctx, s.log)
	p := core.ParamsFromSettings(s.st)
	p.Metrics = metrics.NewMetrics(s.reg)

	if s.st.MetricsAddr != "" {
		srv := serveMetrics(s.st.MetricsAddr, s.reg, s.log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	res, err := core.Run(ctx, s.client, p)
	return reportResult(cmd.OutOrStdout(), res, err)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	ctx = logging.WithLogger(ctx, s.log)
	rep, err := core.Simulate(ctx, s.client, core.ParamsFromSettings(s.st), head)
	if err != nil {
		return err
	}
	for i, raw := range rep.RawTxs {
		fmt.Printf("tx%d: %s\n", i, raw)
	}
	if rep.Result != nil && !rep.Result.OK {
		return errors.New("simulation reverted: " + rep.Result.Error)
	}
	fmt.Println("[SIM] ok for block", rep.TargetBlock)
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

// reportResult prints the outcome and returns an error only for a fatal run.
func reportResult(w io.Writer, res core.Result, err error) error {
	printResult(w, res)
	if res.Status != core.StatusFatal {
		return nil
	}
	if err == nil {
		err = errors.New(res.Reason)
	}
	return err
}

func printResult(w io.Writer, res core.Result) {
	fmt.Fprintln(w, "[RESULT] status:", res.Status, "included:", res.Included, "reason:", res.Reason)
	if res.Status != core.StatusIncluded {
		return
	}
	fmt.Fprintln(w, "  block  :", res.TargetBlock)
	fmt.Fprintln(w, "  bundle :", res.BundleHash.Hex())
	for i, h := range res.TxHashes {
		fmt.Fprintf(w, "  tx%d    : %s\n", i, h.Hex())
	}
}
