package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/slotledger/internal/adapter/http/dto"
	postgresRepo "github.com/iho/slotledger/internal/adapter/repository/postgres"
	shmRepo "github.com/iho/slotledger/internal/adapter/repository/shm"
	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/infrastructure/postgres"
	"github.com/iho/slotledger/internal/infrastructure/shm"
	"github.com/iho/slotledger/internal/usecase"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "slotledger-cli",
		Short:         "SlotLedger CLI tool",
		Long:          `A command line interface for the SlotLedger API and its storage files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the SlotLedger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(statementCmd(), postCmd(), consistencyCmd(), inspectCmd(), reconcileCmd(), mirrorCmd())
	return rootCmd
}

// API commands

func statementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statement <account-id>",
		Short: "Print the statement of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := doRequest(cmd.Context(), http.MethodGet, "/clientes/"+args[0]+"/extrato", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("statement failed (status %d): %s", status, truncate(string(body), 200))
			}
			return printRaw(cmd.OutOrStdout(), body)
		},
	}
}

func postCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "post <account-id> <c|d> <amount> <description>",
		Short: "Post a credit or debit",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}

			payload, err := json.Marshal(map[string]any{
				"valor":     amount,
				"tipo":      args[1],
				"descricao": args[3],
			})
			if err != nil {
				return err
			}

			headers := map[string]string{}
			if key != "" {
				headers["Idempotency-Key"] = key
			}

			body, status, err := doRequest(cmd.Context(), http.MethodPost, "/clientes/"+args[0]+"/transacoes", payload, headers)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("post failed (status %d): %s", status, truncate(string(body), 200))
			}
			return printRaw(cmd.OutOrStdout(), body)
		},
	}

	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key sent with the request")
	return cmd
}

func consistencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency through the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := doRequest(cmd.Context(), http.MethodGet, "/ledger/consistency", nil)
			if err != nil {
				return err
			}

			var result struct {
				Status     string `json:"status"`
				Consistent bool   `json:"consistent"`
				Accounts   int    `json:"accounts"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("failed to parse response (status %d): %w", status, err)
			}

			out := cmd.OutOrStdout()
			if status != http.StatusOK {
				fmt.Fprintf(out, "Consistency check FAILED (Status: %d)\nResponse: %s\n", status, truncate(string(body), 500))
				return fmt.Errorf("ledger is %s", result.Status)
			}

			fmt.Fprintf(out, "Consistency check PASSED\n")
			fmt.Fprintf(out, "Accounts: %d\n", result.Accounts)
			fmt.Fprintf(out, "Status: %s\n", result.Status)
			return nil
		},
	}
}

// Storage commands

func inspectCmd() *cobra.Command {
	var (
		path    string
		account int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print accounts and recent transactions from ledger files",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := shmRepo.Attach(path, shm.DefaultLockConfig())
			if err != nil {
				return fmt.Errorf("failed to attach %s: %w", path, err)
			}
			defer engine.Close()

			return inspect(cmd.Context(), cmd.OutOrStdout(), engine, account)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Directory holding the ledger region files")
	cmd.Flags().IntVar(&account, "account", 0, "Also list the recent transactions of this account")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func inspect(ctx context.Context, out io.Writer, engine *shmRepo.Engine, account int) error {
	accounts, err := engine.Accounts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBALANCE\tLIMIT\tAVAILABLE\tLOCKED")
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%v\n",
			acc.ID,
			domain.FormatCents(acc.Balance),
			domain.FormatCents(acc.Limit),
			domain.FormatCents(acc.Available()),
			acc.Locked,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if account == 0 {
		return nil
	}

	recent, err := engine.RecentTransactions(ctx, account, shmRepo.MaxRecentTransactions)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRecent transactions of account %d:\n", account)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tAMOUNT\tDESCRIPTION\tAT")
	for _, t := range recent {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.Kind, domain.FormatCents(t.Amount), t.Description, t.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func reconcileCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay every transaction log against its stored balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := shmRepo.Attach(path, shm.DefaultLockConfig())
			if err != nil {
				return fmt.Errorf("failed to attach %s: %w", path, err)
			}
			defer engine.Close()

			report, err := usecase.NewReconciliationUseCase(engine).GenerateReconciliationReport(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reconciled %d of %d accounts\n", report.ReconciledAccounts, report.TotalAccounts)
			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "account %d: recorded=%s calculated=%s difference=%s\n",
					d.AccountID,
					d.RecordedBalance.StringFixed(2),
					d.CalculatedBalance.StringFixed(2),
					d.Difference.StringFixed(2),
				)
			}
			if !report.Consistent() {
				return fmt.Errorf("%d accounts do not reconcile", len(report.Discrepancies))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Directory holding the ledger region files")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func mirrorCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "mirror <account-id>",
		Short: "Print an account statement from the Postgres mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id %q: %w", args[0], err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := postgres.NewPool(ctx, databaseURL, 2, 1)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := zerolog.Nop()
			repo := postgresRepo.NewMirrorRepository(pool, postgresRepo.NewRetrier(log), log)
			statement, err := repo.Statement(ctx, id, shmRepo.MaxRecentTransactions)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.StatementFromDomain(statement))
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("MIRROR_DATABASE_URL"), "Postgres URL of the mirror")
	return cmd
}

func doRequest(ctx context.Context, method, path string, payload []byte, headers ...map[string]string) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

func printRaw(w io.Writer, body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		_, err := fmt.Fprintln(w, string(body))
		return err
	}
	return printJSON(w, v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
