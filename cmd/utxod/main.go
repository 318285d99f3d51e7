// main.go - Command line front end of the ledger node.
//
// Every command opens the configured database, loads the current state when
// it needs one, and saves the state, its JSON export and the metrics after a
// successful change.
//
// Usage:
//
//	utxod generate-key-pair
//	utxod create-state --owner 0x.. --value 100
//	utxod process-transaction --signer 0x.. --tx-path tx.json
//	utxod prove --signer 0x.. --tx-path tx.json
//	utxod verify --proof-path data/proof.json

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"zkutxo/internal/advice"
	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/prover"
	"zkutxo/internal/store"
	"zkutxo/internal/utxo"
)

const version = "0.1.0"

func main() {
	a := &app{out: os.Stdout}
	err := newRootCmd(a).Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}

// app holds what every command shares once the config is loaded.
type app struct {
	out     io.Writer
	cfg     *Config
	log     *Logger
	metrics *Metrics
	db      *store.DB
}

func newRootCmd(a *app) *cobra.Command {
	var configPath, logLevel string
	root := &cobra.Command{
		Use:          "utxod",
		Short:        "Merkle-committed UTXO ledger with lattice signatures and transition proofs",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(configPath, logLevel)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		a.generateKeyPairCmd(),
		a.createStateCmd(),
		a.insertCmd(),
		a.processTransactionCmd(),
		a.signCmd(),
		a.proveCmd(),
		a.verifyCmd(),
		a.rootCmd(),
		a.healthCmd(),
	)
	return root
}

func (a *app) open(configPath, logLevel string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.ResolvePaths()
	a.cfg = cfg

	auditPath := ""
	if cfg.EnableAudit {
		auditPath = cfg.AuditLogPath
	}
	if a.log, err = NewLogger(cfg.LogLevel, cfg.LogFile, auditPath); err != nil {
		return err
	}
	a.metrics = NewMetrics()

	if a.db, err = store.Open(cfg.DBPath); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.log.Debug().Str("db", cfg.DBPath).Msg("database opened")
	return nil
}

func (a *app) close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
	}
	if a.log != nil {
		if cerr := a.log.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// loadState returns the current state; it is an error if none was created.
func (a *app) loadState() (*utxo.State, error) {
	s, ok, err := a.db.LoadState()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no state in %s: run create-state first", a.db.Path())
	}
	return s, nil
}

// saveState persists s, exports it as JSON and flushes the metrics.
func (a *app) saveState(s *utxo.State, event string) error {
	if err := a.db.SaveState(s); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if a.cfg.StateExportPath != "" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.StateExportPath), 0o755); err != nil {
			return err
		}
		if err := s.SaveToFile(a.cfg.StateExportPath); err != nil {
			return fmt.Errorf("failed to export state: %w", err)
		}
	}
	root := s.Root().String()
	a.log.Audit(event, map[string]any{"root": root, "utxos": s.Len()})
	a.log.Info().Str("root", root).Int("utxos", s.Len()).Msg(event)
	a.metrics.SetUtxoCount(s.Len())
	a.flushMetrics()
	return nil
}

// flushMetrics only warns: metrics never fail a command.
func (a *app) flushMetrics() {
	if err := a.metrics.Flush(a.cfg.MetricsPath); err != nil {
		a.log.Warn().Err(err).Msg("failed to write metrics")
	}
}

// key finds the key for owner in the database, then in the key directory.
func (a *app) key(owner string) (*utxo.Key, error) {
	w, err := field.WordFromHex(owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	k, ok, err := a.db.GetKey(w)
	if err != nil {
		return nil, err
	}
	if ok {
		return k, nil
	}
	k = new(utxo.Key)
	if err := utxo.LoadJSON(a.keyPath(w), k); err != nil {
		return nil, fmt.Errorf("no key for %s: %w", w, err)
	}
	return k, nil
}

func (a *app) keyPath(owner field.Word) string {
	return filepath.Join(a.cfg.KeyDir, owner.String()+".json")
}

// signedTx signs the transaction at txPath with signer's key.
func (a *app) signedTx(signer, txPath string) (*utxo.SignedTransaction, error) {
	k, err := a.key(signer)
	if err != nil {
		return nil, err
	}
	var tx utxo.Transaction
	if err := utxo.LoadJSON(txPath, &tx); err != nil {
		return nil, fmt.Errorf("failed to read transaction: %w", err)
	}
	return k.Sign(tx)
}

func (a *app) generateKeyPairCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "generate-key-pair",
		Short: "Generate a spending key and store it",
		Long: `Generate a spending key, write it to <key_dir>/<owner>.json and store it in
the database. With --seed the key is derived deterministically from the seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader
			if seed != "" {
				b, err := field.HexString(seed).Bytes()
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				r = falcon.NewSeededReader(b)
			}
			k, err := utxo.GenerateKey(r)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(a.cfg.KeyDir, 0o700); err != nil {
				return err
			}
			if err := utxo.SaveJSON(a.keyPath(k.Owner), k); err != nil {
				return fmt.Errorf("failed to write key: %w", err)
			}
			if err := a.db.PutKey(k); err != nil {
				return err
			}
			a.log.Audit("key generated", map[string]any{"owner": k.Owner.String()})
			fmt.Fprintln(a.out, k.Owner)
			return nil
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "hex seed for deterministic key generation")
	return cmd
}

// newOutput parses the --owner and --value pair of create-state and insert.
func newOutput(owner string, value uint64) (utxo.Utxo, error) {
	w, err := field.WordFromHex(owner)
	if err != nil {
		return utxo.Utxo{}, fmt.Errorf("owner: %w", err)
	}
	u, err := utxo.NewCheckedUtxo(w, value)
	if err != nil {
		return utxo.Utxo{}, fmt.Errorf("value: %w", err)
	}
	return u, nil
}

// utxoFlags registers --owner and --value.
func utxoFlags(cmd *cobra.Command, owner *string, value *uint64) {
	cmd.Flags().StringVar(owner, "owner", "", "owner word (hex)")
	cmd.Flags().Uint64Var(value, "value", 0, "output value")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("value")
}

func (a *app) createStateCmd() *cobra.Command {
	var (
		owner string
		value uint64
	)
	cmd := &cobra.Command{
		Use:   "create-state",
		Short: "Create a fresh state holding one genesis output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newOutput(owner, value)
			if err != nil {
				return err
			}
			s := utxo.NewState()
			if err := s.Insert(out); err != nil {
				return err
			}
			if err := a.saveState(s, "state created"); err != nil {
				return err
			}
			fmt.Fprintln(a.out, s.Root())
			return nil
		},
	}
	utxoFlags(cmd, &owner, &value)
	return cmd
}

func (a *app) insertCmd() *cobra.Command {
	var (
		owner string
		value uint64
	)
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert an output into the current state without spending anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newOutput(owner, value)
			if err != nil {
				return err
			}
			s, err := a.loadState()
			if err != nil {
				return err
			}
			if err := s.Insert(out); err != nil {
				return err
			}
			if err := a.saveState(s, "utxo inserted"); err != nil {
				return err
			}
			fmt.Fprintln(a.out, s.Root())
			return nil
		},
	}
	utxoFlags(cmd, &owner, &value)
	return cmd
}

// txFlags registers --signer and --tx-path.
func txFlags(cmd *cobra.Command, signer, txPath *string) {
	cmd.Flags().StringVar(signer, "signer", "", "owner word of the signing key (hex)")
	cmd.Flags().StringVar(txPath, "tx-path", "", "path to a transaction JSON file")
	_ = cmd.MarkFlagRequired("signer")
	_ = cmd.MarkFlagRequired("tx-path")
}

// spendFlags registers the two ways to hand in a spend: --signer with
// --tx-path signs here, --signed-tx-path takes the output of sign.
func spendFlags(cmd *cobra.Command, signer, txPath, signedPath *string) {
	cmd.Flags().StringVar(signer, "signer", "", "owner word of the signing key (hex)")
	cmd.Flags().StringVar(txPath, "tx-path", "", "path to a transaction JSON file")
	cmd.Flags().StringVar(signedPath, "signed-tx-path", "", "path to a signed transaction JSON file")
	cmd.MarkFlagsRequiredTogether("signer", "tx-path")
	cmd.MarkFlagsMutuallyExclusive("tx-path", "signed-tx-path")
	cmd.MarkFlagsOneRequired("tx-path", "signed-tx-path")
}

// spend returns the signed transaction named by the spendFlags.
func (a *app) spend(signer, txPath, signedPath string) (*utxo.SignedTransaction, error) {
	if signedPath == "" {
		return a.signedTx(signer, txPath)
	}
	stx := new(utxo.SignedTransaction)
	if err := utxo.LoadJSON(signedPath, stx); err != nil {
		return nil, fmt.Errorf("failed to read signed transaction: %w", err)
	}
	return stx, nil
}

func (a *app) processTransactionCmd() *cobra.Command {
	var signer, txPath, signedPath string
	cmd := &cobra.Command{
		Use:   "process-transaction",
		Short: "Apply a signed transaction to the current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadState()
			if err != nil {
				return err
			}
			stx, err := a.spend(signer, txPath, signedPath)
			if err != nil {
				return err
			}
			a.metrics.SetUtxoCount(s.Len())
			if err := s.ProcessTx(stx); err != nil {
				a.metrics.RecordTransaction("rejected")
				a.log.Audit("transaction rejected", map[string]any{
					"tx_hash": stx.Transaction.Hash().String(),
					"error":   err.Error(),
				})
				a.flushMetrics()
				return err
			}
			a.metrics.RecordTransaction("applied")
			if err := a.saveState(s, "transaction applied"); err != nil {
				return err
			}
			fmt.Fprintln(a.out, s.Root())
			return nil
		},
	}
	spendFlags(cmd, &signer, &txPath, &signedPath)
	return cmd
}

func (a *app) signCmd() *cobra.Command {
	var signer, txPath, out string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction and write the signed transaction JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stx, err := a.signedTx(signer, txPath)
			if err != nil {
				return err
			}
			if err := utxo.SaveJSON(out, stx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, stx.Transaction.Hash())
			return nil
		},
	}
	txFlags(cmd, &signer, &txPath)
	cmd.Flags().StringVar(&out, "out", "signed_tx.json", "output path")
	return cmd
}

func (a *app) engine() (*prover.Engine, error) {
	return prover.NewEngine(a.cfg.ProvingKeyPath, a.cfg.VerifyingKeyPath, prover.WithLogger(a.log.Logger))
}

func (a *app) proveCmd() *cobra.Command {
	var signer, txPath, signedPath, out string
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Prove a transaction against the current state without applying it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadState()
			if err != nil {
				return err
			}
			stx, err := a.spend(signer, txPath, signedPath)
			if err != nil {
				return err
			}

			// Dry run on a copy gives the root the proof must reach.
			a.metrics.SetUtxoCount(s.Len())
			dry := s.Clone()
			if err := dry.ProcessTx(stx); err != nil {
				a.metrics.RecordTransaction("rejected")
				a.flushMetrics()
				return err
			}
			host, err := advice.NewUtxoAdvice(s, stx)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(a.cfg.TimeoutSeconds)*time.Second)
			defer cancel()
			start := time.Now()
			po, err := e.Prove(ctx, prover.PrepareStackInputs(s, &stx.Transaction), host)
			if err != nil {
				return fmt.Errorf("prove: %w", err)
			}
			a.metrics.RecordProve(time.Since(start))
			if !po.NewRoot.Equal(dry.Root()) {
				return fmt.Errorf("proven root %s differs from state root %s", po.NewRoot, dry.Root())
			}

			if out == "" {
				out = a.cfg.ProofPath
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := utxo.SaveJSON(out, po); err != nil {
				return err
			}
			a.metrics.RecordTransaction("proven")
			a.log.Audit("transition proven", map[string]any{
				"tx_hash":  po.TxHash.String(),
				"old_root": po.OldRoot.String(),
				"new_root": po.NewRoot.String(),
			})
			a.flushMetrics()
			fmt.Fprintln(a.out, po.NewRoot)
			return nil
		},
	}
	spendFlags(cmd, &signer, &txPath, &signedPath)
	cmd.Flags().StringVar(&out, "out", "", "output path (default: proof_path from the config)")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var proofPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a proof written by prove",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if proofPath == "" {
				proofPath = a.cfg.ProofPath
			}
			var po prover.ProveOutput
			if err := utxo.LoadJSON(proofPath, &po); err != nil {
				return fmt.Errorf("failed to read proof: %w", err)
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			if err := e.Verify(&po); err != nil {
				return err
			}
			fmt.Fprint(a.out, verifyReport(&po))
			return nil
		},
	}
	cmd.Flags().StringVar(&proofPath, "proof-path", "", "proof file (default: proof_path from the config)")
	return cmd
}

// verifyReport describes a verified proof. Only the transaction hash and the
// owner are bound by the proof; the roots are what native execution reported
// when the proof was made.
func verifyReport(po *prover.ProveOutput) string {
	return fmt.Sprintf("ok tx %s signed by %s\nunproven roots %s -> %s\n",
		po.TxHash, po.Owner, po.OldRoot, po.NewRoot)
}

func (a *app) rootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Print the current root and the root history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadState()
			if err != nil {
				return err
			}
			roots, err := a.db.Roots()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, s.Root())
			for i, r := range roots {
				fmt.Fprintf(a.out, "%4d %s\n", i, r)
			}
			return nil
		},
	}
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database, the state and the proving keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := a.healthChecker().CheckHealth()
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(h); err != nil {
				return err
			}
			if h.OverallStatus == Unhealthy {
				return fmt.Errorf("node is unhealthy")
			}
			return nil
		},
	}
}

func (a *app) healthChecker() *HealthChecker {
	hc := NewHealthChecker(version)
	hc.RegisterComponent("database", func() error {
		_, err := a.db.Roots()
		return err
	})
	hc.RegisterComponent("state", func() error {
		s, ok, err := a.db.LoadState()
		if err != nil {
			return err
		}
		if !ok {
			return degraded("no state created")
		}
		roots, err := a.db.Roots()
		if err != nil {
			return err
		}
		if len(roots) == 0 || !roots[len(roots)-1].Equal(s.Root()) {
			return fmt.Errorf("state root %s is not the last recorded root", s.Root())
		}
		return nil
	})
	hc.RegisterComponent("proving_keys", func() error {
		for _, p := range []string{a.cfg.ProvingKeyPath, a.cfg.VerifyingKeyPath} {
			if _, err := os.Stat(p); err != nil {
				return degraded(fmt.Sprintf("%s missing: keys are set up on first prove", p))
			}
		}
		return nil
	})
	return hc
}
