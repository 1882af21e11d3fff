package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/symbols/pkg/sqlite"
	"github.com/mesh-intelligence/symbols/pkg/types"
)

func (a *app) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read and append audit log entries",
	}
	cmd.AddCommand(a.newAuditRecentCmd(), a.newAuditSymbolCmd(), a.newAuditRecordCmd())
	return cmd
}

func (a *app) newAuditRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Most recent audit entries, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s types.Store) error {
				entries, err := s.GetRecentAuditEntries(limit)
				if err != nil {
					return err
				}
				return a.renderAudit(cmd, entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", types.DefaultAuditLimit, "maximum entries (max 1000)")
	return cmd
}

func (a *app) newAuditSymbolCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "symbol <symbol-id>",
		Short: "Audit entries for one symbol, newest first",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				entries, err := s.GetAuditForSymbol(args[0], limit)
				if err != nil {
					return err
				}
				return a.renderAudit(cmd, entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", types.DefaultAuditLimit, "maximum entries (max 1000)")
	return cmd
}

func (a *app) newAuditRecordCmd() *cobra.Command {
	var (
		event, symbolID, outcome, actor string
		risk                            int
		violations, details             []string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append an audit entry",
		Long: `Record appends an externally produced event, such as a format validation
or security finding, to the audit log.

Example:
  symstore audit record --event SECURITY_VIOLATION --symbol 'Ξ.C.ACME' \
    --risk 70 --violation "prompt injection" --detail scanner=v2`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			detailMap, err := parseKeyValues(details)
			if err != nil {
				return err
			}
			entry := types.AuditEntry{
				EventType:  types.AuditEventType(strings.ToUpper(event)),
				SymbolID:   symbolID,
				Outcome:    outcome,
				Actor:      actor,
				Details:    detailMap,
				Violations: violations,
			}
			if cmd.Flags().Changed("risk") {
				entry.RiskScore = &risk
			}
			return a.withStore(func(s types.Store) error {
				id, err := s.InsertAuditEntry(entry)
				if err != nil {
					return err
				}
				out := map[string]any{"id": id}
				return a.render(cmd, out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Recorded audit entry %d\n", id)
					return err
				})
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&event, "event", "", "event type, e.g. FORMAT_VALIDATION")
	fs.StringVar(&symbolID, "symbol", "", "symbol the event concerns")
	fs.StringVar(&outcome, "outcome", types.OutcomeSuccess, "success, rejected or failed")
	fs.StringVar(&actor, "actor", "", "actor")
	fs.IntVar(&risk, "risk", 0, "risk score in [0, 100]")
	fs.StringArrayVar(&violations, "violation", nil, "violation (repeatable)")
	fs.StringArrayVar(&details, "detail", nil, "detail key=value (repeatable)")
	return cmd
}

func (a *app) renderAudit(cmd *cobra.Command, entries []types.AuditEntry) error {
	return a.render(cmd, entries, func(w io.Writer) error {
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "No audit entries")
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			risk := "-"
			if e.RiskScore != nil {
				risk = strconv.Itoa(*e.RiskScore)
			}
			rows = append(rows, []string{
				strconv.FormatInt(e.ID, 10),
				formatTime(e.Timestamp),
				string(e.EventType),
				e.Outcome,
				orDash(e.SymbolID),
				orDash(e.Actor),
				risk,
			})
		}
		return table(w, []string{"ID", "TIME", "EVENT", "OUTCOME", "SYMBOL", "ACTOR", "RISK"}, rows)
	})
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify content hashes, the search index and edge references",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s types.Store) error {
				report, err := s.CheckIntegrity()
				if err != nil {
					return err
				}
				err = a.render(cmd, report, func(w io.Writer) error {
					fmt.Fprintf(w, "Checked %d symbols and %d relationships\n", report.SymbolsChecked, report.RelationshipsSeen)
					if report.OK {
						_, err := fmt.Fprintln(w, "OK")
						return err
					}
					for _, p := range report.Problems {
						fmt.Fprintf(w, "  - %s\n", p)
					}
					return nil
				})
				if err != nil {
					return err
				}
				if !report.OK {
					return fmt.Errorf("%w: %d", errIntegrity, len(report.Problems))
				}
				return nil
			})
		},
	}
}

func (a *app) newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Rebuild the search index and compact the database",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s types.Store) error {
				if err := s.Optimize(); err != nil {
					return err
				}
				return a.render(cmd, map[string]any{"optimized": true}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, "Optimized")
					return err
				})
			})
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every symbol and relationship to a snapshot directory",
		Long: `Export writes manifest.json, symbols.jsonl and relationships.jsonl into dir,
creating it if needed. Existing snapshot files are replaced.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				snap, err := s.ExportAll()
				if err != nil {
					return err
				}
				if err := sqlite.WriteSnapshot(args[0], snap); err != nil {
					return err
				}
				out := map[string]any{
					"dir":           args[0],
					"symbols":       len(snap.Symbols),
					"relationships": len(snap.Relationships),
				}
				return a.render(cmd, out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Exported %d symbols and %d relationships to %s\n",
						len(snap.Symbols), len(snap.Relationships), args[0])
					return err
				})
			})
		},
	}
}

func (a *app) newImportCmd() *cobra.Command {
	var opts types.ImportOptions
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Load a snapshot directory written by export",
		Long: `Import loads a snapshot in one transaction. Symbols and relationships
whose ids already exist are skipped unless --replace empties the store first.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := sqlite.ReadSnapshot(args[0])
			if errors.Is(err, os.ErrNotExist) {
				return usageErrorf("import: %v", err)
			}
			if err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				res, err := s.ImportAll(snap, opts)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Imported %d symbols (%d skipped) and %d relationships (%d skipped)\n",
						res.SymbolsImported, res.SymbolsSkipped, res.RelationshipsImported, res.RelationshipsSkipped)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "remove existing symbols and relationships first")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "actor recorded in the audit log")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
