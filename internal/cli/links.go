package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// edgeFilterFlags select relationships by type, category and thresholds.
type edgeFilterFlags struct {
	relTypes      []string
	categories    []string
	minWeight     float64
	minConfidence float64
	limit         int
}

func (f *edgeFilterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.relTypes, "type", nil, "relationship types to follow (repeatable or comma-separated)")
	fs.StringSliceVar(&f.categories, "category", nil, "relationship categories to follow (repeatable or comma-separated)")
	fs.Float64Var(&f.minWeight, "min-weight", 0, "minimum edge weight")
	fs.Float64Var(&f.minConfidence, "min-confidence", 0, "minimum edge confidence")
}

// parse resolves the type and category names.
func (f *edgeFilterFlags) parse() ([]types.RelationshipType, []types.RelationshipCategory, error) {
	var rts []types.RelationshipType
	for _, s := range f.relTypes {
		rt, err := types.ParseRelationshipType(s)
		if err != nil {
			return nil, nil, err
		}
		rts = append(rts, rt)
	}
	var cats []types.RelationshipCategory
	for _, s := range f.categories {
		c, err := types.ParseRelationshipCategory(s)
		if err != nil {
			return nil, nil, err
		}
		cats = append(cats, c)
	}
	return rts, cats, nil
}

func (f *edgeFilterFlags) relationshipFilter() (types.RelationshipFilter, error) {
	rts, cats, err := f.parse()
	if err != nil {
		return types.RelationshipFilter{}, err
	}
	return types.RelationshipFilter{
		Types:         rts,
		Categories:    cats,
		MinWeight:     f.minWeight,
		MinConfidence: f.minConfidence,
		Limit:         f.limit,
	}, nil
}

func (a *app) newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage relationships between symbols",
	}
	cmd.AddCommand(
		a.newLinkCreateCmd(),
		a.newLinkDeleteCmd(),
		a.newLinkGetCmd(),
		a.newLinkListCmd("out", "List outgoing relationships of a symbol", types.Store.GetOutgoing),
		a.newLinkListCmd("in", "List incoming relationships of a symbol", types.Store.GetIncoming),
		a.newLinkRelatedCmd(),
		a.newLinkBatchCmd(),
	)
	return cmd
}

func (a *app) newLinkCreateCmd() *cobra.Command {
	var (
		weight, confidence float64
		bidirectional      bool
		evidence, author   string
		props              []string
	)
	cmd := &cobra.Command{
		Use:   "create <from> <type> <to>",
		Short: "Create a typed relationship",
		Long: `Create stores a directed edge from one symbol to another. With
--bidirectional the inverse edge (or the mirror edge for symmetric types) is
created in the same transaction.

Properties are key=value pairs; values that parse as JSON keep their type.

Example:
  symstore link create 'Ξ.C.ACME' OWNS 'Ξ.A.PLANT' --weight 0.8 --bidirectional
  symstore link create 'Ξ.E.LAUNCH' PRECEDES 'Ξ.E.REVIEW' --property source=roadmap`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := types.ParseRelationshipType(args[1])
			if err != nil {
				return err
			}
			properties, err := parseKeyValues(props)
			if err != nil {
				return err
			}
			req := types.RelationshipRequest{
				FromSymbolID:  args[0],
				ToSymbolID:    args[2],
				Type:          rt,
				Bidirectional: bidirectional,
				Properties:    properties,
				Evidence:      evidence,
				CreatedBy:     author,
			}
			if cmd.Flags().Changed("weight") {
				req.Weight = &weight
			}
			if cmd.Flags().Changed("confidence") {
				req.Confidence = &confidence
			}

			return a.withStore(func(s types.Store) error {
				res, err := s.CreateRelationship(req)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					return writeCreatedEdge(w, res)
				})
			})
		},
	}
	fs := cmd.Flags()
	fs.Float64Var(&weight, "weight", types.DefaultWeight, "edge weight in [0, 1]")
	fs.Float64Var(&confidence, "confidence", types.DefaultConfidence, "edge confidence in [0, 1]")
	fs.BoolVar(&bidirectional, "bidirectional", false, "also create the inverse edge")
	fs.StringVar(&evidence, "evidence", "", "supporting evidence")
	fs.StringVar(&author, "author", "", "creator recorded on the edge")
	fs.StringArrayVarP(&props, "property", "p", nil, "edge property key=value (repeatable)")
	return cmd
}

func (a *app) newLinkBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file|->",
		Short: "Create relationships from a JSON array, all or none",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []types.RelationshipRequest
			if err := decodeInput(cmd, args[0], &reqs); err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				results, err := s.CreateRelationshipsBatch(reqs)
				if err != nil {
					return err
				}
				return a.render(cmd, results, func(w io.Writer) error {
					for _, res := range results {
						if err := writeCreatedEdge(w, res); err != nil {
							return err
						}
					}
					_, err := fmt.Fprintf(w, "%d relationships created\n", len(results))
					return err
				})
			})
		},
	}
}

func (a *app) newLinkDeleteCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "delete <relationship-id>",
		Short: "Delete a relationship",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				if err := s.DeleteRelationship(args[0], actor); err != nil {
					return err
				}
				out := map[string]any{"relationship_id": args[0], "deleted": true}
				return a.render(cmd, out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted relationship %s\n", args[0])
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor recorded in the audit log")
	return cmd
}

func (a *app) newLinkGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <relationship-id>",
		Short: "Show a relationship",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				rel, err := s.GetRelationship(args[0])
				if err != nil {
					return err
				}
				return a.render(cmd, rel, func(w io.Writer) error {
					return writeEdges(w, []*types.Relationship{rel})
				})
			})
		},
	}
}

// edgeQuery is GetOutgoing or GetIncoming as a method expression.
type edgeQuery func(types.Store, string, types.RelationshipFilter) ([]*types.Relationship, error)

func (a *app) newLinkListCmd(use, short string, query edgeQuery) *cobra.Command {
	var ff edgeFilterFlags
	cmd := &cobra.Command{
		Use:   use + " <symbol-id>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.relationshipFilter()
			if err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				rels, err := query(s, args[0], filter)
				if err != nil {
					return err
				}
				return a.render(cmd, rels, func(w io.Writer) error {
					return writeEdges(w, rels)
				})
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&ff.limit, "limit", 0, "maximum relationships (0 for no limit)")
	return cmd
}

func (a *app) newLinkRelatedCmd() *cobra.Command {
	var ff edgeFilterFlags
	cmd := &cobra.Command{
		Use:   "related <symbol-id>",
		Short: "Show both edge directions of a symbol with per-type counts",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.relationshipFilter()
			if err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				res, err := s.GetRelated(args[0], filter)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					fmt.Fprintf(w, "Outgoing (%d):\n", len(res.Outgoing))
					if err := writeEdges(w, res.Outgoing); err != nil {
						return err
					}
					fmt.Fprintf(w, "Incoming (%d):\n", len(res.Incoming))
					if err := writeEdges(w, res.Incoming); err != nil {
						return err
					}
					return writeTypeCounts(w, res.TypeCounts)
				})
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&ff.limit, "limit", 0, "maximum relationships per direction (0 for no limit)")
	return cmd
}

func writeCreatedEdge(w io.Writer, res *types.CreateRelationshipResult) error {
	if res.InverseID != "" {
		_, err := fmt.Fprintf(w, "Created relationship %s (inverse %s)\n", res.RelationshipID, res.InverseID)
		return err
	}
	_, err := fmt.Fprintf(w, "Created relationship %s\n", res.RelationshipID)
	return err
}

func writeEdges(w io.Writer, rels []*types.Relationship) error {
	if len(rels) == 0 {
		_, err := fmt.Fprintln(w, "  (none)")
		return err
	}
	rows := make([][]string, 0, len(rels))
	for _, r := range rels {
		rows = append(rows, []string{
			r.ID, r.FromSymbolID, string(r.Type), r.ToSymbolID,
			formatFloat(r.Weight), formatFloat(r.Confidence),
		})
	}
	return table(w, []string{"ID", "FROM", "TYPE", "TO", "WEIGHT", "CONFIDENCE"}, rows)
}

func writeTypeCounts[K ~string](w io.Writer, counts map[K]int) error {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{string(k), fmt.Sprint(counts[k])})
	}
	return table(w, []string{"TYPE", "COUNT"}, rows)
}
