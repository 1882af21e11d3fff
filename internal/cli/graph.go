package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// traversalFlags extend the edge filter with depth and direction.
type traversalFlags struct {
	edgeFilterFlags
	depth    int
	outgoing bool
}

func (f *traversalFlags) register(cmd *cobra.Command, defLimit int) {
	f.edgeFilterFlags.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&f.depth, "depth", types.DefaultMaxDepth, fmt.Sprintf("maximum hops (max %d)", types.MaxTraversalDepth))
	fs.BoolVar(&f.outgoing, "outgoing", false, "follow edges in their stored direction only")
	fs.IntVar(&f.limit, "limit", defLimit, "maximum results")
}

func (f *traversalFlags) filter() (types.TraversalFilter, error) {
	rts, cats, err := f.parse()
	if err != nil {
		return types.TraversalFilter{}, err
	}
	return types.TraversalFilter{
		MaxDepth:      f.depth,
		MinWeight:     f.minWeight,
		MinConfidence: f.minConfidence,
		Types:         rts,
		Categories:    cats,
		OutgoingOnly:  f.outgoing,
		Limit:         f.limit,
	}, nil
}

func (a *app) newNeighborhoodCmd() *cobra.Command {
	var (
		tf        traversalFlags
		withPaths bool
	)
	cmd := &cobra.Command{
		Use:   "neighborhood <symbol-id>",
		Short: "Symbols reachable within a number of hops",
		Long: `Neighborhood walks the graph breadth-first from a symbol. Each reachable
symbol is reported once, at its minimum depth, with the cumulative weight of
the heaviest path at that depth.

Example:
  symstore neighborhood 'Ξ.C.ACME' --depth 3 --category OWNERSHIP --paths`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := tf.filter()
			if err != nil {
				return err
			}
			opts := types.NeighborhoodOptions{TraversalFilter: filter, IncludePaths: withPaths}
			return a.withStore(func(s types.Store) error {
				n, err := s.GetNeighborhood(args[0], opts)
				if err != nil {
					return err
				}
				return a.render(cmd, n, func(w io.Writer) error {
					return writeNeighborhood(w, n)
				})
			})
		},
	}
	tf.register(cmd, types.DefaultNeighborhoodLimit)
	cmd.Flags().BoolVar(&withPaths, "paths", false, "include the path to each node")
	return cmd
}

func (a *app) newPathsCmd() *cobra.Command {
	var tf traversalFlags
	cmd := &cobra.Command{
		Use:   "paths <from> <to>",
		Short: "Simple paths between two symbols, shortest first",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := tf.filter()
			if err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				res, err := s.FindPaths(args[0], args[1], filter)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					if !res.Found {
						_, err := fmt.Fprintf(w, "No path from %s to %s\n", res.From, res.To)
						return err
					}
					for _, p := range res.Paths {
						if err := writePath(w, p); err != nil {
							return err
						}
					}
					if res.Truncated {
						_, err := fmt.Fprintln(w, "Search truncated; longer paths may be missing")
						return err
					}
					return nil
				})
			})
		},
	}
	tf.register(cmd, types.DefaultPathLimit)
	return cmd
}

func (a *app) newShortestCmd() *cobra.Command {
	var tf traversalFlags
	cmd := &cobra.Command{
		Use:   "shortest <from> <to>",
		Short: "The shortest path between two symbols",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := tf.filter()
			if err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				p, err := s.FindShortestPath(args[0], args[1], filter)
				if err != nil {
					return err
				}
				return a.render(cmd, p, func(w io.Writer) error {
					if p == nil {
						_, err := fmt.Fprintf(w, "No path from %s to %s\n", args[0], args[1])
						return err
					}
					return writePath(w, p)
				})
			})
		},
	}
	tf.register(cmd, 1)
	_ = cmd.Flags().MarkHidden("limit")
	return cmd
}

func (a *app) newCentralityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "centrality",
		Short: "Symbols ranked by degree centrality",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s types.Store) error {
				scores, err := s.GetTopByCentrality(limit)
				if err != nil {
					return err
				}
				return a.render(cmd, scores, func(w io.Writer) error {
					if len(scores) == 0 {
						_, err := fmt.Fprintln(w, "No relationships stored")
						return err
					}
					rows := make([][]string, 0, len(scores))
					for _, sc := range scores {
						rows = append(rows, []string{
							sc.SymbolID,
							strconv.Itoa(sc.InDegree), strconv.Itoa(sc.OutDegree), strconv.Itoa(sc.TotalDegree),
							formatFloat(sc.WeightedDegree),
						})
					}
					return table(w, []string{"SYMBOL", "IN", "OUT", "TOTAL", "WEIGHTED"}, rows)
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of symbols")
	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Graph size, degree and density",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s types.Store) error {
				st, err := s.GetGraphStats()
				if err != nil {
					return err
				}
				return a.render(cmd, st, func(w io.Writer) error {
					fmt.Fprintf(w, "Nodes:          %d\n", st.NodeCount)
					fmt.Fprintf(w, "Edges:          %d\n", st.EdgeCount)
					fmt.Fprintf(w, "Average degree: %s\n", formatFloat(st.AverageDegree))
					fmt.Fprintf(w, "Density:        %s\n", formatFloat(st.Density))
					if err := writeTypeCounts(w, st.EdgesByType); err != nil {
						return err
					}
					return writeTypeCounts(w, st.EdgesByCategory)
				})
			})
		},
	}
}

func writeNeighborhood(w io.Writer, n *types.Neighborhood) error {
	fmt.Fprintf(w, "Neighborhood of %s: %d nodes", n.Root, n.Stats.TotalNodes)
	if n.Stats.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
	if len(n.Nodes) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		row := []string{
			node.SymbolID,
			strconv.Itoa(node.Depth),
			formatFloat(node.CumulativeWeight),
			string(node.Via),
		}
		if len(node.Path) > 0 {
			row = append(row, strings.Join(node.Path, " > "))
		}
		rows = append(rows, row)
	}
	return table(w, []string{"SYMBOL", "DEPTH", "WEIGHT", "VIA", "PATH"}, rows)
}

func writePath(w io.Writer, p *types.Path) error {
	var b strings.Builder
	b.WriteString(p.Nodes[0])
	for i, rt := range p.Types {
		fmt.Fprintf(&b, " -[%s]-> %s", rt, p.Nodes[i+1])
	}
	_, err := fmt.Fprintf(w, "%s  (hops %d, weight %s, min confidence %s)\n",
		b.String(), p.Hops(), formatFloat(p.TotalWeight), formatFloat(p.MinConfidence))
	return err
}
