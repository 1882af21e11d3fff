package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// symbolFlags are the content flags shared by create and update.
type symbolFlags struct {
	who, what, why, where, when string
	intent, focus, parent       string
	epistemic                   string

	steps, constraints     []string
	requirements, antiReqs []string
	keyTerms, tags         []string
}

func (f *symbolFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.who, "who", "", "who the directive concerns")
	fs.StringVar(&f.what, "what", "", "what is to be done")
	fs.StringVar(&f.why, "why", "", "purpose")
	fs.StringVar(&f.where, "where", "", "scope or location")
	fs.StringVar(&f.when, "when", "", "timing")
	fs.StringVar(&f.intent, "intent", "", "commander's intent (max 1000 characters)")
	fs.StringVar(&f.focus, "focus", "", "how: focus")
	fs.StringArrayVar(&f.steps, "step", nil, "how: step (repeatable, in order)")
	fs.StringArrayVar(&f.constraints, "constraint", nil, "how: constraint (repeatable)")
	fs.StringArrayVar(&f.requirements, "requirement", nil, "requirement (repeatable)")
	fs.StringArrayVar(&f.antiReqs, "anti-requirement", nil, "anti-requirement (repeatable)")
	fs.StringArrayVar(&f.keyTerms, "key-term", nil, "key term (repeatable)")
	fs.StringSliceVar(&f.tags, "tag", nil, "tag (repeatable or comma-separated)")
	fs.StringVar(&f.parent, "parent", "", "parent symbol id")
	fs.StringVar(&f.epistemic, "epistemic", "", "epistemic metadata as a JSON document")
}

// applyCreate copies every flag the user set onto req.
func (f *symbolFlags) applyCreate(cmd *cobra.Command, req *types.CreateSymbolRequest) {
	changed := cmd.Flags().Changed
	setIf := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	setIf("who", &req.Who, f.who)
	setIf("what", &req.What, f.what)
	setIf("why", &req.Why, f.why)
	setIf("where", &req.Where, f.where)
	setIf("when", &req.When, f.when)
	setIf("intent", &req.CommandersIntent, f.intent)
	setIf("parent", &req.ParentSymbol, f.parent)
	if changed("requirement") {
		req.Requirements = f.requirements
	}
	if changed("anti-requirement") {
		req.AntiRequirements = f.antiReqs
	}
	if changed("key-term") {
		req.KeyTerms = f.keyTerms
	}
	if changed("tag") {
		req.Tags = f.tags
	}
	if changed("epistemic") {
		req.Epistemic = json.RawMessage(f.epistemic)
	}
	if changed("focus") || changed("step") || changed("constraint") {
		if req.How == nil {
			req.How = &types.How{}
		}
		setIf("focus", &req.How.Focus, f.focus)
		if changed("step") {
			req.How.Steps = f.steps
		}
		if changed("constraint") {
			req.How.Constraints = f.constraints
		}
	}
}

// changes builds a SymbolChanges holding only the flags the user set.
func (f *symbolFlags) changes(cmd *cobra.Command, c *types.SymbolChanges) {
	changed := cmd.Flags().Changed
	str := func(name string, v string) *string {
		if !changed(name) {
			return nil
		}
		return &v
	}
	list := func(name string, v []string) *[]string {
		if !changed(name) {
			return nil
		}
		return &v
	}
	pick(&c.Who, str("who", f.who))
	pick(&c.What, str("what", f.what))
	pick(&c.Why, str("why", f.why))
	pick(&c.Where, str("where", f.where))
	pick(&c.When, str("when", f.when))
	pick(&c.CommandersIntent, str("intent", f.intent))
	pick(&c.ParentSymbol, str("parent", f.parent))
	pick(&c.Requirements, list("requirement", f.requirements))
	pick(&c.AntiRequirements, list("anti-requirement", f.antiReqs))
	pick(&c.KeyTerms, list("key-term", f.keyTerms))
	pick(&c.Tags, list("tag", f.tags))
	if changed("epistemic") {
		raw := json.RawMessage(f.epistemic)
		c.Epistemic = &raw
	}
	if changed("focus") || changed("step") || changed("constraint") {
		if c.How == nil {
			c.How = &types.HowChanges{}
		}
		pick(&c.How.Focus, str("focus", f.focus))
		pick(&c.How.Steps, list("step", f.steps))
		pick(&c.How.Constraints, list("constraint", f.constraints))
	}
}

// pick overwrites *dst when v is set, so flags win over a --file document.
func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func (a *app) newCreateCmd() *cobra.Command {
	var (
		sf     symbolFlags
		file   string
		author string
	)
	cmd := &cobra.Command{
		Use:   "create [symbol-id]",
		Short: "Create a symbol at version 1",
		Long: `Create validates and stores a new symbol. Content comes from flags, from a
JSON document given with --file (use - for stdin), or both; flags win.

Example:
  symstore create 'Ξ.C.WIDGETCO' --what "Ship the Q3 release" --tag release
  symstore create --file symbol.json`,
		Args: wrapArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req types.CreateSymbolRequest
			if file != "" {
				if err := decodeInput(cmd, file, &req); err != nil {
					return err
				}
			}
			if len(args) == 1 {
				req.SymbolID = args[0]
			}
			if req.SymbolID == "" {
				return usageErrorf("create: a symbol id is required")
			}
			sf.applyCreate(cmd, &req)
			if author != "" {
				req.CreatedBy = author
			}

			return a.withStore(func(s types.Store) error {
				res, err := s.Create(req)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Created %s (version %d, hash %s)\n", res.SymbolID, res.Version, res.ContentHash)
					return err
				})
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the symbol from a JSON file (- for stdin)")
	cmd.Flags().StringVar(&author, "author", "", "creator recorded on the symbol")
	return cmd
}

func (a *app) newGetCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "get <symbol-id>",
		Short: "Show a symbol",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				sym, err := s.Get(args[0], version)
				if err != nil {
					return err
				}
				return a.render(cmd, sym, func(w io.Writer) error {
					return writeSymbol(w, sym)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "require this current version")
	return cmd
}

func (a *app) newUpdateCmd() *cobra.Command {
	var (
		sf          symbolFlags
		file        string
		description string
		author      string
	)
	cmd := &cobra.Command{
		Use:   "update <symbol-id>",
		Short: "Update a symbol and bump its version",
		Long: `Update merges the given fields into the current version of a symbol. Only
flags that are set change the symbol; --file supplies a JSON changes document.

Example:
  symstore update 'Ξ.C.WIDGETCO' --why "Customer commitment" --description "Add purpose"`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes types.SymbolChanges
			if file != "" {
				if err := decodeInput(cmd, file, &changes); err != nil {
					return err
				}
			}
			sf.changes(cmd, &changes)

			return a.withStore(func(s types.Store) error {
				res, err := s.Update(args[0], changes, description, author)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					note := "content hash unchanged"
					if res.HashChanged {
						note = "content hash " + res.NewHash
					}
					_, err := fmt.Fprintf(w, "Updated %s to version %d (%s)\n", res.SymbolID, res.NewVersion, note)
					return err
				})
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "read changes from a JSON file (- for stdin)")
	cmd.Flags().StringVarP(&description, "description", "m", "", "changelog description")
	cmd.Flags().StringVar(&author, "author", "", "changelog author")
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	var reason, actor string
	cmd := &cobra.Command{
		Use:   "delete <symbol-id>",
		Short: "Delete a symbol and its relationships",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				res, err := s.Delete(args[0], reason, actor)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) error {
					if !res.Deleted {
						_, err := fmt.Fprintf(w, "%s not found; nothing deleted\n", res.SymbolID)
						return err
					}
					_, err := fmt.Fprintf(w, "Deleted %s (%d relationships removed)\n", res.SymbolID, res.RelationshipsRemoved)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	cmd.Flags().StringVar(&actor, "actor", "", "actor recorded in the audit log")
	return cmd
}

func (a *app) newListCmd() *cobra.Command {
	var (
		category, family, namespace, tag string
		after, before, text              string
		limit, offset                    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List symbols with optional filters",
		Long: `List returns one page of symbols, newest first. Filters are ANDed together.

Example:
  symstore list --family AGENT --tag release
  symstore list --after 2026-01-01 --limit 20 --offset 20`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := types.SymbolFilter{
				Category:  types.Category(strings.ToUpper(category)),
				Family:    types.Family(strings.ToUpper(family)),
				Namespace: namespace,
				Tag:       tag,
				Text:      text,
				Limit:     limit,
				Offset:    offset,
			}
			var err error
			if filter.CreatedAfter, err = parseTimeFlag("after", after); err != nil {
				return err
			}
			if filter.CreatedBefore, err = parseTimeFlag("before", before); err != nil {
				return err
			}
			return a.withStore(func(s types.Store) error {
				page, err := s.List(filter)
				if err != nil {
					return err
				}
				return a.renderPage(cmd, page)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&category, "category", "", "symbol category, e.g. COMPANY")
	fs.StringVar(&family, "family", "", "symbol family, e.g. AGENT")
	fs.StringVar(&namespace, "namespace", "", "identifier namespace")
	fs.StringVar(&tag, "tag", "", "tag")
	fs.StringVar(&after, "after", "", "created at or after (RFC3339 or YYYY-MM-DD)")
	fs.StringVar(&before, "before", "", "created before (RFC3339 or YYYY-MM-DD)")
	fs.StringVar(&text, "text", "", "full-text match on commander's intent")
	fs.IntVar(&limit, "limit", types.DefaultListLimit, "page size (max 1000)")
	fs.IntVar(&offset, "offset", 0, "items to skip")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over commander's intent",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				page, err := s.Search(strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				return a.renderPage(cmd, page)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", types.DefaultListLimit, "maximum results (max 1000)")
	return cmd
}

func (a *app) newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <symbol-id>",
		Short: "Report whether a symbol is stored",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s types.Store) error {
				ok, err := s.Exists(args[0])
				if err != nil {
					return err
				}
				out := map[string]any{"symbol_id": args[0], "exists": ok}
				return a.render(cmd, out, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, strconv.FormatBool(ok))
					return err
				})
			})
		},
	}
}

func (a *app) renderPage(cmd *cobra.Command, page *types.SymbolPage) error {
	return a.render(cmd, page, func(w io.Writer) error {
		if len(page.Items) == 0 {
			_, err := fmt.Fprintln(w, "No symbols found")
			return err
		}
		rows := make([][]string, 0, len(page.Items))
		for _, sym := range page.Items {
			rows = append(rows, []string{
				sym.SymbolID,
				strconv.FormatInt(sym.Version, 10),
				string(sym.Category),
				formatTime(sym.CreatedAt),
				sym.What,
			})
		}
		if err := table(w, []string{"SYMBOL", "VERSION", "CATEGORY", "CREATED", "WHAT"}, rows); err != nil {
			return err
		}
		more := ""
		if page.HasMore {
			more = " (more available)"
		}
		_, err := fmt.Fprintf(w, "%d of %d%s\n", len(page.Items), page.Total, more)
		return err
	})
}

func writeSymbol(w io.Writer, s *types.Symbol) error {
	var b strings.Builder
	field := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%-11s%s\n", label+":", v)
		}
	}
	items := func(label string, vs []string) {
		if len(vs) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", label)
		for _, v := range vs {
			fmt.Fprintf(&b, "  - %s\n", v)
		}
	}

	field("Symbol", s.SymbolID)
	field("Version", strconv.FormatInt(s.Version, 10))
	field("Hash", s.ContentHash)
	field("Category", fmt.Sprintf("%s (%s)", s.Category, s.Family))
	field("Namespace", s.Namespace)
	field("Who", s.Who)
	field("What", s.What)
	field("Why", s.Why)
	field("Where", s.Where)
	field("When", s.When)
	if s.How != nil {
		field("Focus", s.How.Focus)
		if len(s.How.Steps) > 0 {
			b.WriteString("Steps:\n")
			for i, step := range s.How.Steps {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
			}
		}
		items("Constraints", s.How.Constraints)
	}
	field("Intent", s.CommandersIntent)
	items("Requirements", s.Requirements)
	items("Anti-requirements", s.AntiRequirements)
	items("Key terms", s.KeyTerms)
	field("Tags", strings.Join(s.Tags, ", "))
	field("Parent", s.ParentSymbol)
	field("Created", formatTime(s.CreatedAt))
	if s.UpdatedAt != nil {
		field("Updated", formatTime(*s.UpdatedAt))
	}
	field("Created by", s.CreatedBy)
	if len(s.Epistemic) > 0 {
		field("Epistemic", string(s.Epistemic))
	}
	if len(s.Changelog) > 0 {
		b.WriteString("Changelog:\n")
		for _, e := range s.Changelog {
			by := ""
			if e.Author != "" {
				by = " (" + e.Author + ")"
			}
			fmt.Fprintf(&b, "  v%d  %s  %s%s\n", e.Version, formatTime(e.Timestamp), e.Description, by)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// parseTimeFlag accepts RFC3339 timestamps or plain dates.
func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, usageErrorf("invalid --%s %q (expected RFC3339 or YYYY-MM-DD)", name, v)
}
