package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbaille/letterdesk/internal/console"
	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/pbaille/letterdesk/internal/signature"
	"github.com/spf13/cobra"
)

// parseKind accepts a kind ("cover-letters") or its singular ("cover-letter", "cover letter")
func parseKind(s string) (domain.Schema, error) {
	if sch, err := domain.Lookup(domain.Kind(s)); err == nil {
		return sch, nil
	}
	want := strings.ReplaceAll(strings.ToLower(s), "-", " ")
	for _, k := range domain.Kinds() {
		sch := domain.MustLookup(k)
		if sch.Singular == want {
			return sch, nil
		}
	}
	return domain.Schema{}, fmt.Errorf("unknown resource kind: %s", s)
}

// parsePairs splits repeated key=value flags
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// load refetches a kind and the kinds its relations point to
func load(ctx context.Context, c *console.Console, sch domain.Schema) error {
	if err := c.Refresh(ctx, sch.Kind); err != nil {
		return err
	}
	for _, rel := range sch.Relations {
		if err := c.Refresh(ctx, rel.Target); err != nil {
			return err
		}
	}
	return nil
}

// findRecord matches a loaded record by id prefix
func findRecord(c *console.Console, sch domain.Schema, prefix string) (domain.Record, error) {
	var found []domain.Record
	for _, r := range c.List(sch.Kind) {
		if strings.HasPrefix(r.ID, prefix) {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return domain.Record{}, fmt.Errorf("%s not found: %s", sch.Singular, prefix)
	case 1:
		return found[0], nil
	default:
		return domain.Record{}, fmt.Errorf("ambiguous %s id prefix: %s", sch.Singular, prefix)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// relationLabel shows a related record by label, falling back to its id
func relationLabel(c *console.Console, rel domain.Relation, id string) string {
	if id == "" {
		return "-"
	}
	if r, ok := c.Catalog().Find(rel.Target, id); ok {
		return domain.MustLookup(rel.Target).LabelOf(r)
	}
	return shortID(id)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [kind]",
		Short: "List records of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := parseKind(args[0])
			if err != nil {
				return err
			}

			c := newConsole()
			if err := load(cmd.Context(), c, sch); err != nil {
				return err
			}

			records := c.List(sch.Kind)
			if len(records) == 0 {
				fmt.Printf("No %s yet. Use 'desk add %s' to create one.\n", sch.Kind, sch.Kind)
				return nil
			}

			for _, r := range records {
				line := fmt.Sprintf("%s  %s", shortID(r.ID), truncate(sch.LabelOf(r), 60))
				for _, rel := range sch.Relations {
					if id := r.Relation(rel.Name); id != "" {
						line += fmt.Sprintf("  [%s: %s]", rel.Name, relationLabel(c, rel, id))
					}
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [kind] [id]",
		Short: "Show record details",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := parseKind(args[0])
			if err != nil {
				return err
			}

			c := newConsole()
			if err := load(cmd.Context(), c, sch); err != nil {
				return err
			}
			r, err := findRecord(c, sch, args[1])
			if err != nil {
				return err
			}

			fmt.Printf("ID: %s\n", r.ID)
			for _, attr := range sch.Scalars {
				v := r.Attr(attr)
				if attr == "signature" && v != "" {
					v = "\n" + signature.PlainText(v)
				}
				fmt.Printf("%s: %s\n", attr, v)
			}
			for _, rel := range sch.Relations {
				fmt.Printf("%s: %s\n", rel.Name, relationLabel(c, rel, r.Relation(rel.Name)))
			}
			return nil
		},
	}
}

type draftFlags struct {
	set    []string
	link   []string
	name   []string
	create []string
}

func (f *draftFlags) register(cmd *cobra.Command, withName bool) {
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "set an attribute, attr=value")
	cmd.Flags().StringArrayVar(&f.link, "link", nil, "link an existing record, relation=id")
	cmd.Flags().StringArrayVar(&f.create, "new", nil, "link a new record, relation=name")
	if withName {
		cmd.Flags().StringArrayVar(&f.name, "name", nil, "link a record by name, creating it when missing, relation=name")
	}
}

// apply writes the flags into d; --link takes an id prefix
func (f *draftFlags) apply(c *console.Console, sch domain.Schema, d *console.Draft) error {
	sets, err := parsePairs(f.set)
	if err != nil {
		return err
	}
	for k, v := range sets {
		d.Set(k, v)
	}

	links, err := parsePairs(f.link)
	if err != nil {
		return err
	}
	for rel, prefix := range links {
		r, ok := sch.Relation(rel)
		if !ok {
			return fmt.Errorf("%s has no relation %s", sch.Singular, rel)
		}
		target, err := findRecord(c, domain.MustLookup(r.Target), strings.TrimSpace(prefix))
		if err != nil {
			return err
		}
		d.Link(rel, target.ID)
	}

	names, err := parsePairs(f.name)
	if err != nil {
		return err
	}
	for rel, name := range names {
		d.LinkByName(rel, name)
	}

	news, err := parsePairs(f.create)
	if err != nil {
		return err
	}
	for rel, name := range news {
		d.LinkNew(rel, name)
	}
	return nil
}

func addCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "add [kind]",
		Short: "Add a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := parseKind(args[0])
			if err != nil {
				return err
			}

			c := newConsole()
			if err := load(cmd.Context(), c, sch); err != nil {
				return err
			}

			d := console.NewDraft(sch.Kind, domain.NewRecord(""))
			if err := flags.apply(c, sch, d); err != nil {
				return err
			}

			created, out := c.CreateStandalone(cmd.Context(), d)
			printNotice(c)
			if err := out.Err(); err != nil {
				return err
			}
			fmt.Printf("ID: %s\n", created.ID)
			return nil
		},
	}

	flags.register(cmd, false)
	return cmd
}

func editCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "edit [kind] [id]",
		Short: "Update the changed attributes of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := parseKind(args[0])
			if err != nil {
				return err
			}

			c := newConsole()
			if err := load(cmd.Context(), c, sch); err != nil {
				return err
			}
			r, err := findRecord(c, sch, args[1])
			if err != nil {
				return err
			}

			d := c.StartEdit(sch.Kind, r)
			if err := flags.apply(c, sch, d); err != nil {
				c.CancelEdit()
				return err
			}

			out := c.Save(cmd.Context(), d)
			printNotice(c)
			return out.Err()
		},
	}

	flags.register(cmd, true)
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [kind] [id]",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := parseKind(args[0])
			if err != nil {
				return err
			}

			c := newConsole()
			if err := c.Refresh(cmd.Context(), sch.Kind); err != nil {
				return err
			}
			r, err := findRecord(c, sch, args[1])
			if err != nil {
				return err
			}

			out := c.Delete(cmd.Context(), sch.Kind, r.ID)
			printNotice(c)
			return out.Err()
		},
	}
}
