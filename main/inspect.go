package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rawbytedev/fcodec/pkg/schema"
)

func newInspectCmd(a *app) *cobra.Command {
	var fields bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the messages, layouts, sizes and fingerprints of a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The lock file is read but never written.
			p, err := a.open()
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), p.Schema, fields)
		},
	}
	cmd.Flags().BoolVar(&fields, "fields", false, "List the fields of every message")
	return cmd
}

func inspect(out io.Writer, s *schema.Schema, fields bool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "schema %s %s, %s endian\n\n", s.Namespace(), s.Version(), s.Order())

	if enums := s.Enums(); len(enums) > 0 {
		fmt.Fprintln(w, "ENUM\tTYPE\tVALUES")
		for _, e := range enums {
			vals := make([]string, len(e.Values()))
			for i, v := range e.Values() {
				vals[i] = fmt.Sprintf("%s=%d", v.Name, v.Value)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name(), e.Underlying(), strings.Join(vals, " "))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "MESSAGE\tTEMPLATE\tLAYOUT\tSIZE\tFINGERPRINT")
	for _, m := range s.Messages() {
		size := fmt.Sprint(m.Size())
		if m.Layout() == schema.Variable {
			size = ">=" + size
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t0x%016x\n", m.Name(), m.TemplateID(), m.Layout(), size, m.Fingerprint())
	}
	if fields {
		for _, m := range s.Messages() {
			fmt.Fprintf(w, "\n%s\n", m.Name())
			offsets := m.Offsets()
			for i, f := range m.Fields() {
				at := ""
				if offsets != nil {
					at = fmt.Sprintf("@%d", offsets[i])
				}
				fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", f.Index, f.Name, f.Type, at, fieldFlags(f))
			}
		}
	}
	return w.Flush()
}

func fieldFlags(f schema.Field) string {
	var flags []string
	if f.Nullable {
		flags = append(flags, "nullable")
	}
	if f.Deprecated {
		flags = append(flags, "deprecated")
	}
	return strings.Join(flags, ",")
}
