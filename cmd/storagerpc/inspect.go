package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mercator-hq/storagerpc/pkg/cli"

	"github.com/spf13/cobra"
)

var inspectFlags struct {
	file   string
	format string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the types a policy file permits",
	Long: `Print every type declared in a policy file with its serialize and
deserialize flags, type id and @ClientFields restriction.

Examples:
  storagerpc inspect --file war/app1/StorageSerializerPolicy.gwt.rpc
  storagerpc inspect --file war/app1/StorageSerializerPolicy.gwt.rpc --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspectPolicy(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectFlags.file, "file", "f", "", "policy file to inspect")
	inspectCmd.Flags().StringVar(&inspectFlags.format, "format", "text", "output format: text, json")
}

// TypeInfo describes one declared type.
type TypeInfo struct {
	Name                       string   `json:"name"`
	Serializable               bool     `json:"serializable"`
	Instantiable               bool     `json:"instantiable"`
	Deserializable             bool     `json:"deserializable"`
	DeserializableInstantiable bool     `json:"deserializable_instantiable"`
	TypeID                     string   `json:"type_id"`
	Signature                  string   `json:"signature,omitempty"`
	ClientFields               []string `json:"client_fields,omitempty"`
}

// InspectReport describes a policy file.
type InspectReport struct {
	File        string     `json:"file"`
	FinalFields bool       `json:"final_fields"`
	Types       []TypeInfo `json:"types"`
}

// Text implements cli.Texter.
func (r InspectReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d types, final fields %t\n\n", r.File, len(r.Types), r.FinalFields)

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tENCODE\tDECODE\tTYPE ID\tCLIENT FIELDS")
	for _, t := range r.Types {
		fields := "-"
		if t.ClientFields != nil {
			fields = strings.Join(t.ClientFields, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.Name,
			yesNo(t.Serializable && t.Instantiable),
			yesNo(t.Deserializable && t.DeserializableInstantiable),
			t.TypeID,
			fields,
		)
	}
	_ = tw.Flush()
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func inspectPolicy(w io.Writer) error {
	if inspectFlags.file == "" {
		return fmt.Errorf("--file must be specified")
	}
	format, err := cli.ParseOutputFormat(inspectFlags.format)
	if err != nil {
		return err
	}

	p, err := readPolicyFile(inspectFlags.file)
	if err != nil {
		return cli.NewCommandError("inspect", err)
	}

	report := InspectReport{
		File:        inspectFlags.file,
		FinalFields: p.SerializesFinalFields(),
		Types:       make([]TypeInfo, 0, p.TypeCount()),
	}
	for _, name := range p.TypeNames() {
		entry, _ := p.Lookup(name)
		info := TypeInfo{
			Name:                       entry.Name,
			Serializable:               entry.Serializable,
			Instantiable:               entry.Instantiable,
			Deserializable:             entry.Deserializable,
			DeserializableInstantiable: entry.DeserializableInstantiable,
			TypeID:                     entry.TypeID,
			Signature:                  entry.Signature,
		}
		if fields, ok := p.ClientFieldsByName(name); ok {
			info.ClientFields = fields
		}
		report.Types = append(report.Types, info)
	}

	return cli.NewFormatter(format).FormatTo(w, report)
}
