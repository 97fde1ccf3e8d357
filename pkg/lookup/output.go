// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"sigs.k8s.io/yaml"
)

// Output formats understood by Print.
const (
	OutputNormal = "normal"
	OutputWide   = "wide"
	OutputJSON   = "json"
	OutputYAML   = "yaml"
)

// OutputFormats lists the supported output formats.
var OutputFormats = []string{OutputNormal, OutputWide, OutputJSON, OutputYAML}

// NoBindingsMessage is printed by table formats when nothing matched.
const NoBindingsMessage = "No RBAC Bindings found"

// ValidateOutputFormat returns an error for unsupported formats. The empty
// string is treated as OutputNormal.
func ValidateOutputFormat(format string) error {
	if format == "" || slices.Contains(OutputFormats, format) {
		return nil
	}
	return fmt.Errorf("unsupported output format %q, must be one of %s", format, strings.Join(OutputFormats, ", "))
}

// Print writes grants to w in the given format.
func Print(w io.Writer, format string, grants []Grant) error {
	if err := ValidateOutputFormat(format); err != nil {
		return err
	}
	if grants == nil {
		grants = []Grant{}
	}

	switch format {
	case OutputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(grants)
	case OutputYAML:
		data, err := yaml.Marshal(grants)
		if err != nil {
			return fmt.Errorf("marshalling grants: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return printTable(w, format == OutputWide, grants)
	}
}

func printTable(w io.Writer, wide bool, grants []Grant) error {
	if len(grants) == 0 {
		_, err := fmt.Fprintln(w, NoBindingsMessage)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if wide {
		fmt.Fprintln(tw, "SUBJECT\tSCOPE\tROLE\tSOURCE")
	} else {
		fmt.Fprintln(tw, "SUBJECT\tSCOPE\tROLE")
	}

	for _, g := range grants {
		if wide {
			fmt.Fprintf(tw, "%s/%s\t%s\t%s/%s\t%s/%s\n", g.SubjectKind, g.Subject, g.Scope, g.RoleKind, g.RoleName, g.SourceKind, g.SourceName)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s/%s\n", g.Subject, g.Scope, g.RoleKind, g.RoleName)
		}
	}
	return tw.Flush()
}
