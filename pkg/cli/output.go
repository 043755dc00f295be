package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/registry"
)

func printJSON(w io.Writer, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(jsonData))
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func formatUnix(sec uint64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(int64(sec), 0).UTC().Format("2006-01-02 15:04")
}

func statusLabel(active bool) string {
	if active {
		return "open"
	}
	return "closed"
}

func admissibilityLabel(admissible bool) string {
	if admissible {
		return "admissible"
	}
	return "pending"
}

func printCases(w io.Writer, cases []registry.Case) {
	if len(cases) == 0 {
		fmt.Fprintln(w, "No cases found")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tOWNER\tCREATED")
	for _, c := range cases {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Name, statusLabel(c.IsActive), c.Owner.Hex(), formatUnix(c.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal: %d\n", len(cases))
}

func printCase(w io.Writer, c registry.Case) {
	fmt.Fprintf(w, "Case: %s\n\n", c.Name)
	fmt.Fprintf(w, "ID:           %d\n", c.ID)
	fmt.Fprintf(w, "Description:  %s\n", c.Description)
	fmt.Fprintf(w, "Status:       %s\n", statusLabel(c.IsActive))
	fmt.Fprintf(w, "Owner:        %s\n", c.Owner.Hex())
	fmt.Fprintf(w, "Created:      %s\n", formatUnix(c.CreatedAt))
}

func printEvidenceList(w io.Writer, items []registry.Evidence) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No evidence found")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tSUBMITTER\tSUBMITTED\tMETADATA CID")
	for _, e := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, admissibilityLabel(e.IsAdmissible), e.Submitter.Hex(), formatUnix(e.Timestamp), e.MetadataCID)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal: %d\n", len(items))
}

func printEvidence(w io.Writer, e registry.Evidence) {
	fmt.Fprintf(w, "Evidence %d of case %d\n\n", e.ID, e.CaseID)
	fmt.Fprintf(w, "Description:  %s\n", e.Description)
	fmt.Fprintf(w, "Status:       %s\n", admissibilityLabel(e.IsAdmissible))
	fmt.Fprintf(w, "Submitter:    %s\n", e.Submitter.Hex())
	fmt.Fprintf(w, "Submitted:    %s\n", formatUnix(e.Timestamp))
	fmt.Fprintf(w, "Metadata CID: %s\n", e.MetadataCID)
}

func printWrite(w io.Writer, what string, res registry.WriteResult) {
	fmt.Fprintf(w, "%s\n", what)
	if res.ID != nil {
		fmt.Fprintf(w, "ID:     %d\n", *res.ID)
	}
	fmt.Fprintf(w, "Tx:     %s\n", res.TxHash.Hex())
	fmt.Fprintf(w, "Block:  %d\n", res.BlockNumber)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
