package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/entity"
)

type batchResult struct {
	Path   string
	Record entity.BillRecord
	Err    error
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func money(currency string, v float64) string {
	return fmt.Sprintf("%s %.2f", currency, v)
}

// withoutImage drops the data URI; it is large and useless on a terminal.
func withoutImage(rec entity.BillRecord) entity.BillRecord {
	rec.RawImage = ""
	return rec
}

func printRecord(w io.Writer, asJSON bool, rec entity.BillRecord) error {
	if asJSON {
		return writeJSON(w, withoutImage(rec))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s]\n", rec.HospitalName, rec.Status)
	fmt.Fprintf(&b, "  id:            %s\n", rec.ID)
	fmt.Fprintf(&b, "  uploaded:      %s\n", rec.UploadDate)
	if rec.DateOfService != "" {
		fmt.Fprintf(&b, "  service date:  %s\n", rec.DateOfService)
	}
	fmt.Fprintf(&b, "  total:         %s\n", money(rec.Currency, rec.TotalAmount))
	fmt.Fprintf(&b, "  patient pays:  %s\n", money(rec.Currency, rec.PatientPays()))
	fmt.Fprintf(&b, "  insurance:     %s\n", rec.Insurance.Status)
	fmt.Fprintf(&b, "  confidence:    %.0f%%\n", rec.ConfidenceScore*100)
	if rec.Summary != "" {
		fmt.Fprintf(&b, "\n  %s\n", rec.Summary)
	}
	if len(rec.Issues) > 0 {
		fmt.Fprintf(&b, "\n  Issues (potential savings %s):\n", money(rec.Currency, rec.TotalPotentialSavings()))
		for i, is := range rec.Issues {
			fmt.Fprintf(&b, "  %d. [%s/%s] %s  %s\n", i+1, is.Severity, is.Category, is.Title, money(rec.Currency, is.EstimatedOvercharge))
			if is.Description != "" {
				fmt.Fprintf(&b, "     %s\n", is.Description)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func printGuide(w io.Writer, asJSON bool, g entity.DisputeGuide) error {
	if asJSON {
		return writeJSON(w, g)
	}
	var b strings.Builder
	b.WriteString("\nDispute letter\n--------------\n")
	b.WriteString(g.Letter)
	b.WriteString("\n\nNext steps\n")
	for i, s := range g.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func printHistory(w io.Writer, asJSON bool, recs []entity.BillRecord) error {
	if asJSON {
		out := make([]entity.BillRecord, 0, len(recs))
		for _, r := range recs {
			out = append(out, withoutImage(r))
		}
		return writeJSON(w, out)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPLOADED\tHOSPITAL\tSTATUS\tTOTAL\tISSUES\tSAVINGS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.UploadDate, r.HospitalName, r.Status,
			money(r.Currency, r.TotalAmount), len(r.Issues), money(r.Currency, r.TotalPotentialSavings()))
	}
	return tw.Flush()
}

func printBatch(w io.Writer, asJSON bool, results []batchResult) error {
	if asJSON {
		type row struct {
			Path   string             `json:"path"`
			Record *entity.BillRecord `json:"record,omitempty"`
			Error  string             `json:"error,omitempty"`
		}
		rows := make([]row, 0, len(results))
		for _, r := range results {
			if r.Err != nil {
				rows = append(rows, row{Path: r.Path, Error: r.Err.Error()})
				continue
			}
			rec := withoutImage(r.Record)
			rows = append(rows, row{Path: r.Path, Record: &rec})
		}
		return writeJSON(w, rows)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tID\tSTATUS\tISSUES\tSAVINGS")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\tfailed: %v\t-\t-\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Path, r.Record.ID, r.Record.Status,
			len(r.Record.Issues), money(r.Record.Currency, r.Record.TotalPotentialSavings()))
	}
	return tw.Flush()
}

func printResources(w io.Writer, asJSON bool, resources []constants.Resource, insurers []string) error {
	if asJSON {
		return writeJSON(w, map[string]any{"resources": resources, "insurers": insurers})
	}
	var b strings.Builder
	for _, r := range resources {
		fmt.Fprintf(&b, "[%s] %s\n    %s\n", r.Section, r.Title, r.URL)
	}
	b.WriteString("\nKnown insurers: ")
	b.WriteString(strings.Join(insurers, ", "))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
