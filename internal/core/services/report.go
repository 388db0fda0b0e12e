package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

const reportExcerptChars = 400

// BuildMarkdownReport renders the evidence behind an answer as a research report
func BuildMarkdownReport(query domain.Query, report *domain.EvidenceReport) string {
	var b strings.Builder

	b.WriteString("# Agriculture Research Report\n\n")
	fmt.Fprintf(&b, "**Query:** %s\n\n", query.RawText)
	if query.RefinedText != "" && query.RefinedText != query.RawText {
		fmt.Fprintf(&b, "**Refined query:** %s\n\n", query.RefinedText)
	}

	subQueries := query.SubQueries
	if report != nil && len(report.SubQueries) > 0 {
		subQueries = report.SubQueries
	}

	b.WriteString("## Sub-queries\n\n")
	for i, sq := range subQueries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, sq)
	}
	b.WriteString("\n")

	for i, sq := range subQueries {
		fmt.Fprintf(&b, "## Sub-query %d: %s\n\n", i+1, sq)
		writeReportSection(&b, "Database Results", report.ItemsFor(sq, domain.SourceKindDatabase))
		writeReportSection(&b, "Web Results", report.ItemsFor(sq, domain.SourceKindWeb))
	}

	b.WriteString("## Citation Index\n\n")
	if report.IsEmpty() {
		b.WriteString("No evidence was found.\n\n")
	} else {
		b.WriteString("| # | Source | Title | URL |\n")
		b.WriteString("|---|--------|-------|-----|\n")
		for _, item := range report.Items {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
				item.CitationIndex, item.SourceKind, escapeTableCell(item.Label()), item.URL)
		}
		b.WriteString("\n")
	}

	if report != nil && len(report.Failures) > 0 {
		b.WriteString("## Retrieval Failures\n\n")
		for _, f := range report.Failures {
			fmt.Fprintf(&b, "- %s: %q: %s\n", f.Source, f.SubQuery, f.Error)
		}
		b.WriteString("\n")
	}

	dbCount := report.CountByKind(domain.SourceKindDatabase)
	webCount := report.CountByKind(domain.SourceKindWeb)
	failures := 0
	if report != nil {
		failures = len(report.Failures)
	}
	b.WriteString("## Summary Statistics\n\n")
	fmt.Fprintf(&b, "- Sub-queries: %d\n", len(subQueries))
	fmt.Fprintf(&b, "- Database results: %d\n", dbCount)
	fmt.Fprintf(&b, "- Web results: %d\n", webCount)
	fmt.Fprintf(&b, "- Total sources: %d\n", dbCount+webCount)
	fmt.Fprintf(&b, "- Failed retrievals: %d\n", failures)

	return b.String()
}

func writeReportSection(b *strings.Builder, heading string, items []domain.EvidenceItem) {
	fmt.Fprintf(b, "### %s\n\n", heading)
	if len(items) == 0 {
		b.WriteString("_No results._\n\n")
		return
	}
	for _, item := range items {
		label := item.Label()
		if item.URL != "" && item.Title != "" {
			label = fmt.Sprintf("[%s](%s)", item.Title, item.URL)
		}
		fmt.Fprintf(b, "**[%d]** %s (score %.3f)\n\n", item.CitationIndex, label, item.Score)
		fmt.Fprintf(b, "> %s\n\n", ClipText(domain.NormalizeWhitespace(item.Content), reportExcerptChars))
	}
}

func escapeTableCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
