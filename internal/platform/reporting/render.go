package reporting

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Output formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

const confidentialityFooter = "This report is confidential and protected under HIPAA regulations."

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.1f", x)
	case time.Time:
		return x.Format("2006-01-02 15:04")
	default:
		return fmt.Sprint(x)
	}
}

func headerLines(r *Report) []string {
	lines := []string{"Generated: " + r.GeneratedAt.Format(time.RFC3339)}
	if r.Date != "" {
		lines = append(lines, "Date: "+r.Date)
	}
	if r.Period != "" {
		lines = append(lines, "Period: "+r.Period)
	}
	if r.PatientID != "" {
		lines = append(lines, "Patient: "+r.PatientID)
	}
	if r.Department != "" {
		lines = append(lines, "Department: "+r.Department)
	}
	return lines
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Markdown renders r as GitHub-flavoured markdown.
func Markdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Type)
	for _, line := range headerLines(r) {
		k, v, _ := strings.Cut(line, ": ")
		fmt.Fprintf(&b, "**%s:** %s  \n", k, mdCell(v))
	}

	b.WriteString("\n## Summary\n\n| Metric | Value |\n|---|---|\n")
	for _, m := range r.Metrics {
		fmt.Fprintf(&b, "| %s | %s |\n", mdCell(m.Label), mdCell(formatValue(m.Value)))
	}

	for _, t := range r.Tables {
		fmt.Fprintf(&b, "\n## %s\n\n", t.Title)
		if len(t.Rows) == 0 {
			b.WriteString("_No entries._\n")
			continue
		}
		b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat("---|", len(t.Columns)) + "\n")
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = mdCell(c)
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	}

	for _, l := range r.Lists {
		fmt.Fprintf(&b, "\n## %s\n\n", l.Title)
		if len(l.Items) == 0 {
			b.WriteString("_None._\n")
			continue
		}
		for _, item := range l.Items {
			fmt.Fprintf(&b, "- %s\n", mdCell(item))
		}
	}

	b.WriteString("\n---\n\n" + confidentialityFooter + "\n")
	return b.String()
}

const htmlStyle = "body{font-family:Arial,sans-serif;margin:40px;} " +
	"h1{color:#2c3e50;border-bottom:2px solid #3498db;padding-bottom:10px;} " +
	"h2{color:#34495e;margin-top:30px;} " +
	"table{width:100%;border-collapse:collapse;margin:20px 0;} " +
	"th,td{border:1px solid #ddd;padding:8px;text-align:left;vertical-align:top;} " +
	"th{background-color:#3498db;color:white;} " +
	".footer{margin-top:50px;text-align:center;color:#7f8c8d;font-size:12px;}"

// HTML renders r as a standalone HTML document.
func HTML(r *Report) ([]byte, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(r)), &content); err != nil {
		return nil, fmt.Errorf("markdown convert: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	out.WriteString(html.EscapeString(r.Type))
	out.WriteString("</title><style>" + htmlStyle + "</style></head><body>")
	out.Write(content.Bytes())
	out.WriteString("<div class='footer'><p>MedNotes automated reporting</p></div></body></html>")
	return out.Bytes(), nil
}

// PDF renders r as an A4 PDF document using the core Helvetica font.
func PDF(r *Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.Type, true)
	pdf.SetCreator("MedNotes", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, tr(confidentialityFooter)+fmt.Sprintf("   Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.Type), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range headerLines(r) {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}

	section := func(title string) {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	}

	section("Summary")
	labelWidth := usable * 0.6
	for _, m := range r.Metrics {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(labelWidth, 7, tr(m.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(usable-labelWidth, 7, tr(formatValue(m.Value)), "1", 1, "L", false, 0, "")
	}

	for _, t := range r.Tables {
		section(t.Title)
		if len(t.Rows) == 0 || len(t.Columns) == 0 {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(0, 6, "No entries.", "", 1, "L", false, 0, "")
			continue
		}
		colWidth := usable / float64(len(t.Columns))
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(52, 152, 219)
		pdf.SetTextColor(255, 255, 255)
		for _, col := range t.Columns {
			pdf.CellFormat(colWidth, 7, tr(col), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 9)
		for _, row := range t.Rows {
			for _, cell := range row {
				pdf.CellFormat(colWidth, 6, fitText(pdf, tr(cell), colWidth-2), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	for _, l := range r.Lists {
		section(l.Title)
		pdf.SetFont("Helvetica", "", 10)
		if len(l.Items) == 0 {
			pdf.CellFormat(0, 6, "None.", "", 1, "L", false, 0, "")
		}
		for _, item := range l.Items {
			pdf.CellFormat(0, 6, tr("- "+item), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fitText shortens s with a trailing ellipsis until it fits in width. s is
// already translated to the single-byte font encoding.
func fitText(pdf *gofpdf.Fpdf, s string, width float64) string {
	s = strings.Join(strings.Fields(s), " ")
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
