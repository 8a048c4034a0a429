package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/wml/stypes"
	"github.com/jung-kurt/gofpdf"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDOCX, nil
	case FormatDOCX, FormatPDF, FormatText:
		return f, nil
	case "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unsupported report format %q", domain.ErrInvalidInput, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatText:
		return "text/plain; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// FileName is the download name for a report generated on date.
func FileName(date time.Time, f Format) string {
	return fmt.Sprintf("Pipeline_Integrity_Report_%s.%s", date.Format("2006-01-02"), f)
}

func Render(w io.Writer, doc Document, f Format) error {
	switch f {
	case FormatDOCX:
		return RenderDOCX(w, doc)
	case FormatPDF:
		return RenderPDF(w, doc)
	case FormatText:
		return RenderText(w, doc)
	}
	return fmt.Errorf("%w: unsupported report format %q", domain.ErrInvalidInput, f)
}

func generatedLine(t time.Time) string {
	return "Generated: " + t.Format("January 2, 2006")
}

type rgb struct{ r, g, b int }

func (c rgb) hex() string { return fmt.Sprintf("%02X%02X%02X", c.r, c.g, c.b) }

func riskColor(p Paragraph) rgb {
	switch integrity.Risk(p.Text) {
	case integrity.RiskHigh:
		return rgb{0xDC, 0x26, 0x26}
	case integrity.RiskMedium:
		return rgb{0xFF, 0x8C, 0x00}
	}
	return rgb{0x16, 0xA3, 0x4A}
}

// RenderDOCX writes the report as a Word document built on the default
// godocx template, whose styles provide headings and list numbering.
func RenderDOCX(w io.Writer, doc Document) error {
	d, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("docx: %w", err)
	}
	centered := func(text string, size uint64, bold bool) {
		p := d.AddEmptyParagraph()
		p.Justification(stypes.JustificationCenter)
		p.AddText(text).Size(size).Bold(bold)
	}

	centered(doc.Title, 18, true)
	centered(doc.Subtitle, 14, false)
	centered(generatedLine(doc.Generated), 11, false)

	for _, s := range doc.Sections {
		if _, err := d.AddHeading(s.Heading, 1); err != nil {
			return fmt.Errorf("docx heading %q: %w", s.Heading, err)
		}
		for _, p := range s.Paragraphs {
			if p.Label == "" {
				d.AddParagraph(p.Text)
				continue
			}
			para := d.AddEmptyParagraph()
			para.AddText(p.Label + ": ").Bold(true)
			value := para.AddText(p.Text)
			if p.Emphasis {
				value.Bold(true).Color(riskColor(p).hex())
			}
		}
		for _, b := range s.Bullets {
			d.AddParagraph(b).Style("ListBullet")
		}
		for _, n := range s.Numbered {
			d.AddParagraph(n).Style("ListNumber")
		}
	}

	centered("___________________________________________", 11, false)
	for _, f := range doc.Footer {
		centered(f, 9, false)
	}
	if err := d.Write(w); err != nil {
		return fmt.Errorf("docx: %w", err)
	}
	return nil
}

func RenderPDF(w io.Writer, doc Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(doc.Subtitle, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.CellFormat(0, 8, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(generatedLine(doc.Generated)), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	for _, s := range doc.Sections {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, tr(s.Heading), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, p := range s.Paragraphs {
			if p.Label == "" {
				pdf.MultiCell(0, 6, tr(p.Text), "", "L", false)
				pdf.Ln(2)
				continue
			}
			pdf.SetFont("Helvetica", "B", 11)
			pdf.Write(6, tr(p.Label+": "))
			if p.Emphasis {
				c := riskColor(p)
				pdf.SetTextColor(c.r, c.g, c.b)
			} else {
				pdf.SetFont("Helvetica", "", 11)
			}
			pdf.Write(6, tr(p.Text))
			pdf.SetTextColor(0, 0, 0)
			pdf.SetFont("Helvetica", "", 11)
			pdf.Ln(6)
		}
		for _, b := range s.Bullets {
			pdf.MultiCell(0, 6, tr("- "+b), "", "L", false)
		}
		for i, n := range s.Numbered {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, n)), "", "L", false)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "I", 9)
	for _, f := range doc.Footer {
		pdf.CellFormat(0, 5, tr(f), "", 1, "C", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	return pdf.Output(w)
}

func RenderText(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, doc.Title)
	fmt.Fprintln(bw, doc.Subtitle)
	fmt.Fprintln(bw, generatedLine(doc.Generated))
	fmt.Fprintln(bw, strings.Repeat("=", 32))

	for _, s := range doc.Sections {
		fmt.Fprintf(bw, "\n%s\n%s\n", s.Heading, strings.Repeat("-", len(s.Heading)))
		for _, p := range s.Paragraphs {
			if p.Label == "" {
				fmt.Fprintln(bw, p.Text)
				continue
			}
			fmt.Fprintf(bw, "%s: %s\n", p.Label, p.Text)
		}
		for _, b := range s.Bullets {
			fmt.Fprintf(bw, "• %s\n", b)
		}
		for i, n := range s.Numbered {
			fmt.Fprintf(bw, "%d. %s\n", i+1, n)
		}
	}

	fmt.Fprintf(bw, "\n%s\n", strings.Repeat("=", 32))
	for _, f := range doc.Footer {
		fmt.Fprintln(bw, f)
	}
	return bw.Flush()
}

// SummaryFileName is the download name of the executive summary export.
func SummaryFileName(date time.Time) string {
	return "pipeline-report-" + date.Format("2006-01-02") + ".txt"
}

// WriteSummary renders the executive summary as plain text.
func WriteSummary(w io.Writer, s domain.Summary) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", 32)

	fmt.Fprintln(bw, "PIPELINE MONITORING HUB")
	fmt.Fprintln(bw, "Executive Summary Report")
	fmt.Fprintf(bw, "Generated: %s\n%s\n\n", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"), rule)

	systemStatus := "Operational"
	if s.StatusCounts[domain.StatusCritical] > 0 {
		systemStatus = "Attention Required"
	}
	fmt.Fprintln(bw, "SYSTEM OVERVIEW")
	fmt.Fprintln(bw, "---------------")
	fmt.Fprintf(bw, "Total Pipelines Monitored: %d\n", len(s.Pipelines))
	fmt.Fprintf(bw, "System Status: %s\n", systemStatus)
	fmt.Fprintf(bw, "Report Period: Last 24 Hours\n\n")

	fmt.Fprintln(bw, "PIPELINE STATUS")
	fmt.Fprintln(bw, "---------------")
	for _, p := range s.Pipelines {
		fmt.Fprintf(bw, "\nPipeline %s:\n", p.PipelineID)
		fmt.Fprintf(bw, "  - Temperature: %.1f°C\n", p.Temperature)
		fmt.Fprintf(bw, "  - Pressure: %.0f hPa\n", p.Pressure)
		fmt.Fprintf(bw, "  - Thickness Loss: %.2f mm\n", p.ThicknessLoss)
		fmt.Fprintf(bw, "  - Status: %s\n", titleCase(string(p.Status)))
	}

	fmt.Fprintln(bw, "\nKEY METRICS")
	fmt.Fprintln(bw, "-----------")
	fmt.Fprintf(bw, "Average Temperature: %.1f°C\n", s.AverageTemperature)
	fmt.Fprintf(bw, "Average Pressure: %.0f hPa\n", s.AveragePressure)
	fmt.Fprintf(bw, "Average Thickness Loss: %.2f mm\n\n", s.AverageThicknessLoss)

	fmt.Fprintln(bw, "RECOMMENDATIONS")
	fmt.Fprintln(bw, "---------------")
	for i, r := range s.Recommendations {
		fmt.Fprintf(bw, "%d. %s\n", i+1, r)
	}
	fmt.Fprintf(bw, "\n%s\nEnd of Report\n", rule)
	return bw.Flush()
}
