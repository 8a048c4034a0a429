package report

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

var reportDate = time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)

func sampleData() Data {
	ytf := 14.2
	return Data{
		Date: reportDate,
		Pipeline: domain.Pipeline{
			ID: "A",
			PipelineSpec: domain.PipelineSpec{
				PipeSize: 24, InitialThickness: 12.7, MinThickness: 8,
				Material: "Carbon Steel", Grade: "API 5L X65 & X70", TimeYears: 10,
			},
		},
		Reading:        domain.SensorReading{PipelineID: "A", Temperature: 42.4, Pressure: 875, ThicknessLoss: 1.73, Timestamp: reportDate},
		Status:         domain.StatusNormal,
		DeviceStatus:   domain.DeviceOnline,
		Prediction:     integrity.Prediction{ThicknessLoss: 2.8, CurrentThickness: 9.9, RemainingLife: 6.3, RiskLevel: integrity.RiskMedium},
		YearsToFailure: &ytf,
	}
}

func TestBuildSections(t *testing.T) {
	doc := Build(sampleData())

	assert.Equal(t, Title, doc.Title)
	assert.Equal(t, Subtitle, doc.Subtitle)
	var headings []string
	for _, s := range doc.Sections {
		headings = append(headings, s.Heading)
	}
	assert.Equal(t, []string{
		"EXECUTIVE SUMMARY", "PIPELINE PARAMETERS", "REAL-TIME SENSOR DATA",
		"AI PREDICTION RESULTS", "RISK ANALYSIS", "RECOMMENDATIONS", "CONCLUSION",
	}, headings)

	params := doc.Sections[1].Paragraphs
	assert.Equal(t, Paragraph{Label: "Pipe Size", Text: "24 inches (610 mm)"}, params[1])

	sensor := doc.Sections[2].Paragraphs
	assert.Equal(t, "42.4°C", sensor[0].Text)
	assert.Equal(t, "Online", sensor[4].Text)

	pred := doc.Sections[3].Paragraphs
	assert.Equal(t, Paragraph{Label: "Risk Level", Text: "Medium", Emphasis: true}, pred[3])
	assert.Equal(t, "14.2 years", pred[4].Text)

	assert.Contains(t, doc.Sections[4].Paragraphs[0].Text, "MEDIUM risk level")
	assert.Len(t, doc.Sections[4].Bullets, 4)

	recs := doc.Sections[5].Numbered
	require.Len(t, recs, 4)
	assert.Contains(t, recs[0], "within the next 6 months")
	assert.Equal(t, "Plan for pipeline segment replacement or reinforcement within 5-6 years", recs[3])
	assert.Contains(t, doc.Sections[6].Paragraphs[0].Text, "acceptable safety parameters")
}

func TestBuildCritical(t *testing.T) {
	d := sampleData()
	d.Status = domain.StatusCritical
	d.DeviceStatus = ""
	d.YearsToFailure = nil
	d.Prediction = integrity.Prediction{ThicknessLoss: 4, CurrentThickness: 8, RemainingLife: 0, RiskLevel: integrity.RiskHigh}
	doc := Build(d)

	assert.Equal(t, "Unassigned", doc.Sections[2].Paragraphs[4].Text)
	assert.Len(t, doc.Sections[3].Paragraphs, 4)
	bullets := doc.Sections[4].Bullets
	assert.Contains(t, bullets[0], "exceeds expected")
	assert.Contains(t, bullets[1], "has reached")
	assert.Contains(t, bullets[2], "critical")
	assert.Contains(t, bullets[3], "immediate")
	assert.Contains(t, doc.Sections[5].Numbered[0], "30 days")
	assert.Contains(t, doc.Sections[5].Numbered[3], "immediately")
	assert.Contains(t, doc.Sections[6].Paragraphs[0].Text, "requires attention")
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatDOCX, "DOCX": FormatDOCX, "pdf": FormatPDF, "txt": FormatText, " text ": FormatText}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xls")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, "Pipeline_Integrity_Report_2025-03-01.pdf", FileName(reportDate, FormatPDF))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestRenderDOCX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(sampleData()), FormatDOCX))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(body)
	}
	require.Contains(t, files, "[Content_Types].xml")
	require.Contains(t, files, "_rels/.rels")
	doc := files["word/document.xml"]
	assert.Contains(t, doc, Title)
	assert.Contains(t, doc, "API 5L X65 &amp; X70")
	assert.Contains(t, doc, "Generated: March 1, 2025")
	assert.Contains(t, doc, `<w:color w:val="FF8C00">`)
	assert.Contains(t, doc, `<w:pStyle w:val="ListNumber">`)
	assert.Contains(t, files, "word/styles.xml")
}

func TestRiskColor(t *testing.T) {
	tests := map[integrity.Risk]string{
		integrity.RiskHigh:   "DC2626",
		integrity.RiskMedium: "FF8C00",
		integrity.RiskLow:    "16A34A",
	}
	for risk, want := range tests {
		c := riskColor(Paragraph{Text: string(risk)})
		assert.Equal(t, want, c.hex(), risk)
	}
	assert.Equal(t, rgb{0xDC, 0x26, 0x26}, riskColor(Paragraph{Text: string(integrity.RiskHigh)}))
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(sampleData()), FormatPDF))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(sampleData()), FormatText))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, Title+"\n"+Subtitle+"\n"))
	assert.Contains(t, out, "Risk Level: Medium\n")
	assert.Contains(t, out, "\nRISK ANALYSIS\n-------------\n")
	assert.Contains(t, out, "1. Schedule detailed ultrasonic thickness inspection")
	assert.Contains(t, out, "IntegrityOS - Pipeline Integrity Monitoring Platform")

	assert.Error(t, Render(&buf, Document{}, Format("xls")))
}

func TestWriteSummary(t *testing.T) {
	s := domain.Summary{
		GeneratedAt: reportDate,
		Pipelines: []domain.PipelineStatus{
			{SensorReading: domain.SensorReading{PipelineID: "A", Temperature: 42.04, Pressure: 875, ThicknessLoss: 1.731}, Status: domain.StatusNormal},
			{SensorReading: domain.SensorReading{PipelineID: "B", Temperature: 38, Pressure: 930, ThicknessLoss: 1.45}, Status: domain.StatusWarning},
		},
		AverageTemperature: 40.02,
		AveragePressure:    902.5,
		StatusCounts:       map[domain.Status]int{domain.StatusNormal: 1, domain.StatusWarning: 1},
		Recommendations:    []string{"Continue regular monitoring of all pipeline sensors"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "Total Pipelines Monitored: 2\n")
	assert.Contains(t, out, "System Status: Operational\n")
	assert.Contains(t, out, "Pipeline A:\n  - Temperature: 42.0°C\n  - Pressure: 875 hPa\n  - Thickness Loss: 1.73 mm\n  - Status: Normal\n")
	assert.Contains(t, out, "  - Status: Warning\n")
	assert.Contains(t, out, "Average Temperature: 40.0°C\n")
	assert.Contains(t, out, "1. Continue regular monitoring of all pipeline sensors\n")
	assert.True(t, strings.HasSuffix(out, "End of Report\n"))
	assert.Equal(t, "pipeline-report-2025-03-01.txt", SummaryFileName(reportDate))
}
