// Package report assembles the pipeline integrity report and renders it as
// DOCX, PDF or plain text.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

const (
	Title    = "PIPELINE INTEGRITY MONITORING REPORT"
	Subtitle = "IntegrityOS Platform"
)

// Paragraph is a body line, optionally prefixed with a bold label.
type Paragraph struct {
	Label    string
	Text     string
	Emphasis bool
}

type Section struct {
	Heading    string
	Paragraphs []Paragraph
	Bullets    []string
	Numbered   []string
}

type Document struct {
	Title     string
	Subtitle  string
	Generated time.Time
	Sections  []Section
	Footer    []string
}

// Data is everything the report needs about one pipeline.
type Data struct {
	Date           time.Time
	Pipeline       domain.Pipeline
	Reading        domain.SensorReading
	Status         domain.Status
	DeviceStatus   domain.DeviceStatus
	Prediction     integrity.Prediction
	YearsToFailure *float64
}

// Build lays out the fixed report sections from live values.
func Build(d Data) Document {
	p, pred := d.Pipeline, d.Prediction
	risk := strings.ToUpper(string(pred.RiskLevel))

	device := "Unassigned"
	if d.DeviceStatus != "" {
		device = titleCase(string(d.DeviceStatus))
	}

	params := []Paragraph{
		{Label: "Pipeline ID", Text: p.ID},
		{Label: "Pipe Size", Text: fmt.Sprintf("%g inches (%.0f mm)", p.PipeSize, p.PipeSize*25.4)},
		{Label: "Material", Text: orDash(p.Material)},
		{Label: "Grade", Text: orDash(p.Grade)},
		{Label: "Initial Thickness", Text: fmt.Sprintf("%.1f mm", p.InitialThickness)},
		{Label: "Minimum Allowed Thickness", Text: fmt.Sprintf("%.1f mm", p.MinThickness)},
	}
	if p.Condition != "" {
		params = append(params, Paragraph{Label: "Condition", Text: p.Condition})
	}

	sensor := []Paragraph{
		{Label: "Current Temperature", Text: fmt.Sprintf("%.1f°C", d.Reading.Temperature)},
		{Label: "Current Pressure", Text: fmt.Sprintf("%.0f psi", d.Reading.Pressure)},
		{Label: "Thickness Loss", Text: fmt.Sprintf("%.2f mm", d.Reading.ThicknessLoss)},
		{Label: "Integrity Status", Text: titleCase(string(d.Status))},
		{Label: "Device Status", Text: device},
		{Label: "Last Update", Text: d.Reading.Timestamp.UTC().Format("2006-01-02 15:04:05 MST")},
	}

	prediction := []Paragraph{
		{Label: "Predicted Thickness Loss", Text: fmt.Sprintf("%.2f mm", pred.ThicknessLoss)},
		{Label: "Current Wall Thickness", Text: fmt.Sprintf("%.2f mm", pred.CurrentThickness)},
		{Label: "Remaining Life Estimate", Text: fmt.Sprintf("%.1f years", pred.RemainingLife)},
		{Label: "Risk Level", Text: string(pred.RiskLevel), Emphasis: true},
	}
	if d.YearsToFailure != nil {
		prediction = append(prediction, Paragraph{Label: "Years to Failure (observed rate)", Text: fmt.Sprintf("%.1f years", *d.YearsToFailure)})
	}

	return Document{
		Title:     Title,
		Subtitle:  Subtitle,
		Generated: d.Date,
		Sections: []Section{
			{
				Heading: "EXECUTIVE SUMMARY",
				Paragraphs: []Paragraph{{Text: "This report provides a comprehensive analysis of pipeline integrity based on " +
					"real-time sensor data and predictive analytics. The IntegrityOS platform continuously monitors " +
					"critical parameters to ensure safe and efficient pipeline operations."}},
			},
			{Heading: "PIPELINE PARAMETERS", Paragraphs: params},
			{Heading: "REAL-TIME SENSOR DATA", Paragraphs: sensor},
			{Heading: "AI PREDICTION RESULTS", Paragraphs: prediction},
			{
				Heading: "RISK ANALYSIS",
				Paragraphs: []Paragraph{{Text: fmt.Sprintf("The current analysis indicates a %s risk level for the "+
					"monitored pipeline segment. Key findings include:", risk)}},
				Bullets: riskFindings(d),
			},
			{Heading: "RECOMMENDATIONS", Numbered: recommendations(d)},
			{Heading: "CONCLUSION", Paragraphs: []Paragraph{{Text: conclusion(d)}}},
		},
		Footer: []string{
			"IntegrityOS - Pipeline Integrity Monitoring Platform",
			"AI-Powered Predictive Maintenance for Critical Infrastructure",
		},
	}
}

func riskFindings(d Data) []string {
	pred := d.Prediction
	var out []string

	if pred.RiskLevel == integrity.RiskHigh {
		out = append(out, "Corrosion rate exceeds expected parameters for the material grade and operating conditions")
	} else {
		out = append(out, "Corrosion rate is within expected parameters for the material grade and operating conditions")
	}

	if pred.CurrentThickness > d.Pipeline.MinThickness {
		out = append(out, "Current wall thickness remains above minimum safety threshold")
	} else {
		out = append(out, "Current wall thickness has reached the minimum safety threshold")
	}

	switch d.Status {
	case domain.StatusCritical:
		out = append(out, "Sensor readings exceed critical operating thresholds")
	case domain.StatusWarning:
		out = append(out, "Sensor readings exceed warning thresholds and need close observation")
	default:
		out = append(out, "Temperature and pressure readings are stable and within normal operating ranges")
	}

	if pred.RemainingLife > 2 {
		out = append(out, "Estimated remaining service life allows for planned maintenance scheduling")
	} else {
		out = append(out, "Estimated remaining service life requires immediate maintenance planning")
	}
	return out
}

func recommendations(d Data) []string {
	inspection := "within the next 12 months"
	switch d.Prediction.RiskLevel {
	case integrity.RiskHigh:
		inspection = "within the next 30 days"
	case integrity.RiskMedium:
		inspection = "within the next 6 months"
	}

	replace := "Plan for pipeline segment replacement or reinforcement immediately"
	if years := math.Floor(d.Prediction.RemainingLife); years >= 1 {
		replace = fmt.Sprintf("Plan for pipeline segment replacement or reinforcement within %.0f-%.0f years", math.Max(1, years-1), years)
	}

	return []string{
		"Schedule detailed ultrasonic thickness inspection " + inspection,
		"Continue continuous monitoring with current sensor array configuration",
		"Review and update corrosion mitigation strategies",
		replace,
	}
}

func conclusion(d Data) string {
	if d.Status == domain.StatusNormal && d.Prediction.RiskLevel != integrity.RiskHigh {
		return "The pipeline integrity assessment indicates that the current segment is operating within acceptable " +
			"safety parameters. The predictive analytics provide valuable insights for proactive maintenance planning. " +
			"Continued monitoring and timely implementation of recommended actions will ensure safe and reliable pipeline operations."
	}
	return "The pipeline integrity assessment indicates that the current segment requires attention. " +
		"Recommended actions should be prioritised and monitoring intensified until readings return to normal operating ranges."
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
