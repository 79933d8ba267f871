package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// subjectFor substitutes the supported placeholders into the config's
// subject template.
func subjectFor(cfg ReportConfig, data ReportData) string {
	tmpl := cfg.SubjectTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = "{period}"
	}
	r := strings.NewReplacer(
		"{period}", data.Period.Label,
		"{totalCalls}", strconv.Itoa(data.TotalCalls),
		"{qualifiedLeads}", strconv.Itoa(data.QualifiedLeads),
		"{conversionRate}", formatRate(data.ConversionRate),
	)
	// Header injection guard; the mailer rejects CR/LF in subjects.
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(r.Replace(tmpl))
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func formatDuration(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

type emailView struct {
	Config ReportConfig
	Data   ReportData

	ShowTotal     bool
	ShowQualified bool
	ShowRate      bool
	ShowAgents    bool
	ShowDuration  bool
	ShowCalls     bool
}

func newEmailView(cfg ReportConfig, data ReportData) emailView {
	return emailView{
		Config:        cfg,
		Data:          data,
		ShowTotal:     cfg.Includes(MetricTotalCalls),
		ShowQualified: cfg.Includes(MetricQualifiedLeads),
		ShowRate:      cfg.Includes(MetricConversionRate),
		ShowAgents:    cfg.Includes(MetricAgentPerformance) && len(data.TopAgents) > 0,
		ShowDuration:  cfg.Includes(MetricCallDuration),
		ShowCalls:     cfg.IncludeCallDetails,
	}
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"rate":     formatRate,
	"duration": formatDuration,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
<h2>{{.Data.Period.Label}}</h2>
<p>{{.Config.Name}}</p>
<table cellpadding="6" style="border-collapse: collapse;">
{{- if .ShowTotal}}
<tr><td>Total calls</td><td><strong>{{.Data.TotalCalls}}</strong></td></tr>
{{- end}}
{{- if .ShowQualified}}
<tr><td>Qualified leads</td><td><strong>{{.Data.QualifiedLeads}}</strong></td></tr>
<tr><td>Not qualified</td><td>{{.Data.NotQualified}}</td></tr>
<tr><td>Pending review</td><td>{{.Data.Pending}}</td></tr>
{{- end}}
{{- if .ShowRate}}
<tr><td>Conversion rate</td><td><strong>{{rate .Data.ConversionRate}}</strong></td></tr>
{{- end}}
{{- if .ShowDuration}}
<tr><td>Average call duration</td><td>{{duration .Data.AverageCallDuration}}</td></tr>
{{- end}}
</table>
{{- if .ShowAgents}}
<h3>Top agents</h3>
<table cellpadding="6" border="1" style="border-collapse: collapse;">
<tr><th>Agent</th><th>Calls</th><th>Qualified</th><th>Rate</th></tr>
{{- range .Data.TopAgents}}
<tr><td>{{.AgentID}}</td><td>{{.TotalCalls}}</td><td>{{.QualifiedLeads}}</td><td>{{rate .QualificationRate}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- if .ShowCalls}}
<h3>Recent calls</h3>
{{- if .Data.RecentCalls}}
<table cellpadding="6" border="1" style="border-collapse: collapse;">
<tr><th>Name</th><th>Phone</th><th>Status</th><th>Duration</th></tr>
{{- range .Data.RecentCalls}}
<tr><td>{{.Name}}</td><td>{{.Phone}}</td><td>{{.Qualification}}</td><td>{{duration .Duration}}</td></tr>
{{- end}}
</table>
{{- if gt .Data.MoreCalls 0}}
<p>...and {{.Data.MoreCalls}} more</p>
{{- end}}
{{- else}}
<p>No calls in this period.</p>
{{- end}}
{{- end}}
</body>
</html>
`))

// RenderEmail produces the subject and both bodies for a report. When call
// details are enabled the full call list is attached as a workbook.
func RenderEmail(cfg ReportConfig, data ReportData) (EmailTemplate, error) {
	view := newEmailView(cfg, data)

	var html bytes.Buffer
	if err := htmlReport.Execute(&html, view); err != nil {
		return EmailTemplate{}, fmt.Errorf("render html: %w", err)
	}

	out := EmailTemplate{
		Subject: subjectFor(cfg, data),
		HTML:    html.String(),
		Text:    renderText(view),
	}

	if cfg.IncludeCallDetails {
		att, err := BuildWorkbook(data)
		if err != nil {
			return EmailTemplate{}, err
		}
		out.Attachments = append(out.Attachments, att)
	}
	return out, nil
}

func renderText(v emailView) string {
	var b strings.Builder
	d := v.Data

	fmt.Fprintf(&b, "%s\n%s\n\n", d.Period.Label, v.Config.Name)
	if v.ShowTotal {
		fmt.Fprintf(&b, "Total calls: %d\n", d.TotalCalls)
	}
	if v.ShowQualified {
		fmt.Fprintf(&b, "Qualified leads: %d\n", d.QualifiedLeads)
		fmt.Fprintf(&b, "Not qualified: %d\n", d.NotQualified)
		fmt.Fprintf(&b, "Pending review: %d\n", d.Pending)
	}
	if v.ShowRate {
		fmt.Fprintf(&b, "Conversion rate: %s\n", formatRate(d.ConversionRate))
	}
	if v.ShowDuration {
		fmt.Fprintf(&b, "Average call duration: %s\n", formatDuration(d.AverageCallDuration))
	}

	if v.ShowAgents {
		b.WriteString("\nTop agents:\n")
		for i, a := range d.TopAgents {
			fmt.Fprintf(&b, "%d. %s - %d calls, %d qualified (%s)\n", i+1, a.AgentID, a.TotalCalls, a.QualifiedLeads, formatRate(a.QualificationRate))
		}
	}

	if v.ShowCalls {
		b.WriteString("\nRecent calls:\n")
		if len(d.RecentCalls) == 0 {
			b.WriteString("No calls in this period.\n")
		}
		for _, c := range d.RecentCalls {
			fmt.Fprintf(&b, "- %s (%s): %s, %s\n", c.Name, c.Phone, c.Qualification, formatDuration(c.Duration))
		}
		if d.MoreCalls > 0 {
			fmt.Fprintf(&b, "...and %d more\n", d.MoreCalls)
		}
	}
	return b.String()
}
