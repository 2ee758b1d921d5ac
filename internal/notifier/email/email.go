// Package email implements an SMTP-based email notifier
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/notifier"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	if port, ok := cfg.Params["port"].(int); ok {
		e.port = port
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	switch to := cfg.Params["to"].(type) {
	case []string:
		e.to = to
	case []any:
		e.to = e.to[:0]
		for _, v := range to {
			if s, ok := v.(string); ok {
				e.to = append(e.to, s)
			}
		}
	case string:
		e.to = strings.Split(to, ",")
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	return nil
}

func (e *Email) Send(ctx context.Context, report *engine.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := Render(report)
	if err != nil {
		return err
	}
	return e.sendEmail(report.Title(), body)
}

var funcs = template.FuncMap{
	"date":  func(r *engine.Report) string { return r.Meta.RunDate.Format("2006-01-02") },
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"prob":  func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"px":    func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"score": func(v float64) string { return fmt.Sprintf("%.0f", v*100) },
	"actionColor": func(a core.Action) string {
		switch a {
		case core.ActionStrongHold, core.ActionHold:
			return "#28a745"
		case core.ActionTrim25:
			return "#e0a800"
		}
		return "#dc3545"
	},
	"regimeColor": func(r core.Regime) string {
		switch r {
		case core.RegimeRiskOn:
			return "#28a745"
		case core.RegimeRiskOff:
			return "#dc3545"
		}
		return "#6c757d"
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(funcs).Parse(`<html><body style="font-family: sans-serif;">
<h2>Daily Report {{date .}}</h2>
<h3 style="color: {{regimeColor .Regime.Label}};">{{.Regime.Label}} (x{{printf "%.1f" .Regime.Multiplier}})</h3>
<p>{{.Regime.Explanation}}</p>
<hr>
<h3>Holdings</h3>
{{if .Holdings}}<table cellpadding="4">
<tr><th>Symbol</th><th>Score</th><th>Action</th><th>Price</th><th>Stop</th><th>P&amp;L</th></tr>
{{range .Holdings}}<tr><td>{{.Symbol}}</td><td>{{.Score}}/10</td><td style="color: {{actionColor .Action}};">{{.Action}}</td><td>{{px .Price}}</td><td>{{px .StopLoss}}</td><td>{{pct .UnrealizedPnLPct}}</td></tr>
{{end}}</table>{{else}}<p>No holdings scored.</p>{{end}}
<h3>Candidates</h3>
{{if .Candidates}}<table cellpadding="4">
<tr><th>Symbol</th><th>Composite</th><th>Entry</th><th>Stop</th><th>Bull / Base / Bear</th><th>Targets</th></tr>
{{range .Candidates}}<tr><td>{{.Symbol}}</td><td>{{score .Composite}}</td><td>{{px .EntryLow}} - {{px .EntryHigh}}</td><td>{{px .Stop}}</td><td>{{prob .Scenario.Bull}} / {{prob .Scenario.Base}} / {{prob .Scenario.Bear}}</td><td>{{px .Targets.Bull}} / {{px .Targets.Base}} / {{px .Targets.Bear}}</td></tr>
{{end}}</table>{{else}}<p>No candidates passed the filters.</p>{{end}}
<h3>Allocation</h3>
{{if .Plan.Positions}}<ul>
{{range .Plan.Positions}}<li><strong>BUY {{.Symbol}}</strong> {{.Shares}} shares @ {{px .Entry}}, stop {{px .Stop}}, notional {{px .Notional}}</li>
{{end}}</ul>{{else}}<p>No new positions.</p>{{end}}
{{if .Plan.Reductions}}<ul>
{{range .Plan.Reductions}}<li style="color: {{actionColor .Action}};">{{.Action}} {{.Symbol}}: {{.Shares}} shares</li>
{{end}}</ul>{{end}}
<p>Cash {{pct .Plan.CashPct}}, exposure {{pct .Plan.ExposurePct}}, {{.Plan.OpenPositions}} open positions.</p>
{{if .Plan.RiskNotes}}<h4>Risk notes</h4><ul>{{range .Plan.RiskNotes}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Plan.DeploymentPlan}}<h4>Deployment</h4><pre>{{.Plan.DeploymentPlan}}</pre>{{end}}
{{if .ExternalHoldings}}<h3>External holdings</h3><ul>
{{range .ExternalHoldings}}<li>{{.Name}}: {{.Quantity}} @ {{px .AvgCost}}{{if .Notes}} ({{.Notes}}){{end}}</li>
{{end}}</ul>{{end}}
<hr>
<p><small>Run {{.Meta.RunID}} via {{.Meta.Provider}}, coverage {{prob .Meta.Coverage}}{{if .Meta.Warnings}}, {{len .Meta.Warnings}} warnings{{end}}</small></p>
{{if .Meta.Warnings}}<ul>{{range .Meta.Warnings}}<li><small>[{{.Stage}}] {{.Symbol}} {{.Code}}: {{.Message}}</small></li>{{end}}</ul>{{end}}
</body></html>`))

// Render produces the HTML body for report.
func Render(report *engine.Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("email: render report: %w", err)
	}
	return buf.String(), nil
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	contentType := "text/plain"
	if strings.Contains(body, "<html>") {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		contentType,
		body,
	)

	return e.send(addr, auth, e.from, e.to, []byte(msg))
}
