package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/drew/cirun/internal/fsutil"
)

// writeHistoryHTML renders the history page
func writeHistoryHTML(path string, summary Summary) error {
	tmpl, err := template.New("history").Funcs(template.FuncMap{
		"formatTime":     formatTime,
		"formatCoverage": formatCoverage,
		"statusClass":    statusClass,
		"statusSymbol":   statusSymbol,
	}).Parse(historyTemplate)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, summary); err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func formatTime(timestamp string) string {
	if timestamp == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatCoverage(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *pct)
}

func statusClass(status string) string {
	switch status {
	case "PASS":
		return "pass"
	case "FAIL":
		return "fail"
	default:
		return ""
	}
}

func statusSymbol(status string) string {
	switch status {
	case "PASS":
		return "✓"
	case "FAIL":
		return "✗"
	default:
		return "•"
	}
}

const historyTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>cirun history</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: #f5f5f5;
            color: #333;
            line-height: 1.6;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }
        header, .section, .stat-card {
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        header { padding: 30px; margin-bottom: 30px; }
        h1 { font-size: 32px; margin-bottom: 10px; color: #2c3e50; }
        h2 { font-size: 24px; margin-bottom: 20px; color: #2c3e50; }
        .subtitle { color: #7f8c8d; font-size: 14px; }
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin-bottom: 30px;
        }
        .stat-card { padding: 20px; }
        .stat-value { font-size: 36px; font-weight: bold; color: #2c3e50; }
        .stat-label { color: #7f8c8d; font-size: 14px; margin-top: 5px; }
        .section { padding: 30px; margin-bottom: 30px; }
        table { width: 100%; border-collapse: collapse; }
        th {
            text-align: left;
            padding: 12px;
            background: #f8f9fa;
            font-weight: 600;
            color: #2c3e50;
            border-bottom: 2px solid #dee2e6;
        }
        td { padding: 12px; border-bottom: 1px solid #dee2e6; }
        tr:hover { background: #f8f9fa; }
        .status-pass { color: #27ae60; font-weight: bold; }
        .status-fail { color: #e74c3c; font-weight: bold; }
        .mono { font-family: 'Monaco', 'Menlo', 'Courier New', monospace; font-size: 13px; }
        .empty { color: #7f8c8d; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>Test history</h1>
        <div class="subtitle">Generated {{formatTime .LastGenerated}}</div>
    </header>

    <div class="stats-grid">
        <div class="stat-card"><div class="stat-value">{{.TotalRuns}}</div><div class="stat-label">Commits</div></div>
        <div class="stat-card"><div class="stat-value status-pass">{{.PassingRuns}}</div><div class="stat-label">Passing</div></div>
        <div class="stat-card"><div class="stat-value status-fail">{{.FailingRuns}}</div><div class="stat-label">Failing</div></div>
        <div class="stat-card"><div class="stat-value">{{formatCoverage .LatestCoverage}}</div><div class="stat-label">Latest coverage</div></div>
        <div class="stat-card"><div class="stat-value">{{formatCoverage .AverageCoverage}}</div><div class="stat-label">Average coverage</div></div>
    </div>

    <div class="section">
        <h2>Recent commits</h2>
        {{if .RecentRuns}}
        <table>
            <thead>
                <tr><th>Status</th><th>Commit</th><th>Time</th><th>Description</th><th>Coverage</th></tr>
            </thead>
            <tbody>
            {{range .RecentRuns}}
                <tr>
                    <td class="status-{{statusClass .Status}}">{{statusSymbol .Status}} {{.Status}}</td>
                    <td class="mono"><a href="{{.ReportLink}}" title="{{.CommitID}}">{{.ShortID}}</a></td>
                    <td>{{formatTime .Timestamp}}</td>
                    <td>{{.Description}}</td>
                    <td>{{formatCoverage .Coverage}}</td>
                </tr>
            {{end}}
            </tbody>
        </table>
        {{else}}
        <p class="empty">No runs recorded yet.</p>
        {{end}}
    </div>

    {{if .FlakyTests}}
    <div class="section">
        <h2>Intermittent failures</h2>
        <table>
            <thead><tr><th>Test</th><th>Failures</th><th>Last failed at</th></tr></thead>
            <tbody>
            {{range .FlakyTests}}
                <tr><td class="mono">{{.ID}}</td><td>{{.FailCount}}</td><td class="mono">{{.LastFailed}}</td></tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}
</div>
</body>
</html>
`
