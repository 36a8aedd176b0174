package report

// htmlTemplate renders a single page without external assets.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Test Report</title>
    <style>
        :root {
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --muted: #64748b;
            --border: #e2e8f0;
            --accent: #3b82f6;
            --ok: #22c55e;
            --warn: #f59e0b;
            --bad: #ef4444;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
        }
        .container { max-width: 1100px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--card);
            border: 1px solid var(--border);
            border-radius: 10px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        header h1 { font-size: 1.6rem; }
        .meta { color: var(--muted); font-size: 0.9rem; }
        .badge { padding: 0.4rem 1rem; border-radius: 999px; font-weight: 700; color: #fff; }
        .badge.pass { background: var(--ok); }
        .badge.fail { background: var(--bad); }
        .warning { border-left: 4px solid var(--warn); }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
        .stat .label { color: var(--muted); font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.05em; }
        .stat .value { font-size: 1.5rem; font-weight: 700; }
        h2 { font-size: 1.1rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid var(--border); }
        th { color: var(--muted); font-weight: 600; font-size: 0.85rem; }
        td.num { font-variant-numeric: tabular-nums; }
        .ok { color: var(--ok); }
        .bad { color: var(--bad); }
        svg { width: 100%; height: auto; background: var(--bg); border-radius: 6px; }
        svg polyline { fill: none; stroke: var(--accent); stroke-width: 2; }
        .chart-max { color: var(--muted); font-size: 0.8rem; }
        footer { color: var(--muted); font-size: 0.8rem; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <header class="card">
        <div>
            <h1>{{.Name}}</h1>
            <div class="meta">{{.Method}} {{.Target}}</div>
            <div class="meta">Run {{.RunID}} &middot; {{.Snap.StartTime.Format "2006-01-02 15:04:05"}} &middot; {{formatDuration .Snap.Elapsed}}</div>
        </div>
        {{if .Passed}}<span class="badge pass">✓ PASSED</span>{{else}}<span class="badge fail">✗ FAILED</span>{{end}}
    </header>

    {{if .Snap.ForcedTermination}}
    <div class="card warning">
        Grace period elapsed: in-flight requests were aborted. {{.Snap.StuckVUs}} VUs did not stop in time.
    </div>
    {{end}}

    <section class="card">
        <div class="grid">
            <div class="stat"><div class="label">Iterations</div><div class="value">{{formatNumber .Snap.TotalIterations}}</div></div>
            <div class="stat"><div class="label">Throughput</div><div class="value">{{printf "%.1f" .Snap.IterationRate}}/s</div></div>
            <div class="stat"><div class="label">VUs</div><div class="value">{{.Snap.VUs}}</div></div>
            <div class="stat"><div class="label">P95 Latency</div><div class="value">{{formatLatency .Snap.Latency.P95}}</div></div>
            <div class="stat"><div class="label">Failed</div><div class="value">{{percent .Snap.FailedRate}}</div></div>
            <div class="stat"><div class="label">Checks Passed</div><div class="value">{{percent .Snap.CheckRate}}</div></div>
            <div class="stat"><div class="label">Data Received</div><div class="value">{{formatBytes .Snap.BytesReceived}}</div></div>
            <div class="stat"><div class="label">Peak In Flight</div><div class="value">{{.Snap.PeakInFlight}}</div></div>
        </div>
    </section>

    {{if .Snap.Checks}}
    <section class="card">
        <h2>Checks</h2>
        <table>
            <tr><th>Check</th><th>Passes</th><th>Fails</th><th>Pass Rate</th></tr>
            {{range .Snap.Checks}}
            <tr>
                <td>{{if .Fails}}<span class="bad">✗</span>{{else}}<span class="ok">✓</span>{{end}} {{.Name}}</td>
                <td class="num">{{formatNumber .Passes}}</td>
                <td class="num">{{formatNumber .Fails}}</td>
                <td class="num">{{percent .PassRate}}</td>
            </tr>
            {{end}}
        </table>
    </section>
    {{end}}

    <section class="card">
        <h2>Latency</h2>
        <table>
            <tr><th>Min</th><th>Avg</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th><th>StdDev</th></tr>
            <tr>
                <td class="num">{{formatLatency .Snap.Latency.Min}}</td>
                <td class="num">{{formatLatency .Snap.Latency.Mean}}</td>
                <td class="num">{{formatLatency .Snap.Latency.P50}}</td>
                <td class="num">{{formatLatency .Snap.Latency.P90}}</td>
                <td class="num">{{formatLatency .Snap.Latency.P95}}</td>
                <td class="num">{{formatLatency .Snap.Latency.P99}}</td>
                <td class="num">{{formatLatency .Snap.Latency.Max}}</td>
                <td class="num">{{formatLatency .Snap.Latency.StdDev}}</td>
            </tr>
        </table>
        <p class="meta">Percentiles are estimated from an HDR histogram (3 significant digits).</p>
    </section>

    {{if .RPSChart.Points}}
    <section class="card">
        <h2>Throughput over time</h2>
        <div class="chart-max">max {{.RPSChart.Max}}</div>
        <svg id="rpsChart" viewBox="0 0 {{chartWidth}} {{chartHeight}}" preserveAspectRatio="none"><polyline points="{{.RPSChart.Points}}"/></svg>
    </section>
    <section class="card">
        <h2>P95 latency over time</h2>
        <div class="chart-max">max {{.P95Chart.Max}}</div>
        <svg id="latencyChart" viewBox="0 0 {{chartWidth}} {{chartHeight}}" preserveAspectRatio="none"><polyline points="{{.P95Chart.Points}}"/></svg>
    </section>
    {{end}}

    {{if or .StatusCodes .ErrorKinds}}
    <section class="card">
        <h2>Responses</h2>
        <table>
            <tr><th>Outcome</th><th>Count</th></tr>
            {{range .StatusCodes}}<tr><td>HTTP {{.Code}}</td><td class="num">{{formatNumber .Count}}</td></tr>{{end}}
            {{range .ErrorKinds}}<tr><td class="bad">{{.Kind}} error</td><td class="num">{{formatNumber .Count}}</td></tr>{{end}}
        </table>
    </section>
    {{end}}

    {{if .Thresholds}}
    <section class="card">
        <h2>Thresholds</h2>
        <table>
            <tr><th></th><th>Metric</th><th>Expression</th><th>Actual</th></tr>
            {{range .Thresholds}}
            <tr>
                <td>{{if .Passed}}<span class="ok">✓</span>{{else}}<span class="bad">✗</span>{{end}}</td>
                <td>{{.Metric}}</td>
                <td>{{.Expression}}</td>
                <td class="num">{{.Value}}</td>
            </tr>
            {{end}}
        </table>
    </section>
    {{end}}

    <footer>Generated by vuload at {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</footer>
</div>
</body>
</html>
`
