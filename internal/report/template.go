package report

// ChartPageTemplate is the HTML page a FileSink wraps each chart in.
const ChartPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --accent: #2563eb;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    max-width: 1040px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.3rem; font-weight: 600; padding-bottom: 6px; border-bottom: 2px solid var(--accent); margin-bottom: 12px; }
  .chart svg { width: 100%; height: auto; }
  .footer { margin-top: 12px; font-size: 0.75rem; color: var(--muted); }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="chart">{{.SVG}}</div>
<div class="footer">Generated by finsight</div>
</body>
</html>
`
