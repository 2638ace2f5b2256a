package web

import "html/template"

const baseStyle = `
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d1d5db; padding: .35rem .6rem; }
pre { background: #f3f4f6; padding: .75rem; overflow-x: auto; }
blockquote { border-left: 4px solid #9ca3af; margin: 1rem 0; padding-left: 1rem; color: #4b5563; }
mark { background: #fde68a; }
.meta { color: #6b7280; font-size: .9rem; }
.warning { background: #fef3c7; padding: .5rem .75rem; border-radius: 4px; }
.report-chart { position: relative; height: 320px; margin: 1.5rem 0; }
`

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ttt reports</title>
<style>{{.Style}}</style>
</head>
<body>
<h1>Reports</h1>
{{if .Reports}}
<table>
<thead><tr><th>Created</th><th>Template</th><th>Provider</th><th>Model</th></tr></thead>
<tbody>
{{range .Reports}}<tr>
<td><a href="/reports/{{.ID}}">{{.CreatedAt.Format "2006-01-02 15:04"}}</a></td>
<td>{{.Template}}</td><td>{{.Provider}}</td><td>{{.Model}}</td>
</tr>
{{end}}</tbody>
</table>
{{else}}
<p>No reports yet. Generate one with <code>ttt report generate</code>.</p>
{{end}}
</body>
</html>
`))

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Report.Template}} – {{.Report.CreatedAt.Format "2006-01-02"}}</title>
<style>{{.Style}}</style>
<script src="{{.ChartJS}}"></script>
</head>
<body>
<p class="meta"><a href="/">All reports</a> · {{.Report.Template}} · {{.Report.Provider}} {{.Report.Model}} · {{.Report.CreatedAt.Format "2006-01-02 15:04"}}</p>
{{if .Report.Truncated}}<p class="warning">The provider stopped at its output limit; this report is incomplete.</p>{{end}}
<article>
{{.Body}}
</article>
<section id="unplaced-charts"></section>
<script type="application/json" id="chart-data">{{.Charts}}</script>
<script>
(function () {
  if (typeof Chart === "undefined") return;
  var data = JSON.parse(document.getElementById("chart-data").textContent);
  function draw(host, config) {
    var canvas = document.createElement("canvas");
    host.appendChild(canvas);
    new Chart(canvas, {type: config.type, data: config.data, options: config.options || {}});
  }
  (data.bound || []).forEach(function (b) {
    var host = document.getElementById(b.elementId);
    if (host) draw(host, b.config);
  });
  var rest = document.getElementById("unplaced-charts");
  (data.unplaced || []).forEach(function (c) {
    var host = document.createElement("div");
    host.className = "report-chart";
    rest.appendChild(host);
    draw(host, c);
  });
})();
</script>
</body>
</html>
`))
