package api

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"inventory/pkg/storage"
	"inventory/pkg/visitlog"
)

var (
	homePage = template.Must(template.New("home").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Gaddar</title></head>
<body style="background:#000;color:#ff4444;font-family:monospace;display:flex;align-items:center;justify-content:center;height:100vh;margin:0;">
  <div style="text-align:center">
    <h1>Gaddar! Tune gaddari karke achha nahi kiya 😏</h1>
    <p style="color:#ddd">Tune bola tha Aternos ke alawa koi web nahi khulta — lekin ye web kaise khul gaya?</p>
  </div>
</body></html>
`))

	unavailablePage = template.Must(template.New("unavailable").Parse(`<h2 style="text-align:center;color:#c0392b">Inventory not available</h2>
<p style="text-align:center;color:#666">{{.}}'s inventory file is missing.</p>
`))

	loadFailedPage = template.Must(template.New("loadFailed").Parse(`<p style="color:red;text-align:center">Failed to load inventory data.</p>
`))

	inventoryPage = template.Must(template.New("inventory").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Inventory - {{.Player}}</title>
<style>body{font-family:Arial,Helvetica,sans-serif;background:#f6f7fb;color:#111;padding:18px}h1{color:#111}.slot{border:1px solid #eee;padding:8px;margin:6px;border-radius:6px;background:#fff;display:inline-block;min-width:200px}</style>
</head><body>
<h1>Inventory — <strong>{{.Player}}</strong></h1>
{{- if .Items}}
<div>
{{- range .Items}}
  <div class="slot"><strong>{{.Name}}</strong><br/>Qty: {{.Quantity}}{{if .Enchantments}}<br/>Ench: {{.Enchantments}}{{end}}</div>
{{- end}}
</div>
{{- else}}
<p>No items recorded.</p>
{{- end}}
<p style="color:#666;margin-top:18px">This page only shows {{.Player}}'s inventory (read-only).</p>
</body></html>
`))

	noLogsPage = template.Must(template.New("noLogs").Parse(`<p>No logs.</p>
`))

	logsPage = template.Must(template.New("logs").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Visitor Logs</title>
<style>body{font-family:Arial;margin:18px;background:#f7fafc}table{width:100%;border-collapse:collapse}th,td{padding:8px;border-bottom:1px solid #eee;text-align:left}th{background:#edf2f7}</style>
</head><body>
<h2>Visitor Logs — {{len .}} entries</h2>
<table><thead><tr><th>Time</th><th>IP</th><th>Action</th><th>UA</th><th>Path</th></tr></thead><tbody>
{{- range .}}
{{- if .Raw}}
<tr><td colspan="5">{{.Raw}}</td></tr>
{{- else}}
<tr><td>{{.Time}}</td><td>{{.IP}}</td><td>{{.Action}}</td><td style="max-width:420px">{{.UserAgent}}</td><td>{{.Path}}</td></tr>
{{- end}}
{{- end}}
</tbody></table>
</body></html>
`))
)

type inventoryView struct {
	Player string
	Items  []itemView
}

type itemView struct {
	Name         string
	Quantity     string
	Enchantments string
}

func newInventoryView(player string, inv storage.Inventory) inventoryView {
	v := inventoryView{Player: player}
	for _, it := range inv.Items {
		v.Items = append(v.Items, itemView{
			Name:         it.DisplayName(),
			Quantity:     it.Quantity(),
			Enchantments: it.EnchantmentsText(),
		})
	}
	return v
}

type logRow struct {
	Time      string
	IP        string
	Action    string
	UserAgent string
	Path      string
	Raw       string
}

func newLogsView(entries []visitlog.Entry) []logRow {
	rows := make([]logRow, 0, len(entries))
	for _, e := range entries {
		if e.Raw != "" {
			rows = append(rows, logRow{Raw: e.Raw})
			continue
		}
		action := e.Action
		if action == "" {
			action = "visit"
		}
		rows = append(rows, logRow{
			Time:      e.Time.UTC().Format(time.RFC3339Nano),
			IP:        e.IP,
			Action:    action,
			UserAgent: e.UserAgent,
			Path:      e.Path,
		})
	}
	return rows
}

// render buffers the output of t and writes it with status. Nothing is
// written when the template fails.
func (api *API) render(w http.ResponseWriter, r *http.Request, status int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.Errorf("[render][%s] failed to execute template %s: %v", shorten(GetRequestID(r.Context())), t.Name(), err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
