package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Button Sensor{{if .Config.Name}} - {{.Config.Name}}{{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Button Sensor{{if .Config.Name}} ({{.Config.Name}}){{end}}</h1>

<h2>Button</h2>
<table>
<tr><th>Input</th><td id="input" class="{{if .Pressed}}pressed{{else}}released{{end}}">{{if .Pressed}}PRESSED{{else}}RELEASED{{end}}</td></tr>
<tr><th>State</th><td id="state">{{.State}}</td></tr>
<tr><th>Gesture</th><td id="gesture">{{.Gesture}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td id="last-event">{{.LastEvent.Type}} ({{.LastEvent.ElapsedMs}}ms) at {{.LastEvent.Time.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Click</th><td>{{.Counts.Click}}</td></tr>
<tr><th>Held</th><td>{{.Counts.Held}}</td></tr>
<tr><th>Held long</th><td>{{.Counts.HeldLong}}</td></tr>
<tr><th>Release after hold</th><td>{{.Counts.ReleaseAfterHold}}</td></tr>
<tr><th>Release after long hold</th><td>{{.Counts.ReleaseAfterLongHold}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Driver}} {{.Config.Pin}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Thresholds</th><td>{{.Config.FirstThresholdMs}}ms / {{.Config.SecondThresholdMs}}ms ({{.Config.Mode}})</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Warnf("render index: %v", err)
	}
}
