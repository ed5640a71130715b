package web

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/sweeney/tempo-lights/internal/status"
)

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

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
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
	"bpm": func(v float64) string {
		return fmt.Sprintf("%.1f", round1(v))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Tempo Lights</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Tempo Lights<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Tempo</h2>
<table>
<tr><th>BPM</th><td id="bpm">{{bpm .BPM}}</td></tr>
<tr><th>Period</th><td id="period">{{ms .Period}}ms</td></tr>
<tr><th>Last tap</th><td>{{if .LastTap.IsZero}}never{{else}}{{.LastTap.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Taps</h2>
<table>
<tr><th>Edges</th><td>{{.Taps.Edges}}</td></tr>
<tr><th>Accepted</th><td>{{.Taps.Accepted}}</td></tr>
<tr><th>Debounced</th><td>{{.Taps.Debounced}}</td></tr>
<tr><th>Out of range</th><td>{{.Taps.OutOfRange}}</td></tr>
</table>

<h2>Lights</h2>
<table>
<tr><th>Breathe</th><td>{{if ge .Breathe.Direction 0}}rising{{else}}falling{{end}}, {{ms .Breathe.Period}}ms{{if .Breathe.Pending}} (next {{ms .Breathe.Pending}}ms){{end}}</td></tr>
{{range .Toggles}}<tr><th>{{.Name}}</th><td class="{{if .On}}on{{else}}off{{end}}">{{if .On}}ON{{else}}OFF{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Tempo range</th><td>{{.Config.MinPeriodMs}}ms to {{.Config.MaxPeriodMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Log level</th><td>{{.Config.LogLevel}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var bpmEl = document.getElementById("bpm");
  var periodEl = document.getElementById("period");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        var t = msg.type === "status" ? msg.data.status.tempo : msg.type === "tempo" ? msg.data : null;
        if (t) {
          bpmEl.textContent = t.bpm.toFixed(1);
          periodEl.textContent = t.period_ms + "ms";
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods, but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		BPM    float64
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		BPM:      snap.BPM(),
	}
	return indexTmpl.Execute(w, data)
}
