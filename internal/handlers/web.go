package handlers

import (
	"io"
	"net/http"
)

const indexPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>tracky</title>
<style>
body{font-family:ui-monospace,monospace;max-width:46rem;margin:3rem auto;padding:0 1rem;color:#222}
code{background:#f4f4f4;padding:.1rem .3rem;border-radius:3px}
h1{font-size:1.4rem}
</style>
</head>
<body>
<h1>tracky</h1>
<p>Stateless tracker list aggregator.</p>
<ul>
<li><code>GET /trackers?data=&lt;encoded&gt;</code> &mdash; aggregate, dedupe and serve a plain text tracker list</li>
<li><code>GET /trackers?urls=a,b</code> &mdash; same with literal source URLs</li>
<li><code>GET /proxy?url=&lt;url&gt;</code> &mdash; relay a single remote list</li>
<li><code>GET /proxy/batch?urls=["a","b"]</code> &mdash; fetch several lists, JSON result per URL</li>
<li><code>GET /healthz</code>, <code>GET /status</code>, <code>GET /metrics</code></li>
</ul>
</body>
</html>
`

// Index serves a minimal landing page describing the API surface.
func (a *API) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondMethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = io.WriteString(w, indexPage)
	}
}
