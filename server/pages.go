package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/html"
)

const pageStyle = `<style>
body{font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;line-height:1.6;margin:0 auto;max-width:860px;padding:20px;color:#333;background-color:#fafafa;}
h1{margin-bottom:4px;} input,button{font-size:1em;padding:6px 10px;} input[type=text]{width:70%;}
code,pre{background:#eee;padding:2px 4px;} pre{padding:10px;overflow:auto;}
table{border-collapse:collapse;width:100%;} td,th{border:1px solid #ccc;padding:4px 8px;text-align:left;}
.muted{color:#777;} .error{color:#b00;}
</style>`

const homePage = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Rigil Proxy</title>` + pageStyle + `</head><body>
<h1>Rigil Proxy</h1>
<p class="muted">Fetches a page and returns it stripped down to text, headings, lists and links.</p>
<form id="go">
<p><input type="text" id="url" placeholder="example.com/page" autofocus> <button type="submit">Open</button></p>
<p><input type="text" id="apikey" placeholder="API key (optional)"></p>
</form>
<p><a href="/api/docs">API documentation</a> | <a href="/admin">Key administration</a></p>
<script>
const keyInput = document.getElementById('apikey');
keyInput.value = localStorage.getItem('rigil_api_key') || '';
document.getElementById('go').addEventListener('submit', function (e) {
  e.preventDefault();
  const url = document.getElementById('url').value.trim();
  if (!url) { return; }
  const key = keyInput.value.trim();
  localStorage.setItem('rigil_api_key', key);
  let target = '{{PROXY}}?url=' + encodeURIComponent(url);
  if (key) { target += '&api_key=' + encodeURIComponent(key); }
  window.location.href = target;
});
</script>
</body></html>`

const docsPage = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Rigil Proxy API</title>` + pageStyle + `</head><body>
<h1>Rigil Proxy API</h1>
<h2>Simplified page</h2>
<p><strong>GET</strong> <code>{{PROXY}}?url=https://example.com&amp;api_key=your_key</code></p>
<p>Returns the simplified HTML document. Links inside it point back at this endpoint.</p>
<h2>JSON processing</h2>
<p><strong>GET</strong> <code>/api/process?url=https://example.com&amp;api_key=your_key&amp;format=json</code></p>
<p><strong>POST</strong> <code>/api/process</code> with header <code>X-API-Key</code> and body:</p>
<pre>{"url": "https://example.com", "format": "json"}</pre>
<p><code>format</code> is <code>json</code> (default), <code>html</code> (document only) or <code>markdown</code>.</p>
<pre>{
  "success": true,
  "data": "&lt;!DOCTYPE html&gt;...",
  "error": null,
  "original_url": "https://example.com/",
  "processed_at": "2025-01-01T00:00:00Z",
  "original_size_bytes": 1256,
  "processed_size_bytes": 532
}</pre>
<h2>Keys</h2>
<p><strong>GET</strong> <code>/api/keys/usage?api_key=your_key</code></p>
<p><strong>POST</strong> <code>/api/keys/create</code> body <code>{"admin_key": "...", "key": "optional"}</code></p>
<p><strong>GET</strong> <code>/api/keys/list?admin_key=...</code>, <code>/api/keys/stats?admin_key=...</code></p>
<p><strong>DELETE</strong> <code>/api/keys/delete?admin_key=...&amp;key=...</code></p>
<h2>Errors</h2>
<p>400 for a missing or malformed url, 401 for a missing or invalid key, 502 when the upstream page cannot be fetched, 504 when it times out.</p>
<p><a href="/">Home</a></p>
</body></html>`

const adminPage = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Rigil Proxy Admin</title>` + pageStyle + `</head><body>
<h1>Key administration</h1>
<p><input type="text" id="admin" placeholder="Admin key"> <button id="load">Load</button></p>
<p id="msg" class="error"></p>
<div id="stats" class="muted"></div>
<table id="keys"><thead><tr><th>Key</th><th>Requests</th><th>Original bytes</th><th>Processed bytes</th><th>Last used</th><th></th></tr></thead><tbody></tbody></table>
<p><input type="text" id="newkey" placeholder="New key (blank to generate)"> <button id="create">Create</button></p>
<p><a href="/">Home</a></p>
<script>
const msg = document.getElementById('msg');
function admin() { return document.getElementById('admin').value.trim(); }
async function call(url, options) {
  const res = await fetch(url, options);
  const body = await res.json();
  if (!body.success) { throw new Error(body.error || res.statusText); }
  return body;
}
async function load() {
  msg.textContent = '';
  try {
    const q = '?admin_key=' + encodeURIComponent(admin());
    const stats = (await call('/api/keys/stats' + q)).stats;
    document.getElementById('stats').textContent =
      stats.key_count + ' keys, ' + stats.compression_count + ' documents, ' +
      stats.total_original_bytes + ' bytes in, ' + stats.total_processed_bytes + ' bytes out';
    const keys = (await call('/api/keys/list' + q)).keys || [];
    const tbody = document.querySelector('#keys tbody');
    tbody.innerHTML = '';
    for (const k of keys) {
      const tr = document.createElement('tr');
      for (const v of [k.key, k.compression_count, k.total_original_bytes, k.total_processed_bytes, k.last_used || '-']) {
        const td = document.createElement('td');
        td.textContent = v;
        tr.appendChild(td);
      }
      const td = document.createElement('td');
      const del = document.createElement('button');
      del.textContent = 'Delete';
      del.onclick = async function () {
        try {
          await call('/api/keys/delete' + q + '&key=' + encodeURIComponent(k.key), { method: 'DELETE' });
          load();
        } catch (e) { msg.textContent = e.message; }
      };
      td.appendChild(del);
      tr.appendChild(td);
      tbody.appendChild(tr);
    }
  } catch (e) { msg.textContent = e.message; }
}
document.getElementById('load').onclick = load;
document.getElementById('create').onclick = async function () {
  try {
    await call('/api/keys/create', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ admin_key: admin(), key: document.getElementById('newkey').value.trim() })
    });
    document.getElementById('newkey').value = '';
    load();
  } catch (e) { msg.textContent = e.message; }
};
</script>
</body></html>`

func (s *Server) page(tmpl string) []byte {
	return []byte(strings.ReplaceAll(tmpl, "{{PROXY}}", s.cfg.Server.ProxyPath))
}

func (s *Server) handleHome(c *gin.Context) {
	c.Data(http.StatusOK, contentHTML, s.page(homePage))
}

func (s *Server) handleDocs(c *gin.Context) {
	c.Data(http.StatusOK, contentHTML, s.page(docsPage))
}

func (s *Server) handleAdminPage(c *gin.Context) {
	c.Data(http.StatusOK, contentHTML, s.page(adminPage))
}

func (s *Server) errorPage(c *gin.Context, status int, title, message string) {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</title>` + pageStyle + `</head><body><h1>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</h1><p class="error">`)
	b.WriteString(html.EscapeString(message))
	b.WriteString(`</p><p><a href="/">Back to home</a></p></body></html>`)
	c.Data(status, contentHTML, []byte(b.String()))
}
