// Package frontend serves the browser shell: static assets and the two
// HTML pages. The pages are thin; the live timeline itself is rendered
// server-side and pushed over the event stream.
package frontend

import "github.com/a-h/templ"

func LoginPage() templ.Component {
	return templ.Raw(loginPageHTML)
}

func TimelinePage() templ.Component {
	return templ.Raw(timelinePageHTML)
}

const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>Organizer &middot; Sign in</title>
<link rel="stylesheet" href="/static/styles.css"/>
</head>
<body>
<div class="shell" style="max-width: 24rem; padding-top: 4rem;">
  <div class="card">
    <h1 style="margin-top:0">Sign in</h1>
    <div class="field">
      <label for="username">Username</label>
      <input id="username" type="text" autocomplete="username"/>
    </div>
    <div class="field">
      <label for="password">Password</label>
      <input id="password" type="password" autocomplete="current-password"/>
      <div class="error" id="login-error"></div>
    </div>
    <button class="btn primary" id="login-btn" style="width:100%">Sign in</button>
  </div>
</div>
<script>
const apiBase = window.ORGANIZER_API_BASE || "http://localhost:8080";
document.getElementById("login-btn").addEventListener("click", async () => {
  const errorEl = document.getElementById("login-error");
  errorEl.textContent = "";
  try {
    const res = await fetch(apiBase + "/api/v1/auth/login", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({
        username: document.getElementById("username").value,
        password: document.getElementById("password").value,
      }),
    });
    const body = await res.json();
    if (!res.ok) {
      errorEl.textContent = body.error || "Sign-in failed.";
      return;
    }
    localStorage.setItem("access_token", body.access_token);
    localStorage.setItem("refresh_token", body.refresh_token);
    window.location.href = "/app";
  } catch (err) {
    errorEl.textContent = "Could not reach the server.";
  }
});
</script>
</body>
</html>`

const timelinePageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>Organizer</title>
<link rel="stylesheet" href="/static/styles.css"/>
</head>
<body>
<div class="shell">
  <div class="topbar">
    <h1>Organizer</h1>
    <div>
      <button class="btn primary" id="add-btn">Add event</button>
      <a class="btn" id="export-link" href="#">Export .ics</a>
      <button class="btn" id="logout-btn">Sign out</button>
    </div>
  </div>
  <ul class="timeline" id="timeline">
    <li class="empty">Connecting&hellip;</li>
  </ul>
</div>
<script>
const apiBase = window.ORGANIZER_API_BASE || "http://localhost:8080";
const token = localStorage.getItem("access_token");
if (!token) {
  window.location.href = "/login";
}

const source = new EventSource("/events?token=" + encodeURIComponent(token));
source.addEventListener("timeline", (e) => {
  document.getElementById("timeline").innerHTML = e.data;
});
source.onerror = () => {
  const el = document.querySelector("#timeline .empty");
  if (el) { el.textContent = "Reconnecting…"; }
};

document.getElementById("logout-btn").addEventListener("click", async () => {
  const refresh = localStorage.getItem("refresh_token");
  if (refresh) {
    await fetch(apiBase + "/api/v1/auth/logout", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({refresh_token: refresh}),
    }).catch(() => {});
  }
  localStorage.removeItem("access_token");
  localStorage.removeItem("refresh_token");
  window.location.href = "/login";
});

document.getElementById("export-link").addEventListener("click", async (e) => {
  e.preventDefault();
  const res = await fetch(apiBase + "/api/v1/events.ics", {
    headers: {Authorization: "Bearer " + token},
  });
  if (!res.ok) { return; }
  const blob = await res.blob();
  const url = URL.createObjectURL(blob);
  const a = document.createElement("a");
  a.href = url;
  a.download = "events.ics";
  a.click();
  URL.revokeObjectURL(url);
});

document.getElementById("add-btn").addEventListener("click", () => {
  const title = prompt("Title");
  if (!title) { return; }
  const description = prompt("Description") || "";
  const date = prompt("Date (YYYY-MM-DD)") || "";
  fetch(apiBase + "/api/v1/events", {
    method: "POST",
    headers: {
      "Content-Type": "application/json",
      Authorization: "Bearer " + token,
    },
    body: JSON.stringify({
      title: title,
      description: description,
      date: date,
      icon: "pi pi-calendar",
      colour: "607D8B",
    }),
  });
});

document.getElementById("timeline").addEventListener("click", (e) => {
  const btn = e.target.closest("button[data-delete-id]");
  if (!btn) { return; }
  if (!confirm("Delete this event?")) { return; }
  fetch(apiBase + "/api/v1/events/" + btn.dataset.deleteId, {
    method: "DELETE",
    headers: {Authorization: "Bearer " + token},
  });
});
</script>
</body>
</html>`
