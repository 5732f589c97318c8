package server

import (
	"html/template"
	"net/http"
)

type callbackPage struct {
	Title   string
	Heading string
	Icon    string
	Message string
	Detail  string
	Success bool
	CloseMS int
}

var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; color: white;
               background: {{if .Success}}linear-gradient(to bottom right, #064e3b, #065f46, #0d9488){{else}}linear-gradient(to bottom right, #7f1d1d, #991b1b, #b91c1c){{end}}; }
        .container { text-align: center; background: rgba(255,255,255,0.1); padding: 40px; border-radius: 20px; }
        .icon { font-size: 48px; margin-bottom: 20px; }
        h1 { font-size: 24px; margin-bottom: 10px; }
        p { color: rgba(255,255,255,0.8); margin: 0; }
        .detail { font-size: 12px; margin-top: 20px; color: rgba(255,255,255,0.6); }
    </style>
</head>
<body>
    <div class="container">
        <div class="icon">{{.Icon}}</div>
        <h1>{{.Heading}}</h1>
        <p>{{.Message}}</p>
        {{if .Detail}}<p class="detail">{{.Detail}}</p>{{end}}
    </div>
    <script>setTimeout(function () { window.close(); }, {{.CloseMS}});</script>
</body>
</html>
`))

func successPage() callbackPage {
	return callbackPage{
		Title:   "Login successful",
		Heading: "Login successful!",
		Icon:    "✅",
		Message: "Return to spm to continue.",
		Detail:  "This window will close automatically...",
		Success: true,
		CloseMS: 2000,
	}
}

func failurePage(reason string) callbackPage {
	return callbackPage{
		Title:   "Login failed",
		Heading: "Login failed",
		Icon:    "❌",
		Message: "Error: " + reason,
		CloseMS: 3000,
	}
}

func renderPage(w http.ResponseWriter, status int, page callbackPage) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return callbackTemplate.Execute(w, page)
}
