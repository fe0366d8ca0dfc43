package handler

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

type callbackPage struct {
	Provider string
	Success  bool
	Title    string
	Message  string
}

var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{font-family:sans-serif;text-align:center;padding-top:4em;color:#333}</style>
</head>
<body>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<script>
(function () {
  var result = {type: "oauth", provider: {{.Provider}}, success: {{.Success}}};
  if (window.opener) {
    window.opener.postMessage(result, "*");
  }
  {{if .Success}}setTimeout(function () { window.close(); }, 500);{{end}}
})();
</script>
</body>
</html>
`))

// renderCallbackPage closes the login popup after a completed flow, or
// explains a terminal failure.
func renderCallbackPage(w http.ResponseWriter, status int, page callbackPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := callbackTemplate.Execute(w, page); err != nil {
		log.Error().Err(err).Msg("failed to render callback page")
	}
}

func closeWindowPage(provider string) callbackPage {
	return callbackPage{
		Provider: provider,
		Success:  true,
		Title:    "Conta conectada",
		Message:  "Você já pode fechar esta janela.",
	}
}

func failurePage(provider, reason string) callbackPage {
	return callbackPage{
		Provider: provider,
		Success:  false,
		Title:    "Falha na autorização",
		Message:  reason,
	}
}
