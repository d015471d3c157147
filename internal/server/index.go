package server

import (
	"html/template"
	"net/http"

	"github.com/san-kum/recore/internal/kinetics"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ReCore transient explorer</title>
<style>
body { width: 70%; margin: auto; background: #111; color: #ddd; font-family: monospace; }
input[type=range] { width: 100%; }
img { width: 100%; }
</style>
</head>
<body>
<h3>ReCore transient explorer</h3>
<label for="rho">ρ = <span id="value">{{printf "%.4f" .Rho}}</span></label>
<input id="rho" type="range" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Rho}}">
<img id="g" alt="relative power" src="/api/transient.svg?rho={{.Rho}}">
<script>
const slider = document.getElementById("rho");
slider.addEventListener("input", () => {
  const rho = Number(slider.value);
  document.getElementById("value").textContent = rho.toFixed(4);
  document.getElementById("g").src = "/api/transient.svg?rho=" + rho;
});
</script>
</body>
</html>
`))

type indexData struct {
	Rho, Min, Max, Step float64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{Rho: kinetics.DefaultRho, Min: RhoMin, Max: RhoMax, Step: RhoStep}
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.Error("render index", "error", err)
	}
}
