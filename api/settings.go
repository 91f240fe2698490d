package api

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"

	"settings-portal/logger"
	"settings-portal/settings"
)

var log = logger.Get()

const savedMessage = "Settings saved."

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Device Settings</title></head>
<body>
<h1>Device Settings</h1>
<form method="POST" action="/save">
{{- range .Settings}}
<p><label for="{{.Label}}">{{.Label}}: </label><input type="text" id="{{.Label}}" name="{{.Label}}" value="{{.Value}}" maxlength="{{$.MaxLen}}"></p>
{{- end}}
<p><input type="submit" value="Save"></p>
</form>
</body>
</html>
`))

type formData struct {
	Settings []settings.Setting
	MaxLen   int
}

func (h *handler) renderForm(w http.ResponseWriter, r *http.Request) {
	list := h.store.Settings()
	sort.Slice(list, func(i, j int) bool { return list[i].Label < list[j].Label })

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, formData{Settings: list, MaxLen: settings.MaxValueLen}); err != nil {
		log.WithError(err).Error("render settings form")
		http.Error(w, "failed to render settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// saveForm stores every known label that was submitted with a non-empty
// value, from the body or the query string. Everything else is left
// untouched.
func (h *handler) saveForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	updated := 0
	for _, e := range h.store.Catalog().Entries() {
		value := r.Form.Get(e.Label)
		if value == "" {
			continue
		}
		if err := h.store.Set(e.Label, value); err != nil {
			log.WithError(err).WithField("label", e.Label).Error("save setting")
			http.Error(w, "failed to save settings", http.StatusInternalServerError)
			return
		}
		updated++
	}
	log.WithField("updated", updated).Info("settings form saved")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(savedMessage))
}

// limitSaves answers 429 when a POST /save would change storage and the save
// limiter has no token left. Other requests pass through.
func (h *handler) limitSaves(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.saveLimiter == nil || r.Method != http.MethodPost || r.URL.Path != "/save" {
			next.ServeHTTP(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		if h.changesStore(r) && !h.saveLimiter.Allow() {
			log.Warn("save rejected by rate limit")
			http.Error(w, "too many saves, try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) changesStore(r *http.Request) bool {
	for _, e := range h.store.Catalog().Entries() {
		if v := r.Form.Get(e.Label); v != "" && v != h.store.Get(e.Label) {
			return true
		}
	}
	return false
}

func (h *handler) listSettings(w http.ResponseWriter, r *http.Request) {
	m := make(map[string]string, h.store.Len())
	for _, s := range h.store.Settings() {
		m[s.Label] = s.Value
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}
