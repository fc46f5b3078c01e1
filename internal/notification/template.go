package notification

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// DefaultLocale is the locale used when none is configured.
const DefaultLocale = "id"

// Catalog maps every kind to its message template.
type Catalog map[Kind]string

var catalogs = map[string]Catalog{
	"id": {
		KindNewVisit:           `{{.actor_name}} mengirim kunjungan baru '{{.visit_name}}'.`,
		KindVisitUpdated:       `Kunjungan #{{.visit_id}} telah diperbarui dan menunggu verifikasi.`,
		KindVisitRejected:      `Kunjungan '{{.visit_name}}' ditolak.{{if .message}} Alasan: {{sentence .message}}.{{end}}`,
		KindVisitVerified:      `Kunjungan '{{.visit_name}}' telah diverifikasi.`,
		KindVisitDeleted:       `Kunjungan '{{.visit_name}}' telah dihapus oleh {{.actor_name}} ({{.actor_role}}).`,
		KindVisitNeedsRevision: `Kunjungan '{{.visit_name}}' perlu direvisi.{{if .comment}} Catatan: {{sentence .comment}}.{{end}}`,
	},
	"en": {
		KindNewVisit:           `{{.actor_name}} submitted a new visit '{{.visit_name}}'.`,
		KindVisitUpdated:       `Visit #{{.visit_id}} was updated and awaits verification.`,
		KindVisitRejected:      `Visit '{{.visit_name}}' was rejected.{{if .message}} Reason: {{sentence .message}}.{{end}}`,
		KindVisitVerified:      `Visit '{{.visit_name}}' was verified.`,
		KindVisitDeleted:       `Visit '{{.visit_name}}' was deleted by {{.actor_name}} ({{.actor_role}}).`,
		KindVisitNeedsRevision: `Visit '{{.visit_name}}' needs revision.{{if .comment}} Note: {{sentence .comment}}.{{end}}`,
	},
}

// Locales returns the available catalog locales.
func Locales() []string {
	out := make([]string, 0, len(catalogs))
	for locale := range catalogs {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

var funcs = template.FuncMap{
	"sentence": func(value interface{}) string {
		return strings.TrimRight(strings.TrimSpace(fmt.Sprint(value)), ". ")
	},
}

// Renderer turns events into localized messages and absolute links.
type Renderer struct {
	locale    string
	baseURL   string
	templates map[Kind]*template.Template
}

// NewRenderer parses the catalog of locale. baseURL prefixes redirect links and may be empty.
func NewRenderer(locale, baseURL string) (*Renderer, error) {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		locale = DefaultLocale
	}
	catalog, ok := catalogs[locale]
	if !ok {
		return nil, fmt.Errorf("notification locale %q not supported", locale)
	}

	templates := make(map[Kind]*template.Template, len(catalog))
	for _, kind := range Kinds() {
		text, ok := catalog[kind]
		if !ok {
			return nil, fmt.Errorf("notification locale %q misses template for %s", locale, kind)
		}
		tmpl, err := template.New(string(kind)).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", kind, err)
		}
		templates[kind] = tmpl
	}

	return &Renderer{
		locale:    locale,
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		templates: templates,
	}, nil
}

// Locale returns the renderer's locale.
func (r *Renderer) Locale() string {
	return r.locale
}

// Message renders the human readable text of the event.
func (r *Renderer) Message(event Event) (string, error) {
	tmpl, ok := r.templates[event.Kind()]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, event.Kind())
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, event.Payload()); err != nil {
		return "", fmt.Errorf("failed to render %s message: %w", event.Kind(), err)
	}
	return buf.String(), nil
}

// Link returns the event's redirect target prefixed with the base URL, or nil.
func (r *Renderer) Link(event Event) *string {
	target := event.RedirectURL()
	if target == nil {
		return nil
	}
	full := r.baseURL + *target
	return &full
}
