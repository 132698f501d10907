package httpapi

import (
	"embed"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = []string{
	"home",
	"login",
	"shifts_index",
	"clock_in",
	"clock_out",
	"product_show",
	"error",
}

var viewFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"day": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("2006-01-02")
	},
	"datePtr": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	},
	"inc": func(n int) int { return n + 1 },
	"dec": func(n int) int { return n - 1 },
}

// mustParseViews builds one template set per page, each sharing the layout.
func mustParseViews() map[string]*template.Template {
	views := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		views[name] = template.Must(template.New(name).Funcs(viewFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		))
	}
	return views
}
