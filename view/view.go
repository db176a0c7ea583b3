// Package view renders the html/template pages: every page is parsed with
// layout.html and the partials directory, and cached unless DEV=1.
package view

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/diewo77/training-tracker/auth"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	// permission resolvers can be set by the host app to allow templates to check auth
	canProfileResolver func(*http.Request, string, string) bool
	isAdminResolver    func(*http.Request) bool
)

// SetCanProfileResolver sets a callback used by templates to check role permissions.
func SetCanProfileResolver(f func(*http.Request, string, string) bool) {
	if f != nil {
		canProfileResolver = f
	}
}

// SetIsAdminResolver sets a callback used by templates to recognise admins.
func SetIsAdminResolver(f func(*http.Request) bool) {
	if f != nil {
		isAdminResolver = f
	}
}

// IsAdmin reports what the configured resolver says about r.
func IsAdmin(r *http.Request) bool {
	return isAdminResolver != nil && isAdminResolver(r)
}

func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates", "../../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// SetBaseDir overrides the template base directory (useful for tests or custom setups).
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
	baseDir = filepath.Clean(path)
	once = sync.Once{}
}

// Funcs returns the func map shared by every template.
func Funcs(r *http.Request) template.FuncMap {
	return template.FuncMap{
		"can": func(resource, action string) bool {
			return canProfileResolver != nil && canProfileResolver(r, resource, action)
		},
		"isAdmin": func() bool { return IsAdmin(r) },
		"year":    func() int { return time.Now().Year() },
		"asset":   versionedAsset,
		"date":    formatDate,
		"money":   func(v any) string { return fmt.Sprintf("€%.2f", toFloat(v)) },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"add": func(a, b int) int { return a + b },
		"seq": func(from, to int) []int {
			var out []int
			for i := from; i <= to; i++ {
				out = append(out, i)
			}
			return out
		},
		// pageURL keeps the current query and replaces page.
		"pageURL": func(page int) string {
			q := url.Values{}
			for k, v := range r.URL.Query() {
				q[k] = v
			}
			q.Set("page", fmt.Sprint(page))
			return r.URL.Path + "?" + q.Encode()
		},
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				if key, ok := values[i].(string); ok {
					m[key] = values[i+1]
				}
			}
			return m
		},
	}
}

func formatDate(v any) string {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return ""
		}
		t = *d
	case datatypes.Date:
		t = time.Time(d)
	case *datatypes.Date:
		if d == nil {
			return ""
		}
		t = time.Time(*d)
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case *float64:
		if n != nil {
			return *n
		}
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// versionedAsset returns /static/<name>?v=<hash> for cache busting.
func versionedAsset(rel string) string {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") || strings.HasPrefix(rel, "//") {
		return rel
	}
	b, err := os.ReadFile(filepath.Join("static", rel))
	if err != nil {
		return "/static/" + rel
	}
	h := sha1.Sum(b)
	return "/static/" + rel + "?v=" + fmt.Sprintf("%x", h[:8])
}

func devMode() bool { return os.Getenv("DEV") == "1" }

// parse returns a request-scoped clone of the template set for name, with
// layout and partials when the page is not a full document. The cached set
// is never executed so it can be cloned concurrently.
func parse(r *http.Request, name string) (*template.Template, error) {
	if baseDir == "" {
		once.Do(detectBase)
	}
	if !devMode() {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			return bind(t, r)
		}
	}

	mainPath := filepath.Join(baseDir, name)
	content, err := os.ReadFile(mainPath)
	if err != nil {
		return nil, err
	}
	files := []string{mainPath}
	root := name
	layoutPath := filepath.Join(baseDir, "layout.html")
	if !bytes.Contains(bytes.ToLower(content), []byte("<!doctype")) {
		if fi, err := os.Stat(layoutPath); err == nil && !fi.IsDir() {
			files = []string{layoutPath, mainPath}
			root = "layout.html"
		}
	}
	partials, _ := filepath.Glob(filepath.Join(baseDir, "partials", "*.html"))
	files = append(files, partials...)

	t, err := template.New(root).Funcs(Funcs(r)).ParseFiles(files...)
	if err != nil {
		return nil, err
	}
	if !devMode() {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
	}
	return bind(t, r)
}

func bind(t *template.Template, r *http.Request) (*template.Template, error) {
	c, err := t.Clone()
	if err != nil {
		return nil, err
	}
	return c.Funcs(Funcs(r)), nil
}

// Render executes page name with data. Flash messages, the login state and
// the admin flag are added to data.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	t, err := parse(r, name)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if s, ok := auth.SubjectFromContext(r.Context()); ok {
		data["CurrentEmail"] = s.Email
	}
	data["IsAdmin"] = IsAdmin(r)
	data["Flashes"] = auth.PopFlashes(w, r)
	return execute(w, t, t.Name(), data)
}

// RenderPartial executes one named block, without the layout, for htmx
// swaps.
func RenderPartial(w http.ResponseWriter, r *http.Request, page, block string, data map[string]any) error {
	t, err := parse(r, page)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	data["IsAdmin"] = IsAdmin(r)
	return execute(w, t, block, data)
}

// execute renders into a buffer first so a template error does not leave
// a half written page.
func execute(w io.Writer, t *template.Template, name string, data map[string]any) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	if rw, ok := w.(http.ResponseWriter); ok && rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, err := buf.WriteTo(w)
	return err
}
