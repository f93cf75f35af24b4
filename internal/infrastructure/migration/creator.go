package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const upTemplate = `-- {{.Version}} {{.Name}}
-- {{.Description}}

BEGIN;

COMMIT;
`

const downTemplate = `-- {{.Version}} {{.Name}} (rollback)

BEGIN;

COMMIT;
`

var (
	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)
	nonSlugChars         = regexp.MustCompile(`[^a-z0-9]+`)
)

// versionWidth matches the zero padding of 000001_init
const versionWidth = 6

// File describes one migration pair on disk
type File struct {
	Version     string
	Name        string
	Description string
	CreatedAt   string
	UpPath      string
	DownPath    string
	HasDown     bool
}

// Create writes the next sequential migration pair into dir
func Create(dir, name, description string) (*File, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations dir: %w", err)
	}

	existing, err := List(dir)
	if err != nil {
		return nil, err
	}
	next := 1
	if n := len(existing); n > 0 {
		last, _ := strconv.Atoi(existing[n-1].Version)
		next = last + 1
	}
	version := fmt.Sprintf("%0*d", versionWidth, next)
	base := version + "_" + slug

	f := &File{
		Version:     version,
		Name:        slug,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		UpPath:      filepath.Join(dir, base+".up.sql"),
		DownPath:    filepath.Join(dir, base+".down.sql"),
		HasDown:     true,
	}
	if err := render(f.UpPath, upTemplate, f); err != nil {
		return nil, err
	}
	if err := render(f.DownPath, downTemplate, f); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, err
	}
	return f, nil
}

func render(path, body string, data *File) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(body)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()
	if err := tmpl.Execute(out, data); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

func slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// List returns the migrations in dir ordered by version.
// A missing directory yields an empty list.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := map[string]*File{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := migrationFilePattern.FindStringSubmatch(e.Name())
		if parts == nil {
			continue
		}
		f, ok := byVersion[parts[1]]
		if !ok {
			f = &File{Version: parts[1], Name: parts[2]}
			byVersion[parts[1]] = f
		}
		path := filepath.Join(dir, e.Name())
		if parts[3] == "up" {
			f.UpPath = path
		} else {
			f.DownPath = path
			f.HasDown = true
		}
	}

	out := make([]File, 0, len(byVersion))
	for _, f := range byVersion {
		if f.UpPath == "" {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].Version)
		b, _ := strconv.Atoi(out[j].Version)
		return a < b
	})
	return out, nil
}
