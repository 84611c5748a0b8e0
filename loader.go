package wrenlet

import (
	"io/fs"
	"path"
	"strings"

	"github.com/cbrownsey/wrenlet/runtime"
)

// ModuleLoader resolves and loads the modules named by import statements.
type ModuleLoader interface {
	// Resolve returns the canonical name of name imported from importer.
	Resolve(importer, name string) (string, bool)
	// Load returns the source of a resolved module.
	Load(name string) (string, bool)
}

// EmptyLoader resolves every name to itself and loads nothing.
type EmptyLoader struct{}

func (EmptyLoader) Resolve(_, name string) (string, bool) { return name, true }
func (EmptyLoader) Load(string) (string, bool)            { return "", false }

// MapLoader serves module sources from memory.
type MapLoader map[string]string

func (MapLoader) Resolve(_, name string) (string, bool) { return name, true }

func (m MapLoader) Load(name string) (string, bool) {
	source, ok := m[name]
	return source, ok
}

// FSLoader loads modules from a file system. Names starting with ./ or ../
// are resolved against the directory of the importing module; other names
// are taken from the root of FS. Ext is appended to the resolved name and
// defaults to ".wren".
type FSLoader struct {
	FS  fs.FS
	Ext string
}

func (l FSLoader) Resolve(importer, name string) (string, bool) {
	if !strings.HasPrefix(name, "./") && !strings.HasPrefix(name, "../") {
		return name, true
	}
	resolved := path.Join(path.Dir(importer), name)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return "", false
	}
	return resolved, true
}

func (l FSLoader) Load(name string) (string, bool) {
	ext := l.Ext
	if ext == "" {
		ext = ".wren"
	}
	b, err := fs.ReadFile(l.FS, name+ext)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// ResolveModule implements runtime.Host.
func (h *header) ResolveModule(_ runtime.VM, importer, name string) (string, bool) {
	if h.loader == nil {
		return name, true
	}
	return h.loader.Resolve(importer, name)
}

// LoadModule implements runtime.Host.
func (h *header) LoadModule(_ runtime.VM, name string) (string, bool) {
	if h.loader == nil {
		return "", false
	}
	return h.loader.Load(name)
}
