package form

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of editor writes into one reload.
const reloadDebounce = 500 * time.Millisecond

// Registry holds the form definitions found in a directory.
type Registry struct {
	dir string

	mu    sync.RWMutex
	forms map[string]*Definition
}

// NewRegistry creates an empty registry over dir. Call Load to read it.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, forms: map[string]*Definition{}}
}

// Register adds or replaces a definition in memory.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[def.ID] = def
	return nil
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.forms[id]
	return def, ok
}

// IDs returns the registered form ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads every *.yaml / *.yml file in the directory, replacing the current
// set. A file that fails to parse is logged and skipped.
func (r *Registry) Load() error {
	if r.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read forms dir: %w", err)
	}

	forms := map[string]*Definition{}
	for _, e := range entries {
		if e.IsDir() || !isDefinitionFile(e.Name()) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		def, err := LoadDefinition(path)
		if err != nil {
			log.Printf("[FORMS] skipping %s: %v", path, err)
			continue
		}
		if prev, dup := forms[def.ID]; dup {
			log.Printf("[FORMS] %s redefines form %q (%d controls before)", path, def.ID, len(prev.Controls))
		}
		forms[def.ID] = def
	}

	r.mu.Lock()
	r.forms = forms
	r.mu.Unlock()
	log.Printf("[FORMS] loaded %d form(s) from %s", len(forms), r.dir)
	return nil
}

// Watch reloads the registry whenever a definition file changes, until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isDefinitionFile(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if err := r.Load(); err != nil {
						log.Printf("[FORMS] reload failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[FORMS] watcher error: %v", err)
			}
		}
	}()

	log.Printf("[FORMS] watching %s", r.dir)
	return nil
}

func isDefinitionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
