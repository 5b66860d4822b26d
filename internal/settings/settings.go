// Package settings persists the calendar selection across sessions.
//
// The selection lives in a small YAML state file, read once at startup and
// written on every change. The file is also watched so an external writer
// (another process, a hand edit) is picked up live.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultCalendarID is the final fallback when neither the state file nor
// the configured default names a calendar.
const DefaultCalendarID = "primary"

// state is the on-disk document.
type state struct {
	SelectedCalendarID string `yaml:"selected_calendar_id"`
}

// Store resolves and persists the selected calendar id.
type Store struct {
	path       string
	envDefault string
	logger     *log.Logger

	mu       sync.Mutex
	selected string
	onChange []func(string)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open loads the selection, resolving stored value, then the configured
// default, then "primary".
func Open(path, envDefault string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[settings] ", log.LstdFlags)
	}

	s := &Store{
		path:       path,
		envDefault: envDefault,
		logger:     logger,
		done:       make(chan struct{}),
	}
	s.selected = s.resolve()
	return s, nil
}

func (s *Store) resolve() string {
	if stored, err := s.readFile(); err == nil && stored != "" {
		return stored
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Printf("Warning: failed to read %s: %v", s.path, err)
	}
	if s.envDefault != "" {
		return s.envDefault
	}
	return DefaultCalendarID
}

func (s *Store) readFile() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("corrupt settings file: %w", err)
	}
	return st.SelectedCalendarID, nil
}

// Selected returns the current calendar id.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select persists a new calendar id and notifies listeners when it changed.
func (s *Store) Select(id string) error {
	if id == "" {
		return fmt.Errorf("calendar id is required")
	}

	s.mu.Lock()
	changed := s.selected != id
	s.selected = id
	s.mu.Unlock()

	if err := s.writeFile(id); err != nil {
		return err
	}
	if changed {
		s.notify(id)
	}
	return nil
}

func (s *Store) writeFile(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	data, err := yaml.Marshal(state{SelectedCalendarID: id})
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// OnChange registers a listener invoked with the new calendar id whenever
// the selection changes, from Select or an external file write.
func (s *Store) OnChange(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) notify(id string) {
	s.mu.Lock()
	listeners := make([]func(string), len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}

// Watch starts monitoring the settings file for external writes. Events
// are debounced; a change that doesn't alter the selection is ignored.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}

	// Watch the directory: editors replace files, which would drop a watch
	// on the file itself.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	defer s.wg.Done()

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-s.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce rapid write sequences.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Printf("Settings watcher error: %v", err)

		case <-reload:
			stored, err := s.readFile()
			if err != nil || stored == "" {
				continue
			}
			s.mu.Lock()
			changed := stored != s.selected
			if changed {
				s.selected = stored
			}
			s.mu.Unlock()
			if changed {
				s.logger.Printf("Calendar selection changed externally: %s", stored)
				s.notify(stored)
			}
		}
	}
}

// Close stops the watcher, if running.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			return err
		}
	}
	s.wg.Wait()
	return nil
}
