// Package planner — filesource.go
//
// FileSource is a transport.RouteSource backed by a watched directory of
// mission JSON files, an alternative to a driver's own pollNewRoute:
// RoutePlanner polls a single RouteSource, and cmd/truckctl wires this one.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
)

// missionWaypoint is the wire shape of one waypoint in a mission file:
// `{ "x": <m>, "y": <m>, "speed": <m/s> }`.
type missionWaypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed" validate:"gte=0"`
}

// missionFile is the wire shape of a whole mission document.
type missionFile struct {
	Route []missionWaypoint `json:"route" validate:"dive"`
}

// FileSource watches dir for mission JSON files and surfaces the most
// recently written one exactly once via PollNewRoute.
type FileSource struct {
	dir      string
	log      *zap.Logger
	validate *validator.Validate

	mu      sync.Mutex
	pending *hub.RouteMessage
	last    *hub.RouteMessage

	watcher *fsnotify.Watcher
}

// NewFileSource starts watching dir for *.json mission files. Returns an
// error only if the directory cannot be watched; a missing dir is treated
// as "no missions yet" rather than fatal.
func NewFileSource(dir string, log *zap.Logger) (*FileSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create mission file watcher: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return nil, fmt.Errorf("create mission dir %s: %w", dir, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch mission dir %s: %w", dir, err)
	}

	fs := &FileSource{
		dir:      dir,
		log:      log,
		validate: validator.New(),
		watcher:  w,
	}
	go fs.watch()
	return fs, nil
}

// watch drains filesystem events and loads the written file into pending.
// Invalid mission files are logged and skipped; the prior pending route
// (if any) is left untouched.
func (fs *FileSource) watch() {
	for ev := range fs.watcher.Events {
		if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		if filepath.Ext(ev.Name) != ".json" {
			continue
		}
		// Debounce: a fresh write is often followed by a flush shortly
		// after; give it a moment to settle before reading.
		time.Sleep(20 * time.Millisecond)

		msg, err := fs.load(ev.Name)
		if err != nil {
			fs.log.Warn("mission file rejected", zap.String("path", ev.Name), zap.Error(err))
			continue
		}
		fs.mu.Lock()
		fs.pending = &msg
		fs.last = &msg
		fs.mu.Unlock()
	}
}

func (fs *FileSource) load(path string) (hub.RouteMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return hub.RouteMessage{}, fmt.Errorf("read %s: %w", path, err)
	}

	var mf missionFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return hub.RouteMessage{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(mf.Route) > 0 {
		if err := fs.validate.Struct(mf); err != nil {
			return hub.RouteMessage{}, fmt.Errorf("validate %s: %w", path, err)
		}
	}

	route := make([]hub.Waypoint, len(mf.Route))
	for i, wp := range mf.Route {
		route[i] = hub.Waypoint{X: wp.X, Y: wp.Y, ReferenceSpeed: wp.Speed}
	}
	return hub.RouteMessage{Route: route}, nil
}

// PollNewRoute implements transport.RouteSource: returns the most recently
// loaded mission exactly once, then nothing until the next file write.
func (fs *FileSource) PollNewRoute(ctx context.Context) (hub.RouteMessage, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.pending == nil {
		return hub.RouteMessage{}, false, nil
	}
	msg := *fs.pending
	fs.pending = nil
	return msg, true, nil
}

// Close stops the underlying filesystem watcher.
func (fs *FileSource) Close() error {
	return fs.watcher.Close()
}

// CurrentRoute returns the most recently loaded mission, whether or not it
// has already been consumed by PollNewRoute — used at shutdown to persist
// the in-flight mission for restart recovery.
func (fs *FileSource) CurrentRoute() (hub.RouteMessage, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.last == nil {
		return hub.RouteMessage{}, false, nil
	}
	return *fs.last, true, nil
}

// WriteMissionFile marshals route as a mission JSON document named
// "<name>.json" under dir, the same on-disk shape FileSource watches for.
// Used to re-stage a persisted mission across a restart.
func WriteMissionFile(dir, name string, route hub.RouteMessage) (string, error) {
	mf := missionFile{Route: make([]missionWaypoint, len(route.Route))}
	for i, wp := range route.Route {
		mf.Route[i] = missionWaypoint{X: wp.X, Y: wp.Y, Speed: wp.ReferenceSpeed}
	}
	data, err := json.Marshal(mf)
	if err != nil {
		return "", fmt.Errorf("marshal mission %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create mission dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write mission file %s: %w", path, err)
	}
	return path, nil
}
