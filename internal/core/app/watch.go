// # internal/core/app/watch.go
package app

import (
	"rosewatch/internal/core/watcher"
)

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	w.SetExtensions([]string{a.dslParser.Extension()})
	a.activeWatcher = w
	return w.Watch(a.Config.WatchPaths)
}
