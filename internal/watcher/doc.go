// Package watcher reports files appearing in or changing inside a single
// drop directory. fsnotify is used when available and polling otherwise
// (network mounts, some container volumes). Rapid events for the same
// file are coalesced before delivery, so an editor that writes a file in
// several steps produces one event.
//
//	w, err := watcher.New(watcher.Options{Extensions: []string{".txt", ".md"}})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go func() { _ = w.Start(ctx, dir) }()
//
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        // ev.Path is absolute
//	    }
//	}
package watcher
