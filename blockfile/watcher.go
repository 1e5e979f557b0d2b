// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockfile

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/bitmark-inc/logger"
)

// Watcher - directory watcher that pokes a notify function when new
// block data lands
type Watcher struct {
	log     *logger.L
	watcher *fsnotify.Watcher
	notify  func()
	done    chan struct{}
}

// NewWatcher - watch a block file directory
//
// notify is called on every create or write of a block file; callers
// are expected to coalesce
func NewWatcher(dir string, notify func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		return nil, err
	}
	err = watcher.Add(dir)
	if nil != err {
		watcher.Close()
		return nil, err
	}

	w := &Watcher{
		log:     logger.New("blockwatch"),
		watcher: watcher,
		notify:  notify,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
loop:
	for {
		select {
		case <-w.done:
			break loop

		case event, ok := <-w.watcher.Events:
			if !ok {
				break loop
			}
			if !isBlockFile(event.Name) {
				continue loop
			}
			if 0 != event.Op&(fsnotify.Create|fsnotify.Write) {
				w.log.Debugf("block file event: %v", event)
				w.notify()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				break loop
			}
			w.log.Errorf("watcher error: %s", err)
		}
	}
}

func isBlockFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "blk") && strings.HasSuffix(base, ".dat")
}

// Stop - stop watching
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
