// monitor.go
package file

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控数据目录，被关注的文件写入或新建后回调handler
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	targets  map[string]bool // 关注的文件名(不含目录)
	lastMod  map[string]time.Time
	mu       sync.Mutex
}

func NewFileMonitor(dir string, names ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	targets := make(map[string]bool, len(names))
	for _, n := range names {
		targets[filepath.Base(n)] = true
	}

	return &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		targets:  targets,
		lastMod:  make(map[string]time.Time),
	}, nil
}

// Watch 阻塞处理文件事件，直到Close被调用
// 同一文件修改时间未变化的重复事件只回调一次
func (m *FileMonitor) Watch(handler func(string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if len(m.targets) > 0 && !m.targets[filepath.Base(event.Name)] {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			fresh := info.ModTime().After(m.lastMod[event.Name])
			if fresh {
				m.lastMod[event.Name] = info.ModTime()
			}
			m.mu.Unlock()

			if fresh {
				handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close 停止监控
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
