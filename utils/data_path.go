package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DataPath finds data files such as report templates. Relative names are
// tried under each directory of a colon separated search path, then the
// working directory, then the directory of the executable.
type DataPath struct {
	Dirs []string

	mu    sync.Mutex
	found map[string]string
}

func NewDataPath(searchPath string) *DataPath {
	p := &DataPath{found: make(map[string]string)}
	for _, dir := range strings.Split(searchPath, ":") {
		dir = strings.TrimSpace(dir)
		if len(dir) > 0 {
			p.Dirs = append(p.Dirs, dir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		p.Dirs = append(p.Dirs, cwd)
	} else {
		log.Printf("data path: failed to get CWD: %v", err)
	}
	p.Dirs = append(p.Dirs, filepath.Dir(os.Args[0]))
	return p
}

// Find returns the first existing path for name. Results are cached.
func (p *DataPath) Find(name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path, ok := p.found[name]; ok {
		return path, nil
	}

	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		p.found[name] = name
		return name, nil
	}

	for _, dir := range p.Dirs {
		path := filepath.Clean(filepath.Join(dir, name))
		if _, err := os.Stat(path); err == nil {
			p.found[name] = path
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found in %s", name, strings.Join(p.Dirs, ":"))
}
