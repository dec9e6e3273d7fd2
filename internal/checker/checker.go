// Package checker runs the diagnostic pipeline over every component file
// under a directory. Files are independent, so they check in parallel; the
// per-file pipeline itself stays single-threaded.
package checker

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sfcls/internal/diag"
	"sfcls/internal/diagnostics"
	"sfcls/internal/diskcache"
	"sfcls/internal/engine"
	"sfcls/internal/observ"
	"sfcls/internal/project"
	"sfcls/internal/sfc"
	"sfcls/internal/source"
)

// FileResult содержит результат проверки одного файла
type FileResult struct {
	Path      string       // Относительный путь к файлу
	Doc       source.DocID // ID файла в DocSet
	Diags     []diag.Diagnostic
	FromCache bool
	Err       error // Ошибка загрузки, не диагностика
}

// Event is one progress notification for UI consumers.
type Event struct {
	Path      string
	Index     int // 1-based
	Total     int
	FromCache bool
	Errors    int
}

// Options configures a directory check.
type Options struct {
	Jobs           int
	MaxDiagnostics int
	Cache          *diskcache.Cache // nil disables caching
	Config         project.Config

	// Engines are optional; absent engines contribute no diagnostics.
	Script engine.ScriptEngine
	Markup engine.MarkupEngine
	Style  engine.StyleEngine

	// Progress, when set, is called after each file completes. Calls may
	// come from any worker goroutine.
	Progress func(Event)

	// Timer, when set, records the discover/load/check phases. Nil records
	// nothing.
	Timer *observ.Timer
}

// listComponentFiles возвращает отсортированный список всех *.sfc файлов
func listComponentFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".sfc") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// ListFiles returns the component files CheckDir would visit, sorted.
func ListFiles(dir string) ([]string, error) {
	return listComponentFiles(dir)
}

// CheckDir проверяет все *.sfc файлы в директории параллельно
func CheckDir(ctx context.Context, dir string, opts Options) (*source.DocSet, []FileResult, error) {
	discover := opts.Timer.Begin("discover")
	files, err := listComponentFiles(dir)
	opts.Timer.End(discover, fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return nil, nil, err
	}

	docs := source.NewDocSet()
	if len(files) == 0 {
		return docs, nil, nil
	}

	// Предзагружаем все файлы в один DocSet (он не потокобезопасен)
	load := opts.Timer.Begin("load")
	docIDs := make(map[string]source.DocID, len(files))
	loadErrors := make(map[string]error, len(files))
	for _, path := range files {
		id, err := docs.Load(path)
		if err != nil {
			loadErrors[path] = err
			continue
		}
		docIDs[path] = id
	}
	opts.Timer.End(load, "")

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	cfgDigest := configDigest(opts.Config)
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	var progress func(res FileResult, total int)
	if opts.Progress != nil {
		var mu sync.Mutex
		done := 0
		progress = func(res FileResult, total int) {
			errs := 0
			for _, d := range res.Diags {
				if d.Severity == diag.SevError {
					errs++
				}
			}
			mu.Lock()
			done++
			ev := Event{Path: res.Path, Index: done, Total: total, FromCache: res.FromCache, Errors: errs}
			opts.Progress(ev)
			mu.Unlock()
		}
	}

	check := opts.Timer.Begin("check")
	for i, path := range files {
		g.Go(func(i int, path string) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				res := checkOne(gctx, path, docs, docIDs, loadErrors, cfgDigest, opts)
				results[i] = res
				if progress != nil {
					progress(res, len(files))
				}
				return nil
			}
		}(i, path))
	}

	err = g.Wait()
	opts.Timer.End(check, fmt.Sprintf("%d workers", min(jobs, len(files))))
	if err != nil {
		return docs, results, err
	}
	return docs, results, nil
}

func checkOne(ctx context.Context, path string, docs *source.DocSet, docIDs map[string]source.DocID, loadErrors map[string]error, cfgDigest project.Digest, opts Options) FileResult {
	if loadErr, bad := loadErrors[path]; bad {
		return FileResult{Path: path, Err: loadErr}
	}
	id := docIDs[path]
	doc := docs.Get(id)

	key := project.Combine(project.Digest(doc.Hash), cfgDigest)
	if opts.Cache != nil {
		var payload diskcache.Payload
		if hit, err := opts.Cache.Get(key, &payload); err == nil && hit {
			return FileResult{
				Path:      path,
				Doc:       id,
				Diags:     diskcache.FromPayload(&payload, id),
				FromCache: true,
			}
		}
	}

	f := sfc.New(path, opts.Script, opts.Config.Template.Dialect)
	scriptChanged, tmplChanged, err := f.Update(string(doc.Content))
	if err != nil {
		return FileResult{Path: path, Doc: id, Err: err}
	}

	eng := diagnostics.NewEngine(f, id, opts.Script, opts.Markup, opts.Style, opts.MaxDiagnostics)
	eng.NoteChange(scriptChanged, tmplChanged)

	var last []diag.Diagnostic
	err = eng.Run(ctx, func(ds []diag.Diagnostic) { last = ds }, nil, true)
	if err != nil {
		return FileResult{Path: path, Doc: id, Err: err}
	}

	if opts.Cache != nil {
		// Ошибка записи кэша не фатальна для проверки.
		_ = opts.Cache.Put(key, diskcache.ToPayload(path, project.Digest(doc.Hash), last))
	}
	return FileResult{Path: path, Doc: id, Diags: last}
}

func configDigest(cfg project.Config) project.Digest {
	return sha256.Sum256([]byte(fmt.Sprintf("%#v", cfg)))
}
