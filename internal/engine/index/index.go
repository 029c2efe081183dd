// # internal/engine/index/index.go
package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"rosewatch/internal/core/errors"
	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/parser"
	"rosewatch/internal/shared/observability"
)

// Extension is the model source file extension handled by the index.
const Extension = ".rosetta"

type SymbolKind string

const (
	KindType      SymbolKind = "type"
	KindEnum      SymbolKind = "enum"
	KindFunction  SymbolKind = "function"
	KindField     SymbolKind = "field"
	KindEnumValue SymbolKind = "enumValue"
)

// SymbolInfo describes one registered definition. Every type and enum is
// registered twice: under its bare name and under its namespace-qualified
// name, both pointing at the same definition.
type SymbolInfo struct {
	Name      string // simple name
	Kind      SymbolKind
	Namespace string
	FilePath  string
	Location  ast.Location
	Doc       string
}

// QualifiedName returns namespace.Name, or the bare name when the owning
// file has no namespace.
func (s SymbolInfo) QualifiedName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// Collision reports a bare name defined in more than one file. Lookup stays
// last-write-wins, but collisions are kept diagnosable instead of silently
// overwritten.
type Collision struct {
	Name  string
	Kind  SymbolKind
	Paths []string
}

// Index owns the authoritative mapping from file paths to parsed files plus
// the two symbol tables. It is safe for concurrent reads; mutations take the
// write lock and bump the generation counter so overlapping rebuilds can be
// detected and rejected instead of interleaving.
type Index struct {
	mu sync.RWMutex

	files     map[string]*ast.File
	parseErrs map[string][]ast.ParseError

	types map[string]SymbolInfo // bare and qualified keys
	enums map[string]SymbolInfo

	// Bare name -> owning file paths, in registration order.
	typeOwners map[string][]string
	enumOwners map[string][]string

	generation uint64
	rebuilding bool
}

func New() *Index {
	return &Index{
		files:      make(map[string]*ast.File),
		parseErrs:  make(map[string][]ast.ParseError),
		types:      make(map[string]SymbolInfo),
		enums:      make(map[string]SymbolInfo),
		typeOwners: make(map[string][]string),
		enumOwners: make(map[string][]string),
	}
}

// Generation returns the mutation counter. Every successful rebuild, update
// or removal increments it.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// RebuildWorkspace clears the index and repopulates it from every model file
// under roots. Hidden directories and excluded patterns are skipped;
// unreadable paths are logged and do not abort the scan. A rebuild started
// while another is in flight, or finishing after the index mutated under it,
// fails with CodeConflict and leaves the tables untouched.
func (ix *Index) RebuildWorkspace(ctx context.Context, roots []string, excludeDirs, excludeFiles []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !ix.beginRebuild() {
		observability.RebuildConflictsTotal.Inc()
		return 0, errors.New(errors.CodeConflict, "workspace rebuild already in flight")
	}
	defer ix.endRebuild()

	startGen := ix.Generation()

	dirGlobs, err := compileGlobs(excludeDirs)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeValidationError, "invalid exclude dir pattern")
	}
	fileGlobs, err := compileGlobs(excludeFiles)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeValidationError, "invalid exclude file pattern")
	}

	paths := scanRoots(roots, dirGlobs, fileGlobs)

	staged := make(map[string]*ast.File, len(paths))
	stagedErrs := make(map[string][]ast.ParseError, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read model file", "path", path, "error", err)
			continue
		}
		file, perrs := parseTimed(string(content), path)
		staged[path] = file
		stagedErrs[path] = perrs
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.generation != startGen {
		observability.RebuildConflictsTotal.Inc()
		return 0, errors.New(errors.CodeConflict, "index mutated during workspace rebuild")
	}

	ix.files = make(map[string]*ast.File, len(staged))
	ix.parseErrs = make(map[string][]ast.ParseError, len(staged))
	ix.types = make(map[string]SymbolInfo)
	ix.enums = make(map[string]SymbolInfo)
	ix.typeOwners = make(map[string][]string)
	ix.enumOwners = make(map[string][]string)

	for _, path := range paths {
		file, ok := staged[path]
		if !ok {
			continue
		}
		ix.files[path] = file
		ix.parseErrs[path] = stagedErrs[path]
		ix.registerFileLocked(file)
	}

	ix.generation++
	ix.publishMetricsLocked()
	return len(ix.files), nil
}

// UpdateFile re-reads one file from disk and replaces its entry wholesale.
func (ix *Index) UpdateFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read model file"), errors.CtxPath, path)
	}
	ix.UpdateFileContent(path, string(content))
	return nil
}

// UpdateFileContent parses text and replaces any previous entry for path.
// Symbols from the prior parse are dropped before re-registration; entries
// are never merged.
func (ix *Index) UpdateFileContent(path, text string) {
	file, perrs := parseTimed(text, path)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeFileLocked(path)
	ix.files[path] = file
	ix.parseErrs[path] = perrs
	ix.registerFileLocked(file)
	ix.generation++
	ix.publishMetricsLocked()
}

// RemoveFile drops a file and every symbol it registered.
func (ix *Index) RemoveFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.files[path]; !ok {
		return
	}
	ix.removeFileLocked(path)
	ix.generation++
	ix.publishMetricsLocked()
}

// Type resolves a type by bare or qualified name. Resolution is
// double-indirect: the SymbolInfo points at the owning file, and the concrete
// definition is re-fetched from it by simple name, so a stale symbol whose
// file no longer declares that name resolves to nothing.
func (ix *Index) Type(name string) (*ast.Type, SymbolInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	info, ok := ix.types[name]
	if !ok {
		return nil, SymbolInfo{}, false
	}
	typ := ix.files[info.FilePath].TypeByName(info.Name)
	if typ == nil {
		return nil, SymbolInfo{}, false
	}
	return cloneType(typ), info, true
}

// Enum resolves an enum by bare or qualified name.
func (ix *Index) Enum(name string) (*ast.Enum, SymbolInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	info, ok := ix.enums[name]
	if !ok {
		return nil, SymbolInfo{}, false
	}
	enum := ix.files[info.FilePath].EnumByName(info.Name)
	if enum == nil {
		return nil, SymbolInfo{}, false
	}
	return cloneEnum(enum), info, true
}

// Symbol resolves a name against both tables. Types take precedence over
// enums when the same name exists in both.
func (ix *Index) Symbol(name string) (SymbolInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if info, ok := ix.types[name]; ok {
		return info, true
	}
	if info, ok := ix.enums[name]; ok {
		return info, true
	}
	return SymbolInfo{}, false
}

// HasSymbol reports whether name resolves as a type or enum, by bare or
// qualified lookup.
func (ix *Index) HasSymbol(name string) bool {
	_, ok := ix.Symbol(name)
	return ok
}

// File returns the parsed file for path, or nil.
func (ix *Index) File(path string) *ast.File {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return cloneFile(ix.files[path])
}

// Files returns all indexed file paths in sorted order.
func (ix *Index) Files() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	paths := make([]string, 0, len(ix.files))
	for path := range ix.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// AllFiles returns every indexed file, sorted by path.
func (ix *Index) AllFiles() []*ast.File {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	paths := make([]string, 0, len(ix.files))
	for path := range ix.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	files := make([]*ast.File, 0, len(paths))
	for _, path := range paths {
		files = append(files, cloneFile(ix.files[path]))
	}
	return files
}

func (ix *Index) FileCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.files)
}

// ParseErrors returns the recoverable parse errors recorded for path.
func (ix *Index) ParseErrors(path string) []ast.ParseError {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]ast.ParseError(nil), ix.parseErrs[path]...)
}

// Symbols returns one SymbolInfo per definition (qualified entries are not
// duplicated), sorted by qualified name.
func (ix *Index) Symbols() []SymbolInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]SymbolInfo, 0, len(ix.typeOwners)+len(ix.enumOwners))
	seen := make(map[string]bool)
	collect := func(table map[string]SymbolInfo) {
		for key, info := range table {
			// Skip the qualified alias entries.
			if key != info.Name {
				continue
			}
			id := string(info.Kind) + ":" + info.FilePath + ":" + info.Name
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, info)
		}
	}
	collect(ix.types)
	collect(ix.enums)

	sort.Slice(out, func(i, j int) bool {
		if out[i].QualifiedName() == out[j].QualifiedName() {
			return out[i].Kind < out[j].Kind
		}
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// Collisions lists bare names registered from more than one file, sorted by
// name. These are diagnosable rather than fatal; bare lookup remains
// last-write-wins.
func (ix *Index) Collisions() []Collision {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Collision, 0)
	appendOwners := func(owners map[string][]string, kind SymbolKind) {
		for name, paths := range owners {
			if len(paths) < 2 {
				continue
			}
			sorted := append([]string(nil), paths...)
			sort.Strings(sorted)
			out = append(out, Collision{Name: name, Kind: kind, Paths: sorted})
		}
	}
	appendOwners(ix.typeOwners, KindType)
	appendOwners(ix.enumOwners, KindEnum)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CollidingPaths returns the files defining a bare name of the given kind
// when more than one does.
func (ix *Index) CollidingPaths(kind SymbolKind, name string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var owners map[string][]string
	switch kind {
	case KindType:
		owners = ix.typeOwners
	case KindEnum:
		owners = ix.enumOwners
	default:
		return nil
	}
	paths := owners[name]
	if len(paths) < 2 {
		return nil
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return sorted
}

func (ix *Index) beginRebuild() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.rebuilding {
		return false
	}
	ix.rebuilding = true
	return true
}

func (ix *Index) endRebuild() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.rebuilding = false
}

func (ix *Index) registerFileLocked(file *ast.File) {
	namespace := ""
	if file.Namespace != nil {
		namespace = file.Namespace.Name
	}

	for i := range file.Types {
		t := &file.Types[i]
		info := SymbolInfo{
			Name:      t.Name,
			Kind:      KindType,
			Namespace: namespace,
			FilePath:  file.Path,
			Location:  t.Location,
			Doc:       t.Description,
		}
		ix.types[t.Name] = info
		if namespace != "" {
			ix.types[namespace+"."+t.Name] = info
		}
		ix.typeOwners[t.Name] = appendOwner(ix.typeOwners[t.Name], file.Path)
	}

	for i := range file.Enums {
		e := &file.Enums[i]
		info := SymbolInfo{
			Name:      e.Name,
			Kind:      KindEnum,
			Namespace: namespace,
			FilePath:  file.Path,
			Location:  e.Location,
			Doc:       e.Description,
		}
		ix.enums[e.Name] = info
		if namespace != "" {
			ix.enums[namespace+"."+e.Name] = info
		}
		ix.enumOwners[e.Name] = appendOwner(ix.enumOwners[e.Name], file.Path)
	}
}

func (ix *Index) removeFileLocked(path string) {
	file, ok := ix.files[path]
	if !ok {
		return
	}

	namespace := ""
	if file.Namespace != nil {
		namespace = file.Namespace.Name
	}

	for i := range file.Types {
		name := file.Types[i].Name
		ix.typeOwners[name] = removeOwner(ix.typeOwners[name], path)
		ix.dropSymbolLocked(ix.types, ix.typeOwners, name, namespace, path, KindType)
	}
	for i := range file.Enums {
		name := file.Enums[i].Name
		ix.enumOwners[name] = removeOwner(ix.enumOwners[name], path)
		ix.dropSymbolLocked(ix.enums, ix.enumOwners, name, namespace, path, KindEnum)
	}

	delete(ix.files, path)
	delete(ix.parseErrs, path)
}

// dropSymbolLocked removes the table entries for a bare name that pointed at
// path, re-registering a surviving owner when one exists so bare lookup does
// not dangle after a colliding file is removed.
func (ix *Index) dropSymbolLocked(table map[string]SymbolInfo, owners map[string][]string, name, namespace, path string, kind SymbolKind) {
	if namespace != "" {
		qualified := namespace + "." + name
		if info, ok := table[qualified]; ok && info.FilePath == path {
			delete(table, qualified)
		}
	}

	info, ok := table[name]
	if !ok || info.FilePath != path {
		return
	}
	delete(table, name)

	survivors := owners[name]
	if len(survivors) == 0 {
		delete(owners, name)
		return
	}

	survivor := survivors[len(survivors)-1]
	file := ix.files[survivor]
	if file == nil {
		return
	}
	ns := ""
	if file.Namespace != nil {
		ns = file.Namespace.Name
	}

	register := func(info SymbolInfo) {
		table[name] = info
		// The survivor may share the removed file's namespace, in which
		// case the qualified key was just deleted above.
		if ns != "" {
			table[ns+"."+name] = info
		}
	}

	switch kind {
	case KindType:
		if t := file.TypeByName(name); t != nil {
			register(SymbolInfo{Name: name, Kind: kind, Namespace: ns, FilePath: survivor, Location: t.Location, Doc: t.Description})
		}
	case KindEnum:
		if e := file.EnumByName(name); e != nil {
			register(SymbolInfo{Name: name, Kind: kind, Namespace: ns, FilePath: survivor, Location: e.Location, Doc: e.Description})
		}
	}
}

func (ix *Index) publishMetricsLocked() {
	observability.FilesIndexed.Set(float64(len(ix.files)))

	typeCount, enumCount := 0, 0
	for _, file := range ix.files {
		typeCount += len(file.Types)
		enumCount += len(file.Enums)
	}
	observability.SymbolsIndexed.WithLabelValues(string(KindType)).Set(float64(typeCount))
	observability.SymbolsIndexed.WithLabelValues(string(KindEnum)).Set(float64(enumCount))
}

func parseTimed(text, path string) (*ast.File, []ast.ParseError) {
	start := time.Now()
	file, perrs := parser.Parse(text, path)
	observability.ParsingDuration.Observe(time.Since(start).Seconds())
	return file, perrs
}

func scanRoots(roots []string, dirGlobs, fileGlobs []glob.Glob) []string {
	var paths []string
	seen := make(map[string]bool)

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("failed to read directory entry", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			base := filepath.Base(path)
			if d.IsDir() {
				if path != root && strings.HasPrefix(base, ".") {
					return filepath.SkipDir
				}
				for _, g := range dirGlobs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if !strings.EqualFold(filepath.Ext(base), Extension) {
				return nil
			}
			for _, g := range fileGlobs {
				if g.Match(base) {
					return nil
				}
			}

			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			slog.Warn("workspace scan failed for root", "root", root, "error", err)
		}
	}

	sort.Strings(paths)
	return paths
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func appendOwner(owners []string, path string) []string {
	for _, p := range owners {
		if p == path {
			return owners
		}
	}
	return append(owners, path)
}

func removeOwner(owners []string, path string) []string {
	for i, p := range owners {
		if p == path {
			return append(owners[:i], owners[i+1:]...)
		}
	}
	return owners
}

func cloneFile(file *ast.File) *ast.File {
	if file == nil {
		return nil
	}
	c := *file
	if file.Namespace != nil {
		ns := *file.Namespace
		c.Namespace = &ns
	}
	c.Imports = append([]ast.Import(nil), file.Imports...)
	c.Functions = append([]ast.Function(nil), file.Functions...)
	c.Types = make([]ast.Type, len(file.Types))
	for i := range file.Types {
		c.Types[i] = *cloneType(&file.Types[i])
	}
	c.Enums = make([]ast.Enum, len(file.Enums))
	for i := range file.Enums {
		c.Enums[i] = *cloneEnum(&file.Enums[i])
	}
	return &c
}

func cloneType(t *ast.Type) *ast.Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Metadata = append([]ast.Metadata(nil), t.Metadata...)
	c.Conditions = append([]ast.Condition(nil), t.Conditions...)
	c.Fields = make([]ast.Field, len(t.Fields))
	for i := range t.Fields {
		c.Fields[i] = t.Fields[i]
		c.Fields[i].Metadata = append([]ast.Metadata(nil), t.Fields[i].Metadata...)
	}
	return &c
}

func cloneEnum(e *ast.Enum) *ast.Enum {
	if e == nil {
		return nil
	}
	c := *e
	c.Values = append([]ast.EnumValue(nil), e.Values...)
	return &c
}
