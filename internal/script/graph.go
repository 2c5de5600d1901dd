package script

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// ResourceGraph is the structured view of a decompiled script tree.
type ResourceGraph struct {
	YearScripts []string
	MenuScripts []string
	RoomScripts []string
	Sets        []SetMetadata
	Actors      []ActorMetadata
}

// SetMetadata describes one game location mined from the sources.
type SetMetadata struct {
	LuaFile      string
	VariableName string
	SetFile      string
	DisplayName  string
	SetupSlots   []SetupSlot
	Methods      []SetFunction
}

// SetupSlot is a named camera/background configuration index.
type SetupSlot struct {
	Label string `json:"label"`
	Index int64  `json:"index"`
}

// ActorMetadata describes a character entity creation.
type ActorMetadata struct {
	LuaFile      string
	VariableName string
	Label        string
}

// SetFunction is a hook method owned by a set, with its parsed body retained
// for simulation.
type SetFunction struct {
	Name          string
	Parameters    []string
	DefinedAtLine int
	DefinedIn     string
	Body          []ast.Stmt
}

// BootScriptName is the top-level script that declares the year/menu/room
// load order.
const BootScriptName = "_sets.decompiled.lua"

type graphBuilder struct {
	yearScripts []string
	menuScripts []string
	roomScripts []string
	sets        map[string]*setAccumulator
	actors      map[string]ActorMetadata
	logger      *slog.Logger
}

type setAccumulator struct {
	variableName string
	luaFile      string
	setFile      string
	displayName  string
	created      bool
	setupSlots   []SetupSlot
	methods      []SetFunction
}

func newGraphBuilder(logger *slog.Logger) *graphBuilder {
	return &graphBuilder{
		sets:   make(map[string]*setAccumulator),
		actors: make(map[string]ActorMetadata),
		logger: logger,
	}
}

func (b *graphBuilder) ensureSet(variable string) *setAccumulator {
	if acc, ok := b.sets[variable]; ok {
		return acc
	}
	acc := &setAccumulator{variableName: variable}
	b.sets[variable] = acc
	return acc
}

func (b *graphBuilder) recordSetCreation(luaFile string, creation setCreation) {
	acc := b.ensureSet(creation.variableName)
	acc.luaFile = luaFile
	acc.setFile = creation.setFile
	acc.displayName = creation.displayName
	acc.setupSlots = creation.setupSlots
	acc.created = true
}

// recordSetMethod keeps exactly one method per name; a later definition for
// the same name replaces the earlier one.
func (b *graphBuilder) recordSetMethod(setVariable string, fn SetFunction) {
	acc := b.ensureSet(setVariable)
	kept := acc.methods[:0]
	for _, existing := range acc.methods {
		if existing.Name != fn.Name {
			kept = append(kept, existing)
		}
	}
	acc.methods = append(kept, fn)
}

func (b *graphBuilder) recordActor(actor ActorMetadata) {
	if _, ok := b.actors[actor.VariableName]; !ok {
		b.actors[actor.VariableName] = actor
	}
}

func (b *graphBuilder) intoGraph() ResourceGraph {
	sort.Strings(b.yearScripts)
	sort.Strings(b.menuScripts)
	sort.Strings(b.roomScripts)

	var sets []SetMetadata
	for _, acc := range b.sets {
		meta, ok := acc.intoMetadata(b.logger)
		if !ok {
			continue
		}
		sets = append(sets, meta)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].SetFile < sets[j].SetFile })

	var actors []ActorMetadata
	for _, actor := range b.actors {
		actors = append(actors, actor)
	}
	sort.Slice(actors, func(i, j int) bool {
		return actors[i].VariableName < actors[j].VariableName
	})

	return ResourceGraph{
		YearScripts: b.yearScripts,
		MenuScripts: b.menuScripts,
		RoomScripts: b.roomScripts,
		Sets:        sets,
		Actors:      actors,
	}
}

func (acc *setAccumulator) intoMetadata(logger *slog.Logger) (SetMetadata, bool) {
	if !acc.created {
		logger.Warn("skipping set with no Set:create call", "variable", acc.variableName)
		return SetMetadata{}, false
	}
	if acc.luaFile == "" {
		logger.Warn("skipping set with no source file", "variable", acc.variableName)
		return SetMetadata{}, false
	}
	sort.SliceStable(acc.methods, func(i, j int) bool {
		if acc.methods[i].Name != acc.methods[j].Name {
			return acc.methods[i].Name < acc.methods[j].Name
		}
		return acc.methods[i].DefinedAtLine < acc.methods[j].DefinedAtLine
	})
	return SetMetadata{
		LuaFile:      acc.luaFile,
		VariableName: acc.variableName,
		SetFile:      acc.setFile,
		DisplayName:  acc.displayName,
		SetupSlots:   acc.setupSlots,
		Methods:      acc.methods,
	}, true
}

// LoadGraph mines the script tree rooted at root. The boot script is
// required; individual set scripts may fail to parse and are skipped with a
// warning.
func LoadGraph(root string, logger *slog.Logger) (*ResourceGraph, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bootPath := filepath.Join(root, BootScriptName)
	bootChunk, err := parseFile(bootPath)
	if err != nil {
		return nil, err
	}

	builder := newGraphBuilder(logger)
	collectBootLists(bootChunk, builder)

	files, err := collectDecompiledFiles(root)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		chunk, err := parseFile(path)
		if err != nil {
			logger.Warn("skipping script after normalization",
				"path", path, "error", err)
			continue
		}
		relative, relErr := filepath.Rel(root, path)
		if relErr != nil {
			relative = path
		}
		relative = strings.ReplaceAll(relative, "\\", "/")
		mineFile(chunk, relative, builder)
	}

	graph := builder.intoGraph()
	return &graph, nil
}

func parseFile(path string) ([]ast.Stmt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	source, err := DecodeLegacy(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	normalized := Normalize(source)
	chunk, err := parse.Parse(strings.NewReader(normalized), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return chunk, nil
}

// collectDecompiledFiles finds every *.decompiled*.lua under root.
func collectDecompiledFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("reading directory %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.EqualFold(filepath.Ext(name), ".lua") && strings.Contains(name, ".decompiled") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func pushUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
