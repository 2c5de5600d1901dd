// Package classify decides which script calls count as subsystem mutations.
//
// The word lists live in an embedded CUE document so the heuristics stay
// data, not code: an overlay file can extend them without recompiling. The
// precedence rules between the lists are fixed and implemented here.
package classify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed tables.cue
var tablesCUE []byte

// Subsystem is a categorical bucket of affected engine state.
type Subsystem string

const (
	SubsystemObjects        Subsystem = "Objects"
	SubsystemInventory      Subsystem = "Inventory"
	SubsystemInterestActors Subsystem = "InterestActors"
	SubsystemActors         Subsystem = "Actors"
	SubsystemAudio          Subsystem = "Audio"
	SubsystemProgression    Subsystem = "Progression"
)

// subsystem replay order; delta events sort by this, not alphabetically.
var subsystemRanks = map[Subsystem]int{
	SubsystemObjects:        0,
	SubsystemInventory:      1,
	SubsystemInterestActors: 2,
	SubsystemActors:         3,
	SubsystemAudio:          4,
	SubsystemProgression:    5,
}

// Rank returns the subsystem's position in the replay total order.
// Unknown subsystems sort last.
func (s Subsystem) Rank() int {
	if rank, ok := subsystemRanks[s]; ok {
		return rank
	}
	return len(subsystemRanks)
}

// Label returns the human-readable form used in reports.
func (s Subsystem) Label() string {
	switch s {
	case SubsystemInterestActors:
		return "interest actors"
	default:
		return strings.ToLower(string(s))
	}
}

// Table holds the call-classification word lists.
type Table struct {
	ObjectMethods        []string `json:"object_methods"`
	InventoryMethods     []string `json:"inventory_methods"`
	ActorMethods         []string `json:"actor_methods"`
	AudioMethods         []string `json:"audio_methods"`
	ProgressionMethods   []string `json:"progression_methods"`
	ObjectMethodAliases  []string `json:"object_method_aliases"`
	ObjectTargetSuffixes []string `json:"object_target_suffixes"`
	ActorExactMethods    []string `json:"actor_exact_methods"`
	ActorSubstrings      []string `json:"actor_substrings"`
	ObjectExactMethods   []string `json:"object_exact_methods"`
	ActorSetUpMethods    []string `json:"actor_set_up_methods"`
	ActorSetupMethods    []string `json:"actor_setup_methods"`
	IgnoredMethods       []string `json:"ignored_methods"`
}

// Load compiles the embedded tables. An overlay is applied with LoadOverlay.
func Load() (*Table, error) {
	return decodeTables(tablesCUE)
}

// LoadOverlay extends the embedded tables with an additional CUE file that
// carries its own `tables:` struct. Overlay entries are appended, so the
// overlay can only widen the classification, never narrow it.
func LoadOverlay(path string) (*Table, error) {
	base, err := Load()
	if err != nil {
		return nil, err
	}
	overlaySrc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading classification overlay %s: %w", path, err)
	}
	overlay, err := decodeTables(overlaySrc)
	if err != nil {
		return nil, fmt.Errorf("applying classification overlay %s: %w", path, err)
	}
	base.append(overlay)
	return base, nil
}

func (t *Table) append(extra *Table) {
	t.ObjectMethods = append(t.ObjectMethods, extra.ObjectMethods...)
	t.InventoryMethods = append(t.InventoryMethods, extra.InventoryMethods...)
	t.ActorMethods = append(t.ActorMethods, extra.ActorMethods...)
	t.AudioMethods = append(t.AudioMethods, extra.AudioMethods...)
	t.ProgressionMethods = append(t.ProgressionMethods, extra.ProgressionMethods...)
	t.ObjectMethodAliases = append(t.ObjectMethodAliases, extra.ObjectMethodAliases...)
	t.ObjectTargetSuffixes = append(t.ObjectTargetSuffixes, extra.ObjectTargetSuffixes...)
	t.ActorExactMethods = append(t.ActorExactMethods, extra.ActorExactMethods...)
	t.ActorSubstrings = append(t.ActorSubstrings, extra.ActorSubstrings...)
	t.ObjectExactMethods = append(t.ObjectExactMethods, extra.ObjectExactMethods...)
	t.ActorSetUpMethods = append(t.ActorSetUpMethods, extra.ActorSetUpMethods...)
	t.ActorSetupMethods = append(t.ActorSetupMethods, extra.ActorSetupMethods...)
	t.IgnoredMethods = append(t.IgnoredMethods, extra.IgnoredMethods...)
}

func decodeTables(src []byte) (*Table, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling classification tables: %w", err)
	}
	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if err := tablesVal.Err(); err != nil {
		return nil, fmt.Errorf("locating tables struct: %w", err)
	}
	table := &Table{}
	if err := tablesVal.Decode(table); err != nil {
		return nil, fmt.Errorf("decoding classification tables: %w", err)
	}
	return table, nil
}

// StatefulMethod classifies a method call. The bool is false when the call
// is not recognized as a subsystem mutation.
func (t *Table) StatefulMethod(target, method string) (Subsystem, bool) {
	targetLower := strings.ToLower(target)
	methodLower := strings.ToLower(method)

	for _, suffix := range t.ObjectTargetSuffixes {
		if strings.HasSuffix(targetLower, suffix) {
			return SubsystemObjects, true
		}
	}

	if methodLower == "create" && targetLower == "actor" {
		return SubsystemActors, true
	}

	if matchesAny(t.InventoryMethods, methodLower, matchExactOrContains) ||
		strings.HasPrefix(methodLower, "give_") ||
		strings.HasPrefix(methodLower, "take_") ||
		strings.Contains(targetLower, "inventory") {
		return SubsystemInventory, true
	}

	if strings.Contains(targetLower, "interest_actor") ||
		strings.HasSuffix(targetLower, ".interest") ||
		strings.Contains(methodLower, "interest") ||
		strings.Contains(methodLower, "chore") {
		return SubsystemInterestActors, true
	}

	if t.actorish(targetLower, methodLower) {
		return SubsystemActors, true
	}

	if t.objectish(targetLower, methodLower) ||
		matchesAny(t.ObjectMethods, methodLower, matchExactOrPrefix) ||
		strings.HasSuffix(methodLower, "_state") ||
		strings.HasPrefix(methodLower, "put_in_") ||
		strings.Contains(methodLower, "object_state") ||
		strings.Contains(methodLower, "touchable") ||
		strings.Contains(methodLower, "softimage") ||
		matchesAny(t.ObjectMethodAliases, methodLower, matchExact) {
		return SubsystemObjects, true
	}

	if strings.Contains(targetLower, "_actor") ||
		strings.Contains(targetLower, ":actor") ||
		matchesAny(t.ActorMethods, methodLower, matchExactOrContains) ||
		strings.HasPrefix(methodLower, "set_up_actor") ||
		strings.HasPrefix(methodLower, "set_up_meche") ||
		strings.HasPrefix(methodLower, "set_up_glottis") {
		return SubsystemActors, true
	}

	if matchesAny(t.AudioMethods, methodLower, matchExactOrContains) ||
		strings.Contains(targetLower, "ambient") ||
		strings.Contains(targetLower, "music") {
		return SubsystemAudio, true
	}

	if matchesAny(t.ProgressionMethods, methodLower, matchExactOrContains) ||
		strings.Contains(targetLower, "achievement") {
		return SubsystemProgression, true
	}

	if targetLower == "loading_menu" && methodLower == "close" {
		return SubsystemObjects, true
	}

	return "", false
}

// IgnoreMethodCall reports pure queries excluded from every tally.
func (t *Table) IgnoreMethodCall(target, method string) bool {
	methodLower := strings.ToLower(method)
	return matchesAny(t.IgnoredMethods, methodLower, matchExact)
}

func (t *Table) actorish(targetLower, methodLower string) bool {
	if matchesAny(t.ActorExactMethods, methodLower, matchExact) {
		return true
	}
	for _, keyword := range t.ActorSubstrings {
		if strings.Contains(methodLower, keyword) || strings.Contains(targetLower, keyword) {
			return true
		}
	}
	return false
}

func (t *Table) objectish(targetLower, methodLower string) bool {
	if methodLower == "create" && targetLower != "actor" {
		return true
	}
	if matchesAny(t.ObjectExactMethods, methodLower, matchExact) {
		return true
	}
	if strings.HasPrefix(methodLower, "init_") &&
		methodLower != "init_actor" &&
		methodLower != "init_glottis" &&
		!strings.Contains(methodLower, "strike") {
		return true
	}
	if strings.HasPrefix(methodLower, "set_up_") {
		return !matchesAny(t.ActorSetUpMethods, methodLower, matchExact)
	}
	if strings.HasPrefix(methodLower, "setup_") {
		return !matchesAny(t.ActorSetupMethods, methodLower, matchExact)
	}
	if strings.HasPrefix(methodLower, "activate_") || strings.HasSuffix(methodLower, "_boxes") {
		return true
	}
	if methodLower == "lock" || methodLower == "unlock" {
		return true
	}
	if methodLower == "inside_use_point" || methodLower == "side_use_point" {
		return true
	}
	if methodLower == "choose_random_sign_point" {
		return true
	}
	if methodLower == "switch_to_set" {
		return true
	}
	return strings.Contains(targetLower, "door") ||
		strings.Contains(targetLower, "menu") ||
		strings.Contains(targetLower, "field") ||
		strings.Contains(targetLower, "hud") ||
		strings.Contains(targetLower, "system")
}

type matchMode int

const (
	matchExact matchMode = iota
	matchExactOrContains
	matchExactOrPrefix
)

func matchesAny(candidates []string, method string, mode matchMode) bool {
	for _, candidate := range candidates {
		switch mode {
		case matchExact:
			if method == candidate {
				return true
			}
		case matchExactOrContains:
			if method == candidate || strings.Contains(method, candidate) {
				return true
			}
		case matchExactOrPrefix:
			if method == candidate || strings.HasPrefix(method, candidate) {
				return true
			}
		}
	}
	return false
}
