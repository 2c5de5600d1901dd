package geometry

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// Comparison tolerances. Angle differences wrap to the shortest angular
// distance before comparison.
const (
	RangeTolerance    = 0.01
	DistanceTolerance = 0.01
	AngleTolerance    = 0.1
)

// DiffSummary is the machine-readable outcome of one geometry comparison.
type DiffSummary struct {
	SnapshotPath     string           `json:"snapshot_path"`
	SectorMismatches []SectorMismatch `json:"sector_mismatches,omitempty"`
	Issues           Issues           `json:"issues"`
}

// Issues collects the diagnostic findings that are not plain sector
// mismatches.
type Issues struct {
	UnresolvedCalls      []UnresolvedCall  `json:"unresolved_calls,omitempty"`
	MissingSectors       []MissingSector   `json:"missing_sectors,omitempty"`
	VisibilityMismatches []VisibilityIssue `json:"visibility_mismatches,omitempty"`
}

// UnresolvedCall is a sector toggle whose target could not be resolved.
type UnresolvedCall struct {
	Function        string              `json:"function"`
	Arguments       []string            `json:"arguments"`
	TriggeredBy     state.HookReference `json:"triggered_by"`
	TriggerSequence int                 `json:"trigger_sequence"`
	Reason          string              `json:"reason"`
}

// MissingSector is a toggle aimed at geometry the runtime never reported.
type MissingSector struct {
	SetFile         string              `json:"set_file"`
	Sector          string              `json:"sector"`
	TriggeredBy     state.HookReference `json:"triggered_by"`
	TriggerSequence int                 `json:"trigger_sequence"`
}

// SectorMismatch is a sector whose final activation differs from the
// static expectation.
type SectorMismatch struct {
	SetFile        string `json:"set_file"`
	Sector         string `json:"sector"`
	ExpectedActive bool   `json:"expected_active"`
	ActualActive   bool   `json:"actual_active"`
}

// VisibilityIssueKind labels a visibility or head-control discrepancy.
type VisibilityIssueKind string

const (
	IssueHotlistEmpty       VisibilityIssueKind = "HotlistEmpty"
	IssueHeadTargetMismatch VisibilityIssueKind = "HeadTargetMismatch"
	IssueRangeMismatch      VisibilityIssueKind = "RangeMismatch"
	IssueDistanceMismatch   VisibilityIssueKind = "DistanceMismatch"
	IssueAngleMismatch      VisibilityIssueKind = "AngleMismatch"
	IssueDistanceMissing    VisibilityIssueKind = "DistanceMissing"
	IssueAngleMissing       VisibilityIssueKind = "AngleMissing"
)

// VisibilityIssue is one visibility or head-control discrepancy.
type VisibilityIssue struct {
	Kind            VisibilityIssueKind  `json:"kind"`
	Expected        string               `json:"expected"`
	Actual          string               `json:"actual"`
	TriggeredBy     *state.HookReference `json:"triggered_by,omitempty"`
	TriggerSequence *int                 `json:"trigger_sequence,omitempty"`
}

// Clean reports whether the comparison produced no findings.
func (s *DiffSummary) Clean() bool {
	return len(s.SectorMismatches) == 0 &&
		len(s.Issues.UnresolvedCalls) == 0 &&
		len(s.Issues.MissingSectors) == 0 &&
		len(s.Issues.VisibilityMismatches) == 0
}

// vec3 is an internal comparison vector; snapshots carry raw arrays.
type vec3 struct {
	x, y, z float64
}

// objectPrediction is an object's statically-declared placement.
type objectPrediction struct {
	position vec3
	rng      float64
}

// Diff compares the runtime snapshot against the static timeline's
// expectations. A nil default set yields a nil summary without error.
func Diff(boot *timeline.BootTimeline, engine *state.EngineState, snapshot *Snapshot, snapshotPath, dataRoot string) (*DiffSummary, error) {
	if engine.Set == nil {
		return nil, nil
	}

	defaultSetFile := ""
	if boot.DefaultSet != nil {
		defaultSetFile = boot.DefaultSet.SetFile
	}

	summary := &DiffSummary{SnapshotPath: snapshotPath}
	expected := buildInitialSectorStates(snapshot)

	applyGeometryCalls(engine.Set, snapshot, defaultSetFile, expected, &summary.Issues)

	predictions, err := loadObjectPredictions(dataRoot, engine.Set)
	if err != nil {
		return nil, err
	}

	analyzeVisibilityCalls(engine.Set, snapshot, &summary.Issues)
	analyzeVisibilityMetrics(snapshot, predictions, &summary.Issues)
	summary.SectorMismatches = compareSectorStates(snapshot, expected)

	return summary, nil
}

// buildInitialSectorStates seeds every reported sector with its default
// activation.
func buildInitialSectorStates(snapshot *Snapshot) map[string]map[string]bool {
	states := map[string]map[string]bool{}
	for _, set := range snapshot.Sets {
		entry, ok := states[set.SetFile]
		if !ok {
			entry = map[string]bool{}
			states[set.SetFile] = entry
		}
		for _, sector := range set.Sectors {
			entry[sector.Name] = sector.DefaultActive
		}
	}
	return states
}

func applyGeometryCalls(setState *state.SetState, snapshot *Snapshot, defaultSetFile string, states map[string]map[string]bool, issues *Issues) {
	lookup := buildSetLookup(snapshot)

	for _, application := range setState.HookApplications {
		for _, call := range application.GeometryCalls {
			if !strings.EqualFold(call.Function, "MakeSectorActive") {
				continue
			}

			if len(call.Arguments) == 0 || call.Arguments[0] == "" {
				issues.UnresolvedCalls = append(issues.UnresolvedCalls, UnresolvedCall{
					Function:        call.Function,
					Arguments:       call.Arguments,
					TriggeredBy:     call.TriggeredBy,
					TriggerSequence: call.TriggerSequence,
					Reason:          "missing sector name argument",
				})
				continue
			}
			sectorName := call.Arguments[0]

			active := true
			if len(call.Arguments) > 1 {
				if parsed, ok := parseBool(call.Arguments[1]); ok {
					active = parsed
				}
			}

			setFile, ok := resolveSetForCall(snapshot, lookup, sectorName, call, defaultSetFile)
			if !ok {
				issues.UnresolvedCalls = append(issues.UnresolvedCalls, UnresolvedCall{
					Function:        call.Function,
					Arguments:       call.Arguments,
					TriggeredBy:     call.TriggeredBy,
					TriggerSequence: call.TriggerSequence,
					Reason:          fmt.Sprintf("could not resolve set for sector %s", sectorName),
				})
				continue
			}

			entry, exists := states[setFile]
			if !exists {
				entry = map[string]bool{}
				states[setFile] = entry
			}
			if _, known := entry[sectorName]; !known {
				issues.MissingSectors = append(issues.MissingSectors, MissingSector{
					SetFile:         setFile,
					Sector:          sectorName,
					TriggeredBy:     call.TriggeredBy,
					TriggerSequence: call.TriggerSequence,
				})
			}
			entry[sectorName] = active
		}
	}
}

// stripExtension lowercases a set file name and drops its extension, giving
// the file-stem alias ("mo.set" -> "mo").
func stripExtension(name string) string {
	lowered := strings.ToLower(name)
	return strings.TrimSuffix(lowered, filepath.Ext(lowered))
}

// buildSetLookup maps each set file to its lowercase aliases: file,
// variable name, display name, and file stem.
func buildSetLookup(snapshot *Snapshot) map[string]map[string]bool {
	lookup := map[string]map[string]bool{}
	for _, set := range snapshot.Sets {
		aliases := map[string]bool{
			strings.ToLower(set.SetFile): true,
			stripExtension(set.SetFile):  true,
		}
		if set.VariableName != "" {
			aliases[strings.ToLower(set.VariableName)] = true
		}
		if set.DisplayName != "" {
			aliases[strings.ToLower(set.DisplayName)] = true
		}
		lookup[set.SetFile] = aliases
	}
	return lookup
}

// resolveSetForCall picks the set a toggle applies to: explicit alias hint
// first, then any set containing the sector, then the default set.
func resolveSetForCall(snapshot *Snapshot, lookup map[string]map[string]bool, sectorName string, call state.GeometryCall, defaultSetFile string) (string, bool) {
	if len(call.Arguments) > 2 {
		hint := strings.ToLower(call.Arguments[2])
		for _, setFile := range sortedLookupKeys(lookup) {
			if lookup[setFile][hint] {
				return setFile, true
			}
		}
	}

	var matches []string
	for _, set := range snapshot.Sets {
		for _, sector := range set.Sectors {
			if strings.EqualFold(sector.Name, sectorName) {
				matches = append(matches, set.SetFile)
				break
			}
		}
	}

	if len(matches) == 0 {
		if defaultSetFile != "" {
			return defaultSetFile, true
		}
		return "", false
	}

	sort.Strings(matches)
	return matches[0], true
}

func analyzeVisibilityCalls(setState *state.SetState, snapshot *Snapshot, issues *Issues) {
	var calls []state.VisibilityCall
	for _, application := range setState.HookApplications {
		calls = append(calls, application.VisibilityCalls...)
	}
	if len(calls) == 0 {
		return
	}

	sort.SliceStable(calls, func(i, j int) bool { return calls[i].TriggerSequence < calls[j].TriggerSequence })
	analyzeHotlistExpectation(calls, snapshot, issues)
	analyzeHeadControlExpectation(calls, snapshot, issues)
}

func analyzeHotlistExpectation(calls []state.VisibilityCall, snapshot *Snapshot, issues *Issues) {
	var last *state.VisibilityCall
	for i := len(calls) - 1; i >= 0; i-- {
		if strings.EqualFold(calls[i].Function, "build_hotlist") {
			last = &calls[i]
			break
		}
	}
	if last == nil {
		return
	}

	if len(snapshot.HotlistHandles) == 0 {
		sequence := last.TriggerSequence
		trigger := last.TriggeredBy
		issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
			Kind:            IssueHotlistEmpty,
			Expected:        fmt.Sprintf("build_hotlist(%s)", strings.Join(last.Arguments, ", ")),
			Actual:          "runtime reported empty hotlist",
			TriggeredBy:     &trigger,
			TriggerSequence: &sequence,
		})
	}
}

func analyzeHeadControlExpectation(calls []state.VisibilityCall, snapshot *Snapshot, issues *Issues) {
	var headCalls []state.VisibilityCall
	for _, call := range calls {
		if strings.Contains(strings.ToLower(call.Function), "head_look_at") {
			headCalls = append(headCalls, call)
		}
	}
	if len(headCalls) == 0 {
		return
	}

	last := headCalls[len(headCalls)-1]
	argument := ""
	hasArgument := len(last.Arguments) > 0
	if hasArgument {
		argument = last.Arguments[0]
	}
	expectedHasTarget := hasArgument && !argumentRepresentsNil(argument)

	manny, ok := findMannyActor(snapshot)
	if !ok {
		return
	}
	actualHasTarget := manny.HeadTarget != ""

	if expectedHasTarget == actualHasTarget {
		return
	}

	expected := "head_look_at(<missing argument>)"
	if hasArgument {
		expected = fmt.Sprintf("head_look_at(%s)", argument)
	}
	actual := "runtime cleared head target"
	if actualHasTarget {
		actual = fmt.Sprintf("runtime targeting %s", manny.HeadTarget)
	}

	sequence := last.TriggerSequence
	trigger := last.TriggeredBy
	issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
		Kind:            IssueHeadTargetMismatch,
		Expected:        expected,
		Actual:          actual,
		TriggeredBy:     &trigger,
		TriggerSequence: &sequence,
	})
}

var objectCreatePattern = `(?m)^\s*%s\.(\w+)\s*=\s*Object:create\(\s*%s\s*,\s*"([^"]+)"\s*,\s*([-0-9.eE]+)\s*,\s*([-0-9.eE]+)\s*,\s*([-0-9.eE]+)\s*,\s*\{[^}]*range\s*=\s*([-0-9.eE]+)`

// loadObjectPredictions scans the default set's script for Object:create
// declarations and records each object's declared position and range.
func loadObjectPredictions(dataRoot string, setState *state.SetState) (map[string]objectPrediction, error) {
	candidate := fmt.Sprintf("%s.decompiled.lua", setState.VariableName)
	for _, application := range setState.HookApplications {
		name := application.Reference.DefinedIn
		if strings.HasSuffix(strings.ToLower(name), ".lua") {
			candidate = name
			break
		}
	}

	scriptPath := filepath.Join(dataRoot, candidate)
	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("reading set script %s: %w", scriptPath, err)
	}

	escaped := regexp.QuoteMeta(setState.VariableName)
	pattern, err := regexp.Compile(fmt.Sprintf(objectCreatePattern, escaped, escaped))
	if err != nil {
		return nil, fmt.Errorf("building object definition pattern: %w", err)
	}

	predictions := map[string]objectPrediction{}
	for _, match := range pattern.FindAllStringSubmatch(string(source), -1) {
		objectPath := match[2]
		x, err := parseComponent(match[3], objectPath, "x")
		if err != nil {
			return nil, err
		}
		y, err := parseComponent(match[4], objectPath, "y")
		if err != nil {
			return nil, err
		}
		z, err := parseComponent(match[5], objectPath, "z")
		if err != nil {
			return nil, err
		}
		rng, err := parseComponent(match[6], objectPath, "range")
		if err != nil {
			return nil, err
		}
		predictions[objectPath] = objectPrediction{position: vec3{x, y, z}, rng: rng}
	}
	return predictions, nil
}

func parseComponent(value, objectPath, label string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s component for %s: %w", label, objectPath, err)
	}
	return parsed, nil
}

func analyzeVisibilityMetrics(snapshot *Snapshot, predictions map[string]objectPrediction, issues *Issues) {
	manny, ok := findMannyActor(snapshot)
	if !ok || manny.Position == nil {
		return
	}
	mannyVec := vec3{manny.Position[0], manny.Position[1], manny.Position[2]}

	for _, visible := range snapshot.VisibleObjects {
		prediction, ok := predictions[visible.Name]
		if !ok {
			continue
		}

		if math.Abs(visible.Range-prediction.rng) > RangeTolerance {
			issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
				Kind:     IssueRangeMismatch,
				Expected: fmt.Sprintf("%s range %.3f", visible.Name, prediction.rng),
				Actual:   fmt.Sprintf("%.3f", visible.Range),
			})
		}

		if visible.Distance != nil {
			expected := distanceBetween(mannyVec, prediction.position)
			if math.Abs(*visible.Distance-expected) > DistanceTolerance {
				issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
					Kind:     IssueDistanceMismatch,
					Expected: fmt.Sprintf("%s distance %.3f", visible.Name, expected),
					Actual:   fmt.Sprintf("%.3f", *visible.Distance),
				})
			}
		} else {
			issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
				Kind:     IssueDistanceMissing,
				Expected: fmt.Sprintf("%s distance expected", visible.Name),
				Actual:   "runtime omitted distance",
			})
		}

		if visible.Angle != nil {
			expected := headingBetween(mannyVec, prediction.position)
			if angleDifference(*visible.Angle, expected) > AngleTolerance {
				issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
					Kind:     IssueAngleMismatch,
					Expected: fmt.Sprintf("%s angle %.2f°", visible.Name, expected),
					Actual:   fmt.Sprintf("%.2f°", *visible.Angle),
				})
			}
		} else {
			issues.VisibilityMismatches = append(issues.VisibilityMismatches, VisibilityIssue{
				Kind:     IssueAngleMissing,
				Expected: fmt.Sprintf("%s angle expected", visible.Name),
				Actual:   "runtime omitted angle",
			})
		}
	}
}

func distanceBetween(a, b vec3) float64 {
	dx := b.x - a.x
	dy := b.y - a.y
	dz := b.z - a.z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// headingBetween is the planar bearing from one point to another in
// degrees, normalized to [0, 360).
func headingBetween(from, to vec3) float64 {
	angle := math.Atan2(to.y-from.y, to.x-from.x) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return angle
}

// angleDifference is the shortest angular distance between two headings,
// capped at 180 degrees.
func angleDifference(a, b float64) float64 {
	diff := math.Abs(a - b)
	if diff > 180 {
		return 360 - diff
	}
	return diff
}

func argumentRepresentsNil(value string) bool {
	switch strings.ToLower(value) {
	case "nil", "false", "0":
		return true
	}
	return false
}

func findMannyActor(snapshot *Snapshot) (ActorSnapshot, bool) {
	names := make([]string, 0, len(snapshot.Actors))
	for name := range snapshot.Actors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.EqualFold(snapshot.Actors[name].Name, "manny") {
			return snapshot.Actors[name], true
		}
	}
	return ActorSnapshot{}, false
}

func compareSectorStates(snapshot *Snapshot, expected map[string]map[string]bool) []SectorMismatch {
	var mismatches []SectorMismatch
	for _, set := range snapshot.Sets {
		expectedMap, ok := expected[set.SetFile]
		if !ok {
			continue
		}
		for _, sector := range set.Sectors {
			expectedActive, known := expectedMap[sector.Name]
			if !known {
				expectedActive = sector.DefaultActive
			}
			if expectedActive != sector.Active {
				mismatches = append(mismatches, SectorMismatch{
					SetFile:        set.SetFile,
					Sector:         sector.Name,
					ExpectedActive: expectedActive,
					ActualActive:   sector.Active,
				})
			}
		}
	}
	return mismatches
}

func sortedLookupKeys(lookup map[string]map[string]bool) []string {
	keys := make([]string, 0, len(lookup))
	for key := range lookup {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Render writes the comparison outcome as human-readable text.
func (s *DiffSummary) Render(w io.Writer) {
	fmt.Fprintf(w, "\nGeometry diff against %s:\n", s.SnapshotPath)

	if s.Clean() {
		fmt.Fprintf(w, "  Sector activation matches static timeline expectations.\n")
		return
	}

	if len(s.SectorMismatches) > 0 {
		fmt.Fprintf(w, "  Sector mismatches:\n")
		for _, mismatch := range s.SectorMismatches {
			fmt.Fprintf(w, "    %s :: %s => expected %s but runtime had %s\n",
				mismatch.SetFile, mismatch.Sector,
				boolLabel(mismatch.ExpectedActive), boolLabel(mismatch.ActualActive))
		}
	}

	if len(s.Issues.MissingSectors) > 0 {
		fmt.Fprintf(w, "  Sector toggles targeting unseen geometry:\n")
		for _, missing := range s.Issues.MissingSectors {
			fmt.Fprintf(w, "    %s :: %s (%s step #%d)\n",
				missing.SetFile, missing.Sector,
				formatDiffReference(missing.TriggeredBy), missing.TriggerSequence)
		}
	}

	if len(s.Issues.UnresolvedCalls) > 0 {
		fmt.Fprintf(w, "  Unresolved geometry calls:\n")
		for _, call := range s.Issues.UnresolvedCalls {
			fmt.Fprintf(w, "    %s(%s) -> %s at %s step #%d\n",
				call.Function, strings.Join(call.Arguments, ", "), call.Reason,
				formatDiffReference(call.TriggeredBy), call.TriggerSequence)
		}
	}

	if len(s.Issues.VisibilityMismatches) > 0 {
		fmt.Fprintf(w, "  Visibility/head-control mismatches:\n")
		for _, mismatch := range s.Issues.VisibilityMismatches {
			location := "unknown origin"
			switch {
			case mismatch.TriggeredBy != nil && mismatch.TriggerSequence != nil:
				location = fmt.Sprintf("%s step #%d", formatDiffReference(*mismatch.TriggeredBy), *mismatch.TriggerSequence)
			case mismatch.TriggeredBy != nil:
				location = formatDiffReference(*mismatch.TriggeredBy)
			}
			switch mismatch.Kind {
			case IssueHotlistEmpty:
				fmt.Fprintf(w, "    %s -> %s (%s)\n", mismatch.Expected, mismatch.Actual, location)
			case IssueHeadTargetMismatch:
				fmt.Fprintf(w, "    Head_Control expected %s but %s (%s)\n", mismatch.Expected, mismatch.Actual, location)
			case IssueRangeMismatch:
				fmt.Fprintf(w, "    Range mismatch: %s vs %s (%s)\n", mismatch.Expected, mismatch.Actual, location)
			case IssueDistanceMismatch:
				fmt.Fprintf(w, "    Distance mismatch: %s vs %s (%s)\n", mismatch.Expected, mismatch.Actual, location)
			case IssueAngleMismatch:
				fmt.Fprintf(w, "    Angle mismatch: %s vs %s (%s)\n", mismatch.Expected, mismatch.Actual, location)
			case IssueDistanceMissing:
				fmt.Fprintf(w, "    Distance missing: %s (%s)\n", mismatch.Expected, location)
			case IssueAngleMissing:
				fmt.Fprintf(w, "    Angle missing: %s (%s)\n", mismatch.Expected, location)
			}
		}
	}
}

func formatDiffReference(reference state.HookReference) string {
	return fmt.Sprintf("%s (%s)", reference.Name, reference.Kind.Label())
}

func boolLabel(value bool) string {
	if value {
		return "ACTIVE"
	}
	return "INACTIVE"
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}
