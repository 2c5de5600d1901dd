package manifest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/simulate"
	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// Report renders the boot analysis as human-readable text. Verbose lifts
// the per-section display caps.
type Report struct {
	Summary           timeline.BootSummary
	Timeline          *timeline.BootTimeline
	Engine            *state.EngineState
	Verbose           bool
	SimulateScheduler bool
}

// Render writes the full report to w.
func (r Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Boot default set: %s\n", r.Summary.DefaultSet)
	fmt.Fprintf(w, "Intro cutscene scheduled: %t | developer mode: %t\n",
		r.Summary.TimeToRunIntro, r.Summary.DeveloperMode)
	fmt.Fprintf(w, "Resources -> years: %d | menus: %d | rooms: %d\n",
		r.Summary.ResourceCounts.Years, r.Summary.ResourceCounts.Menus, r.Summary.ResourceCounts.Rooms)

	fmt.Fprintf(w, "\nBoot timeline:\n")
	for _, stage := range r.Timeline.Stages {
		fmt.Fprintf(w, "  %2d. %s\n", stage.Index, stage.Label)
	}

	if r.Engine.Set != nil {
		r.describeStartingSet(w, r.Engine.Set)
	} else {
		fmt.Fprintf(w, "!! could not locate set entry for %s within parsed runtime metadata\n",
			r.Summary.DefaultSet)
	}

	if len(r.Engine.QueuedScripts) > 0 {
		fmt.Fprintf(w, "\nScripts queued during boot (in order):\n")
		for _, event := range r.Engine.QueuedScripts {
			fmt.Fprintf(w, "  - %s <= %s\n", event.Name, FormatReference(event.TriggeredBy))
		}
	}

	if len(r.Engine.QueuedMovies) > 0 {
		fmt.Fprintf(w, "\nMovies requested during boot (in order):\n")
		for _, event := range r.Engine.QueuedMovies {
			fmt.Fprintf(w, "  - %s <= %s\n", event.Name, FormatReference(event.TriggeredBy))
		}
	}

	r.printDeltaEvents(w)
	r.printReplaySnapshot(w)

	if r.SimulateScheduler {
		r.printSchedulerSimulation(w)
	}
}

func (r Report) describeStartingSet(w io.Writer, set *state.SetState) {
	if set.DisplayName != "" {
		fmt.Fprintf(w, "\nStarting set label: %s\n", set.DisplayName)
	}
	fmt.Fprintf(w, "Set runtime variable: %s\n", set.VariableName)

	limit := displayLimit(len(set.HookApplications), r.Verbose, 6)
	fmt.Fprintf(w, "\nBoot-time hooks for %s:\n", set.SetFile)
	for i, application := range set.HookApplications {
		if i >= limit {
			break
		}
		printHookSummary(w, i, application)
	}
	if !r.Verbose && len(set.HookApplications) > limit {
		fmt.Fprintf(w, "  ... +%d additional hooks\n", len(set.HookApplications)-limit)
	}

	if len(set.Actors) > 0 {
		fmt.Fprintf(w, "\nActors staged by boot hooks:\n")
		for _, name := range sortedKeys(set.Actors) {
			actor := set.Actors[name]
			fmt.Fprintf(w, "  - %s (via %s)\n", actor.Name, FormatReference(actor.CreatedBy))
		}
	}

	if len(set.Subsystems) > 0 {
		fmt.Fprintf(w, "\nBoot-time subsystem mutations:\n")
		r.printSubsystemMap(w, set.Subsystems, "  ")
	}

	rollup := BuildDependencyRollup(set)
	printDependencyRollup(w, "Cutscenes", rollup.Cutscenes)
	printDependencyRollup(w, "Other scripts", rollup.HelperScripts)
	printDependencyRollup(w, "Movies", rollup.Movies)
}

func (r Report) printDeltaEvents(w io.Writer) {
	events := r.Engine.SubsystemDeltaEvents
	if len(events) == 0 {
		return
	}

	fmt.Fprintf(w, "\nOrdered subsystem delta events:\n")
	limit := displayLimit(len(events), r.Verbose, 12)
	for i, event := range events {
		if i >= limit {
			break
		}
		methodLabel := event.Method
		switch {
		case event.Count > 1 && len(event.Arguments) == 0:
			methodLabel = fmt.Sprintf("%s x%d", event.Method, event.Count)
		case len(event.Arguments) > 0:
			methodLabel = fmt.Sprintf("%s(%s)", event.Method, strings.Join(event.Arguments, ", "))
		}
		fmt.Fprintf(w, "  [%s] %s: %s <= %s (hook #%d)\n",
			event.Subsystem, event.Target, methodLabel,
			FormatReference(event.TriggeredBy), event.TriggerSequence)
	}
	if !r.Verbose && len(events) > limit {
		fmt.Fprintf(w, "  ... +%d more events\n", len(events)-limit)
	}
}

func (r Report) printReplaySnapshot(w io.Writer) {
	snapshot := r.Engine.ReplaySnapshot
	if len(snapshot.Actors) == 0 && len(snapshot.Subsystems) == 0 {
		return
	}

	fmt.Fprintf(w, "\nReplayed subsystem snapshot (delta consumer):\n")

	if len(snapshot.Actors) > 0 {
		names := sortedKeys(snapshot.Actors)
		limit := displayLimit(len(names), r.Verbose, 4)
		for _, name := range names[:limit] {
			actor := snapshot.Actors[name]
			fmt.Fprintf(w, "  actor %s: %s (first touched by %s)\n",
				actor.Name, SummariseMethodCounts(actor.MethodTotals), FormatReference(actor.CreatedBy))
		}
		if !r.Verbose && len(names) > limit {
			fmt.Fprintf(w, "  ... +%d more actors\n", len(names)-limit)
		}
	}

	if len(snapshot.Subsystems) > 0 {
		if len(snapshot.Actors) == 0 {
			fmt.Fprintf(w, "  subsystems:\n")
		} else {
			fmt.Fprintf(w, "\n  subsystems:\n")
		}
		r.printSubsystemMap(w, snapshot.Subsystems, "    ")
	}
}

func (r Report) printSubsystemMap(w io.Writer, buckets map[classify.Subsystem]*state.SubsystemState, indent string) {
	for _, subsystem := range orderedSubsystems(buckets) {
		fmt.Fprintf(w, "%s[%s]\n", indent, subsystem)
		bucket := buckets[subsystem]
		names := sortedKeys(bucket.Targets)
		limit := displayLimit(len(names), r.Verbose, 5)
		for _, name := range names[:limit] {
			target := bucket.Targets[name]
			summary := SummariseMethodCounts(target.MethodTotals)
			if len(target.MethodHistory) > 0 {
				last := target.MethodHistory[len(target.MethodHistory)-1]
				methodLabel := last.Method
				if last.Count > 1 {
					methodLabel = fmt.Sprintf("%s x%d", last.Method, last.Count)
				}
				fmt.Fprintf(w, "%s  %s: %s <= %s via %s\n",
					indent, target.Name, summary, FormatReference(last.TriggeredBy), methodLabel)
			} else {
				fmt.Fprintf(w, "%s  %s: %s\n", indent, target.Name, summary)
			}
		}
		if !r.Verbose && len(names) > limit {
			fmt.Fprintf(w, "%s  ... +%d more targets\n", indent, len(names)-limit)
		}
	}
}

func (r Report) printSchedulerSimulation(w io.Writer) {
	fmt.Fprintf(w, "\nSimulated scheduler queue:\n")

	scheduler := state.NewScriptScheduler(r.Engine)
	if scheduler.IsEmpty() {
		fmt.Fprintf(w, "  No scripts queued.\n")
	} else {
		fmt.Fprintf(w, "  Script queue:\n")
		for {
			event, ok := scheduler.Next()
			if !ok {
				break
			}
			fmt.Fprintf(w, "    -> %s (%d remaining)\n", event.Name, scheduler.Len())
			fmt.Fprintf(w, "       triggered by %s\n", FormatReference(event.TriggeredBy))
		}
	}

	queue := state.NewMovieQueue(r.Engine)
	if queue.IsEmpty() {
		fmt.Fprintf(w, "\n  No movies queued.\n")
	} else {
		fmt.Fprintf(w, "\n  Movie queue:\n")
		for {
			event, ok := queue.Next()
			if !ok {
				break
			}
			fmt.Fprintf(w, "    -> %s (%d remaining)\n", event.Name, queue.Len())
			fmt.Fprintf(w, "       triggered by %s\n", FormatReference(event.TriggeredBy))
		}
	}
}

func printHookSummary(w io.Writer, index int, application state.HookApplication) {
	hook := application.Entry
	fmt.Fprintf(w, "  %2d. %s (%s)\n", index+1, hook.HookName, describeHookKind(hook.Kind))
	if hook.Stage != nil {
		fmt.Fprintf(w, "      boot stage: #%2d %s\n", hook.Stage.Index, hook.Stage.Label)
	}
	printFunctionSignature(w, hook)
	printSimulationDetails(w, hook.Simulation)
}

func describeHookKind(kind timeline.HookKind) string {
	switch kind {
	case timeline.HookEnter:
		return "enter"
	case timeline.HookExit:
		return "exit"
	case timeline.HookCameraChange:
		return "camera_change"
	case timeline.HookSetup:
		return "setup"
	default:
		return "hook"
	}
}

func printFunctionSignature(w io.Writer, hook timeline.HookTimelineEntry) {
	params := "()"
	if len(hook.Parameters) > 0 {
		params = fmt.Sprintf("(%s)", strings.Join(hook.Parameters, ", "))
	}
	if hook.DefinedAtLine > 0 {
		fmt.Fprintf(w, "      defined at %s:%d %s\n", hook.DefinedIn, hook.DefinedAtLine, params)
	} else {
		fmt.Fprintf(w, "      defined in %s %s\n", hook.DefinedIn, params)
	}
}

func printSimulationDetails(w io.Writer, simulation simulate.FunctionSimulation) {
	if len(simulation.CreatedActors) > 0 {
		fmt.Fprintf(w, "      creates actors: %s\n", strings.Join(simulation.CreatedActors, ", "))
	}

	if len(simulation.StatefulCalls) > 0 {
		fmt.Fprintf(w, "      state changes:\n")
		subsystems := orderedSubsystems(simulation.StatefulCalls)
		for i, subsystem := range subsystems {
			if i >= 4 {
				break
			}
			fmt.Fprintf(w, "        [%s]\n", subsystem)
			targets := simulation.StatefulCalls[subsystem]
			names := sortedKeys(targets)
			for j, name := range names {
				if j >= 4 {
					break
				}
				fmt.Fprintf(w, "          %s: %s\n", name, SummariseMethodCounts(targets[name]))
			}
			if len(names) > 4 {
				fmt.Fprintf(w, "          ... +%d more targets\n", len(names)-4)
			}
		}
		if len(subsystems) > 4 {
			fmt.Fprintf(w, "        ... +%d more subsystems\n", len(subsystems)-4)
		}
	}

	if len(simulation.MethodCalls) > 0 {
		fmt.Fprintf(w, "      ancillary calls:\n")
		names := sortedKeys(simulation.MethodCalls)
		for i, name := range names {
			if i >= 4 {
				break
			}
			fmt.Fprintf(w, "        %s: %s\n", name, SummariseMethodCounts(simulation.MethodCalls[name]))
		}
		if len(names) > 4 {
			fmt.Fprintf(w, "        ... +%d more targets\n", len(names)-4)
		}
	}

	if len(simulation.StartedScripts) > 0 {
		fmt.Fprintf(w, "      queued scripts: %s\n", strings.Join(simulation.StartedScripts, ", "))
	}
	if len(simulation.MovieCalls) > 0 {
		fmt.Fprintf(w, "      movies: %s\n", strings.Join(simulation.MovieCalls, ", "))
	}

	if len(simulation.GeometryCalls) > 0 {
		fmt.Fprintf(w, "      geometry calls:\n")
		for i, call := range simulation.GeometryCalls {
			if i >= 4 {
				break
			}
			fmt.Fprintf(w, "        %s(%s)\n", call.Function, strings.Join(call.Arguments, ", "))
		}
		if len(simulation.GeometryCalls) > 4 {
			fmt.Fprintf(w, "        ... +%d more calls\n", len(simulation.GeometryCalls)-4)
		}
	}
}

// FormatReference renders a hook reference as "name @file:line", followed
// by its stage placement and kind tag when known.
func FormatReference(reference state.HookReference) string {
	var label strings.Builder
	label.WriteString(reference.Name)
	if reference.DefinedAtLine > 0 {
		fmt.Fprintf(&label, " @%s:%d", reference.DefinedIn, reference.DefinedAtLine)
	} else {
		fmt.Fprintf(&label, " @%s", reference.DefinedIn)
	}
	if reference.Stage != nil {
		fmt.Fprintf(&label, " [stage %d: %s]", reference.Stage.Index, reference.Stage.Label)
	}
	switch reference.Kind {
	case timeline.HookEnter:
		label.WriteString(" [enter]")
	case timeline.HookExit:
		label.WriteString(" [exit]")
	case timeline.HookCameraChange:
		label.WriteString(" [camera_change]")
	case timeline.HookSetup:
		label.WriteString(" [setup]")
	}
	return label.String()
}

// SummariseMethodCounts renders up to five method tallies alphabetically,
// with "+N more" for the remainder.
func SummariseMethodCounts(methods map[string]int) string {
	names := sortedKeys(methods)
	var parts []string
	for i, name := range names {
		if i >= 5 {
			break
		}
		if methods[name] == 1 {
			parts = append(parts, name)
		} else {
			parts = append(parts, fmt.Sprintf("%s x%d", name, methods[name]))
		}
	}
	if len(names) > 5 {
		parts = append(parts, fmt.Sprintf("+%d more", len(names)-5))
	}
	return strings.Join(parts, ", ")
}

// DependencyRollup groups the default set's queued dependencies by kind.
type DependencyRollup struct {
	Cutscenes     map[string][]string
	HelperScripts map[string][]string
	Movies        map[string][]string
}

// BuildDependencyRollup tallies which hooks queue each cutscene, helper
// script, and movie.
func BuildDependencyRollup(set *state.SetState) DependencyRollup {
	rollup := DependencyRollup{
		Cutscenes:     map[string][]string{},
		HelperScripts: map[string][]string{},
		Movies:        map[string][]string{},
	}

	for _, application := range set.HookApplications {
		hook := application.Entry
		reference := formatHookReference(hook)

		for _, script := range hook.Simulation.StartedScripts {
			bucket := rollup.HelperScripts
			if IsCutsceneScript(script) {
				bucket = rollup.Cutscenes
			}
			bucket[script] = append(bucket[script], reference)
		}

		for _, movie := range hook.Simulation.MovieCalls {
			rollup.Movies[movie] = append(rollup.Movies[movie], reference)
		}
	}

	return rollup
}

// IsCutsceneScript reports whether the script name follows the cutscene
// naming convention.
func IsCutsceneScript(script string) bool {
	return strings.HasPrefix(strings.ToLower(script), "cut_scene.")
}

func printDependencyRollup(w io.Writer, title string, entries map[string][]string) {
	if len(entries) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s queued by default set:\n", title)
	names := sortedKeys(entries)
	for i, name := range names {
		if i >= 6 {
			break
		}
		fmt.Fprintf(w, "  - %s <= %s\n", name, formatHookRefs(entries[name]))
	}
	if len(names) > 6 {
		fmt.Fprintf(w, "    ... +%d more\n", len(names)-6)
	}
}

func formatHookReference(hook timeline.HookTimelineEntry) string {
	if hook.DefinedAtLine > 0 {
		return fmt.Sprintf("%s @%s:%d", hook.HookName, hook.DefinedIn, hook.DefinedAtLine)
	}
	return fmt.Sprintf("%s @%s", hook.HookName, hook.DefinedIn)
}

func formatHookRefs(hooks []string) string {
	parts := hooks
	if len(hooks) > 4 {
		parts = append(append([]string{}, hooks[:4]...), fmt.Sprintf("+%d more", len(hooks)-4))
	}
	return strings.Join(parts, ", ")
}

func displayLimit(total int, verbose bool, limit int) int {
	if verbose || total < limit {
		return total
	}
	return limit
}

func orderedSubsystems[V any](buckets map[classify.Subsystem]V) []classify.Subsystem {
	subsystems := make([]classify.Subsystem, 0, len(buckets))
	for subsystem := range buckets {
		subsystems = append(subsystems, subsystem)
	}
	sort.Slice(subsystems, func(i, j int) bool { return subsystems[i].Rank() < subsystems[j].Rank() })
	return subsystems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
