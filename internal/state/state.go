// Package state folds the predicted side effects of the boot timeline into
// canonical engine state. Two reductions run over the same mutation
// language: a hook-scoped fold producing the default set's SetState, and a
// globally-ordered fold that flattens every mutation into atomic delta
// events, sorts them into a total order, and replays them into a
// SubsystemReplaySnapshot. Both folds are pure: the same timeline always
// produces byte-identical output.
package state

import (
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/simulate"
	"github.com/roach88/exhume/internal/timeline"
)

// EngineState is the global aggregate built fresh from one boot timeline.
type EngineState struct {
	Set                  *SetState                              `json:"set"`
	QueuedScripts        []ScriptEvent                          `json:"queued_scripts"`
	QueuedMovies         []MovieEvent                           `json:"queued_movies"`
	SubsystemDeltas      map[classify.Subsystem]*SubsystemState `json:"subsystem_deltas"`
	SubsystemDeltaEvents []SubsystemDeltaEvent                  `json:"subsystem_delta_events"`
	ReplaySnapshot       SubsystemReplaySnapshot                `json:"replay_snapshot"`
}

// SetState is the per-location aggregate built from the location's ordered
// hook applications.
type SetState struct {
	VariableName     string                                 `json:"variable_name"`
	SetFile          string                                 `json:"set_file"`
	DisplayName      string                                 `json:"display_name,omitempty"`
	Actors           map[string]*ActorState                 `json:"actors"`
	Subsystems       map[classify.Subsystem]*SubsystemState `json:"subsystems"`
	HookApplications []HookApplication                      `json:"hook_applications"`
}

// HookReference identifies one hook occurrence for provenance tracking.
type HookReference struct {
	Name          string                     `json:"name"`
	Kind          timeline.HookKind          `json:"kind"`
	DefinedIn     string                     `json:"defined_in"`
	DefinedAtLine int                        `json:"defined_at_line"`
	Stage         *timeline.HookStageContext `json:"stage"`
}

// HookApplication is one concrete occurrence of a hook within a location's
// boot sequence.
type HookApplication struct {
	SequenceIndex     int                        `json:"sequence_index"`
	Entry             timeline.HookTimelineEntry `json:"entry"`
	Reference         HookReference              `json:"reference"`
	CreatedActors     []string                   `json:"created_actors"`
	StatefulMutations []SubsystemMutation        `json:"stateful_mutations"`
	AncillaryCalls    []AncillaryCall            `json:"ancillary_calls"`
	QueuedScripts     []ScriptEvent              `json:"queued_scripts"`
	QueuedMovies      []MovieEvent               `json:"queued_movies"`
	GeometryCalls     []GeometryCall             `json:"geometry_calls"`
	VisibilityCalls   []VisibilityCall           `json:"visibility_calls"`
}

// SubsystemMutation aggregates one hook's calls against a single target.
type SubsystemMutation struct {
	Subsystem   classify.Subsystem   `json:"subsystem"`
	Target      string               `json:"target"`
	Methods     map[string]int       `json:"methods"`
	Details     []StatefulCallDetail `json:"details"`
	TriggeredBy HookReference        `json:"triggered_by"`
}

// StatefulCallDetail is one concrete call occurrence. CallIndex is 0-based
// within the owning hook's classified call stream.
type StatefulCallDetail struct {
	Method    string   `json:"method"`
	Arguments []string `json:"arguments"`
	CallIndex int      `json:"call_index"`
}

// AncillaryCall records unclassified method calls for diagnostics.
type AncillaryCall struct {
	Target      string         `json:"target"`
	Methods     map[string]int `json:"methods"`
	TriggeredBy HookReference  `json:"triggered_by"`
}

// ScriptEvent is a script queued during boot with its provenance.
type ScriptEvent struct {
	Name        string        `json:"name"`
	TriggeredBy HookReference `json:"triggered_by"`
}

// MovieEvent is a fullscreen movie request with its provenance.
type MovieEvent struct {
	Name        string        `json:"name"`
	TriggeredBy HookReference `json:"triggered_by"`
}

// GeometryCall is a predicted sector toggle, kept in hook order for the
// geometry reconciler.
type GeometryCall struct {
	Function        string        `json:"function"`
	Arguments       []string      `json:"arguments"`
	TriggeredBy     HookReference `json:"triggered_by"`
	TriggerSequence int           `json:"trigger_sequence"`
}

// VisibilityCall is a predicted hotlist or head-control call.
type VisibilityCall struct {
	Function        string        `json:"function"`
	Arguments       []string      `json:"arguments"`
	TriggeredBy     HookReference `json:"triggered_by"`
	TriggerSequence int           `json:"trigger_sequence"`
}

// SubsystemDeltaEvent is the flattened, globally-ordered atomic mutation.
// CallIndex is nil for aggregate events carrying only a method tally; nil
// sorts before any concrete index.
type SubsystemDeltaEvent struct {
	Subsystem       classify.Subsystem `json:"subsystem"`
	Target          string             `json:"target"`
	Method          string             `json:"method"`
	Arguments       []string           `json:"arguments"`
	Count           int                `json:"count"`
	TriggerSequence int                `json:"trigger_sequence"`
	TriggeredBy     HookReference      `json:"triggered_by"`
	CallIndex       *int               `json:"call_index"`
}

// SubsystemReplaySnapshot is the state reconstructed by folding the ordered
// delta event log.
type SubsystemReplaySnapshot struct {
	Actors     map[string]*ActorState                 `json:"actors"`
	Subsystems map[classify.Subsystem]*SubsystemState `json:"subsystems"`
}

// ActorState is the accumulated projection for one actor, including the
// semantic transform and chore interpretation of its method calls.
type ActorState struct {
	Name          string             `json:"name"`
	CreatedBy     HookReference      `json:"created_by"`
	MethodHistory []MethodInvocation `json:"method_history"`
	MethodTotals  map[string]int     `json:"method_totals"`
	Transform     *ActorTransform    `json:"transform,omitempty"`
	ChoreState    *ChoreState        `json:"chore_state,omitempty"`
}

// ActorTransform captures position, rotation, and facing recovered from
// transform method arguments.
type ActorTransform struct {
	Position     *Vec3  `json:"position,omitempty"`
	Rotation     *Vec3  `json:"rotation,omitempty"`
	FacingTarget string `json:"facing_target,omitempty"`
}

// Vec3 is a parsed three-component vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ChoreState tracks the animation sequences seen for an actor.
type ChoreState struct {
	LastPlayed    string   `json:"last_played,omitempty"`
	LastLooping   string   `json:"last_looping,omitempty"`
	LastCompleted string   `json:"last_completed,omitempty"`
	History       []string `json:"history"`
}

// SubsystemState buckets targets within one subsystem.
type SubsystemState struct {
	Targets map[string]*TargetState `json:"targets"`
}

// TargetState is the accumulated projection for one non-actor target.
type TargetState struct {
	Name           string             `json:"name"`
	MethodTotals   map[string]int     `json:"method_totals"`
	MethodHistory  []MethodInvocation `json:"method_history"`
	FirstTouchedBy *HookReference     `json:"first_touched_by"`
}

// MethodInvocation is one history entry in a projection.
type MethodInvocation struct {
	Method      string        `json:"method"`
	Count       int           `json:"count"`
	TriggeredBy HookReference `json:"triggered_by"`
}

// NewEngineState returns an empty state whose collections serialize as
// empty rather than null.
func NewEngineState() *EngineState {
	return &EngineState{
		QueuedScripts:        []ScriptEvent{},
		QueuedMovies:         []MovieEvent{},
		SubsystemDeltas:      map[classify.Subsystem]*SubsystemState{},
		SubsystemDeltaEvents: []SubsystemDeltaEvent{},
		ReplaySnapshot: SubsystemReplaySnapshot{
			Actors:     map[string]*ActorState{},
			Subsystems: map[classify.Subsystem]*SubsystemState{},
		},
	}
}

// FromTimeline builds the full engine state for one boot timeline.
func FromTimeline(boot *timeline.BootTimeline) *EngineState {
	state := NewEngineState()
	if boot.DefaultSet == nil {
		return state
	}

	setState := NewSetState(boot.DefaultSet)
	for _, application := range setState.HookApplications {
		state.QueuedScripts = append(state.QueuedScripts, application.QueuedScripts...)
		state.QueuedMovies = append(state.QueuedMovies, application.QueuedMovies...)
	}
	state.Set = setState

	state.SubsystemDeltaEvents = flattenDeltaEvents(setState.HookApplications)
	sortDeltaEvents(state.SubsystemDeltaEvents)

	for i := range state.SubsystemDeltaEvents {
		event := &state.SubsystemDeltaEvents[i]
		bucket := ensureSubsystem(state.SubsystemDeltas, event.Subsystem)
		target := ensureTarget(bucket, event.Target, event.TriggeredBy)
		target.applyCall(event.Method, event.Count, event.TriggeredBy)
	}

	state.ReplaySnapshot = foldReplaySnapshot(state.SubsystemDeltaEvents)
	return state
}

// NewSetState folds one location's hooks in sequence order.
func NewSetState(set *timeline.SetTimeline) *SetState {
	setState := &SetState{
		VariableName: set.VariableName,
		SetFile:      set.SetFile,
		DisplayName:  set.DisplayName,
		Actors:       map[string]*ActorState{},
		Subsystems:   map[classify.Subsystem]*SubsystemState{},
	}
	setState.HookApplications = []HookApplication{}

	for i, hook := range set.Hooks {
		application := buildHookApplication(i+1, hook)

		for _, actor := range application.CreatedActors {
			if _, seen := setState.Actors[actor]; !seen {
				setState.Actors[actor] = newActorState(actor, application.Reference)
			}
		}

		for _, mutation := range application.StatefulMutations {
			if mutation.Subsystem == classify.SubsystemActors {
				actor, ok := setState.Actors[mutation.Target]
				if !ok {
					actor = newActorState(mutation.Target, mutation.TriggeredBy)
					setState.Actors[mutation.Target] = actor
				}
				applyMutationToActor(actor, mutation)
				continue
			}
			bucket := ensureSubsystem(setState.Subsystems, mutation.Subsystem)
			target := ensureTarget(bucket, mutation.Target, mutation.TriggeredBy)
			applyMutationToTarget(target, mutation)
		}

		setState.HookApplications = append(setState.HookApplications, application)
	}

	return setState
}

func buildHookApplication(sequence int, entry timeline.HookTimelineEntry) HookApplication {
	reference := referenceFor(entry)
	simulation := entry.Simulation

	return HookApplication{
		SequenceIndex:     sequence,
		Entry:             entry,
		Reference:         reference,
		CreatedActors:     simulation.CreatedActors,
		StatefulMutations: collectStatefulMutations(&simulation, reference),
		AncillaryCalls:    collectAncillaryCalls(&simulation, reference),
		QueuedScripts:     collectScriptEvents(&simulation, reference),
		QueuedMovies:      collectMovieEvents(&simulation, reference),
		GeometryCalls:     collectGeometryCalls(&simulation, reference, sequence),
		VisibilityCalls:   collectVisibilityCalls(&simulation, reference, sequence),
	}
}

func referenceFor(entry timeline.HookTimelineEntry) HookReference {
	return HookReference{
		Name:          entry.HookName,
		Kind:          entry.Kind,
		DefinedIn:     entry.DefinedIn,
		DefinedAtLine: entry.DefinedAtLine,
		Stage:         entry.Stage,
	}
}

// collectStatefulMutations groups the hook's classified calls by subsystem
// and target, keeping the raw call stream as per-occurrence details.
func collectStatefulMutations(simulation *simulate.FunctionSimulation, reference HookReference) []SubsystemMutation {
	var mutations []SubsystemMutation

	subsystems := make([]classify.Subsystem, 0, len(simulation.StatefulCalls))
	for subsystem := range simulation.StatefulCalls {
		subsystems = append(subsystems, subsystem)
	}
	sort.Slice(subsystems, func(i, j int) bool { return subsystems[i].Rank() < subsystems[j].Rank() })

	for _, subsystem := range subsystems {
		targets := simulation.StatefulCalls[subsystem]
		names := make([]string, 0, len(targets))
		for name := range targets {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			methods := make(map[string]int, len(targets[name]))
			for method, count := range targets[name] {
				methods[method] = count
			}

			var details []StatefulCallDetail
			for index, event := range simulation.StatefulCallEvents {
				if event.Subsystem != subsystem || event.Target != name {
					continue
				}
				details = append(details, StatefulCallDetail{
					Method:    event.Method,
					Arguments: event.Arguments,
					CallIndex: index,
				})
			}

			mutations = append(mutations, SubsystemMutation{
				Subsystem:   subsystem,
				Target:      name,
				Methods:     methods,
				Details:     details,
				TriggeredBy: reference,
			})
		}
	}

	return mutations
}

func collectAncillaryCalls(simulation *simulate.FunctionSimulation, reference HookReference) []AncillaryCall {
	targets := make([]string, 0, len(simulation.MethodCalls))
	for target := range simulation.MethodCalls {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var calls []AncillaryCall
	for _, target := range targets {
		methods := make(map[string]int, len(simulation.MethodCalls[target]))
		for method, count := range simulation.MethodCalls[target] {
			methods[method] = count
		}
		calls = append(calls, AncillaryCall{
			Target:      target,
			Methods:     methods,
			TriggeredBy: reference,
		})
	}
	return calls
}

func collectScriptEvents(simulation *simulate.FunctionSimulation, reference HookReference) []ScriptEvent {
	events := make([]ScriptEvent, 0, len(simulation.StartedScripts))
	for _, script := range simulation.StartedScripts {
		events = append(events, ScriptEvent{Name: script, TriggeredBy: reference})
	}
	return events
}

func collectMovieEvents(simulation *simulate.FunctionSimulation, reference HookReference) []MovieEvent {
	events := make([]MovieEvent, 0, len(simulation.MovieCalls))
	for _, movie := range simulation.MovieCalls {
		events = append(events, MovieEvent{Name: movie, TriggeredBy: reference})
	}
	return events
}

func collectGeometryCalls(simulation *simulate.FunctionSimulation, reference HookReference, sequence int) []GeometryCall {
	calls := make([]GeometryCall, 0, len(simulation.GeometryCalls))
	for _, call := range simulation.GeometryCalls {
		calls = append(calls, GeometryCall{
			Function:        call.Function,
			Arguments:       call.Arguments,
			TriggeredBy:     reference,
			TriggerSequence: sequence,
		})
	}
	return calls
}

func collectVisibilityCalls(simulation *simulate.FunctionSimulation, reference HookReference, sequence int) []VisibilityCall {
	calls := make([]VisibilityCall, 0, len(simulation.VisibilityCalls))
	for _, call := range simulation.VisibilityCalls {
		calls = append(calls, VisibilityCall{
			Function:        call.Function,
			Arguments:       call.Arguments,
			TriggeredBy:     reference,
			TriggerSequence: sequence,
		})
	}
	return calls
}

// flattenDeltaEvents turns every mutation into atomic events: one per call
// occurrence where detail exists, otherwise one aggregate event per method.
func flattenDeltaEvents(applications []HookApplication) []SubsystemDeltaEvent {
	events := []SubsystemDeltaEvent{}
	for _, application := range applications {
		for _, mutation := range application.StatefulMutations {
			if len(mutation.Details) > 0 {
				for _, detail := range mutation.Details {
					index := detail.CallIndex
					events = append(events, SubsystemDeltaEvent{
						Subsystem:       mutation.Subsystem,
						Target:          mutation.Target,
						Method:          detail.Method,
						Arguments:       detail.Arguments,
						Count:           1,
						TriggerSequence: application.SequenceIndex,
						TriggeredBy:     mutation.TriggeredBy,
						CallIndex:       &index,
					})
				}
				continue
			}

			methods := make([]string, 0, len(mutation.Methods))
			for method := range mutation.Methods {
				methods = append(methods, method)
			}
			sort.Strings(methods)
			for _, method := range methods {
				events = append(events, SubsystemDeltaEvent{
					Subsystem:       mutation.Subsystem,
					Target:          mutation.Target,
					Method:          method,
					Arguments:       []string{},
					Count:           mutation.Methods[method],
					TriggerSequence: application.SequenceIndex,
					TriggeredBy:     mutation.TriggeredBy,
				})
			}
		}
	}
	return events
}

// sortDeltaEvents establishes the total order (trigger_sequence, subsystem,
// target, call_index, method). A nil call index sorts before any concrete
// one.
func sortDeltaEvents(events []SubsystemDeltaEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.TriggerSequence != b.TriggerSequence {
			return a.TriggerSequence < b.TriggerSequence
		}
		if ra, rb := a.Subsystem.Rank(), b.Subsystem.Rank(); ra != rb {
			return ra < rb
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if ca, cb := callIndexOrder(a.CallIndex), callIndexOrder(b.CallIndex); ca != cb {
			return ca < cb
		}
		return a.Method < b.Method
	})
}

func callIndexOrder(index *int) int {
	if index == nil {
		return -1
	}
	return *index
}

// foldReplaySnapshot replays the ordered event log into canonical state
// using the same semantic rules as the hook-scoped fold.
func foldReplaySnapshot(events []SubsystemDeltaEvent) SubsystemReplaySnapshot {
	snapshot := SubsystemReplaySnapshot{
		Actors:     map[string]*ActorState{},
		Subsystems: map[classify.Subsystem]*SubsystemState{},
	}

	for _, event := range events {
		if event.Subsystem == classify.SubsystemActors {
			actor, ok := snapshot.Actors[event.Target]
			if !ok {
				actor = newActorState(event.Target, event.TriggeredBy)
				snapshot.Actors[event.Target] = actor
			}
			actor.applyCall(event.Method, event.Count, event.TriggeredBy)
			actor.applySemantics(event.Method, event.Arguments)
			continue
		}
		bucket := ensureSubsystem(snapshot.Subsystems, event.Subsystem)
		target := ensureTarget(bucket, event.Target, event.TriggeredBy)
		target.applyCall(event.Method, event.Count, event.TriggeredBy)
	}

	return snapshot
}

func newActorState(name string, createdBy HookReference) *ActorState {
	return &ActorState{
		Name:          name,
		CreatedBy:     createdBy,
		MethodHistory: []MethodInvocation{},
		MethodTotals:  map[string]int{},
	}
}

func ensureSubsystem(buckets map[classify.Subsystem]*SubsystemState, subsystem classify.Subsystem) *SubsystemState {
	bucket, ok := buckets[subsystem]
	if !ok {
		bucket = &SubsystemState{Targets: map[string]*TargetState{}}
		buckets[subsystem] = bucket
	}
	return bucket
}

func ensureTarget(bucket *SubsystemState, name string, touchedBy HookReference) *TargetState {
	target, ok := bucket.Targets[name]
	if !ok {
		target = &TargetState{
			Name:          name,
			MethodTotals:  map[string]int{},
			MethodHistory: []MethodInvocation{},
		}
		bucket.Targets[name] = target
	}
	if target.FirstTouchedBy == nil {
		ref := touchedBy
		target.FirstTouchedBy = &ref
	}
	return target
}

func applyMutationToActor(actor *ActorState, mutation SubsystemMutation) {
	if len(mutation.Details) > 0 {
		for _, detail := range mutation.Details {
			actor.applyCall(detail.Method, 1, mutation.TriggeredBy)
			actor.applySemantics(detail.Method, detail.Arguments)
		}
		return
	}
	methods := sortedMethods(mutation.Methods)
	for _, method := range methods {
		actor.applyCall(method, mutation.Methods[method], mutation.TriggeredBy)
	}
}

func applyMutationToTarget(target *TargetState, mutation SubsystemMutation) {
	if len(mutation.Details) > 0 {
		for _, detail := range mutation.Details {
			target.applyCall(detail.Method, 1, mutation.TriggeredBy)
		}
		return
	}
	for _, method := range sortedMethods(mutation.Methods) {
		target.applyCall(method, mutation.Methods[method], mutation.TriggeredBy)
	}
}

func sortedMethods(methods map[string]int) []string {
	names := make([]string, 0, len(methods))
	for method := range methods {
		names = append(names, method)
	}
	sort.Strings(names)
	return names
}

func (a *ActorState) applyCall(method string, count int, triggeredBy HookReference) {
	a.MethodTotals[method] += count
	a.MethodHistory = append(a.MethodHistory, MethodInvocation{
		Method:      method,
		Count:       count,
		TriggeredBy: triggeredBy,
	})
}

// applySemantics interprets transform and chore methods. Unknown methods
// contribute to the tallies only.
func (a *ActorState) applySemantics(method string, args []string) {
	switch strings.ToLower(method) {
	case "setpos", "set_pos", "set_position":
		if position, ok := parseVec3(args); ok {
			a.transform().Position = position
		}
	case "setrot", "set_rot", "set_rotation":
		if rotation, ok := parseVec3(args); ok {
			a.transform().Rotation = rotation
		}
	case "set_face_target", "set_facing", "look_at":
		if len(args) > 0 && args[0] != "<expr>" {
			a.transform().FacingTarget = args[0]
		}
	case "play_chore":
		if chore, ok := firstArg(args); ok {
			chores := a.chores()
			chores.LastPlayed = chore
			chores.History = append(chores.History, chore)
		}
	case "play_chore_looping":
		if chore, ok := firstArg(args); ok {
			chores := a.chores()
			chores.LastPlayed = chore
			chores.LastLooping = chore
			chores.History = append(chores.History, chore)
		}
	case "complete_chore":
		if chore, ok := firstArg(args); ok {
			a.chores().LastCompleted = chore
		}
	}
}

func (a *ActorState) transform() *ActorTransform {
	if a.Transform == nil {
		a.Transform = &ActorTransform{}
	}
	return a.Transform
}

func (a *ActorState) chores() *ChoreState {
	if a.ChoreState == nil {
		a.ChoreState = &ChoreState{}
	}
	return a.ChoreState
}

func (t *TargetState) applyCall(method string, count int, triggeredBy HookReference) {
	t.MethodTotals[method] += count
	t.MethodHistory = append(t.MethodHistory, MethodInvocation{
		Method:      method,
		Count:       count,
		TriggeredBy: triggeredBy,
	})
}

func parseVec3(args []string) (*Vec3, bool) {
	if len(args) < 3 {
		return nil, false
	}
	components := make([]float64, 3)
	for i := 0; i < 3; i++ {
		value, err := strconv.ParseFloat(strings.TrimSpace(args[i]), 64)
		if err != nil {
			return nil, false
		}
		components[i] = value
	}
	return &Vec3{X: components[0], Y: components[1], Z: components[2]}, true
}

func firstArg(args []string) (string, bool) {
	if len(args) == 0 || args[0] == "<expr>" {
		return "", false
	}
	return args[0], true
}
