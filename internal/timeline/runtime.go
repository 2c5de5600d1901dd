package timeline

import (
	"sort"
	"strings"

	"github.com/roach88/exhume/internal/script"
)

// SetHooks groups a set's mined methods by the role the engine gives them.
type SetHooks struct {
	Enter          *script.SetFunction
	Exit           *script.SetFunction
	CameraChange   *script.SetFunction
	SetupFunctions []script.SetFunction
	OtherMethods   []script.SetFunction
}

// RuntimeSet is a set with its hooks classified.
type RuntimeSet struct {
	VariableName string
	SetFile      string
	DisplayName  string
	Hooks        SetHooks
}

// BootRuntimeModel is every mined set, ready for timeline placement.
type BootRuntimeModel struct {
	Sets []RuntimeSet
}

// BuildRuntimeModel classifies the hooks of every set in the graph.
func BuildRuntimeModel(resources *script.ResourceGraph) *BootRuntimeModel {
	sets := make([]RuntimeSet, 0, len(resources.Sets))
	for _, set := range resources.Sets {
		sets = append(sets, RuntimeSet{
			VariableName: set.VariableName,
			SetFile:      set.SetFile,
			DisplayName:  set.DisplayName,
			Hooks:        classifyHooks(set),
		})
	}
	return &BootRuntimeModel{Sets: sets}
}

func classifyHooks(set script.SetMetadata) SetHooks {
	var hooks SetHooks
	for i := range set.Methods {
		method := set.Methods[i]
		switch {
		case strings.EqualFold(method.Name, "enter"):
			hooks.Enter = &method
		case strings.EqualFold(method.Name, "exit"):
			hooks.Exit = &method
		case strings.EqualFold(method.Name, "camerachange"):
			hooks.CameraChange = &method
		case strings.HasPrefix(method.Name, "set_up"):
			hooks.SetupFunctions = append(hooks.SetupFunctions, method)
		default:
			hooks.OtherMethods = append(hooks.OtherMethods, method)
		}
	}

	sortHooks(hooks.SetupFunctions)
	sortHooks(hooks.OtherMethods)
	return hooks
}

func sortHooks(fns []script.SetFunction) {
	sort.SliceStable(fns, func(i, j int) bool {
		if fns[i].Name != fns[j].Name {
			return fns[i].Name < fns[j].Name
		}
		return fns[i].DefinedAtLine < fns[j].DefinedAtLine
	})
}
