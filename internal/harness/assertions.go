package harness

import "strings"

// evaluate applies one assertion to the analysis result, recording a
// failure message when it does not hold.
func evaluate(result *Result, assertion Assertion) {
	switch assertion.Type {
	case "default_set":
		if result.Summary.DefaultSet != assertion.Value {
			result.fail("default_set: expected %q, analyzed %q", assertion.Value, result.Summary.DefaultSet)
		}
	case "developer":
		if result.Summary.DeveloperMode != assertion.Enabled {
			result.fail("developer: expected %t, analyzed %t", assertion.Enabled, result.Summary.DeveloperMode)
		}
	case "queued_script":
		if !queuedScript(result, assertion.Name) {
			result.fail("queued_script: %q was not queued during boot", assertion.Name)
		}
	case "delta_event":
		if !hasDeltaEvent(result, assertion) {
			result.fail("delta_event: no event %s/%s.%s", assertion.Subsystem, assertion.Target, assertion.Method)
		}
	case "actor_created":
		if _, ok := result.Engine.ReplaySnapshot.Actors[assertion.Name]; !ok {
			result.fail("actor_created: %q missing from replay snapshot", assertion.Name)
		}
	}
}

func queuedScript(result *Result, name string) bool {
	for _, event := range result.Engine.QueuedScripts {
		if event.Name == name {
			return true
		}
	}
	return false
}

func hasDeltaEvent(result *Result, assertion Assertion) bool {
	for _, event := range result.Engine.SubsystemDeltaEvents {
		if !strings.EqualFold(string(event.Subsystem), assertion.Subsystem) {
			continue
		}
		if assertion.Target != "" && event.Target != assertion.Target {
			continue
		}
		if assertion.Method != "" && event.Method != assertion.Method {
			continue
		}
		return true
	}
	return false
}
