package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// marshalArguments converts an argument list to JSON TEXT for storage.
// Nil slices serialize as an empty array so stored rows round-trip to the
// same shape the reducer produces.
func marshalArguments(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal arguments: %w", err)
	}
	return string(data), nil
}

// marshalReference converts a hook reference to JSON TEXT.
func marshalReference(ref state.HookReference) (string, error) {
	data, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("marshal reference: %w", err)
	}
	return string(data), nil
}

// marshalSummary converts a boot summary to JSON TEXT.
func marshalSummary(summary timeline.BootSummary) (string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}

func unmarshalArguments(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var args []string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}
	if args == nil {
		args = []string{}
	}
	return args, nil
}

func unmarshalReference(data string) (state.HookReference, error) {
	var ref state.HookReference
	if data == "" {
		return ref, nil
	}
	if err := json.Unmarshal([]byte(data), &ref); err != nil {
		return state.HookReference{}, fmt.Errorf("unmarshal reference: %w", err)
	}
	return ref, nil
}

func unmarshalSummary(data string) (timeline.BootSummary, error) {
	var summary timeline.BootSummary
	if data == "" {
		return summary, nil
	}
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return timeline.BootSummary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return summary, nil
}
