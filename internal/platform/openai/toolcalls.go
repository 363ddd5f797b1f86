package openai

import (
	"sort"
	"strings"
)

// toolCallDelta is one streamed tool_calls fragment. The model may send the
// id, name, and argument text in separate increments for the same index.
type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type toolCallSlot struct {
	id   string
	name string
	args strings.Builder
}

// toolCallAggregator concatenates streamed fragments by index. Slots missing
// either an id or a name at the end are discarded.
type toolCallAggregator struct {
	slots map[int]*toolCallSlot
}

func newToolCallAggregator() *toolCallAggregator {
	return &toolCallAggregator{slots: map[int]*toolCallSlot{}}
}

func (a *toolCallAggregator) Add(d toolCallDelta) {
	slot, ok := a.slots[d.Index]
	if !ok {
		slot = &toolCallSlot{}
		a.slots[d.Index] = slot
	}
	if d.ID != "" {
		slot.id = d.ID
	}
	if d.Function.Name != "" {
		slot.name = d.Function.Name
	}
	if d.Function.Arguments != "" {
		slot.args.WriteString(d.Function.Arguments)
	}
}

func (a *toolCallAggregator) Completed() []ToolCall {
	idxs := make([]int, 0, len(a.slots))
	for i := range a.slots {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	out := make([]ToolCall, 0, len(idxs))
	for _, i := range idxs {
		slot := a.slots[i]
		if slot.id == "" || slot.name == "" {
			continue
		}
		out = append(out, ToolCall{
			ID:   slot.id,
			Type: "function",
			Function: ToolFunction{
				Name:      slot.name,
				Arguments: slot.args.String(),
			},
		})
	}
	return out
}
