package windowing_test

import (
	"github.com/petasbytes/rye/internal/windowing"
	"github.com/petasbytes/rye/memory"
)

// User message constructor
func User(text string) memory.Message { return memory.UserMessage(text) }

// Assistant message constructor
func Asst(text string) memory.Message { return memory.AssistantMessage(text) }

// groupsEqual is a small utility used by grouping tests.
func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Kind != want[i].Kind || got[i].Start != want[i].Start || got[i].End != want[i].End {
			return false
		}
	}
	return true
}
