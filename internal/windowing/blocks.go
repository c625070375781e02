package windowing

import (
	"fmt"
	"os"

	"github.com/petasbytes/rye/memory"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
// Kind indicates whether it is a singleton or a complete exchange.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupExchanges groups messages into atomic units that keep each user message
// together with its reply.
// Invariants:
// - A pair is exactly two adjacent messages: user then assistant.
// - A user message with no reply (the newest message of a turn) is a singleton.
// - An assistant message not preceded by a user message is a singleton; stored
// conversations never contain one, but the window must not drop it silently.
func GroupExchanges(msgs []memory.Message) []Group {
	groups := make([]Group, 0, len(msgs)/2+1)
	for i := 0; i < len(msgs); {
		if msgs[i].Role == memory.RoleUser {
			if i+1 < len(msgs) && msgs[i+1].Role == memory.RoleAssistant {
				groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
				i += 2
				continue
			}
		} else {
			vlogf("singleton: reason=assistant_without_user idx=%d", i)
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// minimal verbose logging when RYE_VERBOSE_WINDOW_LOGS=1; stdout carries the
// conversation so logs go to stderr.
var verbose = os.Getenv("RYE_VERBOSE_WINDOW_LOGS") == "1"

func vlogf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[windowing] "+format+"\n", args...)
	}
}
