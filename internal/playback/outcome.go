package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/resolve"
)

// Request is a single play invocation.
type Request struct {
	RequesterID string
	GuildID     string
	// ChannelID is an explicit target channel. When empty, the sound plays
	// in the requester's current voice channel.
	ChannelID string
	Query     string
}

// StageTiming records how long the request spent in a state.
type StageTiming struct {
	State    State
	Duration time.Duration
}

// Outcome is the terminal result of a request.
type Outcome struct {
	State State
	Query string
	// Entry is the sound the query resolved to, if any.
	Entry catalog.Entry
	// Inferred is set when Entry came from a close match rather than an exact one.
	Inferred    bool
	ChannelID   string
	Suggestions []resolve.Candidate
	Err         error
	Stages      []StageTiming
}

// Kind returns the failure kind, or KindNone for a request that played.
func (o Outcome) Kind() Kind {
	if o.State == Done {
		return KindNone
	}
	var perr *Error
	if errors.As(o.Err, &perr) {
		return perr.Kind
	}
	return Internal
}

// Label names the outcome in play history and metrics: "played" or the
// failure kind.
func (o Outcome) Label() string {
	if o.State == Done {
		return "played"
	}
	return o.Kind().String()
}

// Message is the single status line shown to the requester.
func (o Outcome) Message() string {
	if o.State == Done {
		if o.Inferred {
			return fmt.Sprintf("Playing `%s` (closest match for `%s`).", o.Entry.DisplayName, o.Query)
		}
		return fmt.Sprintf("Playing `%s`.", o.Entry.DisplayName)
	}

	switch kind := o.Kind(); kind {
	case NoMatch:
		return fmt.Sprintf("I couldn't find a sound matching `%s`.", o.Query)
	case AmbiguousMatch:
		return fmt.Sprintf("I found several sounds like `%s`. Did you mean one of these?", o.Query)
	case NotFound, MalformedMeasurement, TranscodeFailure, TranscodeTimeout:
		if o.Entry.DisplayName != "" {
			return fmt.Sprintf("%s (`%s`)", kind.Message(), o.Entry.DisplayName)
		}
		return kind.Message()
	default:
		return kind.Message()
	}
}
