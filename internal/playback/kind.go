package playback

import "fmt"

// Kind classifies why a playback request did not end in Done.
type Kind int

const (
	KindNone Kind = iota
	NotFound
	NoMatch
	AmbiguousMatch
	NotInVoiceChannel
	MalformedMeasurement
	TranscodeFailure
	TranscodeTimeout
	ConnectionUnavailable
	CatalogNotReady
	Internal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case NotFound:
		return "not_found"
	case NoMatch:
		return "no_match"
	case AmbiguousMatch:
		return "ambiguous_match"
	case NotInVoiceChannel:
		return "not_in_voice_channel"
	case MalformedMeasurement:
		return "malformed_measurement"
	case TranscodeFailure:
		return "transcode_failure"
	case TranscodeTimeout:
		return "transcode_timeout"
	case ConnectionUnavailable:
		return "connection_unavailable"
	case CatalogNotReady:
		return "catalog_not_ready"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is the fixed text shown to the requester for k.
func (k Kind) Message() string {
	switch k {
	case NotFound:
		return "That sound is listed but its audio could not be found."
	case NoMatch:
		return "I couldn't find a sound with that name."
	case AmbiguousMatch:
		return "I found several sounds with a similar name. Did you mean one of these?"
	case NotInVoiceChannel:
		return "You must be in a voice channel to play sounds."
	case MalformedMeasurement:
		return "I couldn't measure the loudness of that sound."
	case TranscodeFailure:
		return "I couldn't process the audio for that sound."
	case TranscodeTimeout:
		return "Processing that sound took too long."
	case ConnectionUnavailable:
		return "I couldn't connect to your voice channel."
	case CatalogNotReady:
		return "Starting up, give me a minute!"
	default:
		return "Something went wrong while playing that sound."
	}
}

// UserCaused reports whether k stems from the request rather than from the
// bot or its collaborators.
func (k Kind) UserCaused() bool {
	switch k {
	case NoMatch, AmbiguousMatch, NotInVoiceChannel, CatalogNotReady:
		return true
	}
	return false
}

// Error is a terminal playback failure of a known kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var _ error = (*Error)(nil)
