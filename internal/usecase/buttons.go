package usecase

import "speechpanel/internal/domain"

// recordButtonDisabled decides whether a hotword control is disabled.
//
// Slots are only checked against cumulative completion, not strict order:
// slot N is disabled once slots 0..N are all recorded. The build control
// stays enabled whenever recording is possible at all.
func recordButtonDisabled(id domain.ButtonID, recording bool, hotword domain.HotwordConfig) bool {
	if recording || hotword.Token == "" {
		return true
	}

	r := hotword.Recordings
	switch id {
	case domain.ButtonRecord1:
		return r[0]
	case domain.ButtonRecord2:
		return r[0] && r[1]
	case domain.ButtonRecord3:
		return r[0] && r[1] && r[2]
	case domain.ButtonBuild:
		return false
	case domain.ButtonReset:
		return !(r.Complete() && hotword.Model)
	default:
		return false
	}
}
