package recovery

import (
	"encoding/json"
	"io"
	"time"
)

// FixAttempt is the audit record of one strategy invocation. Every
// invocation is recorded, accepted or not, so a session's trail shows
// exactly what was tried against which error-set fingerprint.
type FixAttempt struct {
	Strategy    string `json:"strategy"`
	Fingerprint string `json:"fingerprint"`
	Accepted    bool   `json:"accepted"`
	Note        string `json:"note,omitempty"`

	// FilesTouched lists the paths whose content the strategy changed
	// or added, whether or not the result was accepted.
	FilesTouched []string `json:"files_touched,omitempty"`

	Issues    []string      `json:"issues,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// WriteTrail serializes a fix-attempt trail as indented JSON.
func WriteTrail(w io.Writer, attempts []FixAttempt) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(attempts)
}

// detectOscillation reports whether the trailing window of attempts
// contains two or more accepted fixes against the same fingerprint. A
// fingerprint that keeps coming back after an accepted fix means the
// chain is undoing its own work.
func detectOscillation(attempts []FixAttempt, window int) bool {
	if window <= 0 {
		return false
	}
	start := len(attempts) - window
	if start < 0 {
		start = 0
	}
	acceptedByFP := make(map[string]int)
	for _, a := range attempts[start:] {
		if !a.Accepted {
			continue
		}
		acceptedByFP[a.Fingerprint]++
		if acceptedByFP[a.Fingerprint] >= 2 {
			return true
		}
	}
	return false
}
