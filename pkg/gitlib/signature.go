package gitlib

import "time"

// Signature represents a git signature (author/committer); history.Mine
// keys its ownership tallies off the author's Name/Email pair.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}
