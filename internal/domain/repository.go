package domain

import "time"

// Target is one (repository, expected commit) pair to be harvested
type Target struct {
	Owner     string
	Name      string
	CommitSHA string
}

// FullName returns the "owner/name" form of the target repository
func (t Target) FullName() string {
	return t.Owner + "/" + t.Name
}

// ShortSHA returns the first eight characters of the commit for log output
func (t Target) ShortSHA() string {
	if len(t.CommitSHA) > 8 {
		return t.CommitSHA[:8]
	}
	return t.CommitSHA
}

// TargetSpec is the on-disk shape of a target entry
type TargetSpec struct {
	Repo      string `json:"repo" yaml:"repo"`
	CommitSHA string `json:"commit_sha" yaml:"commit_sha"`
}

// Repository is the subset of forge repository metadata the integrity gate reads
type Repository struct {
	Owner     string
	Name      string
	FullName  string
	IsPrivate bool
	HTMLURL   string
	FetchedAt time.Time
}
