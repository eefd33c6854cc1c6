// Package job holds the job posting a candidate interviews for.
package job

import (
	"strings"

	"interview/errors"
)

var ErrInvalid = errors.New("invalid job")

// Job is immutable once fetched; a new selection replaces it wholesale.
type Job struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	URL     string `json:"url"`
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return errors.Wrap(ErrInvalid, "missing title")
	}
	return nil
}

// Label is the one-line form used in lists and logs.
func (j Job) Label() string {
	if j.Company == "" {
		return j.Title
	}
	return j.Title + " @ " + j.Company
}
