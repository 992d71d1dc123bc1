// Package ledger stores one test report record per commit in a JSON file.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the overall outcome of a run
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Failure is a failed or errored test with its diagnostic text
type Failure struct {
	ID         string
	Diagnostic string
}

// MarshalJSON encodes a failure as an [id, diagnostic] pair
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.ID, f.Diagnostic})
}

// UnmarshalJSON decodes an [id, diagnostic] pair
func (f *Failure) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failure entry must be an [id, diagnostic] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("failure entry must have 2 elements, got %d", len(pair))
	}
	f.ID, f.Diagnostic = pair[0], pair[1]
	return nil
}

// Results holds either the identifiers of every test (full success) or the
// failing tests with diagnostics. Exactly one of the two is used.
type Results struct {
	Passed []string
	Failed []Failure
}

// MarshalJSON writes a flat list of identifiers when there are no failures and a
// list of [id, diagnostic] pairs otherwise
func (r Results) MarshalJSON() ([]byte, error) {
	if len(r.Failed) > 0 {
		return json.Marshal(r.Failed)
	}
	if r.Passed == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Passed)
}

// UnmarshalJSON accepts either form written by MarshalJSON
func (r *Results) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Results{}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("results must be a list: %w", err)
	}

	out := Results{}
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var id string
			if err := json.Unmarshal(item, &id); err != nil {
				return fmt.Errorf("results[%d]: %w", i, err)
			}
			out.Passed = append(out.Passed, id)
			continue
		}
		var f Failure
		if err := json.Unmarshal(item, &f); err != nil {
			return fmt.Errorf("results[%d]: %w", i, err)
		}
		out.Failed = append(out.Failed, f)
	}
	if len(out.Passed) > 0 && len(out.Failed) > 0 {
		return fmt.Errorf("results mix identifiers and failure pairs")
	}
	*r = out
	return nil
}

// Record is the ledger entry for one commit. CommitID is the unique key.
type Record struct {
	CommitID    string   `json:"commitId"`
	Results     Results  `json:"results"`
	Status      Status   `json:"status"`
	Description string   `json:"description"`
	Coverage    *float64 `json:"coverage"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

// UnmarshalJSON also accepts the older "commit" key for the commit id
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		Commit string `json:"commit"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.CommitID == "" {
		r.CommitID = aux.Commit
	}
	return nil
}

// Upsert returns a copy of records with r merged in: a record with the same
// commit id is replaced in place, otherwise r is appended. The input slice is
// never modified.
func Upsert(records []Record, r Record) []Record {
	out := make([]Record, len(records), len(records)+1)
	copy(out, records)
	for i := range out {
		if out[i].CommitID == r.CommitID {
			out[i] = r
			return out
		}
	}
	return append(out, r)
}

// Find returns the record for commit, if present
func Find(records []Record, commit string) (Record, bool) {
	for _, r := range records {
		if r.CommitID == commit {
			return r, true
		}
	}
	return Record{}, false
}
