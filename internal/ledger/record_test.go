package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestUpsertAppendsNewCommit(t *testing.T) {
	records := []Record{
		{CommitID: "a", Status: StatusSuccess},
		{CommitID: "b", Status: StatusFailure},
	}
	r := Record{CommitID: "c", Status: StatusSuccess, Description: "All passed"}

	got := Upsert(records, r)
	require.Len(t, got, len(records)+1)
	assert.Equal(t, r, got[len(got)-1])
	assert.Equal(t, records, got[:2])
}

func TestUpsertReplacesInPlace(t *testing.T) {
	records := []Record{
		{CommitID: "a", Status: StatusSuccess},
		{CommitID: "abc", Status: StatusSuccess},
		{CommitID: "z", Status: StatusSuccess},
	}
	r := Record{CommitID: "abc", Status: StatusFailure, Description: "1/4 tests failed"}

	got := Upsert(records, r)
	require.Len(t, got, 3)
	assert.Equal(t, r, got[1])
	assert.Equal(t, records[0], got[0])
	assert.Equal(t, records[2], got[2])
	// the input is untouched
	assert.Equal(t, StatusSuccess, records[1].Status)
}

func TestUpsertEmpty(t *testing.T) {
	got := Upsert(nil, Record{CommitID: "x"})
	assert.Equal(t, []Record{{CommitID: "x"}}, got)
}

func TestResultsJSON(t *testing.T) {
	tests := []struct {
		name    string
		results Results
		want    string
	}{
		{"passed identifiers", Results{Passed: []string{"A/one", "B/two"}}, `["A/one","B/two"]`},
		{"failure pairs", Results{Failed: []Failure{{ID: "A/one", Diagnostic: "boom"}}}, `[["A/one","boom"]]`},
		{"empty", Results{}, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.results)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestResultsUnmarshalRejectsMixed(t *testing.T) {
	var r Results
	err := json.Unmarshal([]byte(`["A/one", ["B/two", "err"]]`), &r)
	assert.ErrorContains(t, err, "mix")

	err = json.Unmarshal([]byte(`[["only-one"]]`), &r)
	assert.Error(t, err)
}

func TestRecordJSON(t *testing.T) {
	r := Record{
		CommitID:    "abc",
		Results:     Results{Failed: []Failure{{ID: "T/test_x", Diagnostic: "Traceback"}}},
		Status:      StatusFailure,
		Description: "1/3 tests failed",
		Coverage:    floatPtr(81.5),
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"commitId": "abc",
		"results": [["T/test_x", "Traceback"]],
		"status": "failure",
		"description": "1/3 tests failed",
		"coverage": 81.5
	}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}

func TestRecordNullCoverage(t *testing.T) {
	data, err := json.Marshal(Record{CommitID: "a", Status: StatusSuccess})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"coverage":null`)
}

func TestRecordLegacyCommitKey(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"commit":"1a2b","results":["A/x"],"status":"success","description":"All passed","coverage":70}`), &r))
	assert.Equal(t, "1a2b", r.CommitID)
	assert.Equal(t, []string{"A/x"}, r.Results.Passed)
	require.NotNil(t, r.Coverage)
	assert.InDelta(t, 70.0, *r.Coverage, 1e-9)
}

func TestFind(t *testing.T) {
	records := []Record{{CommitID: "a"}, {CommitID: "b", Description: "x"}}
	r, ok := Find(records, "b")
	assert.True(t, ok)
	assert.Equal(t, "x", r.Description)
	_, ok = Find(records, "c")
	assert.False(t, ok)
}
