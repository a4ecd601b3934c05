package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatusString(t *testing.T) {
	assert.Equal(t, "pending", BuildStatusPending.String())
	assert.Equal(t, "running", BuildStatusRunning.String())
	assert.Equal(t, "done", BuildStatusDone.String())
	assert.Equal(t, "failed", BuildStatusFailed.String())
	assert.Equal(t, "unknown", BuildStatus(42).String())
}

func TestBuildTaskJSONRoundTrip(t *testing.T) {
	task := BuildTask{
		UUID:      "abc",
		InputKey:  "corpora/a.bin",
		OutputKey: "indexes/a.diskann",
		Params: BuildParams{
			Metric:          "ip",
			MaxDegree:       64,
			BuildComplexity: 128,
			Alpha:           1.3,
			SampleSize:      1000,
		},
		Status: BuildStatusPending,
	}

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var got BuildTask
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, task, got)
}

func TestIndexInfoJSONFields(t *testing.T) {
	info := IndexInfo{
		Name:            "embeddings",
		Dimension:       128,
		Count:           10,
		Metric:          "L2",
		MaxDegree:       32,
		BuildComplexity: 64,
		Alpha:           1.2,
	}
	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"max_degree":32`)
	assert.Contains(t, string(data), `"read_only":false`)
}
