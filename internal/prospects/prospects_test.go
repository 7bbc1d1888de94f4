package prospects_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/prospects"
)

const sampleList = `[
  {
    "name": "Priya Sharma",
    "linkedin_url": "https://www.linkedin.com/in/priya-sharma",
    "job_title": "Staff Engineer",
    "company": "Acme Robotics",
    "industry": "robotics"
  },
  {
    "name": "Jordan Lee",
    "linkedin_url": "https://www.linkedin.com/in/jordan-lee"
  }
]`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prospects.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleList), 0o600))

	list, err := prospects.Load(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Priya Sharma", list[0].Name)
	assert.Equal(t, "Staff Engineer", list[0].JobTitle)
	assert.Equal(t, "Acme Robotics", list[0].Company)
	assert.Equal(t, "https://www.linkedin.com/in/jordan-lee", list[1].ProfileURL)
	assert.Empty(t, list[1].Company)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := prospects.Load("/nonexistent/prospects.json", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/prospects.json")
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := prospects.Parse([]byte(`{"not": "a list"}`), zap.NewNop())
	require.Error(t, err)

	var die *schemas.DataIntegrityError
	require.ErrorAs(t, err, &die)
	assert.Contains(t, die.Reason, "malformed JSON")
}

func TestParseEmptyList(t *testing.T) {
	_, err := prospects.Parse([]byte(`[]`), zap.NewNop())
	require.Error(t, err)

	var die *schemas.DataIntegrityError
	require.ErrorAs(t, err, &die)
	assert.Equal(t, "prospects", die.Field)
	assert.Contains(t, die.Reason, "empty")
}

func TestParseNamesOffendingIndexAndField(t *testing.T) {
	bad := `[
	  {"name": "Priya Sharma", "linkedin_url": "https://www.linkedin.com/in/priya-sharma"},
	  {"name": "", "linkedin_url": "https://www.linkedin.com/in/ghost"},
	  {"name": "Jordan Lee", "linkedin_url": "https://www.linkedin.com/in/jordan-lee"}
	]`

	_, err := prospects.Parse([]byte(bad), zap.NewNop())
	require.Error(t, err)

	var die *schemas.DataIntegrityError
	require.ErrorAs(t, err, &die)
	assert.Equal(t, "prospects[1].name", die.Field)
}

func TestParseRejectsBadURL(t *testing.T) {
	bad := `[{"name": "Priya Sharma", "linkedin_url": "ftp://example.com/profile"}]`

	_, err := prospects.Parse([]byte(bad), zap.NewNop())
	require.Error(t, err)

	var die *schemas.DataIntegrityError
	require.ErrorAs(t, err, &die)
	assert.Equal(t, "prospects[0].linkedin_url", die.Field)
	assert.Contains(t, die.Reason, "ftp")
}

func TestParseWarnsOnDuplicateURL(t *testing.T) {
	dup := `[
	  {"name": "Priya Sharma", "linkedin_url": "https://www.linkedin.com/in/priya-sharma"},
	  {"name": "Priya S.", "linkedin_url": "https://www.linkedin.com/in/priya-sharma"}
	]`

	core, logs := observer.New(zap.WarnLevel)
	list, err := prospects.Parse([]byte(dup), zap.New(core))
	require.NoError(t, err, "duplicates are kept, one outcome per input row")
	assert.Len(t, list, 2)

	warned := logs.FilterMessage("Duplicate prospect URL in list; it will be attempted again.")
	require.Equal(t, 1, warned.Len())
	assert.Equal(t, int64(1), warned.All()[0].ContextMap()["duplicate_index"])
}
