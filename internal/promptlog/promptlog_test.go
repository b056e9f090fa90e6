package promptlog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendTruncatesContextSummary(t *testing.T) {
	l := New(10)
	long := strings.Repeat("a", 500)
	rec := l.Append(time.Now(), "INC001", PromptTypeSynthesis, "system", "user", long, nil)
	assert.Len(t, rec.ContextSummary, contextSummaryMaxChars)
	require.NotEmpty(t, rec.ID)
}

func TestLog_DropsOldestBeyondMax(t *testing.T) {
	l := New(2)
	l.Append(time.Now(), "INC001", PromptTypeSynthesis, "s", "u1", "", nil)
	l.Append(time.Now(), "INC001", PromptTypeSynthesis, "s", "u2", "", nil)
	l.Append(time.Now(), "INC001", PromptTypeSynthesis, "s", "u3", "", nil)

	records := l.List()
	require.Len(t, records, 2)
	assert.Equal(t, "u2", records[0].UserMessage)
	assert.Equal(t, "u3", records[1].UserMessage)
}
