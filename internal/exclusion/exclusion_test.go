package exclusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_ExcludeAndIsExcluded(t *testing.T) {
	s := New()
	assert.False(t, s.IsExcluded("INC001", "KB1", CategoryKnowledgeDocuments, "mock"))
	s.Exclude("INC001", "KB1", CategoryKnowledgeDocuments, "mock")
	assert.True(t, s.IsExcluded("INC001", "KB1", CategoryKnowledgeDocuments, "mock"))
	assert.False(t, s.IsExcluded("INC002", "KB1", CategoryKnowledgeDocuments, "mock"))
}

func TestStore_Accuracy(t *testing.T) {
	s := New()
	s.RecordReturned(CategorySimilarIncidents, 4)
	s.Exclude("INC001", "INC002", CategorySimilarIncidents, "mock")

	cats, overall := s.Accuracy()
	require := assert.New(t)
	require.Len(cats, 1)
	require.Equal(100*float64(4-1)/4, cats[0].Accuracy)
	require.Equal(cats[0].Accuracy, overall)
}

func TestStore_Accuracy_NoReturnsYieldsZero(t *testing.T) {
	s := New()
	_, overall := s.Accuracy()
	assert.Equal(t, 0.0, overall)
}
