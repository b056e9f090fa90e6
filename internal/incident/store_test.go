package incident

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "incidents.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestStore_LoadCSVAndList(t *testing.T) {
	body := `id,title,description,severity,status,created_at,affected_services,assignee
INC001,DB down,Database unreachable,high,open,2024-01-02T10:00:00Z,db|api,alice
INC002,Slow API,Latency spike,medium,resolved,2024-01-03T10:00:00Z,api,bob
`
	s := NewStore()
	warnings, err := s.LoadCSV(writeCSV(t, body))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "INC002", list[0].ID) // later created_at first
	assert.Equal(t, []string{"db", "api"}, list[1].AffectedServices)
}

func TestStore_LoadCSV_TrailingCommaTolerated(t *testing.T) {
	body := "id,title,description,severity,status,created_at,affected_services,assignee\n" +
		"INC003,Title,Desc,low,open,2024-01-01T00:00:00Z,api,carol,\n"
	s := NewStore()
	warnings, err := s.LoadCSV(writeCSV(t, body))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	_, err = s.Get("INC003")
	require.NoError(t, err)
}

func TestStore_LoadCSV_NonEmptyTrailingColumnWarns(t *testing.T) {
	body := "id,title,description,severity,status,created_at,affected_services,assignee\n" +
		"INC004,Title,Desc,low,open,2024-01-01T00:00:00Z,api,carol,unexpected\n"
	s := NewStore()
	warnings, err := s.LoadCSV(writeCSV(t, body))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	_, err = s.Get("INC004")
	require.NoError(t, err)
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get("missing")
	require.Error(t, err)
}

func TestStore_UpdateStatus_InvalidInput(t *testing.T) {
	body := "id,title,description,severity,status,created_at,affected_services,assignee\n" +
		"INC005,Title,Desc,low,open,2024-01-01T00:00:00Z,api,carol\n"
	s := NewStore()
	_, err := s.LoadCSV(writeCSV(t, body))
	require.NoError(t, err)

	_, err = s.UpdateStatus("INC005", "bogus")
	require.Error(t, err)
}

func TestStore_UpdateStatus_ConcurrentRace(t *testing.T) {
	body := "id,title,description,severity,status,created_at,affected_services,assignee\n" +
		"INC006,Title,Desc,low,open,2024-01-01T00:00:00Z,api,carol\n"
	s := NewStore()
	_, err := s.LoadCSV(writeCSV(t, body))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = s.UpdateStatus("INC006", "investigating") }()
	go func() { defer wg.Done(); _, _ = s.UpdateStatus("INC006", "resolved") }()
	wg.Wait()

	final, err := s.Get("INC006")
	require.NoError(t, err)
	assert.Contains(t, []Status{StatusInvestigating, StatusResolved}, final.Status)
}
