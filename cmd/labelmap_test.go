package cmd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const labelMapJSON = `{"pedestrian": 0, "two wheeler": 1, "car": 2}`

func TestLoadLabelMapFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label_map_dictionary.json")
	require.NoError(t, os.WriteFile(path, []byte(labelMapJSON), 0o644))

	schema, err := loadLabelMap(path)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"pedestrian": 0, "two wheeler": 1, "car": 2}, schema)
}

func TestLoadLabelMapFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(labelMapJSON))
	}))
	defer server.Close()

	schema, err := loadLabelMap(server.URL)
	require.NoError(t, err)
	require.Len(t, schema, 3)
	require.Equal(t, 2, schema["car"])
}

func TestLoadLabelMapErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loadLabelMap(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
		_, err := loadLabelMap(path)
		require.Error(t, err)
	})

	t.Run("empty schema", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := loadLabelMap(path)
		require.Error(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()
		_, err := loadLabelMap(server.URL)
		require.Error(t, err)
	})
}
