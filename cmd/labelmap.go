package cmd

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

// loadLabelMap reads the label schema {class name -> raw id} from a local
// JSON file or an http(s) URL. Remote fetches retry with backoff so a flaky
// artifact server does not kill a training run at startup.
func loadLabelMap(pathOrURL string) (map[string]int, error) {
	var body io.ReadCloser

	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		client := retryablehttp.NewClient()
		client.RetryMax = 5
		client.Logger = nil
		resp, err := client.Get(pathOrURL)
		if err != nil {
			return nil, errors.Errorf("fetching label map from %q: %v", pathOrURL, err)
		}
		if resp.StatusCode != 200 {
			resp.Body.Close()
			return nil, errors.Errorf("fetching label map from %q: status %d", pathOrURL, resp.StatusCode)
		}
		body = resp.Body
	} else {
		f, err := os.Open(pathOrURL)
		if err != nil {
			return nil, errors.Errorf("opening label map %q: %v", pathOrURL, err)
		}
		body = f
	}
	defer body.Close()

	var schema map[string]int
	if err := json.NewDecoder(body).Decode(&schema); err != nil {
		return nil, errors.Errorf("decoding label map %q: %v", pathOrURL, err)
	}
	if len(schema) == 0 {
		return nil, errors.Errorf("label map %q is empty", pathOrURL)
	}

	names := maps.Keys(schema)
	sort.Strings(names)
	log.WithFields(log.Fields{"classes": names}).Debug("Loaded label schema")
	return schema, nil
}
