package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/manifest-placeholders/internal/api"
	"github.com/eugenenazirov/manifest-placeholders/internal/manifest"
	"github.com/eugenenazirov/manifest-placeholders/internal/resolver"
	"github.com/eugenenazirov/manifest-placeholders/internal/source"
)

func newRouter(t *testing.T, fs afero.Fs, env map[string]string) http.Handler {
	t.Helper()

	props, err := source.LoadPropertiesFile(fs, source.DefaultPropertiesFile)
	if err != nil {
		t.Fatalf("LoadPropertiesFile returned error: %v", err)
	}

	envSource := source.NewEnvWithLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	logger := zaptest.NewLogger(t)
	res, err := resolver.New(logger, envSource, props)
	if err != nil {
		t.Fatalf("resolver.New returned error: %v", err)
	}

	set, err := manifest.Build(res, manifest.DefaultSpecs())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	handler := api.NewHandler(set, api.WithReveal(true))
	return api.NewRouter(handler, logger)
}

func performRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIntegrationFlow(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, source.DefaultPropertiesFile, []byte("sdk.dir=/opt/android\nGOOGLE_MAPS_API_KEY=FileKeyABC\n"), 0o600); err != nil {
		t.Fatalf("write properties: %v", err)
	}

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "file value", want: "FileKeyABC"},
		{name: "environment overrides file", env: map[string]string{"GOOGLE_MAPS_API_KEY": "AIzaExampleKey123"}, want: "AIzaExampleKey123"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			handler := newRouter(t, fs, tc.env)

			rec := performRequest(t, handler, http.MethodGet, "/api/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 from health, got %d", rec.Code)
			}

			rec = performRequest(t, handler, http.MethodGet, "/api/placeholders/GOOGLE_MAPS_API_KEY")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 from placeholder lookup, got %d", rec.Code)
			}

			var response struct {
				Value        string `json:"value"`
				UsedSentinel bool   `json:"usedSentinel"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if response.Value != tc.want || response.UsedSentinel {
				t.Fatalf("unexpected placeholder %+v", response)
			}
		})
	}
}

func TestIntegrationMissingKeyPublishesSentinel(t *testing.T) {
	handler := newRouter(t, afero.NewMemMapFs(), nil)

	rec := performRequest(t, handler, http.MethodGet, "/api/placeholders")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response struct {
		Placeholders []struct {
			Value string `json:"value"`
		} `json:"placeholders"`
		Missing []string `json:"missing"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Placeholders) != 1 || response.Placeholders[0].Value != "GOOGLE_MAPS_API_KEY_NOT_SET" {
		t.Fatalf("expected sentinel, got %+v", response.Placeholders)
	}
	if len(response.Missing) != 1 {
		t.Fatalf("expected one missing placeholder, got %v", response.Missing)
	}
}
