package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type recordedEffects struct {
	states map[string]cty.Value
}

func (r *recordedEffects) SetState(name string, v cty.Value) error {
	r.states[name] = v
	return nil
}
func (r *recordedEffects) Deliver(string, cty.Value) error { return nil }
func (r *recordedEffects) Trigger(string) error            { return nil }

func TestOnS3_Upload(t *testing.T) {
	var got []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		contentType = r.Header.Get("Content-Type")
		got, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o644))

	effects := &recordedEffects{states: make(map[string]cty.Value)}
	err := OnS3(srv.Client())(ctxlog.Discard(context.Background()), &registry.CommandCall{
		Command: "upload",
		States:  map[string]cty.Value{"source_path": cty.StringVal(path)},
		Input:   &Input{Action: "upload", UploadURL: srv.URL, ResultState: "uploaded"},
		Effects: effects,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got))
	assert.Equal(t, "application/json", contentType)
	require.Contains(t, effects.states, "uploaded")
	assert.Equal(t, cty.True, effects.states["uploaded"].GetAttr("success"))
}

func TestOnS3_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	fn := OnS3(http.DefaultClient)

	err := fn(ctx, &registry.CommandCall{Input: &Input{Action: "download"}})
	assert.ErrorContains(t, err, "not yet implemented")

	err = fn(ctx, &registry.CommandCall{Input: &Input{Action: "delete"}})
	assert.ErrorContains(t, err, "unknown s3 action")

	err = fn(ctx, &registry.CommandCall{Input: &Input{Action: "upload", SourcePath: filepath.Join(t.TempDir(), "missing")}})
	assert.ErrorContains(t, err, "failed to open source file")
}
