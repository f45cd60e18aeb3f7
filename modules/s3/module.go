package s3

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for uploads. Nil means http.DefaultClient.
	Client *http.Client
}

// Input defines the `args` of an s3 command.
type Input struct {
	Action     string `cty:"action"`
	SourcePath string `cty:"source_path"`
	UploadURL  string `cty:"upload_url"`
	// ResultState names a state that receives the upload result.
	ResultState string `cty:"result_state"`
}

// handleUpload uploads a file to a pre-signed URL.
func handleUpload(ctx context.Context, client *http.Client, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	file, err := os.Open(input.SourcePath)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to open source file '%s': %w", input.SourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to get file stats for '%s': %w", input.SourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, input.UploadURL, file)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create S3 upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(input.SourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading file to S3", "source", input.SourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cty.NilVal, fmt.Errorf("S3 upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded file", "status", resp.Status)

	return cty.ObjectVal(map[string]cty.Value{
		"success": cty.BoolVal(true),
		"status":  cty.StringVal(resp.Status),
	}), nil
}

// OnS3 runs an s3 action. The source path may come from a snapshot state
// called "source_path" when the args leave it empty.
func OnS3(client *http.Client) func(ctx context.Context, call *registry.CommandCall) error {
	return func(ctx context.Context, call *registry.CommandCall) error {
		input, ok := call.Input.(*Input)
		if !ok || input == nil {
			input = &Input{}
		}
		if v, ok := call.States["source_path"]; ok && input.SourcePath == "" && !v.IsNull() {
			if err := gocty.FromCtyValue(v, &input.SourcePath); err != nil {
				return fmt.Errorf("source_path state: %w", err)
			}
		}

		var result cty.Value
		var err error
		switch strings.ToLower(input.Action) {
		case "upload":
			result, err = handleUpload(ctx, client, input)
		case "download":
			err = fmt.Errorf("s3 action 'download' is not yet implemented")
		default:
			err = fmt.Errorf("unknown s3 action: '%s'", input.Action)
		}
		if err != nil {
			return err
		}
		if input.ResultState != "" {
			return call.Effects.SetState(input.ResultState, result)
		}
		return nil
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	r.RegisterCommand("s3", &registry.CommandHandler{
		NewInput:   func() any { return new(Input) },
		Background: true,
		Fn:         OnS3(client),
	})
}
