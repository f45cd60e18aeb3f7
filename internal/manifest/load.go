package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Load parses every .hcl file under paths and merges them into one Model.
// Paths may be files or directories; directories are walked recursively.
func Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Manifest loader started.", "path_count", len(paths))

	files, err := resolvePaths(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", strings.Join(paths, ", "))
	}
	logger.Info("Found HCL files to process.", "count", len(files))

	parser := hclparse.NewParser()
	model := &Model{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if err := translate(ctx, model, &root, file); err != nil {
			return nil, fmt.Errorf("invalid manifest %s: %w", file, err)
		}
		logger.Debug("Successfully loaded definitions from HCL file.", "file", file)
	}

	if err := model.Check(); err != nil {
		return nil, err
	}
	logger.Debug("Manifest loading complete.",
		"states", len(model.States),
		"computes", len(model.Computes),
		"commands", len(model.Commands),
		"clients", len(model.Clients),
	)
	return model, nil
}

// resolvePaths returns every .hcl file under paths, without duplicates.
func resolvePaths(ctx context.Context, paths []string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("grid path not found: %s", path)
		}
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) != ".hcl" {
				return nil, fmt.Errorf("specified file is not an .hcl file: %s", path)
			}
			add(path)
			continue
		}

		logger.Debug("Path is a directory, scanning for HCL files.", "directory", path)
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func translate(ctx context.Context, m *Model, root *fileRoot, file string) error {
	for _, b := range root.States {
		s, err := translateState(ctx, b, file)
		if err != nil {
			return err
		}
		m.States = append(m.States, s)
	}
	for _, b := range root.Computes {
		c, err := translateCompute(ctx, b, file)
		if err != nil {
			return err
		}
		m.Computes = append(m.Computes, c)
	}
	for _, b := range root.Commands {
		args, err := constValue(b.Args)
		if err != nil {
			return fmt.Errorf("command '%s': args: %w", b.Name, err)
		}
		m.Commands = append(m.Commands, &Command{
			Name:       b.Name,
			States:     b.States,
			Computes:   b.Computes,
			Handler:    b.Handler,
			Args:       args,
			Background: b.Background,
			File:       file,
		})
	}
	for _, b := range root.Clients {
		c, err := translateClient(b)
		if err != nil {
			return err
		}
		m.Clients = append(m.Clients, c)
	}
	return nil
}

func translateState(ctx context.Context, b *stateBlock, file string) (*State, error) {
	ty, err := typeExprToCtyType(ctx, b.Type)
	if err != nil {
		return nil, fmt.Errorf("state '%s': type: %w", b.Name, err)
	}
	def, err := constValue(b.Default)
	if err != nil {
		return nil, fmt.Errorf("state '%s': default: %w", b.Name, err)
	}
	def, err = conform(def, ty)
	if err != nil {
		return nil, fmt.Errorf("state '%s': default: %w", b.Name, err)
	}
	return &State{Name: b.Name, Type: ty, Default: def, File: file}, nil
}

func translateCompute(ctx context.Context, b *computeBlock, file string) (*Compute, error) {
	ty, err := typeExprToCtyType(ctx, b.Type)
	if err != nil {
		return nil, fmt.Errorf("compute '%s': type: %w", b.Name, err)
	}
	def, err := constValue(b.Default)
	if err != nil {
		return nil, fmt.Errorf("compute '%s': default: %w", b.Name, err)
	}
	if def, err = conform(def, ty); err != nil {
		return nil, fmt.Errorf("compute '%s': default: %w", b.Name, err)
	}
	policy, err := compute.ParsePolicy(b.Policy)
	if err != nil {
		return nil, fmt.Errorf("compute '%s': %w", b.Name, err)
	}
	args, err := constValue(b.Args)
	if err != nil {
		return nil, fmt.Errorf("compute '%s': args: %w", b.Name, err)
	}

	c := &Compute{
		Name:     b.Name,
		States:   b.States,
		Computes: b.Computes,
		Type:     ty,
		Default:  def,
		Policy:   policy,
		Handler:  b.Handler,
		Args:     args,
		File:     file,
	}
	if !absent(b.Value) {
		c.Value = b.Value
	}
	if b.Fetch != nil {
		timeout, err := parseDuration(b.Fetch.Timeout, 0)
		if err != nil {
			return nil, fmt.Errorf("compute '%s': fetch timeout: %w", b.Name, err)
		}
		reply := b.Fetch.Reply
		if reply == "" {
			reply = b.Fetch.Event
		}
		c.Fetch = &Fetch{Client: b.Fetch.Client, Event: b.Fetch.Event, Reply: reply, Timeout: timeout}
		if !absent(b.Fetch.Data) {
			c.Fetch.Data = b.Fetch.Data
		}
	}

	set := 0
	for _, ok := range []bool{c.Value != nil, c.Handler != "", c.Fetch != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("compute '%s': exactly one of value, handler or fetch must be set, found %d", b.Name, set)
	}
	return c, nil
}

func translateClient(b *clientBlock) (*Client, error) {
	if b.Kind != "socketio" {
		return nil, fmt.Errorf("client '%s': unsupported kind %q, expected socketio", b.Name, b.Kind)
	}
	timeout, err := parseDuration(b.Timeout, 0)
	if err != nil {
		return nil, fmt.Errorf("client '%s': timeout: %w", b.Name, err)
	}
	c := &Client{
		Kind:               b.Kind,
		Name:               b.Name,
		URL:                b.URL,
		Namespace:          b.Namespace,
		Timeout:            timeout,
		InsecureSkipVerify: b.InsecureSkipVerify,
	}
	if b.Breaker != nil {
		open, err := parseDuration(b.Breaker.OpenTimeout, 0)
		if err != nil {
			return nil, fmt.Errorf("client '%s': breaker open_timeout: %w", b.Name, err)
		}
		if b.Breaker.MaxFailures < 0 {
			return nil, fmt.Errorf("client '%s': breaker max_failures cannot be negative", b.Name)
		}
		c.Breaker = &Breaker{MaxFailures: uint32(b.Breaker.MaxFailures), OpenTimeout: open}
	}
	return c, nil
}

// conform converts v to ty. Null values become typed nulls.
func conform(v cty.Value, ty cty.Type) (cty.Value, error) {
	if ty == cty.DynamicPseudoType {
		return v, nil
	}
	if v.IsNull() {
		return cty.NullVal(ty), nil
	}
	out, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot convert %s to %s: %w", v.Type().FriendlyName(), ty.FriendlyName(), err)
	}
	return out, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
