// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mlehane/sdkdump/internal/shell"
	"github.com/mlehane/sdkdump/pkg/types"
)

// mockRunner records streamed invocations and returns a canned result.
type mockRunner struct {
	streamed  []string
	streamEnv [][]string
	result    shell.Result
	err       error
	outputs   map[string]string
}

func (m *mockRunner) LookPath(file string) (string, error) { return "", errors.New("not found") }

func (m *mockRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	if out, ok := m.outputs[key]; ok {
		return out, nil
	}
	return "", errors.New("unexpected command: " + key)
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) error { return m.err }

func (m *mockRunner) Stream(ctx context.Context, w io.Writer, tailLen int, extraEnv []string, name string, args ...string) (shell.Result, error) {
	m.streamed = append(m.streamed, name+" "+strings.Join(args, " "))
	m.streamEnv = append(m.streamEnv, extraEnv)
	return m.result, m.err
}

func TestOptionsArgv(t *testing.T) {
	opts := Options{
		Recursive:        true,
		HeadersSubfolder: true,
		SkipExisting:     true,
		SharedCache:      true,
	}
	argv := opts.Argv("/frameworks", "/out/stage")
	want := "/frameworks -o /out/stage --recursive --headers-folder --skip-existing --shared-cache"
	if got := strings.Join(argv, " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestOptionsArgvSingleSymbol(t *testing.T) {
	argv := Options{SingleSymbol: "SFBrowser"}.Argv("in", "out")
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "--symbol SFBrowser") {
		t.Errorf("argv = %q", joined)
	}
}

func TestDispatchHostMode(t *testing.T) {
	run := &mockRunner{}
	c := NewClient(run, io.Discard)
	dc := types.DumpContext{Mode: types.ModeHost, ExtractorPath: "/opt/hdump"}

	_, err := c.Dispatch(context.Background(), dc, "/img", "/stage", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.streamed) != 1 || !strings.HasPrefix(run.streamed[0], "/opt/hdump /img -o /stage") {
		t.Errorf("streamed = %v", run.streamed)
	}
}

func TestDispatchSimulatorModeSpawns(t *testing.T) {
	run := &mockRunner{}
	c := NewClient(run, io.Discard)
	dc := types.DumpContext{
		Mode:          types.ModeSimulator,
		ExtractorPath: "/opt/hdump-sim",
		Device:        types.SimDevice{Name: "sdkdump-17.4", UDID: "AAAA"},
		Verbose:       true,
	}

	_, err := c.Dispatch(context.Background(), dc, "/img", "/stage", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(run.streamed[0], "xcrun simctl spawn AAAA /opt/hdump-sim /img") {
		t.Errorf("streamed = %v", run.streamed)
	}
	env := run.streamEnv[0]
	if len(env) != 1 || env[0] != "SIMCTL_CHILD_HDUMP_VERBOSE=1" {
		t.Errorf("env = %v, want SIMCTL_CHILD_ prefixed passthrough", env)
	}
}

func TestDispatchClassifiesKill(t *testing.T) {
	run := &mockRunner{
		result: shell.Result{Killed: true, Tail: []string{"zsh: Killed: 9"}},
		err:    errors.New("signal: killed"),
	}
	c := NewClient(run, io.Discard)
	dc := types.DumpContext{Mode: types.ModeHost, ExtractorPath: "hdump"}

	tail, err := c.Dispatch(context.Background(), dc, "/img", "/stage", Options{})
	if !types.IsKilled(err) {
		t.Fatalf("got %v, want killed TransientError", err)
	}
	if len(tail) == 0 {
		t.Error("diagnostic tail lost")
	}
}

func TestDispatchClassifiesStaleSession(t *testing.T) {
	for _, line := range []string{
		"simctl: Invalid device state",
		"error: the device is not booted",
	} {
		run := &mockRunner{
			result: shell.Result{Tail: []string{line}},
			err:    errors.New("exit status 164"),
		}
		c := NewClient(run, io.Discard)
		dc := types.DumpContext{Mode: types.ModeSimulator, ExtractorPath: "hdump-sim"}

		_, err := c.Dispatch(context.Background(), dc, "/img", "/stage", Options{})
		if !types.IsStaleSession(err) {
			t.Errorf("%q: got %v, want stale-session TransientError", line, err)
		}
	}
}

func TestDispatchPlainFailure(t *testing.T) {
	run := &mockRunner{
		result: shell.Result{Tail: []string{"error: no objc metadata"}},
		err:    errors.New("exit status 1"),
	}
	c := NewClient(run, io.Discard)
	dc := types.DumpContext{Mode: types.ModeHost, ExtractorPath: "hdump"}

	_, err := c.Dispatch(context.Background(), dc, "/img", "/stage", Options{})
	if err == nil || types.IsTransient(err) {
		t.Fatalf("got %v, want a plain (non-transient) failure", err)
	}
}

func TestStaticRecordsParsesJSON(t *testing.T) {
	run := &mockRunner{outputs: map[string]string{
		"hdump /img --emit json": `{"image":"/img","classes":[{"name":"SFFoo","header":"@interface SFFoo\n@end"}],"categories":[{"name":"Extras","class":"SFFoo","header":"x"}]}`,
	}}
	c := NewClient(run, io.Discard)
	dc := types.DumpContext{ExtractorPath: "hdump"}

	rec, err := c.StaticRecords(context.Background(), dc, "/img")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ImagePath != "/img" || len(rec.Classes) != 1 || rec.Classes[0].Name != "SFFoo" {
		t.Errorf("records = %+v", rec)
	}
	if rec.Categories[0].Key() != "SFFoo(Extras)" {
		t.Errorf("category key = %s", rec.Categories[0].Key())
	}
}

func TestModuleInterfaceAwaited(t *testing.T) {
	run := &mockRunner{outputs: map[string]string{
		"hdump /img --emit interface": "public struct Foo {}",
	}}
	c := NewClient(run, io.Discard)
	dc := types.DumpContext{ExtractorPath: "hdump"}

	res := <-c.ModuleInterface(context.Background(), dc, "/img")
	if res.Err != nil || res.Text != "public struct Foo {}" {
		t.Errorf("result = %+v", res)
	}
}
