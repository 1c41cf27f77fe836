// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mlehane/sdkdump/pkg/types"
)

// imageJSON is the extractor's --emit json wire format for one image.
type imageJSON struct {
	Image   string `json:"image"`
	Classes []struct {
		Name   string `json:"name"`
		Header string `json:"header"`
	} `json:"classes"`
	Protocols []struct {
		Name   string `json:"name"`
		Header string `json:"header"`
	} `json:"protocols"`
	Categories []struct {
		Name   string `json:"name"`
		Class  string `json:"class"`
		Header string `json:"header"`
	} `json:"categories"`
}

func (j imageJSON) toRecords() types.ImageRecords {
	rec := types.ImageRecords{ImagePath: j.Image}
	for _, c := range j.Classes {
		rec.Classes = append(rec.Classes, types.ClassRecord{Name: c.Name, Header: c.Header})
	}
	for _, p := range j.Protocols {
		rec.Protocols = append(rec.Protocols, types.ProtocolRecord{Name: p.Name, Header: p.Header})
	}
	for _, c := range j.Categories {
		rec.Categories = append(rec.Categories, types.CategoryRecord{
			Name: c.Name, ClassName: c.Class, Header: c.Header,
		})
	}
	return rec
}

// RecordSource produces raw metadata records for one image: static
// decoding, the runtime-introspection fallback, and the asynchronous
// module interface.
type RecordSource interface {
	// StaticRecords decodes the image on disk.
	StaticRecords(ctx context.Context, imagePath string) (*types.ImageRecords, error)

	// RuntimeRecords asks the live runtime for classes registered to the
	// named image. An empty result is legitimate; the caller then falls
	// back to RuntimeScan.
	RuntimeRecords(ctx context.Context, imagePath string) ([]types.ImageRecords, error)

	// RuntimeScan walks the whole runtime's class list, grouped by the
	// image each class belongs to. Slower than RuntimeRecords.
	RuntimeScan(ctx context.Context) ([]types.ImageRecords, error)

	// ModuleInterface starts asynchronous module-interface generation
	// and returns the channel its single result arrives on. An empty
	// text with a nil error means the image has no module interface.
	ModuleInterface(ctx context.Context, imagePath string) <-chan InterfaceResult
}

// InterfaceResult is the outcome of module-interface generation.
type InterfaceResult struct {
	Text string
	Err  error
}

// Source binds the client to one run context, satisfying RecordSource.
func (c *Client) Source(dc types.DumpContext) RecordSource {
	return &boundSource{c: c, dc: dc}
}

type boundSource struct {
	c  *Client
	dc types.DumpContext
}

func (b *boundSource) StaticRecords(ctx context.Context, imagePath string) (*types.ImageRecords, error) {
	return b.c.StaticRecords(ctx, b.dc, imagePath)
}

func (b *boundSource) RuntimeRecords(ctx context.Context, imagePath string) ([]types.ImageRecords, error) {
	return b.c.RuntimeRecords(ctx, b.dc, imagePath)
}

func (b *boundSource) RuntimeScan(ctx context.Context) ([]types.ImageRecords, error) {
	return b.c.RuntimeScan(ctx, b.dc)
}

func (b *boundSource) ModuleInterface(ctx context.Context, imagePath string) <-chan InterfaceResult {
	return b.c.ModuleInterface(ctx, b.dc, imagePath)
}

// StaticRecords invokes the extractor in record-emitting mode and parses
// one image's records.
func (c *Client) StaticRecords(ctx context.Context, dc types.DumpContext, imagePath string) (*types.ImageRecords, error) {
	out, err := c.run.Output(ctx, dc.ExtractorPath, imagePath, "--emit", "json")
	if err != nil {
		return nil, fmt.Errorf("static extraction of %s: %w", imagePath, err)
	}
	var parsed imageJSON
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("parsing records for %s: %w", imagePath, err)
	}
	rec := parsed.toRecords()
	if rec.ImagePath == "" {
		rec.ImagePath = imagePath
	}
	return &rec, nil
}

// RuntimeRecords queries the live runtime by image name.
func (c *Client) RuntimeRecords(ctx context.Context, dc types.DumpContext, imagePath string) ([]types.ImageRecords, error) {
	out, err := c.run.Output(ctx, dc.ExtractorPath, imagePath, "--emit", "json", "--prefer-runtime")
	if err != nil {
		return nil, fmt.Errorf("runtime query for %s: %w", imagePath, err)
	}
	return parseImageList(out)
}

// RuntimeScan walks every class the live runtime knows about.
func (c *Client) RuntimeScan(ctx context.Context, dc types.DumpContext) ([]types.ImageRecords, error) {
	out, err := c.run.Output(ctx, dc.ExtractorPath, "--emit", "json", "--prefer-runtime", "--all-images")
	if err != nil {
		return nil, fmt.Errorf("runtime scan: %w", err)
	}
	return parseImageList(out)
}

func parseImageList(out string) ([]types.ImageRecords, error) {
	var parsed []imageJSON
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		// A single-object response is also accepted.
		var one imageJSON
		if err2 := json.Unmarshal([]byte(out), &one); err2 != nil {
			return nil, fmt.Errorf("parsing runtime records: %w", err)
		}
		parsed = []imageJSON{one}
	}
	records := make([]types.ImageRecords, 0, len(parsed))
	for _, img := range parsed {
		records = append(records, img.toRecords())
	}
	return records, nil
}

// ModuleInterface generates the image's module interface text in the
// background. The caller awaits the single result on the returned
// channel; an empty text is "nothing to write", not an error.
func (c *Client) ModuleInterface(ctx context.Context, dc types.DumpContext, imagePath string) <-chan InterfaceResult {
	ch := make(chan InterfaceResult, 1)
	go func() {
		out, err := c.run.Output(ctx, dc.ExtractorPath, imagePath, "--emit", "interface")
		if err != nil {
			ch <- InterfaceResult{Err: fmt.Errorf("module interface for %s: %w", imagePath, err)}
			return
		}
		ch <- InterfaceResult{Text: out}
	}()
	return ch
}
