// Package processors implements digo's built-in Processor descriptors:
// Rename, Concat, Transform, and ValidateJS, each a reusable
// pipeline.Processor a build script composes with Pipe.
//
// Transform wraps esbuild's single-file Transform API rather than a
// bundling BuildContext, since the processor contract operates one file
// (or one collected batch) at a time, not a module graph. ValidateJS is a
// tdewolff/parse AST pass narrowed to "does this parse".
package processors

import (
	"fmt"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/pipeline"
	"github.com/skyweaver213/digo/sourcemap"
	"github.com/skyweaver213/digo/writer"
)

// Rename returns a passthrough processor that rewrites each file's logical
// name through fn, e.g. for extension swaps or content-hashed output
// names (dfile.File.HashName).
func Rename(fn func(name string) string) *pipeline.Processor {
	return &pipeline.Processor{
		Name: "rename",
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			file.SetName(fn(file.Name()))
			return true
		}),
	}
}

// ConcatOptions configures Concat.
type ConcatOptions struct {
	// OutputName is the combined file's logical name, e.g. "bundle.js".
	OutputName string
	// Separator is inserted between each input file's content. Defaults
	// to "\n".
	Separator string
	// SourceMap enables per-fragment mapping via writer.SourceMapWriter;
	// disabled, a plain writer.Writer is used and no map is attached.
	SourceMap bool
	// LineMappingsOnly, when SourceMap is set, restricts mapping
	// granularity to one mapping per line instead of per token
	// transition.
	LineMappingsOnly bool
}

// Concat returns a collecting processor that concatenates every file that
// reaches it, in the batch's insertion order, into one combined file
// forwarded to the next stage.
func Concat(opts ConcatOptions) *pipeline.Processor {
	sep := opts.Separator
	if sep == "" {
		sep = "\n"
	}

	return &pipeline.Processor{
		Name:    "concat",
		Load:    true,
		Collect: true,
		// Individual inputs are suppressed; only the combined file emitted
		// by End flows downstream. The collected buffer still retains each
		// input's clone (suppression only skips forwarding).
		Add: pipeline.SyncAdd(func(*dfile.File) bool { return false }),
		End: func(files []*dfile.File, _ any, result *pipeline.FileList, done func()) {
			defer done()
			if len(files) == 0 {
				return
			}

			var plain *writer.Writer
			var mapped *writer.SourceMapWriter
			if opts.SourceMap {
				mapped = writer.NewSourceMapWriter(opts.LineMappingsOnly)
			} else {
				plain = writer.New()
			}

			for i, f := range files {
				content, err := f.Content()
				if err != nil {
					f.ErrorFrom(err, dfile.StackDefault)
					continue
				}
				if i > 0 {
					if mapped != nil {
						mapped.Write(sep, -1, -1)
					} else {
						plain.Write(sep, -1, -1)
					}
				}
				if mapped != nil {
					mapped.WriteMapped(content, f.Name(), 0, 0)
				} else {
					plain.Write(content, -1, -1)
				}
			}

			cfg := result.Config()
			out := dfile.New(dfile.Options{
				Name:     opts.OutputName,
				Base:     files[0].Base(),
				VFS:      cfg.VFS,
				Observer: cfg.Observer,
				Log:      cfg.Log,
			})
			if mapped != nil {
				mapped.End(out)
			} else {
				plain.End(out)
			}

			if next := result.Next(); next != nil {
				next.Add(out)
			}
		},
	}
}

// TransformOptions configures Transform.
type TransformOptions struct {
	// Minify enables esbuild's whitespace/identifier/syntax minification.
	Minify bool
	// HashPattern, when set, renames the output through
	// dfile.File.HashName after transforming, e.g. "app.[hash].js".
	HashPattern string
}

// Transform returns a processor that runs each file's content through
// esbuild's single-file Transform API (not a full bundle; the per-file
// processor contract has no module graph to bundle), attaching
// the emitted source map composed with any upstream map the file already
// carries.
func Transform(opts TransformOptions) *pipeline.Processor {
	return &pipeline.Processor{
		Name: "transform",
		Load: true,
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			content, err := file.Content()
			if err != nil {
				file.ErrorFrom(err, dfile.StackDefault)
				return true
			}

			result := esbuild.Transform(content, esbuild.TransformOptions{
				Loader:            loaderFor(file.Ext()),
				Sourcemap:         esbuild.SourceMapExternal,
				Sourcefile:        file.SrcPath(),
				MinifyWhitespace:  opts.Minify,
				MinifyIdentifiers: opts.Minify,
				MinifySyntax:      opts.Minify,
			})
			for _, msg := range result.Errors {
				file.Error("transform: %s", formatMessage(msg))
			}
			for _, msg := range result.Warnings {
				file.Warning("transform: %s", formatMessage(msg))
			}
			if len(result.Errors) > 0 {
				return true
			}

			file.SetBuffer(result.Code)

			if len(result.Map) > 0 {
				fresh, err := sourcemap.Parse(result.Map)
				if err != nil {
					file.ErrorFrom(err, dfile.StackDefault)
				} else {
					// SetSourceMap composes fresh with any map the file
					// already carries.
					file.SetSourceMap(fresh)
				}
			}

			if opts.HashPattern != "" {
				file.SetName(file.HashName(opts.HashPattern))
			}
			return true
		}),
	}
}

func loaderFor(ext string) esbuild.Loader {
	switch ext {
	case ".ts":
		return esbuild.LoaderTS
	case ".tsx":
		return esbuild.LoaderTSX
	case ".jsx":
		return esbuild.LoaderJSX
	case ".css":
		return esbuild.LoaderCSS
	case ".json":
		return esbuild.LoaderJSON
	default:
		return esbuild.LoaderJS
	}
}

func formatMessage(m esbuild.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}

// ValidateJS returns a processor that parses each arriving file as
// JavaScript and turns a parse failure into a per-file error without
// stopping the batch. Files with a .json extension pass through unparsed.
func ValidateJS() *pipeline.Processor {
	return &pipeline.Processor{
		Name: "validate-js",
		Load: true,
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			if dpath.Ext(file.Name()) == ".json" {
				return true
			}
			content, err := file.Content()
			if err != nil {
				file.ErrorFrom(err, dfile.StackDefault)
				return true
			}
			if _, err := js.Parse(parse.NewInputString(content), js.Options{}); err != nil {
				file.Error("invalid JavaScript in %s: %v", file.Name(), err)
			}
			return true
		}),
	}
}
