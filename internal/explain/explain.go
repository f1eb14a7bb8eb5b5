// Package explain prints why a path got the timestamp it got: the unified
// diff between the ancestor where the content diverged and the tip.
package explain

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/gitstamp/internal/git"
	"github.com/thiagokokada/gitstamp/internal/git/backend"
	"github.com/thiagokokada/gitstamp/internal/timefmt"
)

type Renderer struct {
	out   io.Writer
	style *chroma.Style
}

func New(out io.Writer, mode ColorMode) *Renderer {
	return &Renderer{out: out, style: styleForMode(mode)}
}

// Render writes the explanation for res. Resolutions that did not stop on a
// content change have nothing to show and are skipped.
func (r *Renderer) Render(h backend.Handle, res *git.Resolution) error {
	if res == nil || res.Stop != git.StopContentChanged || res.Divergence == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: content since %s (%s), previously %s (%s)\n",
		res.Path,
		res.Commit.ShortHash(), timefmt.Format(res.Commit.Time()),
		res.Divergence.ShortHash(), timefmt.Format(res.Divergence.Time()),
	)
	body, err := diffText(h, res)
	if err != nil {
		return fmt.Errorf("explain %s: %w", res.Path, err)
	}
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return r.write(b.String())
}

func diffText(h backend.Handle, res *git.Resolution) (string, error) {
	if res.HeadEntry.Kind != backend.EntryFile || res.DivergenceEntry.Kind != backend.EntryFile {
		return fmt.Sprintf("(%s at %s, %s at %s)\n",
			res.DivergenceEntry.Kind, res.Divergence.ShortHash(),
			res.HeadEntry.Kind, res.Head.ShortHash(),
		), nil
	}
	before, err := h.ReadBlob(res.DivergenceEntry)
	if err != nil {
		return "", err
	}
	after, err := h.ReadBlob(res.HeadEntry)
	if err != nil {
		return "", err
	}
	if isBinary(before) || isBinary(after) {
		return "(binary files differ)\n", nil
	}
	return UnifiedDiff(res.Path, res.Divergence.ShortHash(), res.Head.ShortHash(), before, after)
}

// UnifiedDiff renders a three-line-context diff of path between two revisions.
func UnifiedDiff(path, fromRev, toRev string, before, after []byte) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: fmt.Sprintf("a/%s", path),
		FromDate: fromRev,
		ToFile:   fmt.Sprintf("b/%s", path),
		ToDate:   toRev,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "(no textual changes)\n", nil
	}
	return text, nil
}

func isBinary(data []byte) bool {
	// Same heuristic as git: a NUL in the first 8000 bytes.
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

func (r *Renderer) write(text string) error {
	if r.style == nil {
		_, err := io.WriteString(r.out, text)
		return err
	}
	lexer := lexers.Get("diff")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return err
	}
	return formatter.Format(r.out, r.style, iterator)
}
