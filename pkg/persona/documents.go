package persona

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrMissingSummary = errors.New("persona summary document is required")

// Load reads the manifest at path and the documents it names. The summary
// must be readable; a missing or unreadable profile or resume leaves that
// document empty.
func Load(ctx context.Context, path string) (*Persona, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return LoadFromManifest(ctx, m)
}

func LoadFromManifest(ctx context.Context, m *Manifest) (*Persona, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var summary, profile, resume string
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s, err := ReadDocument(ctx, m.resolve(m.SummaryFile))
		if err != nil {
			return errors.Wrapf(ErrMissingSummary, "%s: %v", m.SummaryFile, err)
		}
		summary = s
		return nil
	})
	eg.Go(func() error {
		profile = readOptional(ctx, "profile", m.resolve(m.ProfileFile))
		return nil
	})
	eg.Go(func() error {
		resume = readOptional(ctx, "resume", m.resolve(m.ResumeFile))
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Str("name", m.Name).
		Int("summary_len", len(summary)).
		Int("profile_len", len(profile)).
		Int("resume_len", len(resume)).
		Msg("persona: documents loaded")

	return New(m.Name, summary, profile, resume)
}

func readOptional(ctx context.Context, kind, path string) string {
	if path == "" {
		return ""
	}
	s, err := ReadDocument(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("document", kind).Str("path", path).Msg("persona: optional document unavailable")
		return ""
	}
	return s
}

// ReadDocument returns the text of a document. HTML files are reduced to
// their visible text, PDF files to the text of their pages; everything else
// is read verbatim.
func ReadDocument(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTMLToText(b)
	case ".pdf":
		return PDFToText(b)
	default:
		return string(b), nil
	}
}

var (
	blankRuns  = regexp.MustCompile(`[ \t]+`)
	emptyLines = regexp.MustCompile(`\n{3,}`)
)

var blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, tr, section, article, header, footer, br"

func HTMLToText(b []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return "", errors.Wrap(err, "could not parse HTML")
	}

	doc.Find("script, style, noscript, template").Remove()
	// keep paragraph structure: each block ends on its own line
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	lines := strings.Split(root.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(l, " "))
	}
	text := strings.Join(lines, "\n")
	text = emptyLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

// PDFToText concatenates the text of every page. Pages without extractable
// text are skipped.
func PDFToText(b []byte) (text string, err error) {
	// the reader panics on some malformed object graphs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.Errorf("could not parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", errors.Wrap(err, "could not parse PDF")
	}

	fonts := map[string]*pdf.Font{}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("persona: skipping unreadable PDF page")
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}
