package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"pdfchat-backend/internal/models"
)

// UnsupportedFormatWarning is returned as the document text for files the loader cannot read.
const UnsupportedFormatWarning = "WARNING: Unsupported file format."

var supportedFormats = []models.SupportedFormat{
	{Extension: ".pdf", MimeType: "application/pdf", Description: "PDF Document"},
	{Extension: ".txt", MimeType: "text/plain", Description: "Plain Text"},
	{Extension: ".md", MimeType: "text/markdown", Description: "Markdown"},
	{Extension: ".docx", MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Description: "Word Document"},
	{Extension: ".html", MimeType: "text/html", Description: "HTML Page"},
	{Extension: ".htm", MimeType: "text/html", Description: "HTML Page"},
}

type FileExtractService struct{}

func NewFileExtractService() *FileExtractService {
	return &FileExtractService{}
}

// SupportedFormats lists the extensions OpenFile can read.
func (s *FileExtractService) SupportedFormats() []models.SupportedFormat {
	out := make([]models.SupportedFormat, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// IsSupported reports whether the file name has a readable extension.
func (s *FileExtractService) IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range supportedFormats {
		if f.Extension == ext {
			return true
		}
	}
	return false
}

// OpenFile loads a document as text. Unsupported extensions are not an
// error: the warning string is returned as the text instead.
func (s *FileExtractService) OpenFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		return s.extractTXT(path)
	case ".pdf":
		return s.ParsePDF(path)
	case ".docx":
		return s.extractDOCX(path)
	case ".html", ".htm":
		return s.extractHTML(path)
	default:
		return UnsupportedFormatWarning, nil
	}
}

func (s *FileExtractService) extractTXT(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParsePDF concatenates the plain text of every page and runs CleanPDFText over it.
func (s *FileExtractService) ParsePDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
	}

	return CleanPDFText(b.String()), nil
}

func (s *FileExtractService) extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var documentXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", err
			}
			break
		}
	}

	if len(documentXML) == 0 {
		return "", fmt.Errorf("docx document.xml not found")
	}

	return normalizeExtractedText(stripDOCXML(documentXML)), nil
}

func (s *FileExtractService) extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("title, h1, h2, h3, h4, h5, h6, p, li, pre, td, th, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if sel.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})

	text := b.String()
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	return normalizeExtractedText(text), nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDOCXML(src []byte) string {
	s := string(src)

	// DOCX paragraphs and line breaks
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
