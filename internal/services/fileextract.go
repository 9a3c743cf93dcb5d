package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"mediquiz-backend/internal/models"
)

const (
	MimeText = "text/plain"
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
)

var SupportedFormats = []models.SupportedFormat{
	{MimeType: MimeText, Extensions: []string{".txt"}, Description: "Plain text"},
	{MimeType: MimePDF, Extensions: []string{".pdf"}, Description: "PDF document"},
	{MimeType: MimeDOCX, Extensions: []string{".docx"}, Description: "Word document"},
	{MimeType: MimePPTX, Extensions: []string{".pptx"}, Description: "PowerPoint presentation"},
	{MimeType: MimeJPEG, Extensions: []string{".jpg", ".jpeg"}, Description: "JPEG image"},
	{MimeType: MimePNG, Extensions: []string{".png"}, Description: "PNG image"},
	{MimeType: MimeGIF, Extensions: []string{".gif"}, Description: "GIF image"},
}

// Transcriber reads text out of files that have no extractable text layer.
type Transcriber interface {
	TranscribeFile(ctx context.Context, data []byte, mimeType string) (string, error)
}

type FileExtractService struct {
	transcriber Transcriber
	maxBytes    int64
}

func NewFileExtractService(transcriber Transcriber, maxBytes int64) *FileExtractService {
	return &FileExtractService{transcriber: transcriber, maxBytes: maxBytes}
}

// ResolveMimeType trusts a supported declared type and otherwise falls back
// to the file extension. It returns "" for unsupported files.
func ResolveMimeType(filename, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range SupportedFormats {
		if f.MimeType == declared {
			return f.MimeType
		}
	}
	for _, f := range SupportedFormats {
		for _, e := range f.Extensions {
			if e == ext {
				return f.MimeType
			}
		}
	}
	return ""
}

// Extract returns the text content of an uploaded file.
func (s *FileExtractService) Extract(ctx context.Context, filename string, data []byte, declaredType string) (*models.ExtractedFile, error) {
	mimeType := ResolveMimeType(filename, declaredType)
	if mimeType == "" {
		return nil, &ValidationError{Fields: map[string]string{"file": "Unsupported file type"}}
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, &FileTooLargeError{LimitBytes: s.maxBytes}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"file": "File is empty"}}
	}

	var text string
	var err error
	switch mimeType {
	case MimeText:
		text = normalizeExtractedText(string(data))
	case MimePDF:
		text, err = extractPDF(data)
		if err != nil || text == "" {
			text, err = s.transcribe(ctx, data, mimeType)
		}
	case MimeDOCX:
		text, err = extractDOCX(data)
	case MimePPTX:
		text, err = extractPPTX(data)
	default:
		text, err = s.transcribe(ctx, data, mimeType)
	}
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"file": "No text could be extracted from the file"}}
	}

	return &models.ExtractedFile{
		Text: text,
		Metadata: models.FileMetadata{
			Filename: filename,
			Size:     int64(len(data)),
			Type:     mimeType,
		},
	}, nil
}

func (s *FileExtractService) transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	if s.transcriber == nil {
		return "", fmt.Errorf("no transcriber configured for %s", mimeType)
	}
	text, err := s.transcriber.TranscribeFile(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	return normalizeExtractedText(text), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

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
		b.WriteString("\n")
	}

	return normalizeExtractedText(b.String()), nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func extractDOCX(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("invalid docx: %w", err)
	}

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		documentXML, err := readZipEntry(f)
		if err != nil {
			return "", err
		}
		return normalizeExtractedText(stripOfficeXML(documentXML)), nil
	}
	return "", fmt.Errorf("docx document.xml not found")
}

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTX(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("invalid pptx: %w", err)
	}

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range r.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("pptx contains no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, sl := range slides {
		xml, err := readZipEntry(sl.file)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Slide %d\n", sl.n)
		b.WriteString(stripOfficeXML(xml))
		b.WriteString("\n\n")
	}
	return normalizeExtractedText(b.String()), nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// stripOfficeXML flattens WordprocessingML and DrawingML paragraphs to text.
func stripOfficeXML(src []byte) string {
	s := string(src)

	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "</a:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<a:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")
	return xmlEntities.Replace(s)
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
