package documents

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"encoding/xml"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// AllowedExtensions are the uploadable document types.
var AllowedExtensions = map[string]bool{"pdf": true, "doc": true, "docx": true, "pptx": true, "ppt": true, "txt": true}

const (
	minRunLength      = 4
	maxInflatedStream = 8 << 20
)

// ExtractText returns the readable text of a document. Plain text is decoded as is, Office Open XML
// is read from its XML parts, PDF content streams are inflated and their text operators collected,
// and the legacy binary formats fall back to printable runs.
func ExtractText(ext string, data []byte) string {
	ext = strings.ToLower(ext)
	var text string
	switch ext {
	case "txt":
		text = strings.ToValidUTF8(string(data), "")
	case "docx":
		text = officeText(data, func(name string) bool { return name == "word/document.xml" })
	case "pptx":
		text = officeText(data, isSlide)
	case "pdf":
		text = pdfText(data)
	}
	if strings.TrimSpace(text) == "" && ext != "txt" {
		text = printableRuns(data)
	}
	return normaliseSpace(text)
}

// Title is the first non-empty line of a text file, or the file name without extension.
func Title(ext string, data []byte, fileName string) string {
	fallback := strings.TrimSuffix(fileName, path.Ext(fileName))
	if ext != "txt" {
		return fallback
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(strings.ToValidUTF8(line, ""))
	if line == "" {
		return fallback
	}
	return line
}

var slideNumber = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func isSlide(name string) bool {
	return slideNumber.MatchString(name)
}

func officeText(data []byte, want func(string) bool) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	var parts []*zip.File
	for _, f := range zr.File {
		if want(f.Name) {
			parts = append(parts, f)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return partOrder(parts[i].Name) < partOrder(parts[j].Name) })

	var sb strings.Builder
	for _, f := range parts {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		xmlText(&sb, rc)
		rc.Close()
		sb.WriteString("\n")
	}
	return sb.String()
}

func partOrder(name string) int {
	m := slideNumber.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// xmlText writes the content of <t> runs, breaking lines at paragraph ends (<w:p>, <a:p>).
func xmlText(sb *strings.Builder, r io.Reader) {
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

var (
	pdfStream = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)
	// Text showing operators: (..) Tj, (..) ', [..] TJ and ET ending a text object.
	pdfTextOp = regexp.MustCompile(`(?s)\(((?:\\.|[^\\)])*)\)\s*(?:Tj|')|\[((?:\\.|[^\]])*)\]\s*TJ|\bET\b`)
	pdfString = regexp.MustCompile(`(?s)\(((?:\\.|[^\\)])*)\)`)
)

func pdfText(data []byte) string {
	var sb strings.Builder
	for _, m := range pdfStream.FindAllSubmatch(data, -1) {
		content := m[1]
		if zr, err := zlib.NewReader(bytes.NewReader(content)); err == nil {
			if inflated, err := io.ReadAll(io.LimitReader(zr, maxInflatedStream)); err == nil {
				content = inflated
			}
			zr.Close()
		}
		for _, op := range pdfTextOp.FindAllSubmatch(content, -1) {
			switch {
			case op[1] != nil:
				sb.WriteString(unescapePDF(op[1]))
			case op[2] != nil:
				for _, s := range pdfString.FindAllSubmatch(op[2], -1) {
					sb.WriteString(unescapePDF(s[1]))
				}
			default:
				sb.WriteString("\n")
			}
		}
	}
	text := sb.String()
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return text
}

func unescapePDF(b []byte) string {
	var out []byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != '\\' || i+1 == len(b) {
			out = append(out, c)
			continue
		}
		i++
		switch b[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(string(b[i:j]), 8, 8)
			out = append(out, byte(v))
			i = j - 1
		default:
			out = append(out, b[i])
		}
	}
	return string(out)
}

// printableRuns keeps runs of printable ASCII. Zero bytes are dropped first so UTF-16LE text
// in legacy Office files reads as ASCII.
func printableRuns(data []byte) string {
	data = bytes.ReplaceAll(data, []byte{0}, nil)
	var sb strings.Builder
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minRunLength {
			sb.Write(data[start:end])
			sb.WriteString("\n")
		}
		start = -1
	}
	for i, c := range data {
		if (c >= 0x20 && c < 0x7f) || c == '\t' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return sb.String()
}

var (
	blankLines  = regexp.MustCompile(`\n{3,}`)
	spaceTabRun = regexp.MustCompile(`[ \t]{2,}`)
)

func normaliseSpace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceTabRun.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
