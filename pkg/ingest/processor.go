package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/harunnryd/kirana/pkg/errorsx"
	"github.com/harunnryd/kirana/pkg/store"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

var lessonHeader = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// DocumentProcessor parses course documents and splits their content into
// overlapping chunks sized by character budget.
//
// A course document opens with header lines ("Course Title:", "Course
// Link:", "Course Instructor:"), followed by "Lesson <n>: <title>" sections.
// A lesson header may be followed by a "Lesson Link:" line before its
// content starts. Text before the first lesson header is indexed without a
// lesson number.
type DocumentProcessor struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewDocumentProcessor(chunkSize, chunkOverlap int) *DocumentProcessor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &DocumentProcessor{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// ParsedDocument is one course plus its indexable chunks.
type ParsedDocument struct {
	Course store.Course
	Chunks []store.Chunk
}

// Parse reads a course document. name is used for diagnostics and as the
// title fallback when the document carries no Course Title header.
func (p *DocumentProcessor) Parse(name, content string) (*ParsedDocument, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errorsx.Wrap(fmt.Errorf("document %s is empty", name), errorsx.ReasonIngestParse)
	}

	lines := strings.Split(content, "\n")
	course := store.Course{}

	idx := 0
headers:
	for idx < len(lines) {
		line := strings.TrimSpace(lines[idx])
		if line == "" {
			idx++
			continue
		}
		switch {
		case strings.HasPrefix(line, "Course Title:"):
			course.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
		case strings.HasPrefix(line, "Course Link:"):
			course.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		case strings.HasPrefix(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
		default:
			break headers
		}
		idx++
	}
	if course.Title == "" {
		base := filepath.Base(name)
		course.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	doc := &ParsedDocument{}
	var (
		current *store.Lesson
		buf     []string
		index   int
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}
		for _, piece := range p.chunk(text) {
			chunk := store.Chunk{CourseTitle: course.Title, Index: index}
			if current != nil {
				n := current.Number
				chunk.LessonNumber = &n
				chunk.Content = fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, n, piece)
			} else {
				chunk.Content = fmt.Sprintf("Course %s content: %s", course.Title, piece)
			}
			doc.Chunks = append(doc.Chunks, chunk)
			index++
		}
	}

	for ; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])
		if m := lessonHeader.FindStringSubmatch(line); m != nil {
			flush()
			if current != nil {
				course.Lessons = append(course.Lessons, *current)
			}
			number, _ := strconv.Atoi(m[1])
			current = &store.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			continue
		}
		if current != nil && current.Link == "" && len(buf) == 0 && strings.HasPrefix(line, "Lesson Link:") {
			current.Link = strings.TrimSpace(strings.TrimPrefix(line, "Lesson Link:"))
			continue
		}
		if line != "" {
			buf = append(buf, line)
		}
	}
	flush()
	if current != nil {
		course.Lessons = append(course.Lessons, *current)
	}

	doc.Course = course
	return doc, nil
}

func (p *DocumentProcessor) chunk(text string) []string {
	return chunkSentences(splitSentences(text), p.ChunkSize, p.ChunkOverlap)
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace. Punctuation runs and trailing quotes stay with their sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && strings.ContainsRune(`.!?"')`, rune(text[j])) {
			j++
		}
		if j < len(text) && text[j] != ' ' && text[j] != '\n' && text[j] != '\t' && text[j] != '\r' {
			i = j - 1
			continue
		}
		if s := strings.TrimSpace(text[start:j]); s != "" {
			sentences = append(sentences, s)
		}
		for j < len(text) && (text[j] == ' ' || text[j] == '\n' || text[j] == '\t' || text[j] == '\r') {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// chunkSentences packs sentences greedily up to size characters per chunk,
// carrying up to overlap characters of trailing sentences into the next
// chunk. A single sentence over the budget becomes its own chunk.
func chunkSentences(sentences []string, size, overlap int) []string {
	if len(sentences) == 0 {
		return nil
	}
	var (
		chunks  []string
		current []string
		length  int
	)
	for _, sentence := range sentences {
		if length > 0 && length+len(sentence)+1 > size {
			chunks = append(chunks, strings.Join(current, " "))
			var kept []string
			keptLen := 0
			for i := len(current) - 1; i >= 0; i-- {
				if keptLen+len(current[i])+1 > overlap {
					break
				}
				kept = append([]string{current[i]}, kept...)
				keptLen += len(current[i]) + 1
			}
			current = kept
			length = keptLen
		}
		current = append(current, sentence)
		length += len(sentence) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
