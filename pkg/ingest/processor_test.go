package ingest

import (
	"strings"
	"testing"
)

const sampleDoc = `Course Title: Go Fundamentals
Course Link: https://example.com/go
Course Instructor: Dana Wirth

This course teaches Go from the ground up.

Lesson 0: Introduction
Lesson Link: https://example.com/go/0
Welcome to the course. You will learn the language basics.

Lesson 1: Packages and Modules
Lesson Link: https://example.com/go/1
Every file belongs to a package. Modules pin dependency versions.
`

func TestParseHeadersAndLessons(t *testing.T) {
	p := NewDocumentProcessor(800, 100)
	doc, err := p.Parse("go_fundamentals.txt", sampleDoc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	course := doc.Course
	if course.Title != "Go Fundamentals" {
		t.Fatalf("unexpected title %q", course.Title)
	}
	if course.Link != "https://example.com/go" || course.Instructor != "Dana Wirth" {
		t.Fatalf("unexpected course header %+v", course)
	}
	if len(course.Lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(course.Lessons))
	}
	if course.Lessons[0].Number != 0 || course.Lessons[0].Title != "Introduction" || course.Lessons[0].Link != "https://example.com/go/0" {
		t.Fatalf("unexpected lesson 0 %+v", course.Lessons[0])
	}
	if course.Lessons[1].Number != 1 || course.Lessons[1].Link != "https://example.com/go/1" {
		t.Fatalf("unexpected lesson 1 %+v", course.Lessons[1])
	}
}

func TestParseChunksCarryContext(t *testing.T) {
	p := NewDocumentProcessor(800, 100)
	doc, err := p.Parse("go_fundamentals.txt", sampleDoc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(doc.Chunks) != 3 {
		t.Fatalf("expected intro plus two lesson chunks, got %d", len(doc.Chunks))
	}

	intro := doc.Chunks[0]
	if intro.LessonNumber != nil {
		t.Fatalf("expected intro chunk without lesson number")
	}
	if intro.Content != "Course Go Fundamentals content: This course teaches Go from the ground up." {
		t.Fatalf("unexpected intro chunk %q", intro.Content)
	}

	first := doc.Chunks[1]
	if first.LessonNumber == nil || *first.LessonNumber != 0 {
		t.Fatalf("expected lesson 0 chunk, got %v", first.LessonNumber)
	}
	if !strings.HasPrefix(first.Content, "Course Go Fundamentals Lesson 0 content: ") {
		t.Fatalf("unexpected lesson chunk prefix %q", first.Content)
	}

	for i, chunk := range doc.Chunks {
		if chunk.Index != i {
			t.Fatalf("expected sequential chunk indexes, got %d at %d", chunk.Index, i)
		}
		if chunk.CourseTitle != "Go Fundamentals" {
			t.Fatalf("unexpected chunk course %q", chunk.CourseTitle)
		}
	}
}

func TestParseTitleFallsBackToFilename(t *testing.T) {
	p := NewDocumentProcessor(800, 100)
	doc, err := p.Parse("untitled_course.txt", "Just some content without headers.")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if doc.Course.Title != "untitled_course" {
		t.Fatalf("expected filename fallback title, got %q", doc.Course.Title)
	}
	if len(doc.Chunks) != 1 || doc.Chunks[0].LessonNumber != nil {
		t.Fatalf("expected one introduction chunk, got %+v", doc.Chunks)
	}
}

func TestParseEmptyDocumentFails(t *testing.T) {
	p := NewDocumentProcessor(800, 100)
	if _, err := p.Parse("empty.txt", "   \n\n  "); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestParseLessonLinkNotConsumedAfterContent(t *testing.T) {
	p := NewDocumentProcessor(800, 100)
	doc, err := p.Parse("course.txt", "Course Title: T\n\nLesson 1: One\nSome content first.\nLesson Link: https://example.com/late\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if doc.Course.Lessons[0].Link != "" {
		t.Fatalf("expected late link treated as content, got %q", doc.Course.Lessons[0].Link)
	}
	if !strings.Contains(doc.Chunks[0].Content, "Lesson Link: https://example.com/late") {
		t.Fatalf("expected link line kept in content, got %q", doc.Chunks[0].Content)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First sentence. Second one! Third? Done.")
	want := []string{"First sentence.", "Second one!", "Third?", "Done."}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitSentencesKeepsAbbreviationsTogether(t *testing.T) {
	got := splitSentences("The version is 1.5 released today. Next sentence.")
	if len(got) != 2 {
		t.Fatalf("expected decimal point not to split, got %v", got)
	}
	if got[0] != "The version is 1.5 released today." {
		t.Fatalf("unexpected first sentence %q", got[0])
	}
}

func TestChunkSentencesRespectsSizeAndOverlap(t *testing.T) {
	sentences := []string{
		"Sentence one is here.",
		"Sentence two is here.",
		"Sentence three is here.",
		"Sentence four is here.",
	}
	chunks := chunkSentences(sentences, 50, 25)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for _, c := range chunks {
		if len(c) > 50+len("Sentence three is here.") {
			t.Fatalf("chunk grossly over budget: %q", c)
		}
	}
	if !strings.HasSuffix(chunks[0], "Sentence two is here.") {
		t.Fatalf("unexpected first chunk %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "Sentence two is here.") {
		t.Fatalf("expected overlap carried into second chunk, got %q", chunks[1])
	}
}

func TestChunkSentencesSingleOversizedSentence(t *testing.T) {
	long := strings.Repeat("word ", 50) + "end."
	chunks := chunkSentences([]string{long}, 40, 10)
	if len(chunks) != 1 || chunks[0] != long {
		t.Fatalf("expected oversized sentence kept whole, got %v", chunks)
	}
}
