package store

type ChunkMeta struct {
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// SearchResults carries parallel document/metadata/distance sequences. A
// non-empty Error means the backend failed or the course filter did not
// resolve; the text is returned to the model verbatim.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMeta
	Distances []float64
	Error     string
}

func EmptyResults(errMsg string) SearchResults {
	return SearchResults{Error: errMsg}
}

func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}
