package models

// ContentAnalysis is what the analysis model extracts from study material.
type ContentAnalysis struct {
	Summary      string   `json:"summary"`
	KeyConcepts  []string `json:"keyConcepts"`
	MedicalTerms []string `json:"medicalTerms"`
	Topics       []string `json:"topics"`
}

type AnalyzeContentRequest struct {
	Text string `json:"text"`
}

type FileMetadata struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// ExtractedFile is the text pulled out of an upload.
type ExtractedFile struct {
	Text     string       `json:"text"`
	Metadata FileMetadata `json:"metadata"`
}

type AnalyzeFileResponse struct {
	Content  string           `json:"content"`
	Analysis *ContentAnalysis `json:"analysis"`
	Metadata FileMetadata     `json:"metadata"`
}

type SupportedFormat struct {
	MimeType    string   `json:"mime_type"`
	Extensions  []string `json:"extensions"`
	Description string   `json:"description"`
}
