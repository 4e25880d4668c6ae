package model

// Evidence lists the supporting material attached to an incident.
// The three slices are parallel when populated from an article.
type Evidence struct {
	Types        []EvidenceKind `json:"types,omitempty"`
	URLs         []string       `json:"urls,omitempty"`
	Descriptions []string       `json:"descriptions,omitempty"`
}

// EvidenceKind classifies the type of evidence
type EvidenceKind string

const (
	EvidenceKindArticle     EvidenceKind = "article"      // Source news article
	EvidenceKindReport      EvidenceKind = "report"       // Agency situation report (OCHA, WHO, WFP)
	EvidenceKindImage       EvidenceKind = "image"        // Photo attached to the article
	EvidenceKindMediaReport EvidenceKind = "media_report" // Listing/digest item, needs verification
)

// Add appends one evidence entry
func (e *Evidence) Add(kind EvidenceKind, url, description string) {
	e.Types = append(e.Types, kind)
	e.URLs = append(e.URLs, url)
	e.Descriptions = append(e.Descriptions, description)
}

// Len returns the number of evidence entries
func (e Evidence) Len() int {
	return len(e.URLs)
}
