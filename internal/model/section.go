// Package model defines the story-processing data model shared by every
// pipeline stage: raw items, normalized stories, groups, classifications,
// and the editable draft.
package model

// Section names one editorial category of the edition.
// The enumerated set comes from configuration; Skip is always present.
type Section string

// Default section names. Configuration may rename or extend the content
// sections but Skip is fixed.
const (
	SectionTopStories  Section = "top_stories"
	SectionPolitics    Section = "politics"
	SectionHousing     Section = "housing"
	SectionEducation   Section = "education"
	SectionHealth      Section = "health"
	SectionEnvironment Section = "environment"
	SectionLastly      Section = "lastly"
	SectionSkip        Section = "skip"
)

func (s Section) String() string {
	return string(s)
}

// IsSkip reports whether s is the skip sentinel.
func (s Section) IsSkip() bool {
	return s == SectionSkip
}
