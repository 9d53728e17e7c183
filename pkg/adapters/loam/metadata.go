package loam

// ClauseMetadata is the frontmatter of a clause document.
//
// A document gives its clause either whole:
//
//	clause: WHEN calendar.conflicts > 0 THEN block_meetings
//
// or split into when/then halves. The markdown body becomes the clause
// description unless the frontmatter sets one.
type ClauseMetadata struct {
	ID          string   `json:"id" mapstructure:"id"`
	Clause      string   `json:"clause" mapstructure:"clause"`
	When        string   `json:"when" mapstructure:"when"`
	Then        string   `json:"then" mapstructure:"then"`
	DependsOn   []string `json:"depends_on" mapstructure:"depends_on"`
	Inputs      []string `json:"inputs" mapstructure:"inputs"`
	Outputs     []string `json:"outputs" mapstructure:"outputs"`
	Description string   `json:"description" mapstructure:"description"`
}
