package diag

// Categories used by issues in this module.
const (
	CategoryTransform = "transform"
	CategoryConfig    = "config"
)

// Issue is a single reported finding.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Context     string   `json:"context"`
}

func New(sev Severity, category, context, title string) Issue {
	return Issue{
		Severity: sev,
		Category: category,
		Context:  context,
		Title:    title,
	}
}

func NewWarning(category, context, title string) Issue {
	return New(SevWarning, category, context, title)
}

func (i Issue) WithDescription(desc string) Issue {
	i.Description = desc
	return i
}

func (i Issue) String() string {
	return i.Context + ": " + i.Severity.String() + " [" + i.Category + "] " + i.Title
}
