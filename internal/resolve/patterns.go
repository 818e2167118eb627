package resolve

import "regexp"

// Patterns are the heuristics used to find document links in a viewer page.
type Patterns struct {
	// DocumentHref matches anchors that point straight at a document.
	DocumentHref *regexp.Regexp
	// ContainerTags and ContainerClass select elements whose anchors are all
	// treated as candidates.
	ContainerTags  []string
	ContainerClass *regexp.Regexp
	// ScriptUrls extract absolute urls out of inline script text.
	ScriptUrls []*regexp.Regexp
}

var DefaultPatterns = Patterns{
	DocumentHref:   regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?)$`),
	ContainerTags:  []string{"div", "section"},
	ContainerClass: regexp.MustCompile(`(?i)(documento|archivo|file|document|content)`),
	ScriptUrls: []*regexp.Regexp{
		regexp.MustCompile(`https?://[^\s"'<>]+\.(?:pdf|docx?|xlsx?|zip)`),
		regexp.MustCompile(`https?://[^\s"'<>]+amazonaws\.com[^\s"'<>]+`),
	},
}
