package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/model"
)

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Render renders the citations of a message into the response text in the
// configured layout. Citations keep the numbering they were recorded with,
// no render style may re-sort them.
func (t *Tracker) Render(messageID uuid.UUID, responseText string, config *model.CitationRenderConfig) (string, error) {
	record, err := t.records.SelectCitationRecord(messageID)
	if err != nil {
		return "", err
	}
	if config == nil {
		defaultConfig := model.DefaultCitationRenderConfig()
		config = &defaultConfig
	}

	switch config.Format {
	case model.CitationFormatInline:
		return renderInline(responseText, record.Citations), nil
	case model.CitationFormatFootnote:
		return renderFootnote(responseText, record.Citations, config), nil
	default:
		return renderEndnote(responseText, record.Citations, config), nil
	}
}

// renderInline rewrites [n] markers in place as links to the n-th citation.
// Markers without a matching citation are left untouched.
func renderInline(responseText string, citations model.CitationList) string {
	return markerPattern.ReplaceAllStringFunc(responseText, func(marker string) string {
		position, err := strconv.Atoi(markerPattern.FindStringSubmatch(marker)[1])
		if err != nil || position < 1 || position > len(citations) {
			return marker
		}
		citation := citations[position-1]
		if citation.SourceURL == "" {
			return marker
		}
		return fmt.Sprintf("[%d](%s)", position, escapeURL(citation.SourceURL))
	})
}

// renderFootnote rewrites [n] markers as footnote references and appends a
// back-reference list
func renderFootnote(responseText string, citations model.CitationList, config *model.CitationRenderConfig) string {
	rewritten := markerPattern.ReplaceAllStringFunc(responseText, func(marker string) string {
		position, err := strconv.Atoi(markerPattern.FindStringSubmatch(marker)[1])
		if err != nil || position < 1 || position > len(citations) {
			return marker
		}
		return fmt.Sprintf("[^%d]", position)
	})

	if len(citations) == 0 {
		return rewritten
	}

	var builder strings.Builder
	builder.WriteString(rewritten)
	builder.WriteString("\n\n")
	for _, citation := range citations {
		builder.WriteString(fmt.Sprintf("[^%d]: %s", citation.Position, sourceLine(citation, config)))
		builder.WriteString("\n")
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

// renderEndnote appends a numbered source list after the response text
func renderEndnote(responseText string, citations model.CitationList, config *model.CitationRenderConfig) string {
	if len(citations) == 0 {
		return responseText
	}

	var builder strings.Builder
	builder.WriteString(responseText)
	builder.WriteString("\n\nSources:\n")
	for _, citation := range citations {
		builder.WriteString(fmt.Sprintf("%d. %s", citation.Position, sourceLine(citation, config)))
		builder.WriteString("\n")
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

// sourceLine formats one citation as a title with its URL, optionally
// followed by the relevance score
func sourceLine(citation model.Citation, config *model.CitationRenderConfig) string {
	var line string
	title := escapeTitle(citation.Title)
	switch {
	case title != "" && citation.SourceURL != "":
		line = fmt.Sprintf("[%s](%s)", title, escapeURL(citation.SourceURL))
	case citation.SourceURL != "":
		line = escapeURL(citation.SourceURL)
	default:
		line = title
	}

	if config.IncludeScores && citation.Score > 0 {
		line += fmt.Sprintf(" (score %.2f)", citation.Score)
	}
	return line
}

var titleEscaper = strings.NewReplacer("[", "\\[", "]", "\\]")

var urlEscaper = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")

func escapeTitle(title string) string {
	return titleEscaper.Replace(title)
}

func escapeURL(sourceURL string) string {
	return urlEscaper.Replace(sourceURL)
}
