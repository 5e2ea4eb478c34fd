package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Organization = "Iran Telecommunication Research Center (ITRC)"
	// TOCHeading marks where renderers place the table of contents.
	TOCHeading   = "Table of Contents"
	dateLayout   = "2006/01/02"
	notSpecified = "Not specified"
)

var methodologyActivities = []string{
	"Document review and analysis",
	"Security Target evaluation",
	"Functional testing",
	"Vulnerability assessment",
	"Configuration management review",
}

var references = []string{
	"ISO/IEC 15408-1:2009, Information technology - Security techniques - Evaluation criteria for IT security - Part 1: Introduction and general model",
	"ISO/IEC 15408-2:2008, Information technology - Security techniques - Evaluation criteria for IT security - Part 2: Security functional components",
	"ISO/IEC 15408-3:2008, Information technology - Security techniques - Evaluation criteria for IT security - Part 3: Security assurance components",
	"ISO/IEC 18045:2008, Information technology - Security techniques - Methodology for IT security evaluation",
}

type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockList
	BlockTable
	BlockPageBreak
)

// Row is a label/value pair of a two-column table.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Block struct {
	Kind  BlockKind `json:"kind"`
	Level int       `json:"level,omitempty"`
	Text  string    `json:"text,omitempty"`
	Items []string  `json:"items,omitempty"`
	Rows  []Row     `json:"rows,omitempty"`
}

// Document is a renderer-neutral report layout.
type Document struct {
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

func (d *Document) heading(level int, text string) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockHeading, Level: level, Text: text})
}

func (d *Document) paragraph(text string) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockParagraph, Text: text})
}

func (d *Document) list(items ...string) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockList, Items: items})
}

func (d *Document) table(rows ...Row) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockTable, Rows: rows})
}

func (d *Document) pageBreak() {
	d.Blocks = append(d.Blocks, Block{Kind: BlockPageBreak})
}

// Headings returns the text of every heading at the given level, in order.
func (d *Document) Headings(level int) []string {
	var out []string
	for _, b := range d.Blocks {
		if b.Kind == BlockHeading && b.Level == level {
			out = append(out, b.Text)
		}
	}
	return out
}

// BuildDocument lays out a technical report. The same snapshot and title
// always produce the same document.
func BuildDocument(s *Snapshot, title string) *Document {
	d := &Document{Title: title}

	titlePage(d, s, title)
	d.heading(1, TOCHeading)
	d.pageBreak()

	executiveSummary(d, s)
	productOverview(d, s)
	methodology(d, s)
	detailedResults(d, s)
	findings(d, s)
	conclusions(d, s)
	appendices(d, s)

	return d
}

func titlePage(d *Document, s *Snapshot, title string) {
	d.paragraph(Organization)
	d.heading(1, title)
	d.paragraph("Product: " + s.Application.ProductName)
	if s.Application.ProductVersion != "" {
		d.paragraph("Version: " + s.Application.ProductVersion)
	}
	d.table(
		Row{"Application number", s.Application.ApplicationNumber},
		Row{"Evaluation level", orNotSpecified(s.Application.EvaluationLevel)},
		Row{"Evaluator", orNotSpecified(s.Evaluator.FullName)},
		Row{"Company", orNotSpecified(s.Application.CompanyName)},
		Row{"Evaluation period", period(s.Evaluation.StartDate, s.Evaluation.EndDate)},
		Row{"Report date", s.GenerationDate.Format(dateLayout)},
	)
	d.pageBreak()
}

func executiveSummary(d *Document, s *Snapshot) {
	d.heading(1, "Executive Summary")
	version := orNotSpecified(s.Application.ProductVersion)
	d.paragraph(fmt.Sprintf(
		"This report presents the results of the Common Criteria evaluation of %s version %s performed by %s.",
		s.Application.ProductName, version, Organization))
	d.paragraph(fmt.Sprintf(
		"The evaluation was performed at level %s and covered %d functional classes. Overall evaluation score: %s.",
		orNotSpecified(s.Application.EvaluationLevel), len(s.Selections), formatScore(s.Score())))
	if verdict := SummaryVerdict(s.Score()); verdict != "" {
		d.paragraph(verdict)
	}
}

func productOverview(d *Document, s *Snapshot) {
	d.heading(1, "Product Overview")
	d.heading(2, "Product Identification")
	d.table(
		Row{"Product name", s.Application.ProductName},
		Row{"Product version", orNotSpecified(s.Application.ProductVersion)},
		Row{"Developer", orNotSpecified(s.Application.CompanyName)},
		Row{"Evaluation level", orNotSpecified(s.Application.EvaluationLevel)},
		Row{"Application number", s.Application.ApplicationNumber},
	)
	d.heading(2, "Product Description")
	d.paragraph(orDefault(s.Application.Description, "No description provided."))
	if s.SecurityTarget.TOEDescription != "" {
		d.heading(2, "Target of Evaluation (TOE)")
		d.paragraph(s.SecurityTarget.TOEDescription)
	}
}

func methodology(d *Document, s *Snapshot) {
	d.heading(1, "Evaluation Methodology")
	d.paragraph("The evaluation was performed against the Common Criteria for Information Technology Security Evaluation (ISO/IEC 15408) using the Common Evaluation Methodology (ISO/IEC 18045).")
	d.heading(2, "Evaluation Activities")
	d.list(methodologyActivities...)
	d.heading(2, "Evaluation Period")
	d.paragraph(fmt.Sprintf("The evaluation was carried out from %s.", period(s.Evaluation.StartDate, s.Evaluation.EndDate)))
}

func detailedResults(d *Document, s *Snapshot) {
	d.heading(1, "Detailed Evaluation Results")
	if len(s.Selections) == 0 {
		d.paragraph("No functional classes were selected.")
		return
	}
	for i, sel := range s.Selections {
		d.heading(2, fmt.Sprintf("%d. %s", i+1, sel.ClassNameEn))

		subclass := notSpecified
		if sel.SubclassCode != "" {
			subclass = fmt.Sprintf("%s (%s)", sel.SubclassNameEn, sel.SubclassCode)
		}
		d.table(
			Row{"Class code", sel.ClassCode},
			Row{"Subclass", subclass},
			Row{"Status", sel.EvaluationStatus},
			Row{"Score", formatScore(sel.EvaluationScore)},
			Row{"Weight", sel.ClassWeight.String()},
			Row{"Persian name", orNotSpecified(sel.ClassNameFa)},
		)

		d.heading(3, "Implementation")
		d.paragraph(orDefault(sel.Description, "No description provided."))
		if sel.Justification != "" {
			d.heading(3, "Justification")
			d.paragraph(sel.Justification)
		}
		if sel.TestApproach != "" {
			d.heading(3, "Test Approach")
			d.paragraph(sel.TestApproach)
		}
		if sel.EvaluatorNotes != "" {
			d.heading(3, "Evaluator Assessment")
			d.paragraph(sel.EvaluatorNotes)
		}
	}
}

func findings(d *Document, s *Snapshot) {
	d.heading(1, "Findings and Recommendations")
	if s.Evaluation.Findings == "" && s.Evaluation.Recommendations == "" {
		d.paragraph("No additional findings were recorded.")
		return
	}
	if s.Evaluation.Findings != "" {
		d.heading(2, "Key Findings")
		d.paragraph(s.Evaluation.Findings)
	}
	if s.Evaluation.Recommendations != "" {
		d.heading(2, "Recommendations")
		d.paragraph(s.Evaluation.Recommendations)
	}
}

func conclusions(d *Document, s *Snapshot) {
	d.heading(1, "Conclusions")
	score := s.Score()
	if score != nil {
		d.paragraph(fmt.Sprintf("Based on the evaluation performed, the product achieved an overall score of %s%%.", formatScore(score)))
	}
	d.paragraph(Conclusion(score))
}

func appendices(d *Document, s *Snapshot) {
	d.heading(1, "Appendices")
	d.heading(2, "Appendix A: Evaluation Team")
	d.paragraph("Lead evaluator: " + orNotSpecified(s.Evaluator.FullName))
	d.paragraph("Email: " + orNotSpecified(s.Evaluator.Email))
	if s.Evaluator.Company != "" {
		d.paragraph("Organization: " + s.Evaluator.Company)
	}
	d.heading(2, "Appendix B: References")
	d.list(references...)
}

func formatScore(score *decimal.Decimal) string {
	if score == nil {
		return notSpecified
	}
	return score.Round(2).String()
}

func period(start time.Time, end *time.Time) string {
	if end == nil {
		return start.Format(dateLayout) + " to date (in progress)"
	}
	return start.Format(dateLayout) + " to " + end.Format(dateLayout)
}

func orNotSpecified(s string) string {
	return orDefault(s, notSpecified)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
