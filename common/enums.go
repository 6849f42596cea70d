// Package common keeps enums shared by configuration and export engine so
// neither has to import the other.
package common

// Specification of requested output type. "mobi" is exported as plain text
// payload, its binary layout is not produced.
// ENUM(pdf, epub, txt, mobi)
type OutputFmt int

// Paginated reports whether format needs page layout and fonts.
func (o OutputFmt) Paginated() bool {
	return o == OutputFmtPdf
}

// TextOnly reports whether format ignores images entirely.
func (o OutputFmt) TextOnly() bool {
	return o == OutputFmtTxt || o == OutputFmtMobi
}

func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtPdf:
		return ".pdf"
	case OutputFmtEpub:
		return ".epub"
	case OutputFmtTxt, OutputFmtMobi:
		return ".txt"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}
