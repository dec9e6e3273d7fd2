package section

// Kind identifies which embedded sub-language a block carries.
type Kind uint8

const (
	KindTemplate Kind = iota
	KindScript
	KindScriptSetup
	KindStyle
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindScript:
		return "script"
	case KindScriptSetup:
		return "script-setup"
	case KindStyle:
		return "style"
	case KindCustom:
		return "custom"
	}
	return "unknown"
}

// Default languages per block kind when no lang attribute is declared.
const (
	DefaultTemplateLang = "markup"
	DefaultScriptLang   = "script"
	DefaultStyleLang    = "stylesheet"
)

// Section is one embedded sub-language block parsed out of a component file.
// Start/End delimit the block *content* in file byte offsets, half-open.
type Section struct {
	Kind    Kind
	Tag     string // raw tag name; differs from Kind.String() for custom blocks
	Lang    string
	Content string
	Start   uint32
	End     uint32
	// TagStart is the byte offset of the opening '<'. Used for document-order
	// decisions such as ignore-marker attachment.
	TagStart uint32
	Ignore   bool
	Attrs    map[string]string
}

// ContentRange returns the [Start, End) content range as a pair.
func (s *Section) ContentRange() (uint32, uint32) {
	return s.Start, s.End
}

// Sections is the parse result for one component file. Template, Script and
// ScriptSetup are optional singletons; Styles and Customs are positional
// arrays whose slot identity survives re-extraction via Merge.
type Sections struct {
	Template    *Section
	ScriptSetup *Section
	Script      *Section
	Styles      []*Section
	Customs     []*Section
}

// All returns every present section in document order.
func (s *Sections) All() []*Section {
	var out []*Section
	for _, sec := range []*Section{s.Template, s.ScriptSetup, s.Script} {
		if sec != nil {
			out = append(out, sec)
		}
	}
	out = append(out, s.Styles...)
	out = append(out, s.Customs...)
	sortByTagStart(out)
	return out
}

func sortByTagStart(secs []*Section) {
	// Insertion sort: the list is tiny and usually already ordered.
	for i := 1; i < len(secs); i++ {
		for j := i; j > 0 && secs[j].TagStart < secs[j-1].TagStart; j-- {
			secs[j], secs[j-1] = secs[j-1], secs[j]
		}
	}
}
