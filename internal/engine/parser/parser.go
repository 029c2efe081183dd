// # internal/engine/parser/parser.go
package parser

import (
	"fmt"
	"strings"

	"rosewatch/internal/engine/ast"
)

const (
	kwNamespace   = "namespace"
	kwVersion     = "version"
	kwImport      = "import"
	kwType        = "type"
	kwEnum        = "enum"
	kwFunc        = "func"
	kwExtends     = "extends"
	kwCondition   = "condition"
	kwMetadata    = "metadata"
	kwDisplayName = "displayName"
)

// Parse converts model source into a File plus a list of recoverable parse
// errors. It never fails: a malformed definition surfaces as an Error entry,
// a skipped member line as a Warning entry, and parsing always continues with
// the next element. Every returned node carries a real source location.
func Parse(source, path string) (*ast.File, []ast.ParseError) {
	lines, lineEnds := scan(source)
	p := &parser{
		src:      source,
		lines:    lines,
		lineEnds: lineEnds,
		file:     &ast.File{Path: path},
	}
	p.parseFile()
	return p.file, p.errs
}

type parser struct {
	src      string
	lines    [][]token
	lineEnds []int
	li       int // index of the line being parsed

	file *ast.File
	errs []ast.ParseError

	version    string
	versionLoc ast.Location
	sawVersion bool
}

func (p *parser) parseFile() {
	for p.li < len(p.lines) {
		line := p.lines[p.li]
		if len(line) == 0 {
			p.li++
			continue
		}

		head := line[0]
		if head.kind != tokIdent {
			p.warnf(p.spanToEOL(head), "skipped unrecognized top-level declaration")
			p.li++
			continue
		}

		switch head.text {
		case kwNamespace:
			p.parseNamespace(line)
			p.li++
		case kwVersion:
			p.parseVersion(line)
			p.li++
		case kwImport:
			p.parseImport(line)
			p.li++
		case kwType:
			p.parseElement("type", head, p.parseTypeBlock)
		case kwEnum:
			p.parseElement("enum", head, p.parseEnumBlock)
		case kwFunc:
			p.parseElement("func", head, p.parseFuncBlock)
		default:
			p.warnf(p.spanToEOL(head), "skipped unrecognized top-level declaration %q", head.text)
			p.li++
		}
	}

	if p.file.Namespace != nil {
		p.file.Namespace.Version = p.version
	} else if p.sawVersion {
		p.warnf(p.versionLoc, "version declaration without a namespace")
	}
}

// parseElement isolates one definition: a panic while building it becomes an
// Error-severity entry at the declaration and parsing resumes at the next
// top-level declaration.
func (p *parser) parseElement(kind string, at token, fn func()) {
	startLine := p.li
	defer func() {
		if r := recover(); r != nil {
			p.errorf(p.spanToEOL(at), "malformed %s definition: %v", kind, r)
			if p.li <= startLine {
				p.li = startLine + 1
			}
			p.syncTopLevel()
		}
	}()
	fn()
}

// syncTopLevel advances to the next line that starts a top-level declaration.
func (p *parser) syncTopLevel() {
	for p.li < len(p.lines) {
		if isTopLevelStart(p.lines[p.li]) {
			return
		}
		p.li++
	}
}

func isTopLevelStart(line []token) bool {
	if len(line) == 0 || line[0].kind != tokIdent {
		return false
	}
	switch line[0].text {
	case kwNamespace, kwVersion, kwImport:
		return true
	case kwType, kwEnum, kwFunc:
		return len(line) > 1 && line[1].kind == tokIdent
	default:
		return false
	}
}

// isBlockTerminator reports whether a line inside a type or enum body starts
// the next definition. Bodies run until their closing brace, the next
// top-level type/enum/func, or end of input.
func isBlockTerminator(line []token) bool {
	if len(line) < 2 || line[0].kind != tokIdent || line[1].kind != tokIdent {
		return false
	}
	switch line[0].text {
	case kwType, kwEnum, kwFunc:
		return true
	default:
		return false
	}
}

func (p *parser) parseNamespace(line []token) {
	loc := p.spanToEOL(line[0])
	name, _, i := p.parseDottedPath(line, 1)
	if name == "" {
		p.warnf(loc, "namespace declaration without a name")
		return
	}
	if p.file.Namespace != nil {
		p.warnf(loc, "duplicate namespace declaration ignored, first one wins")
		return
	}

	ns := &ast.Namespace{Name: name, Location: loc}
	if i < len(line) && line[i].kind == tokColon {
		i++
	}
	if i < len(line) && line[i].kind == tokDesc {
		ns.Description = line[i].text
	}
	p.file.Namespace = ns
}

func (p *parser) parseVersion(line []token) {
	loc := p.spanToEOL(line[0])
	if p.sawVersion {
		p.warnf(loc, "duplicate version declaration ignored, first one wins")
		return
	}
	p.sawVersion = true
	p.versionLoc = loc

	if len(line) > 1 && line[1].kind == tokString {
		p.version = line[1].text
		return
	}
	var b strings.Builder
	for _, tk := range line[1:] {
		b.WriteString(tk.text)
	}
	p.version = b.String()
	if p.version == "" {
		p.warnf(loc, "version declaration without a value")
	}
}

func (p *parser) parseImport(line []token) {
	loc := p.spanToEOL(line[0])
	path, wildcard, _ := p.parseDottedPath(line, 1)
	if path == "" {
		p.warnf(loc, "import declaration without a path")
		return
	}
	if wildcard {
		path += ".*"
	}
	p.file.Imports = append(p.file.Imports, ast.Import{
		Path:       path,
		IsWildcard: wildcard,
		Location:   loc,
	})
}

// parseDottedPath reads ident(.ident)* with an optional trailing .* wildcard
// and returns the joined path plus the index of the first unconsumed token.
func (p *parser) parseDottedPath(line []token, i int) (path string, wildcard bool, next int) {
	if i >= len(line) || line[i].kind != tokIdent {
		return "", false, i
	}
	var b strings.Builder
	b.WriteString(line[i].text)
	i++
	for i+1 < len(line) && line[i].kind == tokDot {
		switch line[i+1].kind {
		case tokIdent:
			b.WriteByte('.')
			b.WriteString(line[i+1].text)
			i += 2
		case tokStar:
			return b.String(), true, i + 2
		default:
			return b.String(), false, i
		}
	}
	return b.String(), false, i
}

func (p *parser) parseTypeBlock() {
	line := p.lines[p.li]
	kw := line[0]

	t := ast.Type{Location: p.spanToEOL(kw)}
	i := 1
	if i >= len(line) || line[i].kind != tokIdent {
		p.errorf(p.spanToEOL(kw), "type declaration without a name")
		p.li++
		return
	}
	t.Name = line[i].text
	i++

	if i < len(line) && line[i].kind == tokIdent && line[i].text == kwExtends {
		extKw := line[i]
		parent, _, next := p.parseDottedPath(line, i+1)
		if parent == "" {
			p.warnf(p.spanToEOL(extKw), "extends clause without a parent type")
			i++
		} else {
			t.Extends = parent
			t.ExtendsLocation = ast.Location{
				Line:   extKw.line,
				Column: extKw.column,
				Length: line[next-1].end() - extKw.offset,
			}
			i = next
		}
	}

	if i < len(line) && line[i].kind == tokColon {
		i++
	}
	if i < len(line) && line[i].kind == tokDesc {
		t.Description = line[i].text
		i++
	}

	opened := i < len(line) && line[i].kind == tokLBrace
	var inline []token
	if opened {
		inline = line[i+1:]
	}

	endOffset := p.parseTypeBody(&t, inline, opened)
	t.Location.Length = endOffset - kw.offset
	p.file.Types = append(p.file.Types, t)
}

// parseTypeBody consumes member lines until the closing brace, the next
// top-level definition, or end of input. On entry p.li is still the header
// line so any members on it parse in place. It returns the byte offset one
// past the body for span stamping. A missing closing brace is not an error:
// the next definition simply ends the body.
func (p *parser) parseTypeBody(t *ast.Type, inline []token, opened bool) int {
	endOffset := p.curLineEnd()

	if len(inline) > 0 {
		closed := p.parseMemberSegment(t, inline)
		endOffset = p.curLineEnd()
		p.li++
		if closed {
			return endOffset
		}
	} else {
		p.li++
	}

	for p.li < len(p.lines) {
		line := p.lines[p.li]
		if len(line) == 0 {
			p.li++
			continue
		}
		if !opened && line[0].kind == tokLBrace {
			opened = true
			line = line[1:]
			if len(line) == 0 {
				p.li++
				continue
			}
		}
		if isBlockTerminator(line) {
			return endOffset
		}
		if line[0].kind == tokRBrace {
			endOffset = line[0].end()
			p.li++
			return endOffset
		}

		closed := p.parseMemberSegment(t, line)
		endOffset = p.lineEnds[p.li]
		p.li++
		if closed {
			return endOffset
		}
	}
	return endOffset
}

// parseMemberSegment parses the tokens of one member line and reports whether
// the segment ended with the body's closing brace.
func (p *parser) parseMemberSegment(t *ast.Type, seg []token) (closed bool) {
	if last := seg[len(seg)-1]; last.kind == tokRBrace {
		closed = true
		seg = seg[:len(seg)-1]
		if len(seg) == 0 {
			return closed
		}
	}

	head := seg[0]
	switch {
	case head.kind == tokLBracket:
		p.parseMetadataLine(t, seg)
	case head.kind == tokIdent && head.text == kwCondition:
		p.parseCondition(t, seg)
	case head.kind == tokIdent:
		p.parseFieldLine(t, seg)
	default:
		p.warnf(p.spanToEOL(head), "skipped unrecognized member line")
	}
	return closed
}

// parseMetadataLine handles a standalone `[metadata tag]` line. An annotation
// after a field binds to that field; before any field it binds to the
// enclosing type.
func (p *parser) parseMetadataLine(t *ast.Type, seg []token) {
	loc := p.spanToEOL(seg[0])
	if len(seg) < 3 || seg[1].kind != tokIdent || seg[1].text != kwMetadata || seg[2].kind != tokIdent {
		p.warnf(loc, "skipped unrecognized annotation")
		return
	}
	tag, ok := ast.ParseMetaTag(seg[2].text)
	if !ok {
		p.warnf(loc, "skipped unknown metadata tag %q", seg[2].text)
		return
	}

	md := ast.Metadata{Tag: tag, Location: loc}
	if n := len(t.Fields); n > 0 {
		t.Fields[n-1].Metadata = append(t.Fields[n-1].Metadata, md)
		return
	}
	t.Metadata = append(t.Metadata, md)
}

// parseCondition handles `condition Name [: <"desc">] expr...`. The
// expression is captured verbatim through the next member line, closing
// brace, or blank line; it is never interpreted here.
func (p *parser) parseCondition(t *ast.Type, seg []token) {
	loc := p.spanToEOL(seg[0])
	i := 1
	if i >= len(seg) || seg[i].kind != tokIdent {
		p.warnf(loc, "skipped condition without a name")
		return
	}
	cond := ast.Condition{Name: seg[i].text, Location: loc}
	i++

	if i < len(seg) && seg[i].kind == tokColon {
		i++
	}
	if i < len(seg) && seg[i].kind == tokDesc {
		cond.Description = seg[i].text
		i++
	}

	var parts []string
	if i < len(seg) {
		parts = append(parts, p.rawSpan(seg[i].offset, seg[len(seg)-1].end()))
	}
	for p.li+1 < len(p.lines) {
		next := p.lines[p.li+1]
		if len(next) == 0 || !isExpressionContinuation(next) {
			break
		}
		p.li++
		parts = append(parts, p.rawSpan(next[0].offset, next[len(next)-1].end()))
	}

	cond.Expression = strings.TrimSpace(strings.Join(parts, "\n"))
	t.Conditions = append(t.Conditions, cond)
}

// isExpressionContinuation reports whether a line belongs to the preceding
// condition expression rather than starting a new member.
func isExpressionContinuation(line []token) bool {
	head := line[0]
	switch head.kind {
	case tokRBrace, tokLBracket:
		return false
	case tokIdent:
		if head.text == kwCondition {
			return false
		}
		if isBlockTerminator(line) {
			return false
		}
		return !looksLikeFieldLine(line)
	default:
		return true
	}
}

// looksLikeFieldLine matches the `name type (min..max)` shape without
// committing to a full parse.
func looksLikeFieldLine(line []token) bool {
	if len(line) < 3 || line[0].kind != tokIdent || line[1].kind != tokIdent {
		return false
	}
	for _, tk := range line[2:] {
		if tk.kind == tokLParen {
			return true
		}
	}
	return false
}

// parseFieldLine handles `name type (min..max) [<"desc">] [[metadata tag]]`.
// A field whose cardinality group fails to parse still yields a field with
// the default (1..1) bound plus a warning; a line that does not match the
// field shape at all is skipped with a warning so no input is dropped
// silently.
func (p *parser) parseFieldLine(t *ast.Type, seg []token) {
	name := seg[0]
	loc := p.spanToEOL(name)

	typeName, _, i := p.parseDottedPath(seg, 1)
	if typeName == "" {
		p.warnf(loc, "skipped unrecognized member line")
		return
	}
	if i >= len(seg) || seg[i].kind != tokLParen {
		p.warnf(loc, "skipped field %q: missing cardinality", name.text)
		return
	}

	card, ok, i := p.parseCardinality(seg, i)
	if !ok {
		card = ast.DefaultCardinality()
		p.warnf(loc, "malformed cardinality on field %q, defaulting to (1..1)", name.text)
	}

	field := ast.Field{
		Name:        name.text,
		TypeName:    typeName,
		Cardinality: card,
		Location:    loc,
	}
	if i < len(seg) && seg[i].kind == tokDesc {
		field.Description = seg[i].text
		i++
	}

	for i < len(seg) && seg[i].kind == tokLBracket {
		open := seg[i]
		j := i + 1
		for j < len(seg) && seg[j].kind != tokRBracket {
			j++
		}
		groupLoc := p.spanToEOL(open)
		if j < len(seg) {
			groupLoc = ast.Location{Line: open.line, Column: open.column, Length: seg[j].end() - open.offset}
		}
		group := seg[i+1 : j]
		if len(group) == 2 && group[0].kind == tokIdent && group[0].text == kwMetadata && group[1].kind == tokIdent {
			if tag, known := ast.ParseMetaTag(group[1].text); known {
				field.Metadata = append(field.Metadata, ast.Metadata{Tag: tag, Location: groupLoc})
			} else {
				p.warnf(groupLoc, "skipped unknown metadata tag %q", group[1].text)
			}
		} else {
			p.warnf(groupLoc, "skipped unrecognized annotation")
		}
		i = j + 1
	}

	t.Fields = append(t.Fields, field)
}

// parseCardinality reads `(min..max)` starting at the opening paren. On a
// malformed group it consumes through the closing paren and reports !ok so
// the caller can fall back to the default bound.
func (p *parser) parseCardinality(seg []token, i int) (ast.Cardinality, bool, int) {
	i++ // past '('

	closing := -1
	for j := i; j < len(seg); j++ {
		if seg[j].kind == tokRParen {
			closing = j
			break
		}
	}
	next := len(seg)
	inner := seg[i:]
	if closing >= 0 {
		next = closing + 1
		inner = seg[i:closing]
	}

	if len(inner) != 3 || inner[0].kind != tokNumber || inner[1].kind != tokDotDot {
		return ast.Cardinality{}, false, next
	}

	lower, err := parseCount(inner[0].text)
	if err != nil {
		return ast.Cardinality{}, false, next
	}

	var upper ast.Bound
	switch inner[2].kind {
	case tokStar:
		upper = ast.Unbounded()
	case tokNumber:
		n, err := parseCount(inner[2].text)
		if err != nil {
			return ast.Cardinality{}, false, next
		}
		upper = ast.Finite(n)
	default:
		return ast.Cardinality{}, false, next
	}

	return ast.Cardinality{Min: lower, Max: upper}, true, next
}

func parseCount(text string) (int, error) {
	if text == "" {
		return 0, fmt.Errorf("empty count")
	}
	n := 0
	for _, ch := range text {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("invalid count %q", text)
		}
		n = n*10 + int(ch-'0')
		if n > 1<<30 {
			return 0, fmt.Errorf("count %q out of range", text)
		}
	}
	return n, nil
}

func (p *parser) parseEnumBlock() {
	line := p.lines[p.li]
	kw := line[0]

	e := ast.Enum{Location: p.spanToEOL(kw)}
	i := 1
	if i >= len(line) || line[i].kind != tokIdent {
		p.errorf(p.spanToEOL(kw), "enum declaration without a name")
		p.li++
		return
	}
	e.Name = line[i].text
	i++

	if i < len(line) && line[i].kind == tokColon {
		i++
	}
	if i < len(line) && line[i].kind == tokDesc {
		e.Description = line[i].text
		i++
	}

	opened := i < len(line) && line[i].kind == tokLBrace
	var inline []token
	if opened {
		inline = line[i+1:]
	}

	endOffset := p.parseEnumBody(&e, inline, opened)
	e.Location.Length = endOffset - kw.offset
	p.file.Enums = append(p.file.Enums, e)
}

func (p *parser) parseEnumBody(e *ast.Enum, inline []token, opened bool) int {
	endOffset := p.curLineEnd()

	if len(inline) > 0 {
		closed := p.parseEnumValueSegment(e, inline)
		endOffset = p.curLineEnd()
		p.li++
		if closed {
			return endOffset
		}
	} else {
		p.li++
	}

	for p.li < len(p.lines) {
		line := p.lines[p.li]
		if len(line) == 0 {
			p.li++
			continue
		}
		if !opened && line[0].kind == tokLBrace {
			opened = true
			line = line[1:]
			if len(line) == 0 {
				p.li++
				continue
			}
		}
		if isBlockTerminator(line) {
			return endOffset
		}
		if line[0].kind == tokRBrace {
			endOffset = line[0].end()
			p.li++
			return endOffset
		}

		closed := p.parseEnumValueSegment(e, line)
		endOffset = p.lineEnds[p.li]
		p.li++
		if closed {
			return endOffset
		}
	}
	return endOffset
}

// parseEnumValueSegment handles `NAME [displayName "text"] [<"desc">]`. Bare
// reserved words are skipped so block boundaries never masquerade as values.
func (p *parser) parseEnumValueSegment(e *ast.Enum, seg []token) (closed bool) {
	if last := seg[len(seg)-1]; last.kind == tokRBrace {
		closed = true
		seg = seg[:len(seg)-1]
		if len(seg) == 0 {
			return closed
		}
	}

	head := seg[0]
	if head.kind != tokIdent {
		p.warnf(p.spanToEOL(head), "skipped unrecognized enum value line")
		return closed
	}
	switch head.text {
	case kwType, kwEnum, kwFunc:
		return closed
	}

	value := ast.EnumValue{Name: head.text, Location: p.spanToEOL(head)}
	i := 1
	if i+1 < len(seg) && seg[i].kind == tokIdent && seg[i].text == kwDisplayName && seg[i+1].kind == tokString {
		value.DisplayName = seg[i+1].text
		i += 2
	}
	if i < len(seg) && seg[i].kind == tokDesc {
		value.Description = seg[i].text
	}
	e.Values = append(e.Values, value)
	return closed
}

// parseFuncBlock records a function stub. Bodies carry no indexed detail, so
// everything up to the closing brace or the next top-level definition is
// skipped.
func (p *parser) parseFuncBlock() {
	line := p.lines[p.li]
	kw := line[0]

	if len(line) < 2 || line[1].kind != tokIdent {
		p.errorf(p.spanToEOL(kw), "func declaration without a name")
		p.li++
		return
	}
	p.file.Functions = append(p.file.Functions, ast.Function{
		Name:     line[1].text,
		Location: p.spanToEOL(kw),
	})

	braced := line[len(line)-1].kind == tokLBrace
	p.li++
	for p.li < len(p.lines) {
		l := p.lines[p.li]
		if len(l) == 0 {
			p.li++
			continue
		}
		if braced {
			if l[0].kind == tokRBrace {
				p.li++
				return
			}
		} else if isTopLevelStart(l) {
			return
		}
		p.li++
	}
}

func (p *parser) rawSpan(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(p.src) {
		end = len(p.src)
	}
	if start >= end {
		return ""
	}
	return p.src[start:end]
}

// spanToEOL builds a Location from a token to the end of its line.
func (p *parser) spanToEOL(tk token) ast.Location {
	length := 0
	if idx := tk.line - 1; idx >= 0 && idx < len(p.lineEnds) {
		if end := p.lineEnds[idx]; end > tk.offset {
			length = end - tk.offset
		}
	}
	return ast.Location{Line: tk.line, Column: tk.column, Length: length}
}

func (p *parser) curLineEnd() int {
	if p.li >= 0 && p.li < len(p.lineEnds) {
		return p.lineEnds[p.li]
	}
	if len(p.lineEnds) > 0 {
		return p.lineEnds[len(p.lineEnds)-1]
	}
	return 0
}

func (p *parser) warnf(loc ast.Location, format string, args ...interface{}) {
	p.errs = append(p.errs, ast.ParseError{
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
		Severity: ast.SeverityWarning,
	})
}

func (p *parser) errorf(loc ast.Location, format string, args ...interface{}) {
	p.errs = append(p.errs, ast.ParseError{
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
		Severity: ast.SeverityError,
	})
}
