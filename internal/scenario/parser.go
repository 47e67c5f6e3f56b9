package scenario

import (
	"fmt"
	"strings"
	"unicode"

	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// exprParser turns a scenario's surface type syntax ("T", "Self.Element",
// "Array<Int, T.Element>") into a types.Type. It is a hand-rolled
// recursive-descent parser over a tiny grammar — the kind of thing the
// teacher's own ast/parsed tree would have built from tokens, but scaled
// down to exactly what a scenario file needs since a real parser is the
// collaborator spec §1 excludes from scope.
type exprParser struct {
	src    string
	pos    int
	params map[string]ast.GenericParamKey
}

func newExprParser(src string, params map[string]ast.GenericParamKey) *exprParser {
	return &exprParser{src: src, params: params}
}

// ParseType parses the whole string as one type expression.
func ParseType(src string, params map[string]ast.GenericParamKey) (types.Type, error) {
	p := newExprParser(src, params)
	p.skipSpace()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected trailing input at %d in %q", p.pos, src)
	}
	return t, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) parseType() (types.Type, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	var base types.Type
	switch {
	case name == "Self":
		base = &types.ParamType{Key: collab.SelfKey, Name: "Self"}
	default:
		if key, ok := p.params[name]; ok {
			base = &types.ParamType{Key: key, Name: name}
			break
		}
		p.skipSpace()
		if p.peek() == '<' {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			base = &types.NominalType{Name: name, Args: args}
		} else {
			base = &types.NominalType{Name: name}
		}
	}

	for {
		p.skipSpace()
		if p.peek() != '.' {
			break
		}
		p.pos++
		p.skipSpace()
		member, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		base = &types.MemberType{Base: base, Name: ast.Identifier(member)}
	}
	return base, nil
}

func (p *exprParser) parseArgs() ([]types.Type, error) {
	p.pos++ // consume '<'
	var args []types.Type
	for {
		p.skipSpace()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			continue
		case '>':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("expected ',' or '>' at %d in %q", p.pos, p.src)
		}
	}
}

func (p *exprParser) parseIdent() (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at %d in %q", p.pos, p.src)
	}
	return p.src[start:p.pos], nil
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func parseLayout(s string) types.Layout {
	switch strings.TrimSpace(s) {
	case "AnyObject":
		return types.Layout{Kind: types.LayoutClass}
	case "_NativeClass":
		return types.Layout{Kind: types.LayoutNativeClass}
	case "_Trivial":
		return types.Layout{Kind: types.LayoutTrivial}
	default:
		return types.NoLayout
	}
}
