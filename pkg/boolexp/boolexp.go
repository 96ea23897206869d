// Package boolexp compiles textual boolean lock expressions into predicates
// over (gated, unlocker) object pairs.
//
// Grammar:
//
//	E → T ('|' E)?
//	T → F ('&' T)?
//	F → '!' F | '@' L | '+' L | '=' L | '$' L | L
//	L → '(' E ')' | '#TRUE' | '#FALSE' | '#dbref[:created]'
//	  | class '^' value | name ':' pattern | name '/' pattern | name
//
// A bare name resolves to a player reference at compile time. Compilation
// never panics; malformed input comes back as *CompileError. Runtime failures
// inside a compiled predicate (dangling references, indirection depth) are
// returned as errors so callers can fail the lock closed and still report a
// distinct evaluation-error kind.
package boolexp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// Maximum indirection depth for @-locks to prevent infinite loops.
const maxIndirDepth = 20

// ErrTooDeep is returned when @-lock indirection exceeds maxIndirDepth.
var ErrTooDeep = errors.New("lock indirection too deep")

// CompileError describes malformed lock syntax or an unresolvable reference.
type CompileError struct {
	Src string
	Pos int
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("lock %q: %s at offset %d", e.Src, e.Msg, e.Pos)
}

// Predicate is a compiled lock. gated is the object the lock is attached to,
// unlocker the subject trying to pass it.
type Predicate func(ctx context.Context, gated, unlocker *gamedb.Object) (bool, error)

// Compiler compiles lock strings against a graph snapshot. Name references
// are resolved at compile time; containment checks run at evaluation time.
type Compiler struct {
	DB gamedb.Snapshot
}

// Compile parses lockStr and returns a reusable predicate. ctx bounds the
// compile-time name lookups only; each evaluation takes its own context.
func (c *Compiler) Compile(ctx context.Context, lockStr string) (Predicate, error) {
	n, err := c.parse(ctx, lockStr)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, gated, unlocker *gamedb.Object) (bool, error) {
		if gated == nil || unlocker == nil {
			return false, nil
		}
		env := &evalEnv{ctx: ctx, comp: c}
		return n(env, gated, unlocker)
	}, nil
}

// Validate checks lockStr for syntax and reference errors without compiling
// a predicate for use. lockee is the object the lock would be set on.
func (c *Compiler) Validate(ctx context.Context, lockStr string, lockee *gamedb.Object) error {
	_, err := c.parse(ctx, lockStr)
	return err
}

func (c *Compiler) parse(ctx context.Context, lockStr string) (node, error) {
	src := strings.TrimSpace(lockStr)
	if src == "" {
		return nil, &CompileError{Src: lockStr, Msg: "empty lock expression"}
	}
	p := &parser{ctx: ctx, comp: c, src: src}
	n, err := p.parseE()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.src) {
		return nil, p.fail("trailing input")
	}
	return n, nil
}

// evalEnv carries per-evaluation state: the cancellation context and the
// current @-lock indirection depth.
type evalEnv struct {
	ctx   context.Context
	comp  *Compiler
	depth int
}

type node func(env *evalEnv, gated, unlocker *gamedb.Object) (bool, error)

// ---------- Parser ----------

type parser struct {
	ctx  context.Context
	comp *Compiler
	src  string
	pos  int
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	ch := p.peek()
	if ch != 0 {
		p.pos++
	}
	return ch
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) fail(msg string) error {
	return &CompileError{Src: p.src, Pos: p.pos, Msg: msg}
}

func (p *parser) parseE() (node, error) {
	left, err := p.parseT()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.peek() == '|' {
		p.advance()
		right, err := p.parseE()
		if err != nil {
			return nil, err
		}
		return orNode(left, right), nil
	}
	return left, nil
}

func (p *parser) parseT() (node, error) {
	left, err := p.parseF()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.peek() == '&' {
		p.advance()
		right, err := p.parseT()
		if err != nil {
			return nil, err
		}
		return andNode(left, right), nil
	}
	return left, nil
}

func (p *parser) parseF() (node, error) {
	p.skipSpaces()
	switch p.peek() {
	case '!':
		p.advance()
		sub, err := p.parseF()
		if err != nil {
			return nil, err
		}
		return notNode(sub), nil
	case '@':
		p.advance()
		ref, err := p.parseRefLiteral()
		if err != nil {
			return nil, err
		}
		return indirNode(ref), nil
	case '+':
		p.advance()
		ref, err := p.parseRefLiteral()
		if err != nil {
			return nil, err
		}
		return carryNode(ref), nil
	case '=':
		p.advance()
		ref, err := p.parseRefLiteral()
		if err != nil {
			return nil, err
		}
		return isNode(ref), nil
	case '$':
		p.advance()
		ref, err := p.parseRefLiteral()
		if err != nil {
			return nil, err
		}
		return ownerNode(ref), nil
	default:
		return p.parseLiteral()
	}
}

// parseRefLiteral parses the object-reference operand of a prefix operator.
func (p *parser) parseRefLiteral() (gamedb.DBRef, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '&' || ch == '|' || ch == ')' {
			break
		}
		p.pos++
	}
	token := strings.TrimSpace(p.src[start:p.pos])
	if token == "" {
		return gamedb.Nothing, p.fail("missing object reference")
	}
	return p.resolveRef(token, start)
}

func (p *parser) parseLiteral() (node, error) {
	p.skipSpaces()
	if p.peek() == '(' {
		p.advance()
		sub, err := p.parseE()
		if err != nil {
			return nil, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return nil, p.fail("missing closing parenthesis")
		}
		p.advance()
		return sub, nil
	}

	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '&' || ch == '|' || ch == '!' || ch == '(' || ch == ')' {
			break
		}
		// A ':' inside a '#' token is an objid stamp, not an attribute
		// separator.
		if (ch == '^' || ch == ':' || ch == '/') && p.src[start] != '#' {
			name := strings.TrimSpace(p.src[start:p.pos])
			sep := ch
			p.pos++
			patStart := p.pos
			for p.pos < len(p.src) {
				pc := p.src[p.pos]
				if pc == '&' || pc == '|' || pc == ')' {
					break
				}
				p.pos++
			}
			pattern := strings.TrimSpace(p.src[patStart:p.pos])
			if name == "" || pattern == "" {
				return nil, p.fail("incomplete lock term")
			}
			switch sep {
			case '^':
				return p.classNode(name, pattern, start)
			case ':':
				return attrNode(name, pattern), nil
			default: // '/'
				// Eval locks fall back to a literal comparison of the
				// attribute text; the scripting engine sits outside this
				// layer.
				return attrNode(name, pattern), nil
			}
		}
		p.pos++
	}

	token := strings.TrimSpace(p.src[start:p.pos])
	if token == "" {
		return nil, p.fail("empty lock term")
	}

	if token[0] == '#' {
		if strings.EqualFold(token, "#TRUE") {
			return constBool(true), nil
		}
		if strings.EqualFold(token, "#FALSE") {
			return constBool(false), nil
		}
	}

	ref, err := p.resolveRef(token, start)
	if err != nil {
		return nil, err
	}
	return constNode(ref), nil
}

// classNode builds a FLAG^/POWER^/TYPE^/NAME^ term.
func (p *parser) classNode(class, value string, start int) (node, error) {
	switch strings.ToUpper(class) {
	case "FLAG":
		return flagNode(value), nil
	case "POWER":
		return powerNode(value), nil
	case "TYPE":
		switch strings.ToUpper(value) {
		case "PLAYER", "ROOM", "EXIT", "THING":
			return typeNode(strings.ToUpper(value)), nil
		}
		return nil, &CompileError{Src: p.src, Pos: start, Msg: "unknown type " + value}
	case "NAME":
		return nameNode(value), nil
	default:
		return nil, &CompileError{Src: p.src, Pos: start, Msg: "unknown lock class " + class}
	}
}

// resolveRef turns "#dbref" or a player name into a concrete reference.
// Names resolve at compile time, exactly once.
func (p *parser) resolveRef(token string, start int) (gamedb.DBRef, error) {
	if token[0] == '#' {
		ref, ok := gamedb.ParseObjRef(token)
		if !ok {
			return gamedb.Nothing, &CompileError{Src: p.src, Pos: start, Msg: "bad dbref " + token}
		}
		return ref, nil
	}
	name := strings.TrimPrefix(token, "*")
	players := p.comp.DB.GetPlayersByName(p.ctx, name)
	if len(players) == 0 {
		return gamedb.Nothing, &CompileError{Src: p.src, Pos: start, Msg: "unresolved name " + token}
	}
	return players[0].Ref, nil
}

// ---------- Compiled nodes ----------

func constBool(v bool) node {
	return func(*evalEnv, *gamedb.Object, *gamedb.Object) (bool, error) {
		return v, nil
	}
}

func andNode(a, b node) node {
	return func(env *evalEnv, gated, unlocker *gamedb.Object) (bool, error) {
		ok, err := a(env, gated, unlocker)
		if err != nil || !ok {
			return false, err
		}
		return b(env, gated, unlocker)
	}
}

func orNode(a, b node) node {
	return func(env *evalEnv, gated, unlocker *gamedb.Object) (bool, error) {
		ok, err := a(env, gated, unlocker)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		return b(env, gated, unlocker)
	}
}

func notNode(sub node) node {
	return func(env *evalEnv, gated, unlocker *gamedb.Object) (bool, error) {
		ok, err := sub(env, gated, unlocker)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// constNode passes when the unlocker is the referenced object or carries it.
func constNode(ref gamedb.DBRef) node {
	return func(env *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		if ref.Matches(unlocker.Ref) {
			return true, nil
		}
		return carries(env, unlocker, ref)
	}
}

// isNode passes only when the unlocker IS the referenced object.
func isNode(ref gamedb.DBRef) node {
	return func(_ *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		return ref.Matches(unlocker.Ref), nil
	}
}

// carryNode passes only when the unlocker carries the referenced object.
func carryNode(ref gamedb.DBRef) node {
	return func(env *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		return carries(env, unlocker, ref)
	}
}

// ownerNode passes when the unlocker's owner matches the referenced
// object's owner.
func ownerNode(ref gamedb.DBRef) node {
	return func(env *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		target, ok := env.comp.DB.GetObjectNode(env.ctx, ref)
		if !ok {
			return false, fmt.Errorf("owner lock: %s: dangling reference", ref)
		}
		return unlocker.Owner.SameNum(target.Owner), nil
	}
}

// indirNode evaluates the Basic lock of the referenced object, depth-limited.
func indirNode(ref gamedb.DBRef) node {
	return func(env *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		if err := env.ctx.Err(); err != nil {
			return false, err
		}
		if env.depth >= maxIndirDepth {
			return false, ErrTooDeep
		}
		target, ok := env.comp.DB.GetObjectNode(env.ctx, ref)
		if !ok {
			return false, fmt.Errorf("indirect lock: %s: dangling reference", ref)
		}
		sub, err := env.comp.parse(env.ctx, target.Lock(gamedb.LockBasic).LockString)
		if err != nil {
			return false, fmt.Errorf("indirect lock: %s: %w", ref, err)
		}
		env.depth++
		defer func() { env.depth-- }()
		return sub(env, target, unlocker)
	}
}

// attrNode matches a wildcard pattern against the unlocker's attribute text.
func attrNode(name, pattern string) node {
	return func(env *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		if a, ok := unlocker.Attr(name); ok && wildMatch(pattern, a.Value) {
			return true, nil
		}
		// Contents may satisfy attribute locks too.
		for _, held := range env.comp.DB.GetContents(env.ctx, unlocker.Ref) {
			if a, ok := held.Attr(name); ok && wildMatch(pattern, a.Value) {
				return true, nil
			}
		}
		return false, nil
	}
}

func flagNode(name string) node {
	return func(_ *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		return unlocker.HasFlag(name), nil
	}
}

func powerNode(name string) node {
	return func(_ *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		return unlocker.HasPower(name), nil
	}
}

func typeNode(name string) node {
	return func(_ *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		return unlocker.Type.String() == name, nil
	}
}

func nameNode(pattern string) node {
	return func(_ *evalEnv, _, unlocker *gamedb.Object) (bool, error) {
		if wildMatch(pattern, unlocker.Name) {
			return true, nil
		}
		for _, alias := range unlocker.Aliases {
			if wildMatch(pattern, alias) {
				return true, nil
			}
		}
		return false, nil
	}
}

// carries reports whether holder has the referenced object directly in its
// contents.
func carries(env *evalEnv, holder *gamedb.Object, ref gamedb.DBRef) (bool, error) {
	for _, held := range env.comp.DB.GetContents(env.ctx, holder.Ref) {
		if ref.Matches(held.Ref) {
			return true, nil
		}
	}
	return false, nil
}
