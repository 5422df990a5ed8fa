package ssaload

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// LoadFile reads the methods of a .yaml, .yml or .cue file.
func LoadFile(path string) ([]*ssa.Func, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, data)
}

// Load decodes the methods in data. The format is chosen by the extension
// of name: CUE for ".cue", YAML otherwise.
func Load(name string, data []byte) ([]*ssa.Func, error) {
	var f fileDoc
	if filepath.Ext(name) == ".cue" {
		v := cuecontext.New().CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := v.Decode(&f); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if len(f.Methods) == 0 {
		return nil, fmt.Errorf("%s: no methods", name)
	}

	fns := make([]*ssa.Func, 0, len(f.Methods))
	for _, m := range f.Methods {
		fn, err := buildMethod(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %s.%s: %w", name, m.Class, m.Name, err)
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

type builder struct {
	fn     *ssa.Func
	blocks map[string]ssa.BlockID
	values map[string]ssa.ValueID
}

func buildMethod(m methodDoc) (*ssa.Func, error) {
	sig := ssa.Signature{Class: m.Class, Name: m.Name, Static: m.Static, Return: ssa.Void}
	for _, p := range m.Params {
		t, err := parseType(p)
		if err != nil {
			return nil, err
		}
		sig.Params = append(sig.Params, t)
	}
	if m.Return != "" {
		t, err := parseType(m.Return)
		if err != nil {
			return nil, err
		}
		sig.Return = t
	}
	if len(m.Blocks) == 0 {
		return nil, fmt.Errorf("no blocks")
	}

	b := &builder{
		fn:     ssa.NewFunc(sig),
		blocks: make(map[string]ssa.BlockID),
		values: make(map[string]ssa.ValueID),
	}
	for _, bd := range m.Blocks {
		if _, dup := b.blocks[bd.Name]; dup || bd.Name == "" {
			return nil, fmt.Errorf("invalid or duplicate block name %q", bd.Name)
		}
		b.blocks[bd.Name] = b.fn.NewBlock(bd.Name)
	}

	phis := make(map[ssa.ValueID]phiDoc)
	for _, bd := range m.Blocks {
		for _, pd := range bd.Phis {
			t, err := parseType(pd.Type)
			if err != nil {
				return nil, fmt.Errorf("phi %s: %w", pd.Out, err)
			}
			v := b.fn.AddPhi(b.blocks[bd.Name], t)
			if err := b.define(pd.Out, v); err != nil {
				return nil, err
			}
			phis[v] = pd
		}
	}

	for _, bd := range m.Blocks {
		for i, id := range bd.Insts {
			if err := b.emit(b.blocks[bd.Name], id); err != nil {
				return nil, fmt.Errorf("block %s: instruction %d (%s): %w", bd.Name, i, id.Op, err)
			}
		}
	}

	for _, bd := range m.Blocks {
		for _, v := range b.fn.Block(b.blocks[bd.Name]).Phis {
			if err := b.setOperands(v, phis[v]); err != nil {
				return nil, fmt.Errorf("block %s: phi %s: %w", bd.Name, phis[v].Out, err)
			}
		}
	}
	return b.fn, nil
}

func (b *builder) define(name string, v ssa.ValueID) error {
	if name == "" {
		return nil
	}
	if _, dup := b.values[name]; dup {
		return fmt.Errorf("value %s defined twice", name)
	}
	b.values[name] = v
	b.fn.Named(v, name)
	return nil
}

func (b *builder) value(name string) (ssa.ValueID, error) {
	v, ok := b.values[name]
	if !ok {
		return ssa.NoValue, fmt.Errorf("undefined value %q", name)
	}
	return v, nil
}

func (b *builder) block(name string) (ssa.BlockID, error) {
	id, ok := b.blocks[name]
	if !ok {
		return ssa.NoBlock, fmt.Errorf("undefined block %q", name)
	}
	return id, nil
}

func (b *builder) emit(blk ssa.BlockID, d instDoc) error {
	args := make([]ssa.ValueID, len(d.Args))
	for i, a := range d.Args {
		v, err := b.value(a)
		if err != nil {
			return err
		}
		args[i] = v
	}
	op, typ, err := b.op(d)
	if err != nil {
		return err
	}
	out := b.fn.Emit(blk, op, typ, args...)
	if d.Out != "" && out == ssa.NoValue {
		return fmt.Errorf("%s has no result", d.Op)
	}
	return b.define(d.Out, out)
}

// setOperands orders the operands of a phi like the predecessors of its block.
func (b *builder) setOperands(phi ssa.ValueID, pd phiDoc) error {
	preds := b.fn.Block(b.fn.Value(phi).Block).Preds
	var names []string
	switch {
	case len(pd.Operands) > 0:
		names = pd.Operands
	case len(pd.From) > 0:
		seen := make(map[ssa.BlockID]bool)
		for _, p := range preds {
			if seen[p] {
				return fmt.Errorf("%s is a predecessor twice, list operands instead", b.fn.Block(p).Name)
			}
			seen[p] = true
			name, ok := pd.From[b.fn.Block(p).Name]
			if !ok {
				return fmt.Errorf("no operand for predecessor %s", b.fn.Block(p).Name)
			}
			names = append(names, name)
		}
		if len(pd.From) != len(preds) {
			return fmt.Errorf("operands given for blocks that are not predecessors")
		}
	}
	if len(names) != len(preds) {
		return fmt.Errorf("%d operands for %d predecessors", len(names), len(preds))
	}
	ops := make([]ssa.ValueID, len(names))
	for i, n := range names {
		v, err := b.value(n)
		if err != nil {
			return err
		}
		ops[i] = v
	}
	b.fn.SetPhiOperands(phi, ops...)
	return nil
}

func parseType(s string) (ssa.Type, error) {
	if s == "ref" {
		return ssa.Ref(""), nil
	}
	return ssa.ParseType(s)
}

func parseKind(s string) (ssa.Kind, error) {
	switch s {
	case "int":
		return ssa.KindInt, nil
	case "long":
		return ssa.KindLong, nil
	case "float":
		return ssa.KindFloat, nil
	case "double":
		return ssa.KindDouble, nil
	}
	return 0, fmt.Errorf("invalid kind %q", s)
}

func kindType(k ssa.Kind) ssa.Type {
	return ssa.Type{Kind: k}
}

func parseArith(s string) (ssa.ArithOp, bool) {
	for op := ssa.Add; op <= ssa.Ushr; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}

func parseCond(s string) (ssa.Cond, error) {
	for c := ssa.Eq; c <= ssa.Le; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid condition %q", s)
}

func parseInvokeKind(s string) (ssa.InvokeKind, error) {
	for k := ssa.InvokeStatic; k <= ssa.InvokeInterface; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid invoke kind %q", s)
}

// parseField reads "Owner.name" with the field type in typ.
func parseField(s, typ string) (ssa.FieldRef, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return ssa.FieldRef{}, fmt.Errorf("invalid field %q", s)
	}
	t, err := parseType(typ)
	if err != nil {
		return ssa.FieldRef{}, fmt.Errorf("field %s: %w", s, err)
	}
	return ssa.FieldRef{Owner: s[:i], Name: s[i+1:], Type: t}, nil
}

// parseMethod reads "Owner.name(descriptors)return", e.g. "Util.twice(I)I".
func parseMethod(s string) (ssa.MethodRef, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return ssa.MethodRef{}, fmt.Errorf("invalid method %q", s)
	}
	dot := strings.LastIndexByte(s[:open], '.')
	if dot <= 0 || dot == open-1 {
		return ssa.MethodRef{}, fmt.Errorf("invalid method %q", s)
	}
	params, err := splitDescriptors(s[open+1 : end])
	if err != nil {
		return ssa.MethodRef{}, fmt.Errorf("method %s: %w", s, err)
	}
	ret, err := ssa.FromDescriptor(s[end+1:])
	if err != nil {
		return ssa.MethodRef{}, fmt.Errorf("method %s: %w", s, err)
	}
	return ssa.MethodRef{Owner: s[:dot], Name: s[dot+1 : open], Params: params, Return: ret}, nil
}

func splitDescriptors(d string) ([]ssa.Type, error) {
	var types []ssa.Type
	for i := 0; i < len(d); {
		start := i
		for i < len(d) && d[i] == '[' {
			i++
		}
		if i < len(d) && d[i] == 'L' {
			end := strings.IndexByte(d[i:], ';')
			if end < 0 {
				return nil, fmt.Errorf("unterminated class in %q", d)
			}
			i += end
		}
		i++
		if i > len(d) {
			return nil, fmt.Errorf("truncated descriptor %q", d)
		}
		t, err := ssa.FromDescriptor(d[start:i])
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// op decodes the operation of d and its result type, Void when it has none.
func (b *builder) op(d instDoc) (ssa.Op, ssa.Type, error) {
	mnemonic, suffix, _ := strings.Cut(d.Op, ".")

	if from, to, ok := strings.Cut(mnemonic, "-to-"); ok {
		fk, err := parseKind(from)
		if err != nil {
			return nil, ssa.Void, err
		}
		tk, err := parseKind(to)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.Convert{From: fk, To: tk}, kindType(tk), nil
	}
	if arith, ok := parseArith(mnemonic); ok {
		k, err := parseKind(suffix)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.Binop{Op: arith, Kind: k}, kindType(k), nil
	}
	if kind, ok := strings.CutPrefix(mnemonic, "invoke-"); ok {
		k, err := parseInvokeKind(kind)
		if err != nil {
			return nil, ssa.Void, err
		}
		m, err := parseMethod(d.Method)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.Invoke{Kind: k, Method: m}, m.Return, nil
	}

	switch mnemonic {
	case "arg":
		types := b.fn.Sig.ArgTypes()
		if d.Index < 0 || d.Index >= len(types) {
			return nil, ssa.Void, fmt.Errorf("argument index %d out of range", d.Index)
		}
		return ssa.Argument{Index: d.Index}, types[d.Index], nil
	case "const":
		return constant(suffix, d)
	case "neg":
		k, err := parseKind(suffix)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.Neg{Kind: k}, kindType(k), nil
	case "cmp", "cmpl", "cmpg":
		k, err := parseKind(suffix)
		if err != nil {
			return nil, ssa.Void, err
		}
		bias := map[string]ssa.CmpBias{"cmp": ssa.BiasNone, "cmpl": ssa.BiasLess, "cmpg": ssa.BiasGreater}[mnemonic]
		return ssa.Cmp{Kind: k, Bias: bias}, ssa.Int, nil
	case "new":
		return ssa.NewInstance{Class: d.Class}, ssa.Ref(d.Class), nil
	case "new-array":
		elem, err := parseType(d.Type)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.NewArray{Elem: elem}, ssa.ArrayOf(elem), nil
	case "array-length":
		return ssa.ArrayLength{}, ssa.Int, nil
	case "aget", "aput":
		elem, err := parseType(d.Type)
		if err != nil {
			return nil, ssa.Void, err
		}
		if mnemonic == "aget" {
			return ssa.ArrayGet{Elem: elem}, elem, nil
		}
		return ssa.ArrayPut{Elem: elem}, ssa.Void, nil
	case "iget", "iput", "sget", "sput":
		f, err := parseField(d.Field, d.Type)
		if err != nil {
			return nil, ssa.Void, err
		}
		switch mnemonic {
		case "iget":
			return ssa.InstanceGet{Field: f}, f.Type, nil
		case "iput":
			return ssa.InstancePut{Field: f}, ssa.Void, nil
		case "sget":
			return ssa.StaticGet{Field: f}, f.Type, nil
		default:
			return ssa.StaticPut{Field: f}, ssa.Void, nil
		}
	case "check-cast":
		return ssa.CheckCast{Class: d.Class}, ssa.Ref(d.Class), nil
	case "instance-of":
		return ssa.InstanceOf{Class: d.Class}, ssa.Int, nil
	case "goto":
		target, err := b.block(d.Target)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.Goto{Target: target}, ssa.Void, nil
	case "if":
		c, err := parseCond(suffix)
		if err != nil {
			return nil, ssa.Void, err
		}
		then, err := b.block(d.Then)
		if err != nil {
			return nil, ssa.Void, err
		}
		els, err := b.block(d.Else)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.If{Cond: c, Then: then, Else: els}, ssa.Void, nil
	case "return":
		return ssa.Return{}, ssa.Void, nil
	case "throw":
		return ssa.Throw{}, ssa.Void, nil
	}
	return nil, ssa.Void, fmt.Errorf("unknown operation %q", d.Op)
}

func constant(kind string, d instDoc) (ssa.Op, ssa.Type, error) {
	switch kind {
	case "int":
		v, err := strconv.ParseInt(d.Value, 0, 32)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.ConstInt{Value: int32(v)}, ssa.Int, nil
	case "long":
		v, err := strconv.ParseInt(d.Value, 0, 64)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.ConstLong{Value: v}, ssa.Long, nil
	case "float":
		v, err := strconv.ParseFloat(d.Value, 32)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.ConstFloat{Value: float32(v)}, ssa.Float, nil
	case "double":
		v, err := strconv.ParseFloat(d.Value, 64)
		if err != nil {
			return nil, ssa.Void, err
		}
		return ssa.ConstDouble{Value: v}, ssa.Double, nil
	case "null":
		return ssa.ConstNull{}, ssa.Ref(ssa.NullClass), nil
	case "string":
		return ssa.ConstString{Value: d.Value}, ssa.Ref("java/lang/String"), nil
	case "class":
		return ssa.ConstClass{Class: d.Class}, ssa.Ref("java/lang/Class"), nil
	}
	return nil, ssa.Void, fmt.Errorf("invalid constant kind %q", kind)
}
