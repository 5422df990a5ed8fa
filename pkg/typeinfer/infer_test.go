package typeinfer

import (
	"strings"
	"testing"

	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/ssa"
	"github.com/raymyers/ralph-cf/pkg/ssa/ssatest"
)

func valueNamed(f *ssa.Func, name string) ssa.ValueID {
	for i := range f.Values {
		if f.Values[i].Name == name {
			return ssa.ValueID(i)
		}
	}
	return ssa.NoValue
}

func TestInferSameTypeJoin(t *testing.T) {
	// r = phi(p, (Foo) p) with p : Foo
	f := ssatest.PickRef(true)
	types, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if got := types[valueNamed(f, "r")]; got != "Foo" {
		t.Errorf("type of r = %q, want Foo", got)
	}
	if got := types[valueNamed(f, "p")]; got != "Foo" {
		t.Errorf("type of p = %q, want Foo", got)
	}
	if _, ok := types[valueNamed(f, "c")]; ok {
		t.Error("int argument should not be typed")
	}
}

func TestInferMultiTypeJoinNotImplemented(t *testing.T) {
	// r = phi(p, "s") with p : Foo
	f := ssatest.PickRef(false)
	_, err := Infer(f)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !diag.IsNotImplemented(err) {
		t.Errorf("expected not implemented, got %v", err)
	}
	if !strings.Contains(err.Error(), "Example.pick") {
		t.Errorf("error should name the method: %v", err)
	}
}

func TestInferNullJoin(t *testing.T) {
	// static Foo orNull(int c) { return c != 0 ? new Foo() : null; }
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "orNull", Static: true,
		Params: []ssa.Type{ssa.Int}, Return: ssa.Ref("Foo")})
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")

	c := f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int)
	f.Emit(entry, ssa.If{Cond: ssa.Ne, Then: left, Else: right}, ssa.Void, c)
	obj := f.Emit(left, ssa.NewInstance{Class: "Foo"}, ssa.Ref("Foo"))
	f.Emit(left, ssa.Goto{Target: join}, ssa.Void)
	null := f.Emit(right, ssa.ConstNull{}, ssa.Ref(ssa.NullClass))
	f.Emit(right, ssa.Goto{Target: join}, ssa.Void)
	r := f.AddPhi(join, ssa.Ref(""))
	f.SetPhiOperands(r, obj, null)
	f.Emit(join, ssa.Return{}, ssa.Void, r)

	types, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if types[r] != "Foo" {
		t.Errorf("type of r = %q, want Foo", types[r])
	}
	if types[null] != ssa.NullClass {
		t.Errorf("type of null = %q, want %q", types[null], ssa.NullClass)
	}
}

func TestInferLoopConvergence(t *testing.T) {
	// static String last(String[] a, int n) {
	//   String x = a[0];
	//   for (int i = 0; i < n; i++) x = a[i];
	//   return x;
	// }
	strs := ssa.ArrayOf(ssa.Ref("java/lang/String"))
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "last", Static: true,
		Params: []ssa.Type{strs, ssa.Int}, Return: ssa.Ref("java/lang/String")})
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	a := f.Emit(entry, ssa.Argument{Index: 0}, strs)
	n := f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int)
	zero := f.Emit(entry, ssa.ConstInt{Value: 0}, ssa.Int)
	first := f.Emit(entry, ssa.ArrayGet{Elem: ssa.Ref("")}, ssa.Ref(""), a, zero)
	f.Emit(entry, ssa.Goto{Target: loop}, ssa.Void)

	x := f.AddPhi(loop, ssa.Ref(""))
	i := f.AddPhi(loop, ssa.Int)
	f.Emit(loop, ssa.If{Cond: ssa.Ge, Then: exit, Else: body}, ssa.Void, i, n)

	next := f.Emit(body, ssa.ArrayGet{Elem: ssa.Ref("")}, ssa.Ref(""), a, i)
	one := f.Emit(body, ssa.ConstInt{Value: 1}, ssa.Int)
	i2 := f.Emit(body, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, i, one)
	f.Emit(body, ssa.Goto{Target: loop}, ssa.Void)

	f.SetPhiOperands(x, first, next)
	f.SetPhiOperands(i, zero, i2)
	f.Emit(exit, ssa.Return{}, ssa.Void, x)

	types, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	for _, v := range []ssa.ValueID{first, next, x} {
		if types[v] != "java/lang/String" {
			t.Errorf("type of %s = %q, want java/lang/String", ssa.ValueName(f, v), types[v])
		}
	}
	if types[a] != "[Ljava/lang/String;" {
		t.Errorf("type of a = %q", types[a])
	}
}

func TestInferSelfReferentialPhi(t *testing.T) {
	// x = phi(p, x) must converge to the type of p.
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "spin", Static: true,
		Params: []ssa.Type{ssa.Ref("Foo"), ssa.Int}, Return: ssa.Ref("Foo")})
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	exit := f.NewBlock("exit")

	p := f.Emit(entry, ssa.Argument{Index: 0}, ssa.Ref("Foo"))
	c := f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int)
	f.Emit(entry, ssa.Goto{Target: loop}, ssa.Void)
	x := f.AddPhi(loop, ssa.Ref(""))
	f.Emit(loop, ssa.If{Cond: ssa.Ne, Then: loop, Else: exit}, ssa.Void, c)
	f.SetPhiOperands(x, p, x)
	f.Emit(exit, ssa.Return{}, ssa.Void, x)

	types, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if types[x] != "Foo" {
		t.Errorf("type of x = %q, want Foo", types[x])
	}
}

func TestInferInvariantTypes(t *testing.T) {
	field := ssa.FieldRef{Owner: "Holder", Name: "ref", Type: ssa.Ref("Bar")}
	method := ssa.MethodRef{Owner: "Factory", Name: "make", Return: ssa.Ref("Baz")}

	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "m", Return: ssa.Void})
	entry := f.NewBlock("entry")
	this := f.Emit(entry, ssa.Argument{Index: 0}, ssa.Ref("Example"))
	str := f.Emit(entry, ssa.ConstString{Value: "x"}, ssa.Ref("java/lang/String"))
	cls := f.Emit(entry, ssa.ConstClass{Class: "Foo"}, ssa.Ref("java/lang/Class"))
	size := f.Emit(entry, ssa.ConstInt{Value: 3}, ssa.Int)
	arr := f.Emit(entry, ssa.NewArray{Elem: ssa.Int}, ssa.ArrayOf(ssa.Int), size)
	get := f.Emit(entry, ssa.StaticGet{Field: field}, ssa.Ref("Bar"))
	call := f.Emit(entry, ssa.Invoke{Kind: ssa.InvokeStatic, Method: method}, ssa.Ref("Baz"))
	f.Emit(entry, ssa.Return{}, ssa.Void)

	types, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	tests := []struct {
		v    ssa.ValueID
		want string
	}{
		{this, "Example"},
		{str, "java/lang/String"},
		{cls, "java/lang/Class"},
		{arr, "[I"},
		{get, "Bar"},
		{call, "Baz"},
	}
	for _, tt := range tests {
		if got := types[tt.v]; got != tt.want {
			t.Errorf("type of v%d = %q, want %q", tt.v, got, tt.want)
		}
	}
	if _, ok := types[size]; ok {
		t.Error("int constant should not be typed")
	}
	if got := types.Values(); len(got) != len(tests) {
		t.Errorf("Values() = %v, want %d entries", got, len(tests))
	}
}

func TestInferNoReferences(t *testing.T) {
	types, err := Infer(ssatest.Sum())
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(types) != 0 {
		t.Errorf("expected no types, got %v", types)
	}
}
