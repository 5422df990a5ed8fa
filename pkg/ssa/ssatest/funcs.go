// Package ssatest provides small hand-built SSA functions shared by the
// tests of the backend passes.
package ssatest

import "github.com/raymyers/ralph-cf/pkg/ssa"

// Args builds a method with parameters (int, long, Object) whose body only
// returns. Static selects between a static and an instance method.
func Args(static bool) *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{
		Class:  "Example",
		Name:   "args",
		Static: static,
		Params: []ssa.Type{ssa.Int, ssa.Long, ssa.Ref("java/lang/Object")},
		Return: ssa.Void,
	})
	entry := f.NewBlock("entry")
	for i, t := range f.Sig.ArgTypes() {
		f.Emit(entry, ssa.Argument{Index: i}, t)
	}
	f.Emit(entry, ssa.Return{}, ssa.Void)
	return f
}

// Sum builds
//
//	static int sum(int n) { int s = 0; for (int i = 0; i < n; i++) s += i; return s; }
func Sum() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "sum", Static: true,
		Params: []ssa.Type{ssa.Int}, Return: ssa.Int})
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	n := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "n")
	zero := f.Emit(entry, ssa.ConstInt{Value: 0}, ssa.Int)
	f.Emit(entry, ssa.Goto{Target: loop}, ssa.Void)

	i := f.Named(f.AddPhi(loop, ssa.Int), "i")
	s := f.Named(f.AddPhi(loop, ssa.Int), "s")
	f.Emit(loop, ssa.If{Cond: ssa.Ge, Then: exit, Else: body}, ssa.Void, i, n)

	s2 := f.Named(f.Emit(body, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, s, i), "s2")
	one := f.Emit(body, ssa.ConstInt{Value: 1}, ssa.Int)
	i2 := f.Named(f.Emit(body, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, i, one), "i2")
	f.Emit(body, ssa.Goto{Target: loop}, ssa.Void)

	f.SetPhiOperands(i, zero, i2)
	f.SetPhiOperands(s, zero, s2)

	f.Emit(exit, ssa.Return{}, ssa.Void, s)
	return f
}

// LongSum is Sum over a long accumulator, exercising wide slots:
//
//	static long lsum(int n, long base) { long s = base; for (int i = 0; i < n; i++) s += i; return s; }
func LongSum() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "lsum", Static: true,
		Params: []ssa.Type{ssa.Int, ssa.Long}, Return: ssa.Long})
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	n := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "n")
	base := f.Named(f.Emit(entry, ssa.Argument{Index: 1}, ssa.Long), "base")
	zero := f.Emit(entry, ssa.ConstInt{Value: 0}, ssa.Int)
	f.Emit(entry, ssa.Goto{Target: loop}, ssa.Void)

	i := f.Named(f.AddPhi(loop, ssa.Int), "i")
	s := f.Named(f.AddPhi(loop, ssa.Long), "s")
	f.Emit(loop, ssa.If{Cond: ssa.Ge, Then: exit, Else: body}, ssa.Void, i, n)

	wi := f.Named(f.Emit(body, ssa.Convert{From: ssa.KindInt, To: ssa.KindLong}, ssa.Long, i), "wi")
	s2 := f.Named(f.Emit(body, ssa.Binop{Op: ssa.Add, Kind: ssa.KindLong}, ssa.Long, s, wi), "s2")
	one := f.Emit(body, ssa.ConstInt{Value: 1}, ssa.Int)
	i2 := f.Named(f.Emit(body, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, i, one), "i2")
	f.Emit(body, ssa.Goto{Target: loop}, ssa.Void)

	f.SetPhiOperands(i, zero, i2)
	f.SetPhiOperands(s, base, s2)

	f.Emit(exit, ssa.Return{}, ssa.Void, s)
	return f
}

// Swap builds a loop whose phis exchange two values on every iteration:
//
//	static int swap(int a, int b, int n) {
//	  int x = a, y = b;
//	  for (int i = 0; i < n; i++) { int t = x; x = y; y = t; }
//	  return x * 10 + y;
//	}
func Swap() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "swap", Static: true,
		Params: []ssa.Type{ssa.Int, ssa.Int, ssa.Int}, Return: ssa.Int})
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	a := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "a")
	b := f.Named(f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int), "b")
	n := f.Named(f.Emit(entry, ssa.Argument{Index: 2}, ssa.Int), "n")
	zero := f.Emit(entry, ssa.ConstInt{Value: 0}, ssa.Int)
	f.Emit(entry, ssa.Goto{Target: loop}, ssa.Void)

	x := f.Named(f.AddPhi(loop, ssa.Int), "x")
	y := f.Named(f.AddPhi(loop, ssa.Int), "y")
	i := f.Named(f.AddPhi(loop, ssa.Int), "i")
	f.Emit(loop, ssa.If{Cond: ssa.Ge, Then: exit, Else: body}, ssa.Void, i, n)

	one := f.Emit(body, ssa.ConstInt{Value: 1}, ssa.Int)
	i2 := f.Named(f.Emit(body, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, i, one), "i2")
	f.Emit(body, ssa.Goto{Target: loop}, ssa.Void)

	f.SetPhiOperands(x, a, y)
	f.SetPhiOperands(y, b, x)
	f.SetPhiOperands(i, zero, i2)

	ten := f.Emit(exit, ssa.ConstInt{Value: 10}, ssa.Int)
	t := f.Emit(exit, ssa.Binop{Op: ssa.Mul, Kind: ssa.KindInt}, ssa.Int, x, ten)
	r := f.Emit(exit, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, t, y)
	f.Emit(exit, ssa.Return{}, ssa.Void, r)
	return f
}

// Max builds a diamond whose join is reached through conditional edges:
//
//	static int max(int a, int b) { return a >= b ? a : b; }
func Max() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "max", Static: true,
		Params: []ssa.Type{ssa.Int, ssa.Int}, Return: ssa.Int})
	entry := f.NewBlock("entry")
	join := f.NewBlock("join")

	a := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "a")
	b := f.Named(f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int), "b")
	f.Emit(entry, ssa.If{Cond: ssa.Ge, Then: join, Else: join}, ssa.Void, a, b)

	m := f.Named(f.AddPhi(join, ssa.Int), "m")
	f.SetPhiOperands(m, a, b)
	f.Emit(join, ssa.Return{}, ssa.Void, m)
	return f
}

// Counter builds a method with side effects on a static field and an
// unused result:
//
//	static void bump(int k) { Counter.total = Counter.total + k; Counter.total; }
func Counter() *ssa.Func {
	field := ssa.FieldRef{Owner: "Counter", Name: "total", Type: ssa.Int}
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "bump", Static: true,
		Params: []ssa.Type{ssa.Int}, Return: ssa.Void})
	entry := f.NewBlock("entry")
	k := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "k")
	cur := f.Emit(entry, ssa.StaticGet{Field: field}, ssa.Int)
	sum := f.Emit(entry, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, cur, k)
	f.Emit(entry, ssa.StaticPut{Field: field}, ssa.Void, sum)
	f.Emit(entry, ssa.StaticGet{Field: field}, ssa.Int)
	f.Emit(entry, ssa.Return{}, ssa.Void)
	return f
}

// PickRef builds a method merging two reference values. With same set, both
// arms produce the argument type; otherwise one arm produces a string.
//
//	static Object pick(Foo p, int c) { Object r = c != 0 ? p : (same ? (Foo) p : "s"); return r; }
func PickRef(same bool) *ssa.Func {
	foo := ssa.Ref("Foo")
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "pick", Static: true,
		Params: []ssa.Type{foo, ssa.Int}, Return: ssa.Ref("java/lang/Object")})
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")

	p := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, foo), "p")
	c := f.Named(f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int), "c")
	f.Emit(entry, ssa.If{Cond: ssa.Ne, Then: left, Else: right}, ssa.Void, c)

	f.Emit(left, ssa.Goto{Target: join}, ssa.Void)

	var other ssa.ValueID
	if same {
		other = f.Emit(right, ssa.CheckCast{Class: "Foo"}, foo, p)
	} else {
		other = f.Emit(right, ssa.ConstString{Value: "s"}, ssa.Ref("java/lang/String"))
	}
	f.Named(other, "o")
	f.Emit(right, ssa.Goto{Target: join}, ssa.Void)

	r := f.Named(f.AddPhi(join, ssa.Ref("")), "r")
	f.SetPhiOperands(r, p, other)
	f.Emit(join, ssa.Return{}, ssa.Void, r)
	return f
}

// LateArg reads its argument after other entry-block work, so the argument's
// slot must stay reserved from method entry:
//
//	static int late(int a) { P.f = 1 + 1; return a; }
func LateArg() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "late", Static: true,
		Params: []ssa.Type{ssa.Int}, Return: ssa.Int})
	entry := f.NewBlock("entry")
	one := f.Emit(entry, ssa.ConstInt{Value: 1}, ssa.Int)
	y := f.Named(f.Emit(entry, ssa.Binop{Op: ssa.Add, Kind: ssa.KindInt}, ssa.Int, one, one), "y")
	f.Emit(entry, ssa.StaticPut{Field: ssa.FieldRef{Owner: "P", Name: "f", Type: ssa.Int}}, ssa.Void, y)
	a := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "a")
	f.Emit(entry, ssa.Return{}, ssa.Void, a)
	return f
}

// SecondArg has no argument instruction for its unused first parameter:
//
//	static int second(int a, int b) { return b; }
func SecondArg() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "second", Static: true,
		Params: []ssa.Type{ssa.Int, ssa.Int}, Return: ssa.Int})
	entry := f.NewBlock("entry")
	b := f.Named(f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int), "b")
	f.Emit(entry, ssa.Return{}, ssa.Void, b)
	return f
}

// chooseInt emits "c != 0 ? 1 : 2" starting in entry and returns the join
// block and the phi holding the choice.
func chooseInt(f *ssa.Func, entry ssa.BlockID, c ssa.ValueID) (ssa.BlockID, ssa.ValueID) {
	one := f.NewBlock("one")
	two := f.NewBlock("two")
	join := f.NewBlock("join")
	f.Emit(entry, ssa.If{Cond: ssa.Ne, Then: one, Else: two}, ssa.Void, c)
	k1 := f.Emit(one, ssa.ConstInt{Value: 1}, ssa.Int)
	f.Emit(one, ssa.Goto{Target: join}, ssa.Void)
	k2 := f.Emit(two, ssa.ConstInt{Value: 2}, ssa.Int)
	f.Emit(two, ssa.Goto{Target: join}, ssa.Void)
	k := f.Named(f.AddPhi(join, ssa.Int), "k")
	f.SetPhiOperands(k, k1, k2)
	return join, k
}

// Construct allocates an object whose constructor argument is chosen by a
// branch, so the object is live but not initialized at the join:
//
//	static Foo make(int c) { return new Foo(c != 0 ? 1 : 2); }
func Construct() *ssa.Func {
	foo := ssa.Ref("Foo")
	f := ssa.NewFunc(ssa.Signature{Class: "Example", Name: "make", Static: true,
		Params: []ssa.Type{ssa.Int}, Return: foo})
	entry := f.NewBlock("entry")
	c := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Int), "c")
	o := f.Named(f.Emit(entry, ssa.NewInstance{Class: "Foo"}, foo), "o")
	join, k := chooseInt(f, entry, c)
	ctor := ssa.MethodRef{Owner: "Foo", Name: "<init>", Params: []ssa.Type{ssa.Int}, Return: ssa.Void}
	f.Emit(join, ssa.Invoke{Kind: ssa.InvokeSpecial, Method: ctor}, ssa.Void, o, k)
	f.Emit(join, ssa.Return{}, ssa.Void, o)
	return f
}

// SuperInit is a constructor choosing the superclass constructor argument
// before calling it, so the receiver is not initialized at the join:
//
//	Foo(int c) { super(c != 0 ? 1 : 2); }
func SuperInit() *ssa.Func {
	f := ssa.NewFunc(ssa.Signature{Class: "Foo", Name: "<init>",
		Params: []ssa.Type{ssa.Int}, Return: ssa.Void})
	entry := f.NewBlock("entry")
	this := f.Named(f.Emit(entry, ssa.Argument{Index: 0}, ssa.Ref("Foo")), "this")
	c := f.Named(f.Emit(entry, ssa.Argument{Index: 1}, ssa.Int), "c")
	join, k := chooseInt(f, entry, c)
	super := ssa.MethodRef{Owner: "Bar", Name: "<init>", Params: []ssa.Type{ssa.Int}, Return: ssa.Void}
	f.Emit(join, ssa.Invoke{Kind: ssa.InvokeSpecial, Method: super}, ssa.Void, this, k)
	f.Emit(join, ssa.Return{}, ssa.Void)
	return f
}
