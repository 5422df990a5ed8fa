package loadstore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/raymyers/ralph-cf/pkg/cf"
	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/interp"
	"github.com/raymyers/ralph-cf/pkg/liveness"
	"github.com/raymyers/ralph-cf/pkg/regalloc"
	"github.com/raymyers/ralph-cf/pkg/ssa"
	"github.com/raymyers/ralph-cf/pkg/ssa/ssatest"
)

func lower(t *testing.T, f *ssa.Func, remat bool) (*cf.Code, error) {
	t.Helper()
	info, err := liveness.Compute(f, liveness.Options{RematerializeConstants: remat})
	if err != nil {
		t.Fatalf("liveness: %v", err)
	}
	alloc, err := regalloc.Allocate(info.Intervals)
	if err != nil {
		t.Fatalf("regalloc: %v", err)
	}
	return Lower(f, info, alloc, Options{RematerializeConstants: remat})
}

func mustLower(t *testing.T, f *ssa.Func, remat bool) *cf.Code {
	t.Helper()
	code, err := lower(t, f, remat)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return code
}

func render(c *cf.Code) string {
	var buf bytes.Buffer
	cf.NewPrinter(&buf).PrintCode(c)
	return buf.String()
}

func TestLowerSum(t *testing.T) {
	// Slots: n=0, i=1 (shared with i2), s=2 (shared with s2). The back edge
	// needs no moves because every phi shares its operand's slot.
	code := mustLower(t, ssatest.Sum(), true)

	want := `Example.sum {
  ; locals = 3, stack = 2
entry:
  const 0
  const 0
  store.i 2
  store.i 1
  goto loop
loop:
  load.i 1
  load.i 0
  if.ge exit
  goto body
body:
  load.i 2
  load.i 1
  add.int -> s0:i
  store.i 2
  load.i 1
  const 1
  add.int -> s0:i
  store.i 1
  goto loop
exit:
  load.i 2
  return.i
}
`
	if got := render(code); got != want {
		t.Errorf("lowered code mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestLowerSwapPhis(t *testing.T) {
	// x and y exchange slots 0 and 1 on the back edge. Both sources are
	// pushed before either destination is written.
	code := mustLower(t, ssatest.Swap(), true)
	out := render(code)

	want := "  load.i 1\n  load.i 0\n  store.i 1\n  store.i 0\n  goto loop\n"
	if !strings.Contains(out, want) {
		t.Errorf("expected parallel swap sequence %q in:\n%s", want, out)
	}
}

func TestLowerConditionalEdgeIntoPhi(t *testing.T) {
	t.Run("unsplit edge is rejected", func(t *testing.T) {
		_, err := lower(t, ssatest.Max(), true)
		if !diag.IsInternal(err) {
			t.Fatalf("expected internal error, got %v", err)
		}
		if !strings.Contains(err.Error(), "Example.max") {
			t.Errorf("error should name the method: %v", err)
		}
	})

	t.Run("split edges carry the moves", func(t *testing.T) {
		f := ssatest.Max()
		if n := f.SplitCriticalEdges(); n != 2 {
			t.Fatalf("SplitCriticalEdges() = %d, want 2", n)
		}
		code := mustLower(t, f, true)

		// Each split block stores one argument into the phi's slot.
		stores := 0
		for _, inst := range code.Instrs {
			if _, ok := inst.(cf.Store); ok {
				stores++
			}
		}
		if stores == 0 || stores > 2 {
			t.Errorf("got %d phi stores, want 1 or 2:\n%s", stores, render(code))
		}
	})
}

func TestLowerUnusedResultIsPopped(t *testing.T) {
	code := mustLower(t, ssatest.Counter(), true)
	out := render(code)
	if !strings.Contains(out, "  sget Counter.total -> s0:i\n  pop\n  return\n") {
		t.Errorf("unused static read should be popped:\n%s", out)
	}
}

func TestLowerWithoutRematerialization(t *testing.T) {
	code := mustLower(t, ssatest.Sum(), false)

	// Every constant is defined once and stored to its slot.
	for i, inst := range code.Instrs {
		c, ok := inst.(cf.Const)
		if !ok {
			continue
		}
		if _, isStore := code.Instrs[i+1].(cf.Store); !isStore {
			t.Errorf("const %v at %d is not stored:\n%s", c.Op, i, render(code))
		}
	}
}

func TestLowerWideOperands(t *testing.T) {
	code := mustLower(t, ssatest.LongSum(), true)

	found := false
	for _, inst := range code.Instrs {
		e, ok := inst.(cf.Exec)
		if !ok {
			continue
		}
		if b, ok := e.Op.(ssa.Binop); ok && b.Kind == ssa.KindLong {
			found = true
			if len(e.In) != 2 || e.In[0].Height != 0 || e.In[1].Height != 2 {
				t.Errorf("long add operands = %+v, want heights 0 and 2", e.In)
			}
		}
	}
	if !found {
		t.Fatal("no long add in lowered code")
	}
	if code.MaxStack != 4 {
		t.Errorf("MaxStack = %d, want 4", code.MaxStack)
	}
}

func TestLowerArgumentsEmitNothing(t *testing.T) {
	code := mustLower(t, ssatest.Args(false), true)
	want := []cf.Instruction{cf.Label{Block: 0}, cf.Return{}}
	if len(code.Instrs) != len(want) {
		t.Fatalf("got %d instructions, want 2:\n%s", len(code.Instrs), render(code))
	}
	if code.MaxLocals != 5 {
		t.Errorf("MaxLocals = %d, want 5", code.MaxLocals)
	}
}

func TestLowerKeepsArgumentSlots(t *testing.T) {
	tests := []struct {
		name string
		fn   func() *ssa.Func
		args []interp.Value
	}{
		// y is computed before the argument instruction and must not
		// overwrite slot 0
		{"late argument", ssatest.LateArg, []interp.Value{int32(42)}},
		// b arrives in slot 1 even without an instruction for a
		{"missing argument", ssatest.SecondArg, []interp.Value{int32(1), int32(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, remat := range []bool{true, false} {
				code := mustLower(t, tt.fn(), remat)
				ssaEnv, cfEnv := interp.NewEnv(), interp.NewEnv()
				want, err := interp.RunSSA(tt.fn(), ssaEnv, tt.args)
				if err != nil {
					t.Fatalf("RunSSA: %v", err)
				}
				got, err := interp.RunCF(code, cfEnv, tt.args)
				if err != nil {
					t.Fatalf("RunCF (remat=%v): %v\n%s", remat, err, render(code))
				}
				if got != want {
					t.Errorf("remat=%v: stack form returned %v, SSA returned %v\n%s", remat, got, want, render(code))
				}
				if strings.Join(cfEnv.Trace, ";") != strings.Join(ssaEnv.Trace, ";") {
					t.Errorf("remat=%v: trace %v, want %v", remat, cfEnv.Trace, ssaEnv.Trace)
				}
			}
		})
	}
}
