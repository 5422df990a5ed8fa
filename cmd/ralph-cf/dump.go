package main

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-cf/pkg/cf"
	"github.com/raymyers/ralph-cf/pkg/cfgen"
	"github.com/raymyers/ralph-cf/pkg/interp"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// printLiveness prints the interval of every value that needs a slot
func printLiveness(w io.Writer, res *cfgen.Result) {
	fmt.Fprintf(w, "liveness %s {\n", res.Func.Name())
	for _, it := range res.Liveness.Intervals {
		fmt.Fprintf(w, "  %s:", ssa.ValueName(res.Func, it.Value))
		for _, r := range it.Ranges {
			fmt.Fprintf(w, " [%d,%d)", r.From, r.To)
		}
		if it.Width == 2 {
			fmt.Fprint(w, " wide")
		}
		if it.IsArgument() {
			fmt.Fprintf(w, " arg %d", it.Arg)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "}")
}

// printAllocation prints the slot of every value in interval order
func printAllocation(w io.Writer, res *cfgen.Result) {
	fmt.Fprintf(w, "slots %s {\n", res.Func.Name())
	fmt.Fprintf(w, "  ; count = %d\n", res.Alloc.SlotCount)
	for _, it := range res.Liveness.Intervals {
		slot, ok := res.Alloc.Slot(it.Value)
		if !ok {
			continue
		}
		if it.Width == 2 {
			fmt.Fprintf(w, "  %s -> %d-%d\n", ssa.ValueName(res.Func, it.Value), slot, slot+1)
		} else {
			fmt.Fprintf(w, "  %s -> %d\n", ssa.ValueName(res.Func, it.Value), slot)
		}
	}
	fmt.Fprintln(w, "}")
}

// printTypes prints the verifier type of every reference value
func printTypes(w io.Writer, res *cfgen.Result) {
	fmt.Fprintf(w, "types %s {\n", res.Func.Name())
	for _, v := range res.Types.Values() {
		fmt.Fprintf(w, "  %s : %s\n", ssa.ValueName(res.Func, v), res.Types[v])
	}
	fmt.Fprintln(w, "}")
}

func printCode(w io.Writer, res *cfgen.Result) {
	cf.NewPrinter(w).PrintCode(res.Code)
}

func printSummary(w io.Writer, res *cfgen.Result) {
	fmt.Fprintf(w, "%s: %d instructions, locals = %d, stack = %d\n",
		res.Code.Name, len(res.Code.Instrs), res.Code.MaxLocals, res.Code.MaxStack)
}

// doRun interprets a method before and after lowering and reports the
// result, failing if the two disagree.
func doRun(w io.Writer, res *cfgen.Result, spec string) error {
	args, err := parseArgs(res.Func.Sig, spec)
	if err != nil {
		return fmt.Errorf("%s: %w", res.Func.Name(), err)
	}
	ssaEnv, cfEnv := interp.NewEnv(), interp.NewEnv()
	want, wantErr := interp.RunSSA(res.Func, ssaEnv, args)
	got, gotErr := interp.RunCF(res.Code, cfEnv, args)

	call := fmt.Sprintf("%s(%s)", res.Func.Name(), spec)
	ssaOut, cfOut := outcome(want, wantErr), outcome(got, gotErr)
	if ssaOut != cfOut || !reflect.DeepEqual(ssaEnv.Trace, cfEnv.Trace) {
		return fmt.Errorf("%s: ssa %s, stack form %s", call, ssaOut, cfOut)
	}
	for _, line := range ssaEnv.Trace {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "%s %s\n", call, ssaOut)
	return nil
}

func outcome(v interp.Value, err error) string {
	var exc *interp.Exception
	switch {
	case errors.As(err, &exc):
		return "throws " + exc.Class
	case err != nil:
		return "fails: " + err.Error()
	}
	return "= " + interp.Format(v)
}

// parseArgs reads comma-separated literals for the method's arguments:
// numbers, null, "new" for a fresh receiver, or a quoted string.
func parseArgs(sig ssa.Signature, spec string) ([]interp.Value, error) {
	types := sig.ArgTypes()
	var fields []string
	if strings.TrimSpace(spec) != "" {
		fields = strings.Split(spec, ",")
	}
	if len(fields) != len(types) {
		return nil, fmt.Errorf("%d arguments given, %d expected", len(fields), len(types))
	}
	args := make([]interp.Value, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		v, err := parseArg(types[i], f)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(t ssa.Type, s string) (interp.Value, error) {
	switch t.Kind {
	case ssa.KindInt:
		v, err := strconv.ParseInt(s, 0, 32)
		return int32(v), err
	case ssa.KindLong:
		v, err := strconv.ParseInt(strings.TrimSuffix(s, "L"), 0, 64)
		return v, err
	case ssa.KindFloat:
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 32)
		return float32(v), err
	case ssa.KindDouble:
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		return v, err
	}
	switch {
	case s == "null":
		return nil, nil
	case s == "new":
		return &interp.Object{Class: t.Class, Fields: make(map[string]interp.Value)}, nil
	case strings.HasPrefix(s, `"`):
		return strconv.Unquote(s)
	}
	return nil, fmt.Errorf("cannot pass %q as %s", s, t)
}
