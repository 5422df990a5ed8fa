package ssa

import (
	"reflect"
	"testing"
)

func TestTypeWidth(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
		wide bool
	}{
		{Void, 0, false},
		{Int, 1, false},
		{Float, 1, false},
		{Long, 2, true},
		{Double, 2, true},
		{Ref("java/lang/Object"), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.Width(); got != tt.want {
				t.Errorf("Width() = %d, want %d", got, tt.want)
			}
			if got := tt.typ.IsWide(); got != tt.wide {
				t.Errorf("IsWide() = %v, want %v", got, tt.wide)
			}
		})
	}
}

func TestDescriptors(t *testing.T) {
	tests := []struct {
		desc string
		want Type
	}{
		{"I", Int},
		{"Z", Int},
		{"J", Long},
		{"F", Float},
		{"D", Double},
		{"V", Void},
		{"Ljava/lang/String;", Ref("java/lang/String")},
		{"[I", Ref("[I")},
		{"[[Ljava/lang/String;", Ref("[[Ljava/lang/String;")},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := FromDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("FromDescriptor(%q) error: %v", tt.desc, err)
			}
			if got != tt.want {
				t.Errorf("FromDescriptor(%q) = %v, want %v", tt.desc, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "Q", "L;", "Ljava/lang/String", "[", "II"} {
		if _, err := FromDescriptor(bad); err == nil {
			t.Errorf("FromDescriptor(%q) should fail", bad)
		}
	}
}

func TestArrayElem(t *testing.T) {
	arr := ArrayOf(Ref("java/lang/String"))
	if arr.Class != "[Ljava/lang/String;" {
		t.Fatalf("ArrayOf = %q", arr.Class)
	}
	elem, ok := arr.Elem()
	if !ok || elem != Ref("java/lang/String") {
		t.Errorf("Elem() = %v, %v", elem, ok)
	}

	nested := ArrayOf(ArrayOf(Int))
	elem, ok = nested.Elem()
	if !ok || elem != Ref("[I") {
		t.Errorf("nested Elem() = %v, %v", elem, ok)
	}

	if _, ok := Ref("Foo").Elem(); ok {
		t.Error("non-array type should have no element")
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"int":              Int,
		"boolean":          Int,
		"long":             Long,
		"double":           Double,
		"void":             Void,
		"java/lang/Object": Ref("java/lang/Object"),
		"[J":               Ref("[J"),
	} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseType(""); err == nil {
		t.Error("empty type should fail")
	}
}

func TestSignatureArgTypes(t *testing.T) {
	sig := Signature{Class: "Foo", Name: "bar", Params: []Type{Int, Long}}

	got := sig.ArgTypes()
	if len(got) != 3 || got[0] != Ref("Foo") || got[1] != Int || got[2] != Long {
		t.Errorf("instance ArgTypes() = %v", got)
	}

	sig.Static = true
	got = sig.ArgTypes()
	if len(got) != 2 || got[0] != Int {
		t.Errorf("static ArgTypes() = %v", got)
	}
	if sig.FullName() != "Foo.bar" {
		t.Errorf("FullName() = %q", sig.FullName())
	}
}

func TestSignatureArgSlots(t *testing.T) {
	tests := []struct {
		name   string
		static bool
		want   []int
		total  int
	}{
		{"static", true, []int{0, 1, 3}, 4},
		{"instance", false, []int{0, 1, 2, 4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Signature{Class: "Foo", Name: "bar", Static: tt.static,
				Params: []Type{Int, Long, Ref("java/lang/Object")}}
			slots, total := sig.ArgSlots()
			if !reflect.DeepEqual(slots, tt.want) || total != tt.total {
				t.Errorf("ArgSlots() = %v, %d, want %v, %d", slots, total, tt.want, tt.total)
			}
		})
	}
}
