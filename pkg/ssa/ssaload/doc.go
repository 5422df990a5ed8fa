// Package ssaload reads SSA methods from YAML or CUE documents.
//
// A document lists methods; each method has a signature and blocks. Values
// are referred to by name. Phis are declared up front so instructions may
// use them, and their operands are given either keyed by predecessor block
// name or as a list in predecessor order:
//
//	methods:
//	  - class: Example
//	    name: sum
//	    static: true
//	    params: [int]
//	    return: int
//	    blocks:
//	      - name: entry
//	        insts:
//	          - {out: n, op: arg, index: 0}
//	          - {out: zero, op: const.int, value: "0"}
//	          - {op: goto, target: loop}
//	      - name: loop
//	        phis:
//	          - {out: i, type: int, from: {entry: zero, body: i2}}
//	        insts:
//	          - {op: if.ge, args: [i, n], then: exit, else: body}
//
// Operation names follow the SSA printer.
package ssaload

type fileDoc struct {
	Methods []methodDoc `yaml:"methods" json:"methods"`
}

type methodDoc struct {
	Class  string     `yaml:"class" json:"class"`
	Name   string     `yaml:"name" json:"name"`
	Static bool       `yaml:"static" json:"static"`
	Params []string   `yaml:"params" json:"params"`
	Return string     `yaml:"return" json:"return"`
	Blocks []blockDoc `yaml:"blocks" json:"blocks"`
}

type blockDoc struct {
	Name  string    `yaml:"name" json:"name"`
	Phis  []phiDoc  `yaml:"phis" json:"phis"`
	Insts []instDoc `yaml:"insts" json:"insts"`
}

type phiDoc struct {
	Out      string            `yaml:"out" json:"out"`
	Type     string            `yaml:"type" json:"type"`
	From     map[string]string `yaml:"from" json:"from"`
	Operands []string          `yaml:"operands" json:"operands"`
}

// instDoc is one instruction. Type is the element type of array
// operations and the field type of field operations.
type instDoc struct {
	Out    string   `yaml:"out" json:"out"`
	Op     string   `yaml:"op" json:"op"`
	Args   []string `yaml:"args" json:"args"`
	Index  int      `yaml:"index" json:"index"`
	Value  string   `yaml:"value" json:"value"`
	Type   string   `yaml:"type" json:"type"`
	Class  string   `yaml:"class" json:"class"`
	Field  string   `yaml:"field" json:"field"`
	Method string   `yaml:"method" json:"method"`
	Target string   `yaml:"target" json:"target"`
	Then   string   `yaml:"then" json:"then"`
	Else   string   `yaml:"else" json:"else"`
}
