// Package expr builds the prefix-notation expressions understood by the
// cluster's Rapids evaluator.
//
// A Node is one operation applied to an ordered list of operands. Nodes are
// immutable: composing a larger expression always wraps existing nodes and
// never edits them, so a subtree can be shared by any number of parents.
// Serialization is a pure function of the tree.
package expr

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Node is a deferred remote operation.
type Node struct {
	op       string
	operands []Operand
}

// New creates a node. Arity and operand types are not checked here; the
// remote evaluator rejects malformed expressions.
func New(op string, operands ...Operand) *Node {
	ops := make([]Operand, len(operands))
	copy(ops, operands)
	return &Node{op: op, operands: ops}
}

// Comma collapses several top-level expressions into one request that the
// evaluator runs left to right.
func Comma(nodes ...*Node) *Node {
	ops := make([]Operand, len(nodes))
	for i, n := range nodes {
		ops[i] = n
	}
	return &Node{op: OpComma, operands: ops}
}

// Op returns the operator tag.
func (n *Node) Op() string {
	return n.op
}

// Operands returns a copy of the operand list.
func (n *Node) Operands() []Operand {
	out := make([]Operand, len(n.operands))
	copy(out, n.operands)
	return out
}

// Serialize renders the node as `(op operand1 operand2 ...)`.
func (n *Node) Serialize() string {
	var sb strings.Builder
	n.appendTo(&sb)
	return sb.String()
}

// String is Serialize, so nodes print the way they are sent.
func (n *Node) String() string {
	return n.Serialize()
}

// Fingerprint hashes the serialized form. Structurally equal trees share a
// fingerprint.
func (n *Node) Fingerprint() uint64 {
	return xxhash.Sum64String(n.Serialize())
}

func (n *Node) appendTo(sb *strings.Builder) {
	sb.WriteByte('(')
	sb.WriteString(n.op)
	for _, o := range n.operands {
		sb.WriteByte(' ')
		if o == nil {
			None.appendTo(sb)
			continue
		}
		o.appendTo(sb)
	}
	sb.WriteByte(')')
}
