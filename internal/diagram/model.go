// Package diagram renders flow definitions as Mermaid flowcharts.
package diagram

// NodeKind classifies a diagram node by its flow state type.
type NodeKind string

const (
	NodeKindView     NodeKind = "view"
	NodeKindAction   NodeKind = "action"
	NodeKindDecision NodeKind = "decision"
	NodeKindEnd      NodeKind = "end"
	NodeKindStart    NodeKind = "start"
)

// DiagramModel is the intermediate representation handed to renderers.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node is one flow state.
type Node struct {
	ID      string
	Label   string
	Kind    NodeKind
	Current bool // the state a paused execution is waiting in
}

// Edge is a transition. Label holds the event and, if any, the guard.
type Edge struct {
	From  string
	To    string
	Label string
}
