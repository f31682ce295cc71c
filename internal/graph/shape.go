// Package graph loads transition detections into a property graph of
// awards, transitions, contracts, patents and technology areas.
package graph

import (
	"sort"

	"github.com/sells-group/transition-cli/internal/model"
)

// Node labels.
const (
	LabelAward      = "Award"
	LabelTransition = "Transition"
	LabelContract   = "Contract"
	LabelPatent     = "Patent"
	LabelTechArea   = "TechArea"
)

// Relationship types.
const (
	RelTransitionedTo     = "TRANSITIONED_TO"
	RelResultedIn         = "RESULTED_IN"
	RelEnabledBy          = "ENABLED_BY"
	RelInvolvesTechnology = "INVOLVES_TECHNOLOGY"
)

// NodeRef identifies a node by label and identifier.
type NodeRef struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Node is a labeled vertex. Nodes with the same NodeRef are merged.
type Node struct {
	NodeRef
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a typed relationship. Edges with the same key are merged.
type Edge struct {
	Rel        string         `json:"rel"`
	From       NodeRef        `json:"from"`
	To         NodeRef        `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

type edgeKey struct {
	Rel      string
	From, To NodeRef
}

func (e Edge) key() edgeKey { return edgeKey{Rel: e.Rel, From: e.From, To: e.To} }

// Batch is the unit written in one transaction. Nodes and edges are unique
// within a batch and sorted by key.
type Batch struct {
	Nodes []Node
	Edges []Edge
}

// Shape converts detections into a merged batch.
func Shape(detections []model.TransitionDetection) Batch {
	nodes := make(map[NodeRef]Node)
	edges := make(map[edgeKey]Edge)

	putNode := func(n Node) {
		if prev, ok := nodes[n.NodeRef]; ok {
			n.Properties = mergeProps(prev.Properties, n.Properties)
		}
		nodes[n.NodeRef] = n
	}
	putEdge := func(e Edge) {
		k := e.key()
		if prev, ok := edges[k]; ok {
			e.Properties = mergeProps(prev.Properties, e.Properties)
		}
		edges[k] = e
	}

	for i := range detections {
		d := &detections[i]
		award := NodeRef{Label: LabelAward, ID: d.AwardID}
		transition := NodeRef{Label: LabelTransition, ID: d.DetectionID}
		contract := NodeRef{Label: LabelContract, ID: d.ContractID}

		putNode(Node{NodeRef: award})
		putNode(Node{NodeRef: transition, Properties: map[string]any{
			"score":             d.Score,
			"band":              string(d.Band),
			"algorithm_version": d.AlgorithmVersion,
			"vendor_key":        d.VendorKey,
			"detected_at":       d.Evidence.DetectedAt,
		}})
		putNode(Node{NodeRef: contract})

		putEdge(Edge{Rel: RelTransitionedTo, From: award, To: transition, Properties: map[string]any{
			"score":    d.Score,
			"band":     string(d.Band),
			"evidence": d.Evidence,
		}})
		putEdge(Edge{Rel: RelResultedIn, From: transition, To: contract})

		for _, pid := range d.PatentIDs {
			patent := NodeRef{Label: LabelPatent, ID: pid}
			putNode(Node{NodeRef: patent})
			putEdge(Edge{Rel: RelEnabledBy, From: transition, To: patent})
		}
		if d.TechArea != "" {
			area := NodeRef{Label: LabelTechArea, ID: d.TechArea}
			putNode(Node{NodeRef: area, Properties: map[string]any{"name": d.TechArea}})
			putEdge(Edge{Rel: RelInvolvesTechnology, From: transition, To: area})
		}
	}

	b := Batch{Nodes: make([]Node, 0, len(nodes)), Edges: make([]Edge, 0, len(edges))}
	for _, n := range nodes {
		b.Nodes = append(b.Nodes, n)
	}
	for _, e := range edges {
		b.Edges = append(b.Edges, e)
	}
	sort.Slice(b.Nodes, func(i, j int) bool { return refLess(b.Nodes[i].NodeRef, b.Nodes[j].NodeRef) })
	sort.Slice(b.Edges, func(i, j int) bool {
		a, c := b.Edges[i], b.Edges[j]
		if a.Rel != c.Rel {
			return a.Rel < c.Rel
		}
		if a.From != c.From {
			return refLess(a.From, c.From)
		}
		return refLess(a.To, c.To)
	})
	return b
}

func refLess(a, b NodeRef) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return a.ID < b.ID
}

// mergeProps overlays next onto prev. Neither input is modified.
func mergeProps(prev, next map[string]any) map[string]any {
	if len(prev) == 0 {
		return next
	}
	out := make(map[string]any, len(prev)+len(next))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}
