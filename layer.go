package covertree

// Layer is the set of all nodes sharing one scale index.
type Layer struct {
	Scale int32
	Nodes []*Node
}

func (l *Layer) add(n *Node) {
	l.Nodes = append(l.Nodes, n)
}

func (l *Layer) remove(n *Node) {
	for i, m := range l.Nodes {
		if m == n {
			l.Nodes = append(l.Nodes[:i], l.Nodes[i+1:]...)
			return
		}
	}
}
